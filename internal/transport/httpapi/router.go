package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oggyb/match-relay/internal/auth"
	"github.com/oggyb/match-relay/internal/service/registry"
)

type Options struct {
	Services *registry.Services
	Issuer   *auth.Issuer
	Logger   *slog.Logger
	// WebSocket is mounted at /ws when set.
	WebSocket http.Handler
	// Health reports dependency health for /healthz.
	Health func(ctx context.Context) error
	// DevTokens exposes POST /api/v1/dev/tokens. Never enable in production.
	DevTokens bool
}

func NewRouter(opts Options) http.Handler {
	h := &handler{svc: opts.Services, issuer: opts.Issuer, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	if opts.WebSocket != nil {
		r.Handle("/ws", opts.WebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if opts.DevTokens {
			r.Post("/dev/tokens", h.issueToken)
		}

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(opts.Issuer))

			r.Get("/candidates/next", h.nextCandidate)
			r.Post("/likes", h.like)
			r.Get("/likes/received", h.listAdmirers)
			r.Get("/likes/received/count", h.countAdmirers)

			r.Post("/chats", h.requestChat)
			r.Get("/chats/state", h.chatState)
			r.Delete("/chats/current", h.stopChat)

			r.Get("/requests", h.listRequests)
			r.Post("/requests/{id}/accept", h.acceptRequest)
			r.Post("/requests/{id}/decline", h.declineRequest)
			r.Delete("/requests", h.clearRequests)

			r.Post("/messages", h.sendMessage)
			r.Put("/preference", h.setPreference)
			r.Post("/reports", h.report)
		})
	})

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			)
		})
	}
}
