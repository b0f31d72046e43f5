package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/oggyb/match-relay/internal/app"
	"github.com/oggyb/match-relay/internal/auth"
	"github.com/oggyb/match-relay/internal/cache"
	"github.com/oggyb/match-relay/internal/config"
	"github.com/oggyb/match-relay/internal/db"
	"github.com/oggyb/match-relay/internal/logger"
	"github.com/oggyb/match-relay/internal/server"
	"github.com/oggyb/match-relay/internal/service/admin"
	"github.com/oggyb/match-relay/internal/service/registry"
	"github.com/oggyb/match-relay/internal/transport/httpapi"
	"github.com/oggyb/match-relay/internal/transport/ws"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		log.Error("failed to init redis", "err", err)
		os.Exit(1)
	}
	defer redisCache.Close()
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	// the hub is the outbound transport every service notifies through
	hub := ws.NewHub(log.With("component", "ws"))
	appCtx := app.New(cfg, database, redisCache, log, hub)
	services := registry.New(appCtx)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	router := httpapi.NewRouter(httpapi.Options{
		Services:  services,
		Issuer:    issuer,
		Logger:    log,
		WebSocket: ws.NewHandler(hub, issuer, ws.NewDispatcher(services, log), log),
		Health:    redisCache.Ping,
		DevTokens: cfg.App.ENV == "development",
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Host + ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := server.NewGRPCServer(
		[]grpc.UnaryServerInterceptor{admin.AuthInterceptor(cfg.Admin.TokenHash)},
		admin.NewRegistrar(appCtx),
	)

	go func() {
		log.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "err", err)
			os.Exit(1)
		}
	}()

	go func() {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		if err := server.StartGRPCServer(cfg, grpcServer); err != nil {
			log.Error("gRPC server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// hijacked websocket connections are not closed by Shutdown
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", "err", err)
	}
	grpcServer.GracefulStop()

	log.Info("server exited")
}
