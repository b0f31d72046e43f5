package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/status"

	"github.com/oggyb/match-relay/internal/auth"
	svcErr "github.com/oggyb/match-relay/internal/errors"
	"github.com/oggyb/match-relay/internal/service/registry"
	"github.com/oggyb/match-relay/internal/service/relay"
)

type handler struct {
	svc    *registry.Services
	issuer *auth.Issuer
	logger *slog.Logger
}

type userRequest struct {
	UserID uint64 `json:"user_id"`
}

type reportRequest struct {
	UserID uint64 `json:"user_id"`
	Reason string `json:"reason"`
}

type preferenceRequest struct {
	Preference string `json:"preference"`
}

func (h *handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == 0 {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	tok, err := h.issuer.Issue(req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"token": tok})
}

func (h *handler) nextCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Matching.NextCandidate(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if c == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *handler) like(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Matching.Like(r.Context(), UserID(r.Context()), req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *handler) listAdmirers(w http.ResponseWriter, r *http.Request) {
	var token *string
	if t := r.URL.Query().Get("page_token"); t != "" {
		token = &t
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	admirers, next, err := h.svc.Matching.ListAdmirers(r.Context(), UserID(r.Context()), token, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := map[string]any{"admirers": admirers}
	if next != nil {
		resp["next_page_token"] = *next
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *handler) countAdmirers(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Matching.CountAdmirers(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *handler) requestChat(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.svc.Sessions.RequestChat(r.Context(), UserID(r.Context()), req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"outcome": out})
}

func (h *handler) chatState(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Sessions.State(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *handler) stopChat(w http.ResponseWriter, r *http.Request) {
	partner, had, err := h.svc.Sessions.Stop(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !had {
		h.fail(w, r, svcErr.ErrNotInChat)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ended": true, "partner_id": partner})
}

func (h *handler) listRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.Sessions.ListRequests(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (h *handler) acceptRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	partner, err := h.svc.Sessions.Accept(r.Context(), UserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"partner_id": partner})
}

func (h *handler) declineRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Sessions.Decline(r.Context(), UserID(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) clearRequests(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Sessions.ClearRequests(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req relay.Content
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Relay.Relay(r.Context(), UserID(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *handler) setPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if !decode(w, r, &req) {
		return
	}
	pref, err := h.svc.Matching.SetPreference(r.Context(), UserID(r.Context()), req.Preference)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"preference": pref})
}

// report arms a report against user_id (0 = current partner) and, when a
// reason is given, files it in the same call.
func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	me := UserID(ctx)

	target, err := h.svc.Moderation.BeginReport(ctx, me, req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Reason == "" {
		respondJSON(w, http.StatusAccepted, map[string]any{"target_id": target})
		return
	}
	id, err := h.svc.Moderation.SubmitReport(ctx, me, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"report_id": id, "target_id": target})
}

// fail writes err as a JSON error. Infrastructure failures are logged and masked.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := svcErr.HTTPStatus(err)
	msg := svcErr.UserMessage(err)
	if st, ok := status.FromError(err); ok && code < http.StatusInternalServerError {
		msg = st.Message()
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	respondError(w, code, msg)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
