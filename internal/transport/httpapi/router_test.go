package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/match-relay/internal/auth"
	"github.com/oggyb/match-relay/internal/db"
	"github.com/oggyb/match-relay/internal/logger"
	"github.com/oggyb/match-relay/internal/service/registry"
	"github.com/oggyb/match-relay/internal/testutil"
	"github.com/oggyb/match-relay/internal/transport/httpapi"
)

type apiEnv struct {
	*testutil.Env
	srv    *httptest.Server
	issuer *auth.Issuer
}

// setupAPI seeds Abel (1), Betty (2) and Cara (3); Abel and Betty matched,
// Cara liked Abel.
func setupAPI(t *testing.T, health func(context.Context) error) *apiEnv {
	t.Helper()
	env := testutil.NewEnv(t)
	env.CreateUsers(t,
		db.User{ID: 1, Name: "Abel", Gender: db.GenderMale, Campus: "North"},
		db.User{ID: 2, Name: "Betty", Gender: db.GenderFemale},
		db.User{ID: 3, Name: "Cara", Gender: db.GenderFemale, Campus: "South"},
	)
	env.Like(t, 1, 2)
	env.Like(t, 2, 1)
	env.Like(t, 3, 1)

	issuer := auth.NewIssuer("test-secret", time.Hour)
	srv := httptest.NewServer(httpapi.NewRouter(httpapi.Options{
		Services:  registry.New(env.App),
		Issuer:    issuer,
		Logger:    logger.Discard(),
		Health:    health,
		DevTokens: true,
	}))
	t.Cleanup(srv.Close)
	return &apiEnv{Env: env, srv: srv, issuer: issuer}
}

func (e *apiEnv) do(t *testing.T, userID uint64, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if userID != 0 {
		tok, err := e.issuer.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestAuthRequired(t *testing.T) {
	e := setupAPI(t, nil)

	code, body := e.do(t, 0, http.MethodGet, "/api/v1/chats/state", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Authorization header required", body["error"])
}

func TestDevToken(t *testing.T) {
	e := setupAPI(t, nil)

	code, body := e.do(t, 0, http.MethodPost, "/api/v1/dev/tokens", map[string]any{"user_id": 3})
	require.Equal(t, http.StatusCreated, code)
	id, err := e.issuer.Parse(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)
}

func TestChatLifecycle(t *testing.T) {
	e := setupAPI(t, nil)

	code, body := e.do(t, 1, http.MethodPost, "/api/v1/chats", map[string]any{"user_id": 2})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "connected", body["outcome"])

	code, body = e.do(t, 2, http.MethodGet, "/api/v1/chats/state", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body["state"])
	assert.Equal(t, float64(1), body["partner_id"])

	code, body = e.do(t, 1, http.MethodPost, "/api/v1/messages", map[string]any{"text": "hey"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["delivered"])
	assert.Contains(t, e.Messenger.TextsTo(2), "💬 Abel: hey")

	code, _ = e.do(t, 1, http.MethodGet, "/api/v1/candidates/next", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = e.do(t, 1, http.MethodDelete, "/api/v1/chats/current", nil)
	require.Equal(t, http.StatusOK, code)

	// the partner who was left cannot resume alone
	code, body = e.do(t, 2, http.MethodPost, "/api/v1/chats", map[string]any{"user_id": 1})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "awaiting_consent", body["outcome"])

	code, body = e.do(t, 1, http.MethodGet, "/api/v1/requests", nil)
	require.Equal(t, http.StatusOK, code)
	reqs := body["requests"].([]any)
	require.Len(t, reqs, 1)
	req := reqs[0].(map[string]any)
	assert.Equal(t, "Betty", req["requester_name"])

	code, body = e.do(t, 1, http.MethodPost, "/api/v1/requests/"+jsonID(req["id"])+"/accept", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["partner_id"])

	code, body = e.do(t, 2, http.MethodPost, "/api/v1/messages", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Nothing to send.", body["error"])
}

func TestLikesAndAdmirers(t *testing.T) {
	e := setupAPI(t, nil)

	code, body := e.do(t, 1, http.MethodGet, "/api/v1/likes/received/count", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, body = e.do(t, 1, http.MethodGet, "/api/v1/likes/received", nil)
	require.Equal(t, http.StatusOK, code)
	admirers := body["admirers"].([]any)
	require.Len(t, admirers, 1)
	assert.NotContains(t, body, "next_page_token")

	code, body = e.do(t, 1, http.MethodPost, "/api/v1/likes", map[string]any{"user_id": 3})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["mutual"])

	code, body = e.do(t, 1, http.MethodGet, "/api/v1/likes/received/count", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), body["count"])

	code, _ = e.do(t, 1, http.MethodGet, "/api/v1/likes/received?page_token=!!!", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, 1, http.MethodPost, "/api/v1/likes", map[string]any{"user_id": 1})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPreferenceAndCandidates(t *testing.T) {
	e := setupAPI(t, nil)

	code, body := e.do(t, 2, http.MethodPut, "/api/v1/preference", map[string]any{"preference": "Female"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Female", body["preference"])

	code, body = e.do(t, 2, http.MethodGet, "/api/v1/candidates/next", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["id"])

	code, _ = e.do(t, 2, http.MethodPut, "/api/v1/preference", map[string]any{"preference": "Robots"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, 3, http.MethodPost, "/api/v1/likes", map[string]any{"user_id": 2})
	require.Equal(t, http.StatusOK, code)
	code, _ = e.do(t, 3, http.MethodPut, "/api/v1/preference", map[string]any{"preference": "Male"})
	require.Equal(t, http.StatusOK, code)
	code, _ = e.do(t, 3, http.MethodGet, "/api/v1/candidates/next", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestReport(t *testing.T) {
	e := setupAPI(t, nil)

	code, _ := e.do(t, 1, http.MethodPost, "/api/v1/reports", map[string]any{"reason": "x"})
	assert.Equal(t, http.StatusConflict, code)

	code, body := e.do(t, 1, http.MethodPost, "/api/v1/reports", map[string]any{"user_id": 3, "reason": "fake photos"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(3), body["target_id"])
	assert.NotZero(t, body["report_id"])
}

func TestHealthAndMetrics(t *testing.T) {
	e := setupAPI(t, nil)
	code, body := e.do(t, 0, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthDown(t *testing.T) {
	e := setupAPI(t, func(context.Context) error { return errors.New("redis down") })
	code, body := e.do(t, 0, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
}

func jsonID(v any) string {
	return strconv.FormatUint(uint64(v.(float64)), 10)
}
