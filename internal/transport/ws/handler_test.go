package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/match-relay/internal/app"
	"github.com/oggyb/match-relay/internal/auth"
	"github.com/oggyb/match-relay/internal/config"
	"github.com/oggyb/match-relay/internal/db"
	"github.com/oggyb/match-relay/internal/logger"
	"github.com/oggyb/match-relay/internal/service/registry"
	"github.com/oggyb/match-relay/internal/testutil"
	"github.com/oggyb/match-relay/internal/transport/ws"
)

type wsEnv struct {
	app    *app.AppContext
	hub    *ws.Hub
	issuer *auth.Issuer
	url    string
}

// setupWS serves the WebSocket handler with the hub as the message
// transport. Abel (1) and Betty (2) have matched.
func setupWS(t *testing.T) *wsEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Intent.TTL = 10 * time.Minute
	rc, _ := testutil.NewRedis(t)
	hub := ws.NewHub(logger.Discard())
	appCtx := app.New(cfg, testutil.NewDB(t), rc, logger.Discard(), hub)

	users := []db.User{
		{ID: 1, Name: "Abel", Gender: db.GenderMale, Preference: db.PreferenceBoth},
		{ID: 2, Name: "Betty", Gender: db.GenderFemale, Preference: db.PreferenceBoth},
	}
	require.NoError(t, appCtx.DB.Create(&users).Error)
	require.NoError(t, appCtx.DB.Create(&[]db.Swipe{{LikerID: 1, LikedID: 2}, {LikerID: 2, LikedID: 1}}).Error)

	issuer := auth.NewIssuer("test-secret", time.Hour)
	handler := ws.NewHandler(hub, issuer, ws.NewDispatcher(registry.New(appCtx), logger.Discard()), logger.Discard())
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &wsEnv{
		app:    appCtx,
		hub:    hub,
		issuer: issuer,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (e *wsEnv) dial(t *testing.T, userID uint64) *websocket.Conn {
	t.Helper()
	tok, err := e.issuer.Issue(userID)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(e.url+"/ws?token="+tok, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return e.hub.IsOnline(userID) }, time.Second, 5*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, in ws.Inbound) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(in))
}

func next(t *testing.T, conn *websocket.Conn) ws.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev ws.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.NotEmpty(t, ev.ID)
	return ev
}

func TestChatAndRelay(t *testing.T) {
	e := setupWS(t)
	abel := e.dial(t, 1)
	betty := e.dial(t, 2)

	send(t, abel, ws.Inbound{Type: ws.InChat, UserID: 2})

	ev := next(t, abel)
	assert.Equal(t, ws.EventText, ev.Type)
	assert.Contains(t, ev.Text, "Connected with Betty")

	ev = next(t, abel)
	assert.Equal(t, ws.EventAck, ev.Type)
	assert.Equal(t, map[string]any{"outcome": "connected"}, ev.Data)

	ev = next(t, betty)
	assert.Contains(t, ev.Text, "chatting with Abel")

	send(t, abel, ws.Inbound{Type: ws.InText, Text: "hello"})
	ev = next(t, betty)
	assert.Equal(t, ws.EventText, ev.Type)
	assert.Equal(t, "💬 Abel: hello", ev.Text)

	send(t, betty, ws.Inbound{Type: ws.InPhoto, PhotoRef: "img-1", Caption: "me"})
	ev = next(t, abel)
	assert.Equal(t, ws.EventPhoto, ev.Type)
	assert.Equal(t, "img-1", ev.PhotoRef)
	assert.Equal(t, "📷 Photo from Betty\n\nme", ev.Text)
}

func TestReportIntentCapturesText(t *testing.T) {
	e := setupWS(t)
	abel := e.dial(t, 1)
	betty := e.dial(t, 2)

	send(t, abel, ws.Inbound{Type: ws.InChat, UserID: 2})
	next(t, abel) // connected
	next(t, abel) // ack
	next(t, betty)

	send(t, abel, ws.Inbound{Type: ws.InReport})
	assert.Contains(t, next(t, abel).Text, "describe the reason")
	assert.Equal(t, ws.EventAck, next(t, abel).Type)

	send(t, abel, ws.Inbound{Type: ws.InText, Text: "spam links"})
	assert.Contains(t, next(t, abel).Text, "report has been submitted")
	assert.Equal(t, ws.EventAck, next(t, abel).Type)

	var reports []db.Report
	require.NoError(t, e.app.DB.Find(&reports).Error)
	require.Len(t, reports, 1)
	assert.Equal(t, "spam links", reports[0].Reason)
	assert.Equal(t, uint64(2), reports[0].ReportedID)

	// the next text goes back to the partner
	send(t, abel, ws.Inbound{Type: ws.InText, Text: "sorry"})
	assert.Equal(t, "💬 Abel: sorry", next(t, betty).Text)
}

func TestErrorsAreReplied(t *testing.T) {
	e := setupWS(t)
	abel := e.dial(t, 1)

	send(t, abel, ws.Inbound{Type: "dance"})
	ev := next(t, abel)
	assert.Equal(t, ws.EventError, ev.Type)
	assert.Equal(t, "Unknown message type", ev.Text)

	send(t, abel, ws.Inbound{Type: ws.InText, Text: "anyone?"})
	ev = next(t, abel)
	assert.Equal(t, ws.EventError, ev.Type)
	assert.Equal(t, "You are not in a chat right now.", ev.Text)

	require.NoError(t, abel.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "Invalid message format", next(t, abel).Text)
}

func TestStatusAndFind(t *testing.T) {
	e := setupWS(t)
	abel := e.dial(t, 1)

	send(t, abel, ws.Inbound{Type: ws.InStatus})
	ev := next(t, abel)
	assert.Equal(t, ws.EventStatus, ev.Type)
	assert.Equal(t, map[string]any{"state": "idle"}, ev.Data)

	// Abel already liked the only other profile
	send(t, abel, ws.Inbound{Type: ws.InFind})
	ev = next(t, abel)
	assert.Equal(t, ws.EventCandidate, ev.Type)
	assert.Nil(t, ev.Data)
}

func TestRejectsMissingToken(t *testing.T) {
	e := setupWS(t)

	_, resp, err := websocket.DefaultDialer.Dial(e.url+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(e.url+"/ws?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_OfflineIsUnreachable(t *testing.T) {
	hub := ws.NewHub(logger.Discard())
	err := hub.SendText(context.Background(), 5, "hi")
	assert.ErrorIs(t, err, ws.ErrOffline)
}

func TestHub_ReplacedConnection(t *testing.T) {
	e := setupWS(t)
	first := e.dial(t, 1)
	second := e.dial(t, 1)

	// registering the second connection closes the first
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	require.NoError(t, e.hub.SendText(context.Background(), 1, "ping"))
	assert.Equal(t, "ping", next(t, second).Text)
}
