package handlers_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/api/handlers"
	"github.com/linesmerrill/resolveit-api/lifecycle"
	"github.com/linesmerrill/resolveit-api/models"
)

type liveEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

func dialLive(t *testing.T, srv *httptest.Server, auth *api.Auth, id *api.Identity, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	if id != nil {
		tok, _, err := auth.Sign(*id)
		require.NoError(t, err)
		u += "?token=" + url.QueryEscape(tok)
	}
	return websocket.DefaultDialer.Dial(u, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) liveEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev liveEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	var netErr net.Error
	if assert.ErrorAs(t, err, &netErr) {
		assert.True(t, netErr.Timeout())
	}
}

func TestLiveHub_Audience(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	auth := api.NewAuth(ctx, nil, "test-jwt-secret", time.Hour)
	auth.Clock = func() time.Time { return fixedNow }
	hub := handlers.NewLiveHub(auth, "http://localhost:3000")
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	adminConn, _, err := dialLive(t, srv, auth, &admin, nil)
	require.NoError(t, err)
	defer adminConn.Close()
	ownerConn, _, err := dialLive(t, srv, auth, &complainant, http.Header{"Origin": {"http://localhost:3000"}})
	require.NoError(t, err)
	defer ownerConn.Close()
	strangerConn, _, err := dialLive(t, srv, auth, &stranger, nil)
	require.NoError(t, err)
	defer strangerConn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 3 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(lifecycle.EventStatusChanged, lifecycle.StatusChange{
		CaseID:      "65f0c0ffee0000000000000a",
		CaseNumber:  "RIT-2024-000001",
		From:        models.StatusRegistered,
		To:          models.StatusUnderReview,
		Actor:       admin.ID,
		Complainant: complainant.ID,
	}))

	for _, conn := range []*websocket.Conn{adminConn, ownerConn} {
		ev := readEvent(t, conn)
		assert.Equal(t, lifecycle.EventStatusChanged, ev.Event)
		assert.Equal(t, "RIT-2024-000001", ev.Data["caseNumber"])
		assert.NotContains(t, ev.Data, "Complainant")
	}
	assertSilent(t, strangerConn)
}

func TestLiveHub_RejectsBadHandshake(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	auth := api.NewAuth(ctx, nil, "test-jwt-secret", time.Hour)
	auth.Clock = func() time.Time { return fixedNow }
	hub := handlers.NewLiveHub(auth, "http://localhost:3000")
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	_, resp, err := dialLive(t, srv, auth, nil, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	_, resp, err = dialLive(t, srv, auth, &complainant, http.Header{"Origin": {"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	assert.Zero(t, hub.Clients())
}

func TestLiveHub_ThroughRouter(t *testing.T) {
	ta := newTestApp(t)
	srv := httptest.NewServer(ta.Router)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/cases?token=" + url.QueryEscape(ta.token(t, admin))
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ta.Hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ta.Hub.Publish(lifecycle.EventConsentResponded, lifecycle.ConsentResponse{
		CaseID:      "65f0c0ffee0000000000000a",
		CaseNumber:  "RIT-2024-000001",
		Response:    models.ConsentDeclined,
		Complainant: complainant.ID,
	}))
	ev := readEvent(t, conn)
	assert.Equal(t, lifecycle.EventConsentResponded, ev.Event)
	assert.Equal(t, "declined", ev.Data["response"])
}
