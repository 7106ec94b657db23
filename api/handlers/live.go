package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/config"
)

const liveWriteTimeout = 5 * time.Second

// owned is implemented by event payloads that belong to one user's case
type owned interface {
	Owner() string
}

type liveMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// LiveHub pushes case events to connected dashboards. Admins see every event, other
// users only events about their own cases. Delivery is best effort.
type LiveHub struct {
	auth     *api.Auth
	upgrader websocket.Upgrader

	mutex   sync.Mutex
	clients map[*websocket.Conn]api.Identity
}

// NewLiveHub accepts browser connections from clientURL only. An empty clientURL
// accepts any origin.
func NewLiveHub(auth *api.Auth, clientURL string) *LiveHub {
	h := &LiveHub{
		auth:    auth,
		clients: make(map[*websocket.Conn]api.Identity),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     sameOrigin(clientURL),
	}
	return h
}

func sameOrigin(clientURL string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || clientURL == "" {
			return true
		}
		want, err := url.Parse(clientURL)
		if err != nil {
			return false
		}
		got, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(got.Scheme, want.Scheme) && strings.EqualFold(got.Host, want.Host)
	}
}

// ServeWS upgrades an authenticated request. Browsers cannot set headers on a
// websocket handshake, so the access token comes in the token query parameter.
func (h *LiveHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, err := h.auth.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		config.ErrorCodeStatus("unauthorized", "unauthorized", http.StatusUnauthorized, w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "error", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = id
	h.mutex.Unlock()
	zap.S().Debugw("live client connected", "userId", id.ID)

	// clients never send anything useful, reading only notices the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	h.drop(conn)
	zap.S().Debugw("live client disconnected", "userId", id.ID)
}

func (h *LiveHub) drop(conn *websocket.Conn) {
	h.mutex.Lock()
	delete(h.clients, conn)
	h.mutex.Unlock()
	_ = conn.Close()
}

// Publish implements lifecycle.Publisher
func (h *LiveHub) Publish(event string, payload interface{}) error {
	b, err := json.Marshal(liveMessage{Event: event, Data: payload})
	if err != nil {
		return err
	}
	owner := ""
	if o, ok := payload.(owned); ok {
		owner = o.Owner()
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent, failed := 0, 0
	for conn, id := range h.clients {
		if !id.IsAdmin() && (owner == "" || id.ID != owner) {
			continue
		}
		sent++
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			failed++
			zap.S().Infow("dropping live client", "userId", id.ID, "error", err)
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
	if failed > 0 {
		return fmt.Errorf("%s: %d of %d live clients unreachable", event, failed, sent)
	}
	return nil
}

// Clients returns the number of open connections
func (h *LiveHub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *LiveHub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
