package realtime

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 16
)

// Event is pushed to the recipient's connections for every new notification.
type Event struct {
	Type         string                    `json:"type"`
	Notification notification.Notification `json:"notification"`
	Sound        string                    `json:"sound,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans new notifications out to the websocket connections of their recipient.
// Slow connections miss events instead of blocking the publisher.
type Hub struct {
	upgrader websocket.Upgrader
	logger   core.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{} // {recipientID: clients}
	closed  bool
}

var _ notification.Publisher = (*Hub)(nil)

func NewHub(conf *core.Config, logger core.Logger) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		clients: make(map[string]map[*client]struct{}),
	}
	h.upgrader.CheckOrigin = originChecker(conf)
	return h
}

// originChecker accepts requests without an Origin header (non-browser clients)
// and browser requests coming from the frontend. Any origin is accepted in debug mode.
func originChecker(conf *core.Config) func(r *http.Request) bool {
	var allowed string
	if u, err := url.Parse(conf.FrontendBaseURL); err == nil && u.Host != "" {
		allowed = u.Scheme + "://" + u.Host
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || conf.Debug {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed != "" && strings.EqualFold(u.Scheme+"://"+u.Host, allowed)
	}
}

func (h *Hub) register(recipientID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.clients[recipientID] == nil {
		h.clients[recipientID] = make(map[*client]struct{})
	}
	h.clients[recipientID][c] = struct{}{}
	return true
}

func (h *Hub) unregister(recipientID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[recipientID][c]; !ok {
		return
	}
	delete(h.clients[recipientID], c)
	if len(h.clients[recipientID]) == 0 {
		delete(h.clients, recipientID)
	}
	close(c.send)
}

// Subscribers returns the number of open connections of the recipient.
func (h *Hub) Subscribers(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[recipientID])
}

func (h *Hub) Publish(recipientID string, n notification.Notification, sound string) {
	msg, err := json.Marshal(Event{Type: "notification", Notification: n, Sound: sound})
	if err != nil {
		h.logger.Error("encoding realtime event", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[recipientID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("realtime event dropped for slow client", map[string]interface{}{
				"recipient_id": recipientID,
				"id":           n.ID,
			})
		}
	}
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Serve upgrades the request to a websocket streaming the recipient's events.
// It blocks until the connection is closed.
// A closed Hub returns a core shutdown error without upgrading the request.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, recipientID string) error {
	if h.isClosed() {
		return core.NewShutdownError("realtime hub closed")
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.register(recipientID, c) {
		_ = conn.Close()
		return core.NewShutdownError("realtime hub closed")
	}

	go c.writePump()
	c.readPump()

	h.unregister(recipientID, c)
	return nil
}

// readPump discards incoming messages; it returns when the connection is closed.
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for recipientID, clients := range h.clients {
		for c := range clients {
			close(c.send)
		}
		delete(h.clients, recipientID)
	}
}
