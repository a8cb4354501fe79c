// Package socket pushes change notifications to portal views over websockets.
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// Event types pushed to clients.
const (
	EventFeedUpdated    = "feed.updated"
	EventCommandOutcome = "command.outcome"
	EventViewExpired    = "view.expired"
)

// Event is the JSON message written to a client.
type Event struct {
	Type string `json:"type"`
	View string `json:"view,omitempty"`
	Data any    `json:"data,omitempty"`
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// Hub tracks the websocket connections of each view.
type Hub struct {
	clients map[string]map[*conn]struct{}
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*conn]struct{})}
}

// Register subscribes ws to viewID. The returned func unregisters it.
func (h *Hub) Register(viewID string, ws *websocket.Conn) func() {
	c := &conn{ws: ws}

	h.mu.Lock()
	if h.clients[viewID] == nil {
		h.clients[viewID] = make(map[*conn]struct{})
	}
	h.clients[viewID][c] = struct{}{}
	h.mu.Unlock()
	log.Debug().Str("view", viewID).Msg("WebSocket client registered")

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients[viewID], c)
			if len(h.clients[viewID]) == 0 {
				delete(h.clients, viewID)
			}
			h.mu.Unlock()
			log.Debug().Str("view", viewID).Msg("WebSocket client unregistered")
		})
	}
}

// Subscribers returns how many connections listen on viewID.
func (h *Hub) Subscribers(viewID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[viewID])
}

func (h *Hub) snapshot(viewID string) []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*conn, 0, len(h.clients[viewID]))
	for c := range h.clients[viewID] {
		out = append(out, c)
	}
	return out
}

// Send writes ev to every connection of viewID. A view with no connection
// is not an error.
func (h *Hub) Send(viewID string, ev Event) error {
	ev.View = viewID
	return h.write(h.snapshot(viewID), ev)
}

func (h *Hub) write(conns []*conn, ev Event) error {
	if len(conns) == 0 {
		return nil
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	for _, c := range conns {
		if err := c.write(msg); err != nil {
			log.Warn().Err(err).Str("type", ev.Type).Msg("WebSocket write failed")
		}
	}
	return nil
}
