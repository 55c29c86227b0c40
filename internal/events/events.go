// Package events broadcasts engine events (settlements, completions,
// streak changes, day rollovers) to websocket subscribers. The
// achievement system is the intended consumer. Delivery is best
// effort: a dead or slow subscriber is dropped, never retried, and a
// publish failure never propagates into the engine.
package events

import (
	"net/http"
	"sync"
	"time"

	"questlog/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Message struct {
	Type string         `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

const writeTimeout = 5 * time.Second

type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades an HTTP request to a websocket and registers it
// for event delivery. The connection is read-drained in the background
// so client pings and close frames are handled.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()

	return nil
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()

	if ok {
		_ = conn.Close()
	}
}

// Publish fans the event out to every subscriber.
func (h *Hub) Publish(eventType string, data map[string]any) {
	msg := Message{
		Type: eventType,
		Time: time.Now().UTC(),
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Logger().Error("events: failed to marshal message",
			zap.String("type", eventType), zap.Error(err))
		return
	}

	// Writes are serialized under the lock: gorilla connections allow
	// only one concurrent writer, and Publish is called from many
	// per-user goroutines.
	h.mu.Lock()
	var dead []*websocket.Conn
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Logger().Warn("events: dropping subscriber",
				zap.Error(err))
			delete(h.conns, conn)
			dead = append(dead, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range dead {
		_ = conn.Close()
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
