// Package scanfeed bridges hardware barcode scanners to the form engine
// over WebSocket. Scanner clients push decoded codes as text frames; the
// hub hands each code to the registered handler and broadcasts the
// resulting notices back to every connected client.
package scanfeed

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// Notice is one user-facing message pushed to connected clients.
type Notice struct {
	Level   string `json:"level"` // "success" or "error"
	Message string `json:"message"`
}

// Handler consumes one decoded scanner code. It runs on the connection's
// read goroutine, so it must not block indefinitely.
type Handler func(sessionID, code string)

// client wraps a WebSocket connection with a mutex for thread-safe writes.
type client struct {
	conn *ws.Conn
	mu   sync.Mutex
}

// Hub maintains connected scanner clients.
type Hub struct {
	handler Handler

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub that feeds scanned codes to handler.
func NewHub(handler Handler) *Hub {
	return &Hub{
		handler: handler,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// ClientCount reports how many scanner clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Push broadcasts a notice to all connected clients. Clients whose write
// fails are dropped.
func (h *Hub) Push(n Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("scanfeed: marshal error: %v", err)
		return
	}
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		writeErr := func() (writeErr error) {
			defer func() {
				if r := recover(); r != nil {
					writeErr = fmt.Errorf("scanfeed: write panic: %v", r)
				}
			}()
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return c.conn.WriteMessage(ws.TextMessage, data)
		}()
		c.mu.Unlock()

		if writeErr != nil {
			h.unregister(c)
		}
	}
}

// Upgrader is the default WebSocket upgrader.
var Upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleScanner upgrades the connection and reads scanner frames until the
// client goes away. The editing session the codes apply to comes from the
// ?session= query parameter.
func (h *Hub) HandleScanner(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("scanfeed: upgrade error: %v", err)
		return
	}

	c := &client{conn: conn}
	h.register(c)
	log.Printf("scanfeed: scanner connected (%d total)", h.ClientCount())

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			c.mu.Lock()
			err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if kind != ws.TextMessage {
			continue
		}
		code := strings.TrimSpace(string(data))
		if code == "" {
			continue
		}
		h.handler(sessionID, code)
	}
	h.unregister(c)
	log.Printf("scanfeed: scanner disconnected")
}
