package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Event types pushed to editor clients
const (
	EventNotification = "notification"
	EventScene        = "scene"
)

// EditorEvent is one message streamed to the clients of a session
type EditorEvent struct {
	SessionID string      `json:"session_id"`
	EventType string      `json:"event_type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SSEHub manages Server-Sent Events for editor sessions
type SSEHub struct {
	clients   map[string]map[chan EditorEvent]bool
	clientsMu sync.RWMutex
	broadcast chan EditorEvent
	done      chan struct{}
	stopOnce  sync.Once
	keepAlive time.Duration
}

// NewSSEHub creates a new SSE hub
func NewSSEHub() *SSEHub {
	hub := &SSEHub{
		clients:   make(map[string]map[chan EditorEvent]bool),
		broadcast: make(chan EditorEvent, 100),
		done:      make(chan struct{}),
		keepAlive: 30 * time.Second,
	}

	go hub.run()
	return hub
}

// run fans broadcast events out to the session's clients
func (h *SSEHub) run() {
	for {
		select {
		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients[event.SessionID] {
				select {
				case clientChan <- event:
				default:
					log.Printf("[SSE] Client channel full for session %s, skipping event", event.SessionID)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Stop ends the fan-out loop
func (h *SSEHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Subscribe registers a client channel for a session. The returned function
// unregisters and closes it.
func (h *SSEHub) Subscribe(sessionID string) (<-chan EditorEvent, func()) {
	ch := make(chan EditorEvent, 10)

	h.clientsMu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[chan EditorEvent]bool)
	}
	h.clients[sessionID][ch] = true
	log.Printf("[SSE] Client registered for session %s (total clients: %d)", sessionID, len(h.clients[sessionID]))
	h.clientsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.clientsMu.Lock()
			defer h.clientsMu.Unlock()
			if clients, exists := h.clients[sessionID]; exists {
				delete(clients, ch)
				close(ch)
				if len(clients) == 0 {
					delete(h.clients, sessionID)
				}
			}
		})
	}
}

// Broadcast sends an event to all clients listening to a session
func (h *SSEHub) Broadcast(event EditorEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[SSE] Broadcast channel full, dropping event: %s", event.EventType)
	}
}

// HandleSSE streams a session's events. The session id comes from the
// :id route parameter or the session_id query parameter.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		sessionID = c.Query("session_id")
	}
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id parameter required"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan, unsubscribe := h.Subscribe(sessionID)
	defer unsubscribe()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				log.Printf("[SSE] Failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(event.EventType, string(eventJSON))
			return true

		case <-time.After(h.keepAlive):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// GetClientCount returns the number of active clients for a session
func (h *SSEHub) GetClientCount(sessionID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[sessionID])
}
