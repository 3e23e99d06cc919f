// Package live serves the run status and pushes observations to websocket
// viewers.
package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"orbitcam/internal/models"

	"github.com/gorilla/websocket"
)

// Logger is the subset of the event log the hub writes to.
type Logger interface {
	Info(format string, v ...interface{})
	Error(format string, v ...interface{})
}

type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	done       chan struct{}
	logger     Logger
	dropped    int

	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewHub(logger Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

// Run services the hub until ctx is done. It must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds a viewer. It reports false once the hub has stopped.
func (h *Hub) Register(client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a viewer. After the hub has stopped it is a no-op.
func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for all viewers. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.mutex.Lock()
		h.dropped++
		h.mutex.Unlock()
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Dropped reports how many broadcasts were discarded on a full queue.
func (h *Hub) Dropped() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.dropped
}

func (h *Hub) Name() string { return "live" }

// Observe broadcasts obs as JSON.
func (h *Hub) Observe(_ context.Context, obs models.Observation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	h.Broadcast(payload)
	return nil
}
