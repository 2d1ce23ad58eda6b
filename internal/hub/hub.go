// Package hub fans queue events out to connected dashboard streams. Slow
// clients drop messages rather than blocking the publisher.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-queue/internal/events"
)

// Client is one connected live-update stream.
type Client struct {
	ID   string
	Send chan []byte
}

// Hub tracks connected clients and broadcasts serialized events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// New creates an empty hub. logger may be nil.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

// Register adds a client with a bounded send buffer.
func (h *Hub) Register(id string) *Client {
	client := &Client{ID: id, Send: make(chan []byte, 16)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = client
	return client
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

// Broadcast sends the payload to every connected client, dropping it for
// clients whose buffer is full.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			h.logger.Debug("dropping live update for slow client", zap.String("client", client.ID))
		}
	}
}

// RegisterFeed subscribes the hub to every queue event.
func (h *Hub) RegisterFeed(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		h.Broadcast(payload)
		return nil
	})
}
