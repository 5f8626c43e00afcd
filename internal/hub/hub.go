// Package hub tracks realtime connections, their identity and room
// membership, and fans room events out to members.
package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
)

// Frame is one outbound event.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Relay carries broadcasts to other service instances.
type Relay interface {
	Publish(ctx context.Context, roomID, event string, payload any) error
}

type client struct {
	id     string
	userID string
	roomID string
	out    chan Frame
}

// Hub is the connection directory. A connection belongs to at most one
// room; joining another room leaves the previous one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	relay   Relay
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func New(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Hub{
		clients: make(map[string]*client),
		metrics: m,
		logger:  logging.WithComponent("hub"),
	}
}

// SetRelay installs a relay for cross-instance broadcast.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

// Register adds a connection and returns the channel its writer drains.
// The channel is closed by Unregister.
func (h *Hub) Register(connID string, buffer int) <-chan Frame {
	c := &client{id: connID, out: make(chan Frame, buffer)}

	h.mu.Lock()
	if old, ok := h.clients[connID]; ok {
		close(old.out)
	} else {
		h.metrics.RecordConnectionOpen()
	}
	h.clients[connID] = c
	h.mu.Unlock()

	return c.out
}

// Unregister removes a connection and closes its outbound channel.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	close(c.out)
	h.metrics.RecordConnectionClose()
}

// SetUser records the self-declared user id of a connection.
func (h *Hub) SetUser(connID, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if ok {
		c.userID = userID
	}
	return ok
}

// Join moves a connection into roomID and returns the room it left.
func (h *Hub) Join(connID, roomID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return "", false
	}
	prev := c.roomID
	c.roomID = roomID
	return prev, true
}

// Identity returns the user and room of a connection; empty when unknown.
func (h *Hub) Identity(connID string) (userID, roomID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if c, ok := h.clients[connID]; ok {
		return c.userID, c.roomID
	}
	return "", ""
}

// Members returns the number of connections in roomID.
func (h *Hub) Members(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, c := range h.clients {
		if c.roomID == roomID {
			n++
		}
	}
	return n
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send enqueues an event for one connection. It never blocks; the event
// is dropped when the connection is gone or its buffer is full.
func (h *Hub) Send(connID, event string, payload any) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	return enqueue(c, Frame{Event: event, Data: payload})
}

// Broadcast delivers an event to every member of roomID on this instance,
// the originator included, then hands it to the relay. It returns the
// number of local deliveries.
func (h *Hub) Broadcast(ctx context.Context, roomID, event string, payload any) int {
	delivered := h.DeliverLocal(roomID, event, payload)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Publish(ctx, roomID, event, payload); err != nil {
			h.logger.Warn().Err(err).Str("roomId", roomID).Str("event", event).Msg("Failed to relay broadcast")
		}
	}
	return delivered
}

// DeliverLocal delivers an event to local members of roomID only.
func (h *Hub) DeliverLocal(roomID, event string, payload any) int {
	f := Frame{Event: event, Data: payload}

	h.mu.RLock()
	delivered, skipped := 0, 0
	for _, c := range h.clients {
		if c.roomID != roomID {
			continue
		}
		if enqueue(c, f) {
			delivered++
		} else {
			skipped++
		}
	}
	h.mu.RUnlock()

	h.metrics.RecordBroadcast(skipped)
	if skipped > 0 {
		h.logger.Debug().Str("roomId", roomID).Str("event", event).Int("skipped", skipped).Msg("Broadcast skipped slow connections")
	}
	return delivered
}

// enqueue must be called with h.mu held so Unregister cannot close out
// concurrently.
func enqueue(c *client, f Frame) bool {
	select {
	case c.out <- f:
		return true
	default:
		return false
	}
}
