// Package realtime is the push channel to connected clients: a hub of live
// websocket connections addressed by presence handle, and a notifier that
// fans an event out to every connection of a set of users.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/BruksfildServices01/consult-scheduler/internal/presence"
)

var (
	// ErrConnectionGone is returned when the handle is no longer connected.
	ErrConnectionGone = errors.New("connection_gone")
	// ErrSlowConsumer is returned when the connection's buffer is full.
	ErrSlowConsumer = errors.New("slow_consumer")
)

// Envelope is the wire format of every pushed message.
type Envelope struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}

// Client is one live connection.
type Client struct {
	Handle presence.Handle
	UserID string
	send   chan []byte
}

// Messages returns the outbound queue drained by the connection writer.
// It is closed when the client is disconnected.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[presence.Handle]*Client
	presence *presence.Registry
	buffer   int
	logger   zerolog.Logger
}

func NewHub(registry *presence.Registry, buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		clients:  make(map[presence.Handle]*Client),
		presence: registry,
		buffer:   buffer,
		logger:   logger.With().Str("component", "realtime_hub").Logger(),
	}
}

// Connect registers a new connection for an authenticated user and records
// it in the presence registry.
func (h *Hub) Connect(userID string) *Client {
	client := &Client{
		Handle: presence.Handle(uuid.NewString()),
		UserID: userID,
		send:   make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	h.clients[client.Handle] = client
	h.mu.Unlock()

	h.presence.Add(userID, client.Handle)

	h.logger.Debug().
		Str("user_id", userID).
		Str("handle", string(client.Handle)).
		Msg("client connected")
	return client
}

// Disconnect removes the connection from the hub and the presence registry
// and closes its outbound queue. Safe to call more than once.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.Handle]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.Handle)
	close(client.send)
	h.mu.Unlock()

	h.presence.Remove(client.UserID, client.Handle)

	h.logger.Debug().
		Str("user_id", client.UserID).
		Str("handle", string(client.Handle)).
		Msg("client disconnected")
}

// Send queues event for one connection without blocking.
func (h *Hub) Send(handle presence.Handle, event string, payload any) error {
	data, err := json.Marshal(Envelope{
		Event:   event,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[handle]
	if !ok {
		return ErrConnectionGone
	}

	select {
	case client.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
