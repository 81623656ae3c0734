// Package realtime pushes per-user events over WebSocket, fanning out across API
// instances through Redis Pub/Sub when Redis is configured.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const userEventsChannel = "quizbirr:ws:user_events"

// Event is a message delivered to one user's sockets.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Publisher delivers events to users.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, event Event)
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, uuid.UUID, Event) {}

type envelope struct {
	UserID           string          `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection is one user socket.
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub tracks sockets on this instance.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[*Connection]struct{}

	redis      *redis.Client
	pubsub     *redis.PubSub
	instanceID string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub. redisClient may be nil for single-instance deployments.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]struct{}),
		redis:       redisClient,
		instanceID:  uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
	}
	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, userEventsChannel)
	}
	return h
}

// Run consumes cross-instance events until Close. Call in a goroutine.
func (h *Hub) Run() {
	if h.pubsub == nil {
		<-h.ctx.Done()
		return
	}

	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			if env.SenderInstanceID == h.instanceID {
				continue
			}
			userID, err := uuid.Parse(env.UserID)
			if err != nil {
				continue
			}
			h.sendLocal(userID, env.Payload)
		}
	}
}

// Close stops Run and the Redis subscription.
func (h *Hub) Close() {
	h.cancel()
	if h.pubsub != nil {
		_ = h.pubsub.Close()
	}
}

// Register adds a connection unless its user already holds MaxConnectionsPerUser
// sockets on this instance. It reports whether the connection was added.
func (h *Hub) Register(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.connections[c.UserID]
	if len(conns) >= MaxConnectionsPerUser {
		return false
	}
	if conns == nil {
		conns = make(map[*Connection]struct{})
		h.connections[c.UserID] = conns
	}
	conns[c] = struct{}{}
	return true
}

// Unregister removes a connection and closes its send channel.
func (h *Hub) Unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.connections[c.UserID]
	if !ok {
		return
	}
	if _, exists := conns[c]; exists {
		delete(conns, c)
		close(c.Send)
	}
	if len(conns) == 0 {
		delete(h.connections, c.UserID)
	}
}

// ConnectionCount returns the number of sockets for userID on this instance.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Publish implements Publisher.
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal realtime event")
		return
	}

	h.sendLocal(userID, data)

	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(envelope{
		UserID:           userID.String(),
		Payload:          data,
		SenderInstanceID: h.instanceID,
	})
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, userEventsChannel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Redis publish failed")
	}
}

func (h *Hub) sendLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections[userID] {
		select {
		case c.Send <- data:
		default:
			log.Warn().Str("user_id", userID.String()).Msg("WebSocket send buffer full")
		}
	}
}
