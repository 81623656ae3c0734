package realtime

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// MaxConnectionsPerUser caps sockets per user on one instance.
	MaxConnectionsPerUser = 5
)

// Handler upgrades authenticated requests to sockets registered on the hub.
type Handler struct {
	hub      *Hub
	userID   func(*http.Request) uuid.UUID
	upgrader websocket.Upgrader
}

// NewHandler creates a socket handler. userID extracts the authenticated user.
func NewHandler(hub *Hub, userID func(*http.Request) uuid.UUID, allowedOrigins []string) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub:    hub,
		userID: userID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == uuid.Nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	// The slot is taken before the upgrade so concurrent upgrades cannot exceed the cap.
	client := &Connection{UserID: userID, Send: make(chan []byte, 64)}
	if !h.hub.Register(client) {
		http.Error(w, "too many open connections", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.Unregister(client)
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client.Conn = conn
	log.Debug().
		Str("user_id", userID.String()).
		Int("connections", h.hub.ConnectionCount(userID)).
		Msg("WebSocket connected")

	go h.writer(client)
	go h.reader(client)
}

// reader only drains control frames; clients never send commands.
func (h *Handler) reader(c *Connection) {
	defer func() {
		h.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("user_id", c.UserID.String()).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (h *Handler) writer(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
