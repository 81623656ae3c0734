package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishLocal(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	c := &Connection{UserID: userID, Send: make(chan []byte, 1)}
	require.True(t, hub.Register(c))
	assert.Equal(t, 1, hub.ConnectionCount(userID))

	hub.Publish(context.Background(), userID, Event{Type: "wallet.updated", Data: map[string]int{"points": 5}})

	select {
	case msg := <-c.Send:
		var ev struct {
			Type string         `json:"type"`
			Data map[string]int `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, "wallet.updated", ev.Type)
		assert.Equal(t, 5, ev.Data["points"])
	default:
		t.Fatal("expected event")
	}

	hub.Unregister(c)
	assert.Equal(t, 0, hub.ConnectionCount(userID))
	// Publishing with no sockets is a no-op.
	hub.Publish(context.Background(), userID, Event{Type: "wallet.updated"})
}

func TestHandler_DeliversOverSocket(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	h := NewHandler(hub, func(*http.Request) uuid.UUID { return userID }, []string{"*"})

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ConnectionCount(userID) == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), userID, Event{Type: "wallet.updated"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "wallet.updated")
}

func TestHandler_RejectsAnonymous(t *testing.T) {
	h := NewHandler(NewHub(nil), func(*http.Request) uuid.UUID { return uuid.Nil }, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_CapsConnectionsPerUser(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	for i := 0; i < MaxConnectionsPerUser; i++ {
		hub.Register(&Connection{UserID: userID, Send: make(chan []byte, 1)})
	}

	h := NewHandler(hub, func(*http.Request) uuid.UUID { return userID }, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHub_RegisterEnforcesCapUnderConcurrency(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 4*MaxConnectionsPerUser; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if hub.Register(&Connection{UserID: userID, Send: make(chan []byte, 1)}) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(MaxConnectionsPerUser), accepted.Load())
	assert.Equal(t, MaxConnectionsPerUser, hub.ConnectionCount(userID))
	assert.True(t, hub.Register(&Connection{UserID: uuid.New(), Send: make(chan []byte, 1)}))
}

func TestHandler_FailedUpgradeReleasesSlot(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	h := NewHandler(hub, func(*http.Request) uuid.UUID { return userID }, nil)

	// A plain GET without upgrade headers fails the handshake.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, hub.ConnectionCount(userID))
}
