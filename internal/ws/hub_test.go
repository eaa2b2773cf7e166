package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newHubServer starts an httptest server that registers every incoming
// WebSocket connection with the hub.
func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		hub.Register(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	srv := newHubServer(t, hub)

	conn1 := dial(t, srv)
	conn2 := dial(t, srv)

	// Both sessions must be registered before the broadcast fires.
	require.Eventually(t, func() bool {
		return hub.ActiveConnections() == 2
	}, time.Second, 10*time.Millisecond)

	payload := map[string]string{"id": "m1"}
	hub.Broadcast(EventNewMessage, payload)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)

		var event Event
		require.NoError(t, json.Unmarshal(frame, &event))
		assert.Equal(t, EventNewMessage, event.Type)
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestHubConcurrentBroadcasts(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	srv := newHubServer(t, hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool {
		return hub.ActiveConnections() == 1
	}, time.Second, 10*time.Millisecond)

	const broadcasts = 50
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < broadcasts; j++ {
				hub.Broadcast(EventNewMessage, map[string]string{"id": "m1"})
			}
		}()
	}

	// Writes to a single connection must be serialized, so every frame
	// arrives intact.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for i := 0; i < 4*broadcasts; i++ {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)

		var event Event
		require.NoError(t, json.Unmarshal(frame, &event))
		require.Equal(t, EventNewMessage, event.Type)
	}
	wg.Wait()
}

func TestHubConnectionLimit(t *testing.T) {
	hub := NewHub(1, zap.NewNop())
	srv := newHubServer(t, hub)

	dial(t, srv)
	require.Eventually(t, func() bool {
		return hub.ActiveConnections() == 1
	}, time.Second, 10*time.Millisecond)

	// The second connection is accepted at the HTTP layer but closed by
	// the hub with a policy violation.
	rejected := dial(t, srv)
	require.NoError(t, rejected.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := rejected.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))

	assert.Equal(t, 1, hub.ActiveConnections())
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	srv := newHubServer(t, hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool {
		return hub.ActiveConnections() == 1
	}, time.Second, 10*time.Millisecond)

	_ = conn.Close()

	// Broadcasting against the dead socket eventually surfaces the write
	// error and drops it from the hub.
	require.Eventually(t, func() bool {
		hub.Broadcast(EventNewMessage, nil)
		return hub.ActiveConnections() == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestHubBroadcastNoClients(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	hub.Broadcast(EventNewReply, map[string]string{"id": "r1"}) // must not panic
	assert.Equal(t, 0, hub.ActiveConnections())
}
