package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func newTestServer(t *testing.T, hub *Hub) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(NewClient(conn))
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestHub_Empty(t *testing.T) {
	hub := NewHub()

	assert.Equal(t, 0, hub.ConnectionCount())
	assert.NoError(t, hub.Broadcast(&Message{Type: "noop"}))
}

func TestHub_BroadcastToAllClients(t *testing.T) {
	hub := NewHub()
	url := newTestServer(t, hub)

	conns := make([]*websocket.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		conns = append(conns, conn)
	}

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 3 }, time.Second, 5*time.Millisecond)

	err := hub.Broadcast(&Message{
		Type: "analysis_change",
		Data: map[string]interface{}{"analysis_id": "a1", "progress": 40},
	})
	require.NoError(t, err)

	for _, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "analysis_change", msg.Type)
		payload := msg.Data.(map[string]interface{})
		assert.Equal(t, "a1", payload["analysis_id"])
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub()
	url := newTestServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.mu.RLock()
	var client *Client
	for c := range hub.clients {
		client = c
	}
	hub.mu.RUnlock()

	hub.Unregister(client)
	assert.Equal(t, 0, hub.ConnectionCount())

	// 重复注销无副作用
	hub.Unregister(client)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_RunDeliversPublished(t *testing.T) {
	hub := NewHub()
	url := newTestServer(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, hub.Publish(&Message{Type: "analysis_change", Data: "a1"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "analysis_change")

	cancel()
	<-done
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	hub := NewHub()
	for i := 0; i < broadcastSize; i++ {
		require.True(t, hub.Publish(&Message{Type: "fill"}))
	}
	assert.False(t, hub.Publish(&Message{Type: "overflow"}))
}
