package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/makeitmeme/internal/testutil"
)

func newWSTestServer(t *testing.T, manager *Manager) string {
	t.Helper()
	ws := NewWSServer(manager, DefaultWSConfig(), testutil.NopLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.Serve(w, r, "ABC123", "p1")
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebsocketDeliversEvents(t *testing.T) {
	manager := NewManager(testutil.NopLogger())
	url := newWSTestServer(t, manager)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected"}`, string(data))

	hub := manager.GetHub("ABC123")
	require.NotNil(t, hub)
	require.Equal(t, 1, hub.ClientCount())

	manager.Deliver(Message{Type: "update", SessionCode: "ABC123", Data: []byte(`{"type":"update"}`)})
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"update"}`, string(data))
}

func TestWebsocketUnregistersOnClose(t *testing.T) {
	manager := NewManager(testutil.NopLogger())
	url := newWSTestServer(t, manager)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	hub := manager.GetHub("ABC123")
	require.NotNil(t, hub)
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebsocketClosedWhenHubCloses(t *testing.T) {
	manager := NewManager(testutil.NopLogger())
	url := newWSTestServer(t, manager)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	manager.RemoveHub("ABC123")
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
