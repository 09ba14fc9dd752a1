package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/makeitmeme/internal/testutil"
)

func TestFormatSSE(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		data     string
		expected string
	}{
		{
			name:     "single line data",
			event:    "update",
			data:     `{"type":"update"}`,
			expected: "event: update\ndata: {\"type\":\"update\"}\n\n",
		},
		{
			name:     "multi-line data",
			event:    "update",
			data:     "line1\nline2",
			expected: "event: update\ndata: line1\ndata: line2\n\n",
		},
		{
			name:     "carriage returns",
			event:    "update",
			data:     "line1\r\nline2",
			expected: "event: update\ndata: line1\ndata: line2\n\n",
		},
		{
			name:     "empty data",
			event:    "ping",
			data:     "",
			expected: "event: ping\ndata: \n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatSSE(tt.event, []byte(tt.data))))
		})
	}
}

// readEvent reads lines until an event with the given name and returns its data line
func readEvent(t *testing.T, r *bufio.Reader, name string) string {
	t.Helper()
	found := false
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "event: "+name {
			found = true
			continue
		}
		if found && strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServeSSE(t *testing.T) {
	manager := NewManager(testutil.NopLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(w, r, manager, "ABC123", "p1")
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "retry: 3000\n", line)
	assert.Equal(t, `{"status":"connected"}`, readEvent(t, reader, "connected"))

	hub := manager.GetHub("ABC123")
	require.NotNil(t, hub)
	require.Equal(t, 1, hub.ClientCount())

	manager.Deliver(Message{Type: "round_ended", SessionCode: "ABC123", Data: []byte(`{"round":1}`)})
	assert.Equal(t, `{"round":1}`, readEvent(t, reader, "round_ended"))

	cancel()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServeSSEEndsWhenHubCloses(t *testing.T) {
	manager := NewManager(testutil.NopLogger())
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		ServeSSE(w, r, manager, "ABC123", "p1")
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	readEvent(t, bufio.NewReader(resp.Body), "connected")

	manager.RemoveHub("ABC123")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after hub closed")
	}
}
