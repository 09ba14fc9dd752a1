package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/makeitmeme/internal/model"
)

const (
	// Time between keepalive comments
	keepalivePeriod = 30 * time.Second

	// Client reconnect delay advertised to browsers, in milliseconds
	retryMillis = "3000"
)

// ServeSSE streams the session's events to the client as server-sent events
// until the request is cancelled or the hub shuts down
func ServeSSE(w http.ResponseWriter, r *http.Request, manager *Manager, code model.SessionCode, playerID model.PlayerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	hub, client := manager.Subscribe(code, playerID)
	defer hub.Unregister(client)

	_, _ = w.Write([]byte("retry: " + retryMillis + "\n\n"))
	_, _ = w.Write(formatSSE("connected", []byte(`{"status":"connected"}`)))
	flusher.Flush()

	ticker := time.NewTicker(keepalivePeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.Messages():
			if !ok {
				return
			}
			if _, err := w.Write(formatSSE(message.Type, message.Data)); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// formatSSE formats an SSE message, prefixing every line of data with "data: "
func formatSSE(event string, data []byte) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteString("\n")
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for _, line := range lines {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}
