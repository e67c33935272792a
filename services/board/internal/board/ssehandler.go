package board

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

// SSEHandler streams order, bill and notification events to connected
// clients as Server-Sent Events. Payloads are the same JSON snapshots the
// bus carries, typed by the SSE event name.
type SSEHandler struct {
	broadcaster *Broadcaster
	logger      apt.Logger
}

func NewSSEHandler(broadcaster *Broadcaster, logger apt.Logger) *SSEHandler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &SSEHandler{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// ServeHTTP implements http.Handler for the SSE endpoint
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	h.logger.Info("new SSE connection", "subscriber_id", subscriberID)

	eventChan := h.broadcaster.Subscribe(subscriberID)
	defer h.broadcaster.Unsubscribe(subscriberID)

	// Send initial comment to establish connection
	fmt.Fprintf(w, ": connected\n\n")

	// Configure retry interval for reconnection (in milliseconds)
	fmt.Fprintf(w, "retry: 2000\n\n")

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	// Send keepalive every 30 seconds
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}

		case evt, ok := <-eventChan:
			if !ok {
				h.logger.Info("event channel closed", "subscriber_id", subscriberID)
				return
			}
			sendSSEEvent(w, evt.Name, string(evt.Data))
		}
	}
}

// sendSSEEvent sends an SSE event with properly formatted multi-line data
func sendSSEEvent(w http.ResponseWriter, eventType string, data string) {
	data = strings.TrimSpace(data)

	fmt.Fprintf(w, "event: %s\n", eventType)

	// Each line of data must be prefixed with "data: "
	lines := strings.Split(data, "\n")
	for _, line := range lines {
		fmt.Fprintf(w, "data: %s\n", line)
	}

	// Empty line marks end of event
	fmt.Fprintf(w, "\n")

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
