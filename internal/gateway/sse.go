// ABOUTME: Server-Sent Events stream of store change notifications for one device
// ABOUTME: Sends a "ready" event with the subscription id, then "change" events and heartbeats

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/tatasbox/internal/auth"
)

// heartbeatInterval keeps idle proxies from dropping the stream.
var heartbeatInterval = 25 * time.Second

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	deviceID := auth.DeviceID(r.Context())
	ch, subID := g.events.Subscribe(r.Context(), deviceID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	g.writeSSEEvent(w, "ready", map[string]string{"subscription_id": subID})
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			g.writeSSEEvent(w, "change", ev)
			flusher.Flush()
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes one SSE event with a JSON data line.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
