// ABOUTME: Tests for the SSE change stream
// ABOUTME: Verifies the ready event, change delivery and self-echo suppression

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tatasbox/internal/events"
)

type sseFrame struct {
	event string
	data  string
}

// readFrames parses SSE frames from the body into a channel until it closes.
func readFrames(t *testing.T, resp *http.Response) <-chan sseFrame {
	t.Helper()
	out := make(chan sseFrame, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		var cur sseFrame
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				cur.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				cur.data = strings.TrimPrefix(line, "data: ")
			case line == "" && cur.event != "":
				out <- cur
				cur = sseFrame{}
			}
		}
	}()
	return out
}

func nextFrame(t *testing.T, frames <-chan sseFrame) sseFrame {
	t.Helper()
	select {
	case f, ok := <-frames:
		if !ok {
			t.Fatal("stream closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE frame")
	}
	return sseFrame{}
}

func TestEvents_StreamsChanges(t *testing.T) {
	gw := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("expected Content-Type text/event-stream, got %s", resp.Header.Get("Content-Type"))
	}

	frames := readFrames(t, resp)
	ready := nextFrame(t, frames)
	require.Equal(t, "ready", ready.event)

	var hello map[string]string
	require.NoError(t, json.Unmarshal([]byte(ready.data), &hello))
	subID := hello["subscription_id"]
	require.NotEmpty(t, subID)

	// Our own mutation is not echoed back.
	rec := gw.do(t, http.MethodPost, "/api/prefs/theme/toggle", nil, subscriptionHeader, subID)
	require.Equal(t, http.StatusOK, rec.Code)

	// Another client's mutation is.
	rec = gw.do(t, http.MethodPost, "/api/goals", map[string]string{"text": "walk"})
	require.Equal(t, http.StatusCreated, rec.Code)

	change := nextFrame(t, frames)
	assert.Equal(t, "change", change.event)

	var ev events.Event
	require.NoError(t, json.Unmarshal([]byte(change.data), &ev))
	assert.Equal(t, storeGoals, ev.Store)
	assert.Equal(t, "add", ev.Action)
}

func TestEvents_ClosedOnShutdown(t *testing.T) {
	gw := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/api/events")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	frames := readFrames(t, resp)
	require.Equal(t, "ready", nextFrame(t, frames).event)

	gw.events.Close()

	select {
	case _, ok := <-frames:
		assert.False(t, ok, "stream should end once the broadcaster closes")
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after broadcaster closed")
	}
}
