// ABOUTME: HTTP handlers for the daily-story proxy
// ABOUTME: Fresh generation on POST, once-per-day cached story on GET; both rate limited per device

package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/tatasbox/internal/auth"
	"github.com/2389/tatasbox/internal/metrics"
	"github.com/2389/tatasbox/internal/story"
)

// storyFailure is the error code clients match on.
const storyFailure = "FAILED_TO_GENERATE_STORY"

func (g *Gateway) registerStoryRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/daily-story/generate", g.limiter.Handler(http.HandlerFunc(g.handleGenerateStory)))
	mux.Handle("GET /api/daily-story/today", g.limiter.Handler(http.HandlerFunc(g.handleTodayStory)))
}

func (g *Gateway) handleGenerateStory(w http.ResponseWriter, r *http.Request) {
	var req story.Request
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	req, err := req.Normalize()
	if err != nil {
		g.fail(w, r, err)
		return
	}

	start := time.Now()
	s, err := g.stories.Generate(r.Context(), req)
	metrics.RecordStoryGeneration(err == nil, time.Since(start))
	if err != nil {
		g.storyError(w, r, err)
		return
	}
	g.writeJSON(w, http.StatusOK, s)
}

func (g *Gateway) handleTodayStory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := story.Request{Language: q.Get("language"), Topic: q.Get("topic")}
	if raw := q.Get("words"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "words must be an integer")
			return
		}
		req.Words = n
	}

	start := time.Now()
	s, hit, err := g.daily.Today(r.Context(), req)
	if errors.Is(err, story.ErrInvalidRequest) {
		g.fail(w, r, err)
		return
	}
	if !hit {
		metrics.RecordStoryGeneration(err == nil, time.Since(start))
	}
	if err != nil {
		g.storyError(w, r, err)
		return
	}
	g.writeJSON(w, http.StatusOK, s)
}

func (g *Gateway) storyError(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.Error("daily story failed", "device", auth.DeviceID(r.Context()), "error", err)
	g.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":  storyFailure,
		"detail": err.Error(),
	})
}
