// ABOUTME: Route table and shared JSON helpers for the HTTP API
// ABOUTME: Maps store errors to status codes and waits on queued writes before responding

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/tatasbox/internal/auth"
	"github.com/2389/tatasbox/internal/devices"
	"github.com/2389/tatasbox/internal/events"
	"github.com/2389/tatasbox/internal/goals"
	"github.com/2389/tatasbox/internal/journal"
	"github.com/2389/tatasbox/internal/kv"
	"github.com/2389/tatasbox/internal/metrics"
	"github.com/2389/tatasbox/internal/prefs"
	"github.com/2389/tatasbox/internal/profile"
	"github.com/2389/tatasbox/internal/story"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// subscriptionHeader carries the caller's SSE subscription id so its own
// mutations aren't echoed back to it.
const subscriptionHeader = "X-Subscription-ID"

// Store names used in change events.
const (
	storeProfile  = "profile"
	storeGoals    = "goals"
	storeJournal  = "journal"
	storeRoleplay = "roleplay"
	storePrefs    = "prefs"
)

var errBadJSON = errors.New("invalid JSON body")

// Handler returns the full HTTP handler: health, metrics and the /api routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	if g.config.Metrics.Enabled {
		mux.Handle("GET "+g.config.Metrics.Path, metrics.Handler())
	}

	api := http.NewServeMux()
	g.registerProfileRoutes(api)
	g.registerGoalsRoutes(api)
	g.registerJournalRoutes(api)
	g.registerRoleplayRoutes(api)
	g.registerPrefsRoutes(api)
	g.registerStoryRoutes(api)
	api.HandleFunc("GET /api/events", g.handleEvents)

	mux.Handle("/api/", auth.DeviceMiddleware(g.verifier)(api))

	return metrics.InstrumentHandler(g.config.Metrics.Path, mux)
}

// handleHealth reports liveness and the backend connection state.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"dbState": kv.State(r.Context(), g.store),
	})
}

// device resolves the caller's device, writing an error response on failure.
func (g *Gateway) device(w http.ResponseWriter, r *http.Request) (*devices.Device, bool) {
	d, err := g.hub.Device(r.Context(), auth.DeviceID(r.Context()))
	if err != nil {
		if errors.Is(err, devices.ErrInvalidDeviceID) {
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		g.logger.Error("failed to load device", "device", auth.DeviceID(r.Context()), "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to load device")
		return nil, false
	}
	return d, true
}

// commit publishes a change event and waits for the writes to land. The
// in-memory update already happened, so the event goes out even when a write fails.
func (g *Gateway) commit(w http.ResponseWriter, r *http.Request, store, action string, writes ...*kv.Write) bool {
	deviceID := auth.DeviceID(r.Context())
	g.events.Publish(deviceID, events.New(store, action), r.Header.Get(subscriptionHeader))

	for _, wr := range writes {
		if err := wr.Wait(r.Context()); err != nil {
			g.logger.Error("persist failed", "device", deviceID, "store", store, "action", action, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "persist failed")
			return false
		}
	}
	return true
}

// fail maps a store error to a status code and writes it.
func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		g.sendJSONError(w, status, "internal server error")
		return
	}
	g.sendJSONError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, goals.ErrNotFound),
		errors.Is(err, journal.ErrSessionNotFound),
		errors.Is(err, journal.ErrExperimentNotFound),
		errors.Is(err, journal.ErrTickNotFound),
		errors.Is(err, journal.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, journal.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errBadJSON),
		errors.Is(err, goals.ErrEmptyText),
		errors.Is(err, journal.ErrInvalidInput),
		errors.Is(err, profile.ErrInvalidProfile),
		errors.Is(err, prefs.ErrInvalidTheme),
		errors.Is(err, story.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadJSON
	}
	return nil
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
