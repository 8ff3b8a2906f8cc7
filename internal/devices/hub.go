// ABOUTME: Hub owns every device's hydrated stores, creating them on first access
// ABOUTME: Concurrent first accesses share one hydration; stores hydrate in parallel

package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/2389/tatasbox/internal/goals"
	"github.com/2389/tatasbox/internal/journal"
	"github.com/2389/tatasbox/internal/kv"
	"github.com/2389/tatasbox/internal/metrics"
	"github.com/2389/tatasbox/internal/prefs"
	"github.com/2389/tatasbox/internal/profile"
	"github.com/2389/tatasbox/internal/roleplay"
)

// hydrateTimeout bounds one device's hydration, independent of the caller's context.
const hydrateTimeout = 30 * time.Second

var (
	// ErrHubClosed is returned by Device after Close.
	ErrHubClosed = errors.New("device hub closed")
	// ErrInvalidDeviceID is returned for empty or oversized ids.
	ErrInvalidDeviceID = errors.New("invalid device id")
)

// Device is one device's state.
type Device struct {
	ID       string
	Profile  *profile.Store
	Goals    *goals.Store
	Journal  *journal.Store
	Roleplay *roleplay.Scratch
	Prefs    *prefs.Store

	lastUsed atomic.Int64 // unix nanos of the last Device call
}

// close drains every store's queue. Nil stores are skipped so a partially
// hydrated device can be cleaned up.
func (d *Device) close() {
	if d.Profile != nil {
		d.Profile.Close()
	}
	if d.Goals != nil {
		d.Goals.Close()
	}
	if d.Journal != nil {
		d.Journal.Close()
	}
	if d.Prefs != nil {
		d.Prefs.Close()
	}
}

// Options configures a Hub.
type Options struct {
	Logger     *slog.Logger
	Now        func() time.Time
	Classifier journal.Classifier
}

// Hub hydrates devices lazily and keeps them until they go idle or Close.
type Hub struct {
	store  kv.Store
	opts   Options
	logger *slog.Logger

	group singleflight.Group

	mu       sync.RWMutex
	devices  map[string]*Device
	draining map[string]chan struct{} // evicted ids whose queues are still flushing
	closed   bool
}

// NewHub creates a hub over store.
func NewHub(store kv.Store, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		store:   store,
		opts:    opts,
		logger:  opts.Logger.With("component", "devices"),
		devices:  make(map[string]*Device),
		draining: make(map[string]chan struct{}),
	}
}

func (h *Hub) now() time.Time {
	if h.opts.Now != nil {
		return h.opts.Now()
	}
	return time.Now()
}

// Device returns id's stores, hydrating them on first access.
func (h *Hub) Device(ctx context.Context, id string) (*Device, error) {
	if id == "" || len(id) > 128 || strings.ContainsAny(id, "\x00/") {
		return nil, ErrInvalidDeviceID
	}

	h.mu.RLock()
	d, ok := h.devices[id]
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, ErrHubClosed
	}
	if ok {
		d.lastUsed.Store(h.now().UnixNano())
		return d, nil
	}

	ch := h.group.DoChan(id, func() (any, error) {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
		defer cancel()
		return h.hydrate(hctx, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Device), nil
	}
}

func (h *Hub) hydrate(ctx context.Context, id string) (*Device, error) {
	// A concurrent caller may have finished while this one waited for the flight.
	h.mu.RLock()
	if d, ok := h.devices[id]; ok {
		h.mu.RUnlock()
		return d, nil
	}
	drained := h.draining[id]
	h.mu.RUnlock()

	// An evicted copy must finish writing before the backend is read again.
	if drained != nil {
		select {
		case <-drained:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	start := time.Now()
	bucket := kv.NewBucket(h.store, id)
	logger := h.opts.Logger.With("device", id)
	d := &Device{ID: id, Roleplay: roleplay.New()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := profile.Open(gctx, bucket, profile.Options{Logger: logger, Now: h.opts.Now})
		d.Profile = s
		return err
	})
	g.Go(func() error {
		s, err := goals.Open(gctx, bucket, goals.Options{Logger: logger, Now: h.opts.Now})
		d.Goals = s
		return err
	})
	g.Go(func() error {
		s, err := journal.Open(gctx, bucket, journal.Options{
			Logger:     logger,
			Now:        h.opts.Now,
			Classifier: h.opts.Classifier,
		})
		d.Journal = s
		return err
	})
	g.Go(func() error {
		s, err := prefs.Open(gctx, bucket, logger)
		d.Prefs = s
		return err
	})
	if err := g.Wait(); err != nil {
		d.close()
		return nil, fmt.Errorf("hydrating device %s: %w", id, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		d.close()
		return nil, ErrHubClosed
	}
	d.lastUsed.Store(h.now().UnixNano())
	h.devices[id] = d
	metrics.SetDevicesHydrated(len(h.devices))
	h.logger.Debug("device hydrated", "device", id, "duration", time.Since(start))

	return d, nil
}

// IDs returns the hydrated device ids, sorted.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.devices))
	for id := range h.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SweepEphemeral resets ephemeral journal sessions on every hydrated device
// and returns how many were removed.
func (h *Hub) SweepEphemeral() int {
	h.mu.RLock()
	devices := make([]*Device, 0, len(h.devices))
	for _, d := range h.devices {
		devices = append(devices, d)
	}
	h.mu.RUnlock()

	total := 0
	for _, d := range devices {
		total += d.Journal.ResetEphemeralSessions()
	}
	metrics.RecordEphemeralSweep(total)
	if total > 0 {
		h.logger.Info("swept ephemeral sessions", "removed", total, "devices", len(devices))
	}
	return total
}

// EvictIdle drops devices not requested within maxIdle and returns how many
// went. Each one's write queues drain before its id can hydrate again.
// In-memory state (roleplay scratch, ephemeral sessions) goes with it.
func (h *Hub) EvictIdle(maxIdle time.Duration) int {
	cutoff := h.now().Add(-maxIdle).UnixNano()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0
	}
	var idle []*Device
	for id, d := range h.devices {
		if d.lastUsed.Load() <= cutoff {
			idle = append(idle, d)
			delete(h.devices, id)
			h.draining[id] = make(chan struct{})
		}
	}
	metrics.SetDevicesHydrated(len(h.devices))
	h.mu.Unlock()

	for _, d := range idle {
		d.close()

		h.mu.Lock()
		close(h.draining[d.ID])
		delete(h.draining, d.ID)
		h.mu.Unlock()
	}
	if len(idle) > 0 {
		h.logger.Info("evicted idle devices", "count", len(idle), "max_idle", maxIdle)
	}
	return len(idle)
}

// Close drains every device's write queue. Further Device calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	devices := h.devices
	h.devices = make(map[string]*Device)
	h.mu.Unlock()

	for _, d := range devices {
		d.close()
	}
	metrics.SetDevicesHydrated(0)
}
