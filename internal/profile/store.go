// ABOUTME: Profile Store: hydrated singleton profile with merge/overwrite/clear
// ABOUTME: Mutations apply in memory first and persist through a single-writer queue

package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/tatasbox/internal/kv"
)

// Key is the persisted record's key.
const Key = "tbx_profile_v1"

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Store holds the device's profile. It only exists once hydration finished.
type Store struct {
	mu       sync.RWMutex
	kv       kv.KV
	queue    *kv.Queue
	logger   *slog.Logger
	now      func() time.Time
	profile  *UserProfile
	signedIn bool
}

// Open hydrates a Store from backend. A missing record yields an empty store;
// a corrupted record is removed and the store starts empty. Read errors are
// logged and treated as "no saved profile".
func Open(ctx context.Context, backend kv.KV, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		kv:     backend,
		queue:  kv.NewQueue("profile", logger),
		logger: logger.With("component", "profile"),
		now:    now,
	}

	raw, err := backend.Get(ctx, Key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.queue.Close()
			return nil, ctxErr
		}
		s.logger.Warn("reading profile failed, starting empty", "error", err)
	default:
		var p UserProfile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.logger.Warn("corrupted profile record, removing", "error", err)
			if rmErr := backend.Remove(ctx, Key); rmErr != nil {
				s.logger.Error("removing corrupted profile failed", "error", rmErr)
			}
		} else {
			s.profile = &p
			s.signedIn = true
		}
	}

	return s, nil
}

// Profile returns a copy of the current profile, or nil if none.
func (s *Store) Profile() *UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

// SignedIn reports whether a profile has been written or loaded.
func (s *Store) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedIn
}

// IsComplete applies the completeness rules to the current profile.
func (s *Store) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IsComplete(s.profile)
}

// Missing lists the fields keeping the current profile incomplete.
func (s *Store) Missing() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Missing(s.profile)
}

// SetProfile merges patch onto the current profile (or an empty one),
// stamps updatedAt and persists the result.
func (s *Store) SetProfile(patch Patch) (UserProfile, *kv.Write, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.profile.Clone()
	if next == nil {
		next = &UserProfile{}
	}
	patch.Apply(next)

	ts := s.now().UnixMilli()
	if next.CreatedAt == 0 {
		next.CreatedAt = ts
	}
	next.UpdatedAt = ts

	if err := check(next); err != nil {
		return UserProfile{}, nil, err
	}

	return s.commitLocked(next)
}

// OverwriteProfile replaces the whole record, as when importing after sign-in.
func (s *Store) OverwriteProfile(full UserProfile) (UserProfile, *kv.Write, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := full.Clone()
	next.UpdatedAt = s.now().UnixMilli()

	if err := check(next); err != nil {
		return UserProfile{}, nil, err
	}

	return s.commitLocked(next)
}

// commitLocked swaps in next and enqueues its write. Must be called with mu held.
func (s *Store) commitLocked(next *UserProfile) (UserProfile, *kv.Write, error) {
	data, err := json.Marshal(next)
	if err != nil {
		return UserProfile{}, nil, fmt.Errorf("encoding profile: %w", err)
	}

	s.profile = next
	s.signedIn = true

	blob := string(data)
	w := s.queue.Enqueue(func(ctx context.Context) error {
		return s.kv.Set(ctx, Key, blob)
	})
	return *next.Clone(), w, nil
}

// Clear removes the persisted record and signs the device out.
func (s *Store) Clear() *kv.Write {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile = nil
	s.signedIn = false

	return s.queue.Enqueue(func(ctx context.Context) error {
		return s.kv.Remove(ctx, Key)
	})
}

// Close waits for pending writes to finish.
func (s *Store) Close() {
	s.queue.Close()
}
