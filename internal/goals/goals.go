// ABOUTME: Goals Store: ordered goal list plus the identity line shown above it
// ABOUTME: Every mutation rewrites the full collection through a single-writer queue

package goals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/2389/tatasbox/internal/kv"
)

// Key is the persisted collection's key.
const Key = "tbx_goals_v1"

var (
	// ErrNotFound is returned by id-scoped mutations when no goal matches.
	ErrNotFound = errors.New("goal not found")
	// ErrEmptyText is returned when a goal's text is empty after trimming.
	ErrEmptyText = errors.New("goal text is empty")
)

// Goal is one user goal.
type Goal struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"`
	Pinned    bool   `json:"pinned"`
	Done      bool   `json:"done"`
	CreatedAt int64  `json:"createdAt"`
}

// persisted is the stored shape: { identity, goals }.
type persisted struct {
	Identity string `json:"identity"`
	Goals    []Goal `json:"goals"`
}

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Store holds a device's goals.
type Store struct {
	mu       sync.RWMutex
	kv       kv.KV
	queue    *kv.Queue
	logger   *slog.Logger
	now      func() time.Time
	identity string
	goals    []Goal
}

// Open hydrates a Store. An absent or unreadable blob yields an empty collection.
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
		queue:  kv.NewQueue("goals", logger),
		logger: logger.With("component", "goals"),
		now:    now,
		goals:  []Goal{},
	}

	raw, err := backend.Get(ctx, Key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.queue.Close()
			return nil, ctxErr
		}
		s.logger.Warn("reading goals failed, starting empty", "error", err)
	default:
		var data persisted
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			s.logger.Warn("unreadable goals blob, starting empty", "error", err)
		} else {
			s.identity = data.Identity
			if data.Goals != nil {
				s.goals = data.Goals
			}
		}
	}

	return s, nil
}

// Identity returns the identity statement ("I am someone who ...").
func (s *Store) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Goals returns the goals in stored order.
func (s *Store) Goals() []Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Goal(nil), s.goals...)
}

// Sorted returns the goals in display order: pinned first, newest first.
func (s *Store) Sorted() []Goal {
	out := s.Goals()
	sortForDisplay(out)
	return out
}

func sortForDisplay(goals []Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		if goals[i].Pinned != goals[j].Pinned {
			return goals[i].Pinned
		}
		return goals[i].CreatedAt > goals[j].CreatedAt
	})
}

// SetIdentity replaces the identity statement.
func (s *Store) SetIdentity(identity string) *kv.Write {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = identity
	return s.persistLocked()
}

// AddGoal appends a new goal. Text is trimmed; empty text is rejected.
func (s *Store) AddGoal(text, image string) (Goal, *kv.Write, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return Goal{}, nil, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	g := Goal{
		ID:        s.nextIDLocked(ts),
		Text:      t,
		Image:     image,
		CreatedAt: ts,
	}
	s.goals = append(s.goals, g)
	return g, s.persistLocked(), nil
}

// nextIDLocked derives an id from the creation time, moving forward one
// millisecond at a time until it is unused. Must be called with mu held.
func (s *Store) nextIDLocked(ts int64) string {
	taken := make(map[string]struct{}, len(s.goals))
	for _, g := range s.goals {
		taken[g.ID] = struct{}{}
	}
	for {
		id := strconv.FormatInt(ts, 10)
		if _, ok := taken[id]; !ok {
			return id
		}
		ts++
	}
}

// SetImage sets or clears (empty uri) a goal's image.
func (s *Store) SetImage(id, uri string) (Goal, *kv.Write, error) {
	return s.update(id, func(g *Goal) { g.Image = uri })
}

// UpdateText replaces a goal's text (trimmed).
func (s *Store) UpdateText(id, text string) (Goal, *kv.Write, error) {
	t := strings.TrimSpace(text)
	return s.update(id, func(g *Goal) { g.Text = t })
}

// ToggleDone flips a goal's done flag.
func (s *Store) ToggleDone(id string) (Goal, *kv.Write, error) {
	return s.update(id, func(g *Goal) { g.Done = !g.Done })
}

// TogglePin flips a goal's pinned flag and stores the collection in display order.
func (s *Store) TogglePin(id string) (Goal, *kv.Write, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Goal{}, nil, ErrNotFound
	}

	next := append([]Goal(nil), s.goals...)
	next[i].Pinned = !next[i].Pinned
	g := next[i]
	sortForDisplay(next)
	s.goals = next

	return g, s.persistLocked(), nil
}

// RemoveGoal deletes a goal.
func (s *Store) RemoveGoal(id string) (*kv.Write, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, ErrNotFound
	}

	next := make([]Goal, 0, len(s.goals)-1)
	next = append(next, s.goals[:i]...)
	next = append(next, s.goals[i+1:]...)
	s.goals = next

	return s.persistLocked(), nil
}

// ClearAll resets identity and goals.
func (s *Store) ClearAll() *kv.Write {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = ""
	s.goals = []Goal{}
	return s.persistLocked()
}

func (s *Store) update(id string, fn func(g *Goal)) (Goal, *kv.Write, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Goal{}, nil, ErrNotFound
	}

	next := append([]Goal(nil), s.goals...)
	fn(&next[i])
	s.goals = next

	return next[i], s.persistLocked(), nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.goals {
		if s.goals[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked snapshots the collection and queues the write. Must be called with mu held.
func (s *Store) persistLocked() *kv.Write {
	data, err := json.Marshal(persisted{Identity: s.identity, Goals: s.goals})
	if err != nil {
		err = fmt.Errorf("encoding goals: %w", err)
		s.logger.Error("persist failed", "error", err)
		return kv.Completed(err)
	}

	blob := string(data)
	return s.queue.Enqueue(func(ctx context.Context) error {
		return s.kv.Set(ctx, Key, blob)
	})
}

// Close waits for pending writes to finish.
func (s *Store) Close() {
	s.queue.Close()
}
