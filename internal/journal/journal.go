// ABOUTME: Journal Store: check-ins, dialogue sessions, experiments and monthly reports
// ABOUTME: Persisted as one versioned envelope; ephemeral sessions never reach storage

package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/2389/tatasbox/internal/kv"
)

// Key is the persisted envelope's key.
const Key = "self-explore-store"

// Version is the envelope version this package writes.
const Version = 1

const dateLayout = "2006-01-02"
const monthLayout = "2006-01"

// State is the persisted form of the journal.
type State struct {
	CheckIns    []CheckIn       `json:"checkIns"`
	Sessions    []Session       `json:"sessions"`
	Experiments []Experiment    `json:"experiments"`
	Reports     []MonthlyReport `json:"reports"`
	Settings    Settings        `json:"settings"`
	Streak      int             `json:"streak"`
}

type envelope struct {
	State   State `json:"state"`
	Version int   `json:"version"`
}

// Options configures a Store.
type Options struct {
	Logger     *slog.Logger
	Now        func() time.Time
	Classifier Classifier
}

// Store is one device's journal.
type Store struct {
	mu         sync.RWMutex
	kv         kv.KV
	queue      *kv.Queue
	logger     *slog.Logger
	now        func() time.Time
	classifier Classifier
	validate   *validator.Validate

	checkIns    []CheckIn
	sessions    []Session
	experiments []Experiment
	reports     []MonthlyReport
	settings    Settings
	streak      int
}

// Open hydrates a Store. Missing, unreadable or future-versioned envelopes
// start an empty journal; the streak is recomputed against today.
func Open(ctx context.Context, backend kv.KV, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}

	s := &Store{
		kv:          backend,
		queue:       kv.NewQueue("journal", logger),
		logger:      logger.With("component", "journal"),
		now:         now,
		classifier:  classifier,
		validate:    newValidator(),
		checkIns:    []CheckIn{},
		sessions:    []Session{},
		experiments: []Experiment{},
		reports:     []MonthlyReport{},
		settings:    DefaultSettings(),
	}

	raw, err := backend.Get(ctx, Key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.queue.Close()
			return nil, ctxErr
		}
		s.logger.Warn("reading journal failed, starting empty", "error", err)
	default:
		s.load(raw)
	}

	s.streak = computeStreak(s.checkIns, s.today())
	return s, nil
}

func (s *Store) load(raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.logger.Warn("unreadable journal envelope, starting empty", "error", err)
		return
	}
	if env.Version > Version {
		s.logger.Warn("journal envelope from a newer version, starting empty", "version", env.Version)
		return
	}

	st := env.State
	if st.CheckIns != nil {
		s.checkIns = st.CheckIns
	}
	if st.Sessions != nil {
		for _, sess := range st.Sessions {
			if sess.Privacy != PrivacyEphemeral {
				s.sessions = append(s.sessions, sess)
			}
		}
	}
	if st.Experiments != nil {
		s.experiments = st.Experiments
	}
	if st.Reports != nil {
		s.reports = st.Reports
	}
	if st.Settings.Language != "" {
		s.settings.Language = st.Settings.Language
	}
	if st.Settings.PrivacyDefault.Valid() {
		s.settings.PrivacyDefault = st.Settings.PrivacyDefault
	}
}

func (s *Store) today() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Snapshot returns the persisted form of the journal.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := State{
		CheckIns:    append([]CheckIn{}, s.checkIns...),
		Sessions:    []Session{},
		Experiments: make([]Experiment, 0, len(s.experiments)),
		Reports:     make([]MonthlyReport, 0, len(s.reports)),
		Settings:    s.settings,
		Streak:      s.streak,
	}
	for _, sess := range s.sessions {
		if sess.Privacy != PrivacyEphemeral {
			st.Sessions = append(st.Sessions, sess.clone())
		}
	}
	for _, e := range s.experiments {
		st.Experiments = append(st.Experiments, e.clone())
	}
	for _, r := range s.reports {
		st.Reports = append(st.Reports, r.clone())
	}
	return st
}

// Settings returns the journal settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetPrivacyDefault sets the privacy level new sessions get when none is given.
func (s *Store) SetPrivacyDefault(level PrivacyLevel) (*kv.Write, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: privacy %q", ErrInvalidInput, level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.PrivacyDefault = level
	return s.persistLocked(), nil
}

// SetLanguage sets the journal language (zh, en or es).
func (s *Store) SetLanguage(lang string) (*kv.Write, error) {
	switch lang {
	case "zh", "en", "es":
	default:
		return nil, fmt.Errorf("%w: language %q", ErrInvalidInput, lang)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Language = lang
	return s.persistLocked(), nil
}

// persistLocked writes the envelope. Must be called with mu held.
func (s *Store) persistLocked() *kv.Write {
	data, err := json.Marshal(envelope{State: s.snapshotLocked(), Version: Version})
	if err != nil {
		err = fmt.Errorf("encoding journal: %w", err)
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
