// ABOUTME: Theme preference (light or dark) persisted per device
// ABOUTME: Unknown stored values fall back to light

package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/tatasbox/internal/kv"
)

// Key is the persisted theme's key.
const Key = "tatasbox.theme"

// Theme is the color mode.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ErrInvalidTheme is returned for anything other than light or dark.
var ErrInvalidTheme = errors.New("theme must be light or dark")

func (t Theme) Valid() bool {
	return t == Light || t == Dark
}

// Store holds the device's theme.
type Store struct {
	mu     sync.RWMutex
	kv     kv.KV
	queue  *kv.Queue
	logger *slog.Logger
	theme  Theme
}

// Open hydrates the theme. Missing or unknown values yield light.
func Open(ctx context.Context, backend kv.KV, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		kv:     backend,
		queue:  kv.NewQueue("prefs", logger),
		logger: logger.With("component", "prefs"),
		theme:  Light,
	}

	raw, err := backend.Get(ctx, Key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.queue.Close()
			return nil, ctxErr
		}
		s.logger.Warn("reading theme failed, using light", "error", err)
	case Theme(raw).Valid():
		s.theme = Theme(raw)
	default:
		s.logger.Debug("ignoring unknown theme", "value", raw)
	}
	return s, nil
}

func (s *Store) Theme() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme stores mode.
func (s *Store) SetTheme(mode Theme) (*kv.Write, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTheme, mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.theme = mode
	return s.persistLocked(), nil
}

// Toggle flips between light and dark and returns the new theme.
func (s *Store) Toggle() (Theme, *kv.Write) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.theme == Dark {
		s.theme = Light
	} else {
		s.theme = Dark
	}
	return s.theme, s.persistLocked()
}

func (s *Store) persistLocked() *kv.Write {
	value := string(s.theme)
	return s.queue.Enqueue(func(ctx context.Context) error {
		return s.kv.Set(ctx, Key, value)
	})
}

// Close waits for pending writes to finish.
func (s *Store) Close() {
	s.queue.Close()
}
