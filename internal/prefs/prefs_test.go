// ABOUTME: Tests for the theme preference store

package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tatasbox/internal/kv"
)

func openTest(t *testing.T, mem *kv.MemoryStore) *Store {
	t.Helper()
	s, err := Open(context.Background(), kv.NewBucket(mem, "dev"), nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestOpen_Hydration(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   Theme
	}{
		{"absent", "", Light},
		{"dark", "dark", Dark},
		{"light", "light", Light},
		{"unknown", "sepia", Light},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := kv.NewMemoryStore()
			if tt.stored != "" {
				require.NoError(t, mem.Set(context.Background(), "dev", Key, tt.stored))
			}
			s := openTest(t, mem)
			if got := s.Theme(); got != tt.want {
				t.Errorf("Theme() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetThemeAndToggle(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := openTest(t, mem)
	ctx := context.Background()

	_, err := s.SetTheme("blue")
	assert.ErrorIs(t, err, ErrInvalidTheme)

	w, err := s.SetTheme(Dark)
	require.NoError(t, err)
	require.NoError(t, w.Wait(ctx))

	theme, w := s.Toggle()
	require.NoError(t, w.Wait(ctx))
	assert.Equal(t, Light, theme)

	theme, w = s.Toggle()
	require.NoError(t, w.Wait(ctx))
	assert.Equal(t, Dark, theme)

	raw, err := mem.Get(ctx, "dev", Key)
	require.NoError(t, err)
	assert.Equal(t, "dark", raw)
}
