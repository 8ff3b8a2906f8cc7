// ABOUTME: Tests for the SQLite kv backend
// ABOUTME: Covers get/set/remove, namespace isolation, key listing and directory creation

package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "kv.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.Get(context.Background(), "device-1", "tbx_profile_v1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_SetGetOverwrite(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "device-1", "k", "v1"))
	require.NoError(t, s.Set(ctx, "device-1", "k", "v2"))

	got, err := s.Get(ctx, "device-1", "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestSQLiteStore_NamespacesAreIsolated(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "k", "from-a"))
	require.NoError(t, s.Set(ctx, "b", "k", "from-b"))

	got, err := s.Get(ctx, "a", "k")
	require.NoError(t, err)
	assert.Equal(t, "from-a", got)

	require.NoError(t, s.Remove(ctx, "b", "k"))
	_, err = s.Get(ctx, "b", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = s.Get(ctx, "a", "k")
	require.NoError(t, err)
	assert.Equal(t, "from-a", got)
}

func TestSQLiteStore_RemoveMissingIsNotError(t *testing.T) {
	s := newTestSQLiteStore(t)
	assert.NoError(t, s.Remove(context.Background(), "ns", "never-written"))
}

func TestSQLiteStore_Keys(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ns", "tbx_goals_v1", "{}"))
	require.NoError(t, s.Set(ctx, "ns", "self-explore-store", "{}"))
	require.NoError(t, s.Set(ctx, "other", "tbx_profile_v1", "{}"))

	keys, err := s.Keys(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, []string{"self-explore-store", "tbx_goals_v1"}, keys)

	keys, err = s.Keys(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "ns", "k", `{"a":1}`))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}

func TestState_SQLite(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, StateNotAvailable, State(ctx, nil))
	assert.Equal(t, StateNotAvailable, State(ctx, NewMemoryStore()))

	s := newTestSQLiteStore(t)
	assert.Equal(t, StateConnected, State(ctx, s))

	closed, err := NewSQLiteStore(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, closed.Close())
	assert.Equal(t, StateDisconnected, State(ctx, closed))
}
