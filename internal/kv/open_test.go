// ABOUTME: Tests for backend selection from driver options
// ABOUTME: Covers defaulting, unknown drivers and the sealed wrapper

package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_DefaultsToSQLite(t *testing.T) {
	s, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "kv.db")})
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*SQLiteStore)
	assert.True(t, ok, "expected *SQLiteStore, got %T", s)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: DriverMemory})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}

func TestOpen_File(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: DriverFile, Path: t.TempDir()})
	require.NoError(t, err)
	_, ok := s.(*FileStore)
	assert.True(t, ok)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mongodb"})
	assert.Error(t, err)
}

func TestOpen_Sealed(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: DriverMemory, EncryptionKey: testSecret})
	require.NoError(t, err)
	_, ok := s.(*Sealed)
	assert.True(t, ok)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "dev", "k", "v"))
	got, err := s.Get(ctx, "dev", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestState(t *testing.T) {
	ctx := context.Background()
	sealedMem, err := NewSealed(NewMemoryStore(), []byte(testSecret))
	require.NoError(t, err)
	files, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	sealedFiles, err := NewSealed(files, []byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		store Store
		want  string
	}{
		{"nil", nil, StateNotAvailable},
		{"memory", NewMemoryStore(), StateNotAvailable},
		{"sealed memory", sealedMem, StateNotAvailable},
		{"file", files, StateConnected},
		{"sealed file", sealedFiles, StateConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, State(ctx, tt.store))
		})
	}
}

func TestBucket_ScopesNamespace(t *testing.T) {
	store := NewMemoryStore()
	a := NewBucket(store, "a")
	b := NewBucket(store, "b")
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k", "1"))
	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "a", a.Namespace())
}
