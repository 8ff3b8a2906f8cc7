// ABOUTME: Tests for the encryption-at-rest Store wrapper
// ABOUTME: Verifies ciphertext at rest, key separation, and tamper detection

package kv

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSealed_RoundTrip(t *testing.T) {
	inner := NewMemoryStore()
	s, err := NewSealed(inner, []byte(testSecret))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "dev", "tbx_profile_v1", `{"name":"Ada"}`))

	raw, err := inner.Get(ctx, "dev", "tbx_profile_v1")
	require.NoError(t, err)
	assert.False(t, strings.Contains(raw, "Ada"), "value stored in the clear")

	got, err := s.Get(ctx, "dev", "tbx_profile_v1")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada"}`, got)
}

func TestSealed_NotFoundPassesThrough(t *testing.T) {
	s, err := NewSealed(NewMemoryStore(), []byte(testSecret))
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "dev", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSealed_ValueMovedToAnotherKeyFails(t *testing.T) {
	inner := NewMemoryStore()
	s, err := NewSealed(inner, []byte(testSecret))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "dev-a", "k", "secret"))
	raw, err := inner.Get(ctx, "dev-a", "k")
	require.NoError(t, err)

	require.NoError(t, inner.Set(ctx, "dev-b", "k", raw))
	_, err = s.Get(ctx, "dev-b", "k")
	assert.ErrorIs(t, err, ErrSealedValue)
}

func TestSealed_WrongSecret(t *testing.T) {
	inner := NewMemoryStore()
	a, err := NewSealed(inner, []byte(testSecret))
	require.NoError(t, err)
	b, err := NewSealed(inner, []byte("another-secret-of-sufficient-len"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "dev", "k", "v"))
	_, err = b.Get(ctx, "dev", "k")
	assert.ErrorIs(t, err, ErrSealedValue)
}

func TestSealed_GarbageValue(t *testing.T) {
	inner := NewMemoryStore()
	s, err := NewSealed(inner, []byte(testSecret))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, inner.Set(ctx, "dev", "k", "not base64!"))
	_, err = s.Get(ctx, "dev", "k")
	assert.ErrorIs(t, err, ErrSealedValue)
}

func TestNewSealed_ShortSecret(t *testing.T) {
	_, err := NewSealed(NewMemoryStore(), []byte("short"))
	assert.Error(t, err)
}
