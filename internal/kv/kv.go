// ABOUTME: Persistent key-value contract shared by every state store
// ABOUTME: Defines the multi-namespace Store, the device-bound Bucket, and ErrNotFound

package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has never been written (or was removed).
var ErrNotFound = errors.New("not found")

// KV is the device-local contract the state stores consume.
// Each logical store uses one fixed key so stores never collide.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Store is a persistent backend partitioned by namespace (one namespace per device).
type Store interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key, value string) error
	Remove(ctx context.Context, namespace, key string) error
	Keys(ctx context.Context, namespace string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Bucket binds a Store to a single namespace.
type Bucket struct {
	store     Store
	namespace string
}

// NewBucket returns a KV view of store scoped to namespace.
func NewBucket(store Store, namespace string) *Bucket {
	return &Bucket{store: store, namespace: namespace}
}

// Namespace returns the namespace this bucket is bound to.
func (b *Bucket) Namespace() string {
	return b.namespace
}

func (b *Bucket) Get(ctx context.Context, key string) (string, error) {
	return b.store.Get(ctx, b.namespace, key)
}

func (b *Bucket) Set(ctx context.Context, key, value string) error {
	return b.store.Set(ctx, b.namespace, key, value)
}

func (b *Bucket) Remove(ctx context.Context, key string) error {
	return b.store.Remove(ctx, b.namespace, key)
}

// Health states reported by State.
const (
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
	StateNotAvailable = "n/a"
)

// State reports a backend's health in the vocabulary /health exposes.
func State(ctx context.Context, s Store) string {
	if s == nil {
		return StateNotAvailable
	}
	inner := s
	if sealed, ok := inner.(*Sealed); ok {
		inner = sealed.Store
	}
	if _, ok := inner.(*MemoryStore); ok {
		return StateNotAvailable
	}
	if err := s.Ping(ctx); err != nil {
		return StateDisconnected
	}
	return StateConnected
}
