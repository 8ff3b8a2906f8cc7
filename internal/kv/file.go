// ABOUTME: JSON file implementation of the Store interface
// ABOUTME: One document per namespace, written atomically via temp file + fsync + rename

package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore keeps each namespace in <dir>/<namespace>.json.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	logger := slog.Default().With("component", "kv", "driver", "file")
	logger.Info("file store initialized", "dir", dir)
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(namespace string) string {
	return filepath.Join(s.dir, url.PathEscape(namespace)+".json")
}

// load reads a namespace document. Must be called with mu held.
func (s *FileStore) load(namespace string) (map[string]string, error) {
	data, err := os.ReadFile(s.path(namespace))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", namespace, err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", namespace, err)
	}
	return entries, nil
}

func (s *FileStore) Get(_ context.Context, namespace, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(namespace)
	if err != nil {
		return "", err
	}
	v, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(_ context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(namespace)
	if err != nil {
		return err
	}
	entries[key] = value
	return atomicWriteFileJSON(s.path(namespace), entries)
}

func (s *FileStore) Remove(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(namespace)
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return atomicWriteFileJSON(s.path(namespace), entries)
}

func (s *FileStore) Keys(_ context.Context, namespace string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(namespace)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping verifies the data directory is still there.
func (s *FileStore) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}
