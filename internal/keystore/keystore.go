// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package keystore provides the persistent stores behind the key-set
// cache: opaque blobs keyed by a client-parameter fingerprint.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound reports a fingerprint with no stored key set.
var ErrNotFound = errors.New("key set not found")

// Store persists serialized key sets by parameter fingerprint.
type Store interface {
	// Put saves a blob under the given fingerprint.
	Put(ctx context.Context, fingerprint string, data []byte) error
	// Get retrieves the blob stored under the fingerprint.
	Get(ctx context.Context, fingerprint string) ([]byte, error)
	// Exists checks whether the fingerprint has a stored blob.
	Exists(ctx context.Context, fingerprint string) (bool, error)
	// Delete removes the blob stored under the fingerprint.
	Delete(ctx context.Context, fingerprint string) error
	// Close closes the store.
	Close() error
}

// MemoryStore implements an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, fingerprint string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[fingerprint] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, fingerprint string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[fingerprint]
	if !exists {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[fingerprint]
	return exists, nil
}

func (s *MemoryStore) Delete(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[fingerprint]; !exists {
		return ErrNotFound
	}
	delete(s.data, fingerprint)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = nil
	return nil
}

// FileStore implements a file-based Store shared across processes.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file-based store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create key store dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(fingerprint string) string {
	if len(fingerprint) < 4 {
		return filepath.Join(s.baseDir, fingerprint)
	}
	// Shard by first 2 chars to avoid too many files in one directory.
	return filepath.Join(s.baseDir, fingerprint[:2], fingerprint)
}

func (s *FileStore) Put(ctx context.Context, fingerprint string, data []byte) error {
	path := s.path(fingerprint)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}

	// Write atomically via temp file: concurrent processes racing on
	// the same fingerprint both land a complete blob.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, fingerprint string) ([]byte, error) {
	data, err := os.ReadFile(s.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read key set file: %w", err)
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	_, err := os.Stat(s.path(fingerprint))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat key set file: %w", err)
}

func (s *FileStore) Delete(ctx context.Context, fingerprint string) error {
	if err := os.Remove(s.path(fingerprint)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove key set file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
