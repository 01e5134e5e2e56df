// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package keyset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/fhec/internal/keystore"
	"github.com/luxfi/fhec/params"
)

// Cache hands out key sets by client-parameter fingerprint instead of
// regenerating them. Within a process it guarantees at most one
// generation per distinct fingerprint, concurrent callers sharing the
// first result; with a persistent store it extends that guarantee
// across processes sharing the store.
type Cache struct {
	store keystore.Store

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	done chan struct{}
	ks   *KeySet
	err  error
}

// NewCache creates a cache over an optional persistent store; a nil
// store caches in memory only.
func NewCache(store keystore.Store) *Cache {
	return &Cache{store: store, entries: make(map[string]*cacheEntry)}
}

// KeySet returns the key set for the record, generating it with the
// given seed words on the first request for its fingerprint. All
// concurrent callers with the same fingerprint observe the same key
// set.
func (c *Cache) KeySet(ctx context.Context, p *params.ClientParameters, seedHi, seedLo uint64) (*KeySet, error) {
	fp, err := p.Fingerprint()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[fp]; ok {
		c.mu.Unlock()
		<-e.done
		return e.ks, e.err
	}
	e := &cacheEntry{done: make(chan struct{})}
	c.entries[fp] = e
	c.mu.Unlock()

	e.ks, e.err = c.load(ctx, fp, p, seedHi, seedLo)
	close(e.done)

	if e.err != nil {
		// Failed entries are evicted so a later caller can retry.
		c.mu.Lock()
		delete(c.entries, fp)
		c.mu.Unlock()
	}
	return e.ks, e.err
}

// load checks the persistent store before generating, and writes a
// fresh generation through.
func (c *Cache) load(ctx context.Context, fp string, p *params.ClientParameters, seedHi, seedLo uint64) (*KeySet, error) {
	if c.store != nil {
		data, err := c.store.Get(ctx, fp)
		switch {
		case err == nil:
			return decode(data)
		case !errors.Is(err, keystore.ErrNotFound):
			return nil, fmt.Errorf("keyset: cache lookup %s: %w", fp, err)
		}
	}

	ks, err := Generate(p, seedHi, seedLo)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		data, err := ks.encode()
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(ctx, fp, data); err != nil {
			return nil, fmt.Errorf("keyset: cache store %s: %w", fp, err)
		}
	}
	return ks, nil
}
