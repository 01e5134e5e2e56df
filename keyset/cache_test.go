// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package keyset

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhec/internal/keystore"
	"github.com/luxfi/fhec/params"
)

func TestCacheSingleflight(t *testing.T) {
	record := testRecord()
	cache := NewCache(nil)

	const callers = 16
	results := make([]*KeySet, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ks, err := cache.KeySet(context.Background(), record, 4, 4)
			require.NoError(t, err)
			results[i] = ks
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		require.Same(t, results[0], results[i], "concurrent callers share one generation")
	}
}

func TestCacheDistinguishesRecords(t *testing.T) {
	cache := NewCache(nil)

	a := testRecord()
	b := testRecord()
	b.BootstrapKeys[params.BootstrapKey] = params.BootstrapKeyParam{
		InputKey: params.SmallKey, OutputKey: params.BigKey,
		Level: 4, BaseLog: 8, GlweDimension: 1, Variance: 1e-16,
	}

	ksA, err := cache.KeySet(context.Background(), a, 4, 4)
	require.NoError(t, err)
	ksB, err := cache.KeySet(context.Background(), b, 4, 4)
	require.NoError(t, err)
	require.NotSame(t, ksA, ksB)
	require.Len(t, ksB.bootstrapKeys[params.BootstrapKey].Rows[0], 4)
}

func TestCachePersistence(t *testing.T) {
	record := testRecord()
	store, err := keystore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	first := NewCache(store)
	ks, err := first.KeySet(context.Background(), record, 8, 15)
	require.NoError(t, err)

	fp, err := record.Fingerprint()
	require.NoError(t, err)
	ok, err := store.Exists(context.Background(), fp)
	require.NoError(t, err)
	require.True(t, ok, "generation writes through to the store")

	// A second cache over the same store loads rather than regenerates:
	// the seed words differ but the key material matches.
	second := NewCache(store)
	loaded, err := second.KeySet(context.Background(), record, 999, 999)
	require.NoError(t, err)
	require.Equal(t, ks.secretKeys[params.BigKey].bits, loaded.secretKeys[params.BigKey].bits)
	require.Equal(t, ks.keyswitchKeys, loaded.keyswitchKeys)
	require.Equal(t, ks.bootstrapKeys, loaded.bootstrapKeys)
	require.Equal(t, ks.packingKeys, loaded.packingKeys)

	// The loaded key set still serves the protocol boundary.
	gate := record.Inputs[0]
	ct, err := loaded.Encrypt(gate, 9)
	require.NoError(t, err)
	got, err := ks.Decrypt(gate, ct)
	require.NoError(t, err)
	require.Equal(t, uint64(9), got)
}
