// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package keyset owns the key material implied by a client parameter
// record: the secret keys, which never leave the generating context,
// and the shared evaluation keys handed to untrusted compute nodes.
//
// Generation is deterministic: the same record and 128-bit seed always
// produce bit-identical key material, which makes key sets reproducible
// in tests and cacheable by record fingerprint.
package keyset

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/luxfi/fhec/internal/csprng"
	"github.com/luxfi/fhec/params"
)

// LweKeyswitchKey converts ciphertexts from the input key's domain to
// the output key's: Rows[i][l] encrypts input bit i at decomposition
// level l+1 under the output key. Shareable with compute nodes.
type LweKeyswitchKey struct {
	Param params.KeyswitchKeyParam
	Rows  [][][]uint64
}

// LweBootstrapKey holds GLWE encryptions of the input key bits under
// the GLWE view of the output key, one per decomposition level.
// Shareable with compute nodes.
type LweBootstrapKey struct {
	Param params.BootstrapKeyParam
	Rows  [][]GlweCiphertext
}

// PackingKeyswitchKey supports the CRT circuit bootstrap: GLWE
// encryptions of the input key bits as constant polynomials.
// Shareable with compute nodes.
type PackingKeyswitchKey struct {
	Param params.PackingKeyParam
	Rows  [][]GlweCiphertext
}

// KeySet is the key material generated for one client parameter
// record. Secret keys are exclusively owned and never serialized
// through the public API; evaluation keys are shared by pointer so any
// number of compute contexts can hold them without copying. A KeySet
// is never mutated after generation.
type KeySet struct {
	clientParams *params.ClientParameters

	secretKeys    map[params.KeyID]*secretKey
	bootstrapKeys map[params.KeyID]*LweBootstrapKey
	keyswitchKeys map[params.KeyID]*LweKeyswitchKey
	packingKeys   map[params.KeyID]*PackingKeyswitchKey

	// encMu serializes boundary encryptions over the deterministic
	// noise stream.
	encMu      sync.Mutex
	encSampler *csprng.Sampler
}

// Generate creates the key set for a record, seeded with two 64-bit
// seed words. Every registered secret key is drawn first; evaluation
// keys are then derived concurrently, each from its own sub-stream of
// the master generator, so the output stays bit-identical regardless
// of scheduling.
//
// A record referencing a secret key that was never registered is
// malformed: derivation produced it incorrectly, and the error is not
// user-recoverable.
func Generate(p *params.ClientParameters, seedHi, seedLo uint64) (*KeySet, error) {
	master, err := csprng.NewKeyedFromWords(seedHi, seedLo)
	if err != nil {
		return nil, fmt.Errorf("keyset: seed master generator: %w", err)
	}

	ks := &KeySet{
		clientParams:  p,
		secretKeys:    make(map[params.KeyID]*secretKey, len(p.SecretKeys)),
		bootstrapKeys: make(map[params.KeyID]*LweBootstrapKey, len(p.BootstrapKeys)),
		keyswitchKeys: make(map[params.KeyID]*LweKeyswitchKey, len(p.KeyswitchKeys)),
		packingKeys:   make(map[params.KeyID]*PackingKeyswitchKey, len(p.PackingKeys)),
	}

	// Sub-generators are keyed from the master stream in sorted-ID
	// order; map iteration order must never reach the key material.
	subSampler := func() (*csprng.Sampler, error) {
		var sub [32]byte
		if _, err := io.ReadFull(master, sub[:]); err != nil {
			return nil, err
		}
		src, err := csprng.NewKeyed(sub[:])
		if err != nil {
			return nil, err
		}
		return csprng.NewSampler(src), nil
	}

	for _, id := range sortedIDs(p.SecretKeys) {
		s, err := subSampler()
		if err != nil {
			return nil, fmt.Errorf("keyset: derive generator for secret key %q: %w", id, err)
		}
		ks.secretKeys[id] = genSecretKey(s, p.SecretKeys[id])
	}

	// Each task builds one evaluation key and returns an install step;
	// installation runs after the wait so the workers never touch the
	// shared maps.
	type task struct {
		id  params.KeyID
		gen func(*csprng.Sampler) func()
	}
	var tasks []task

	for _, id := range sortedIDs(p.BootstrapKeys) {
		id, param := id, p.BootstrapKeys[id]
		in, out, err := ks.keyPair(id, param.InputKey, param.OutputKey)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task{id, func(s *csprng.Sampler) func() {
			key := genBootstrapKey(s, param, in, out)
			return func() { ks.bootstrapKeys[id] = key }
		}})
	}
	for _, id := range sortedIDs(p.KeyswitchKeys) {
		id, param := id, p.KeyswitchKeys[id]
		in, out, err := ks.keyPair(id, param.InputKey, param.OutputKey)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task{id, func(s *csprng.Sampler) func() {
			key := genKeyswitchKey(s, param, in, out)
			return func() { ks.keyswitchKeys[id] = key }
		}})
	}
	for _, id := range sortedIDs(p.PackingKeys) {
		id, param := id, p.PackingKeys[id]
		in, out, err := ks.keyPair(id, param.InputKey, param.OutputKey)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task{id, func(s *csprng.Sampler) func() {
			key := genPackingKey(s, param, in, out)
			return func() { ks.packingKeys[id] = key }
		}})
	}

	// Each task owns a pre-derived generator, so they are free to run
	// concurrently: the only ordering constraint was that the secret
	// keys they read already exist.
	samplers := make([]*csprng.Sampler, len(tasks))
	for i := range tasks {
		s, err := subSampler()
		if err != nil {
			return nil, fmt.Errorf("keyset: derive generator for key %q: %w", tasks[i].id, err)
		}
		samplers[i] = s
	}

	installs := make([]func(), len(tasks))
	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			installs[i] = tasks[i].gen(samplers[i])
		}(i)
	}
	wg.Wait()
	for _, install := range installs {
		install()
	}

	encSampler, err := subSampler()
	if err != nil {
		return nil, fmt.Errorf("keyset: derive encryption generator: %w", err)
	}
	ks.encSampler = encSampler

	return ks, nil
}

// keyPair resolves the secret keys an evaluation key derives from.
func (ks *KeySet) keyPair(id, inputID, outputID params.KeyID) (in, out *secretKey, err error) {
	in, ok := ks.secretKeys[inputID]
	if !ok {
		return nil, nil, fmt.Errorf("keyset: key %q references missing input secret key %q", id, inputID)
	}
	out, ok = ks.secretKeys[outputID]
	if !ok {
		return nil, nil, fmt.Errorf("keyset: key %q references missing output secret key %q", id, outputID)
	}
	return in, out, nil
}

func genBootstrapKey(s *csprng.Sampler, param params.BootstrapKeyParam, in, out *secretKey) *LweBootstrapKey {
	glweKey := out.glweView(param.GlweDimension)
	polySize := len(glweKey[0])
	rows := make([][]GlweCiphertext, len(in.bits))
	for i, bit := range in.bits {
		rows[i] = make([]GlweCiphertext, param.Level)
		for l := 0; l < param.Level; l++ {
			msg := make([]uint64, polySize)
			msg[0] = bit * decompScale(param.BaseLog, l+1)
			rows[i][l] = glweEncrypt(s, glweKey, msg, param.Variance)
		}
	}
	return &LweBootstrapKey{Param: param, Rows: rows}
}

func genKeyswitchKey(s *csprng.Sampler, param params.KeyswitchKeyParam, in, out *secretKey) *LweKeyswitchKey {
	rows := make([][][]uint64, len(in.bits))
	for i, bit := range in.bits {
		rows[i] = make([][]uint64, param.Level)
		for l := 0; l < param.Level; l++ {
			rows[i][l] = lweEncrypt(s, out, bit*decompScale(param.BaseLog, l+1), param.Variance)
		}
	}
	return &LweKeyswitchKey{Param: param, Rows: rows}
}

func genPackingKey(s *csprng.Sampler, param params.PackingKeyParam, in, out *secretKey) *PackingKeyswitchKey {
	glweKey := out.glweView(param.GlweDimension)
	rows := make([][]GlweCiphertext, len(in.bits))
	for i, bit := range in.bits {
		rows[i] = make([]GlweCiphertext, param.Level)
		for l := 0; l < param.Level; l++ {
			msg := make([]uint64, param.PolynomialSize)
			msg[0] = bit * decompScale(param.BaseLog, l+1)
			rows[i][l] = glweEncrypt(s, glweKey, msg, param.Variance)
		}
	}
	return &PackingKeyswitchKey{Param: param, Rows: rows}
}

// ClientParameters returns the record the key set was generated from.
func (ks *KeySet) ClientParameters() *params.ClientParameters {
	return ks.clientParams
}

func sortedIDs[V any](m map[params.KeyID]V) []params.KeyID {
	ids := make([]params.KeyID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
