// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package keyset

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/luxfi/fhec/internal/csprng"
	"github.com/luxfi/fhec/params"
)

// keySetBlob is the cache representation of a key set. It exists so
// the persistent cache can round-trip secret-key material without the
// KeySet type itself ever exposing a marshal method: only this package
// produces or consumes these bytes.
type keySetBlob struct {
	Params        *params.ClientParameters
	SecretKeys    map[params.KeyID][]uint64
	BootstrapKeys map[params.KeyID]*LweBootstrapKey
	KeyswitchKeys map[params.KeyID]*LweKeyswitchKey
	PackingKeys   map[params.KeyID]*PackingKeyswitchKey
}

// encode serializes the full key set, secret keys included. The result
// is only ever handed to a client-side cache store.
func (ks *KeySet) encode() ([]byte, error) {
	blob := keySetBlob{
		Params:        ks.clientParams,
		SecretKeys:    make(map[params.KeyID][]uint64, len(ks.secretKeys)),
		BootstrapKeys: ks.bootstrapKeys,
		KeyswitchKeys: ks.keyswitchKeys,
		PackingKeys:   ks.packingKeys,
	}
	for id, sk := range ks.secretKeys {
		blob.SecretKeys[id] = sk.bits
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return nil, fmt.Errorf("keyset: encode key set: %w", err)
	}
	return buf.Bytes(), nil
}

// decode rebuilds a key set from cache bytes. Boundary encryption on a
// cached key set draws its noise from the system source; determinism
// only ever mattered for the key material itself.
func decode(data []byte) (*KeySet, error) {
	var blob keySetBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		return nil, fmt.Errorf("keyset: decode key set: %w", err)
	}
	ks := &KeySet{
		clientParams:  blob.Params,
		secretKeys:    make(map[params.KeyID]*secretKey, len(blob.SecretKeys)),
		bootstrapKeys: blob.BootstrapKeys,
		keyswitchKeys: blob.KeyswitchKeys,
		packingKeys:   blob.PackingKeys,
		encSampler:    csprng.NewSampler(csprng.NewSystem()),
	}
	if ks.bootstrapKeys == nil {
		ks.bootstrapKeys = map[params.KeyID]*LweBootstrapKey{}
	}
	if ks.keyswitchKeys == nil {
		ks.keyswitchKeys = map[params.KeyID]*LweKeyswitchKey{}
	}
	if ks.packingKeys == nil {
		ks.packingKeys = map[params.KeyID]*PackingKeyswitchKey{}
	}
	for id, bits := range blob.SecretKeys {
		ks.secretKeys[id] = &secretKey{param: blob.Params.SecretKeys[id], bits: bits}
	}
	return ks, nil
}
