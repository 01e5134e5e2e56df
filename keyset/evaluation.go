// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package keyset

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/luxfi/fhec/params"
)

// EvaluationKeys is the read-only view of a key set meant for nodes
// that must never see secret keys: the keyswitch and bootstrap keys
// plus the optional packing key. It is the only transportable view of
// a key set.
type EvaluationKeys struct {
	Keyswitch *LweKeyswitchKey
	Bootstrap *LweBootstrapKey
	Packing   *PackingKeyswitchKey
}

// ErrEmptyEvaluationKeys reports an attempt to compute on encrypted
// data without evaluation keys. This is a configuration error; a
// compute node must abort rather than proceed.
var ErrEmptyEvaluationKeys = errors.New("keyset: evaluation keys missing on compute node")

// EvaluationKeys assembles the shared-key bundle of the key set. When
// the record registered no evaluation keys at all the bundle is
// explicitly empty, which is legal only on a node that performs no
// encrypted computation (a pure client or a distribution root).
func (ks *KeySet) EvaluationKeys() *EvaluationKeys {
	ksk := ks.keyswitchKeys[params.KeyswitchKey]
	bsk := ks.bootstrapKeys[params.BootstrapKey]
	if ksk == nil && bsk == nil {
		return &EvaluationKeys{}
	}
	return &EvaluationKeys{
		Keyswitch: ksk,
		Bootstrap: bsk,
		Packing:   ks.packingKeys[params.PackingKey],
	}
}

// IsEmpty reports whether the bundle carries no evaluation keys.
func (e *EvaluationKeys) IsEmpty() bool {
	return e.Keyswitch == nil && e.Bootstrap == nil && e.Packing == nil
}

// wireEvaluationKeys is a method-less alias for gob transport: encoding
// the alias serializes the struct fields directly instead of
// re-dispatching into the BinaryMarshaler methods below.
type wireEvaluationKeys EvaluationKeys

// MarshalBinary serializes the bundle for transport to compute nodes.
func (e *EvaluationKeys) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode((*wireEvaluationKeys)(e)); err != nil {
		return nil, fmt.Errorf("keyset: serialize evaluation keys: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes a bundle received from a key holder.
func (e *EvaluationKeys) UnmarshalBinary(data []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode((*wireEvaluationKeys)(e)); err != nil {
		return fmt.Errorf("keyset: deserialize evaluation keys: %w", err)
	}
	return nil
}

// ComputeContext is what an untrusted node computing on encrypted data
// holds: evaluation keys and nothing else.
type ComputeContext struct {
	Keys *EvaluationKeys
}

// NewComputeContext builds the context a compute node runs with. An
// empty bundle is fatal here: a node expecting to perform encrypted
// computation must never run without its evaluation keys.
func NewComputeContext(e *EvaluationKeys) (*ComputeContext, error) {
	if e == nil || e.IsEmpty() {
		return nil, ErrEmptyEvaluationKeys
	}
	return &ComputeContext{Keys: e}, nil
}
