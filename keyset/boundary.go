// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package keyset

import (
	"errors"
	"fmt"

	"github.com/luxfi/fhec/params"
)

// ErrNotEncrypted reports a boundary operation on a plaintext gate.
// Callers avoid it by checking IsInputEncrypted/IsOutputEncrypted
// first.
var ErrNotEncrypted = errors.New("keyset: gate is not encrypted")

// NumInputs returns the number of input gates of the record.
func (ks *KeySet) NumInputs() int { return len(ks.clientParams.Inputs) }

// NumOutputs returns the number of output gates of the record.
func (ks *KeySet) NumOutputs() int { return len(ks.clientParams.Outputs) }

// InputGate returns the gate describing the input at pos.
func (ks *KeySet) InputGate(pos int) params.CircuitGate {
	return ks.clientParams.Inputs[pos]
}

// OutputGate returns the gate describing the output at pos.
func (ks *KeySet) OutputGate(pos int) params.CircuitGate {
	return ks.clientParams.Outputs[pos]
}

// IsInputEncrypted reports whether the input at pos is encrypted.
func (ks *KeySet) IsInputEncrypted(pos int) bool {
	return ks.clientParams.Inputs[pos].IsEncrypted()
}

// IsOutputEncrypted reports whether the output at pos is encrypted.
func (ks *KeySet) IsOutputEncrypted(pos int) bool {
	return ks.clientParams.Outputs[pos].IsEncrypted()
}

// gateKey resolves the secret key an encrypted gate refers to.
func (ks *KeySet) gateKey(gate params.CircuitGate) (*secretKey, error) {
	if !gate.IsEncrypted() {
		return nil, ErrNotEncrypted
	}
	sk, ok := ks.secretKeys[gate.Encryption.KeyID]
	if !ok {
		return nil, fmt.Errorf("keyset: gate references missing secret key %q", gate.Encryption.KeyID)
	}
	return sk, nil
}

// AllocateLWE returns a buffer sized to hold one LWE ciphertext for
// the gate's secret-key dimension.
func (ks *KeySet) AllocateLWE(gate params.CircuitGate) ([]uint64, error) {
	sk, err := ks.gateKey(gate)
	if err != nil {
		return nil, err
	}
	return make([]uint64, sk.param.Size+1), nil
}

// encodingShift returns the bit position of the plaintext for a gate
// precision: the value lives in the top precision+1 bits, and at least
// one bit below them must remain for the rounding margin. Precisions
// the 64-bit encoding cannot hold are rejected.
func encodingShift(p uint) (uint, error) {
	if p == 0 || p > 62 {
		return 0, fmt.Errorf("keyset: precision %d does not fit a 64-bit encoding", p)
	}
	return 64 - p - 1, nil
}

// Encrypt encodes value into the gate's declared precision and
// encrypts it under the gate's secret key with the gate's declared
// variance. It fails if the gate is plaintext or the value exceeds the
// precision's range.
func (ks *KeySet) Encrypt(gate params.CircuitGate, value uint64) ([]uint64, error) {
	sk, err := ks.gateKey(gate)
	if err != nil {
		return nil, err
	}
	p := gate.Encryption.Encoding.Precision
	shift, err := encodingShift(p)
	if err != nil {
		return nil, err
	}
	if value >= 1<<p {
		return nil, fmt.Errorf("keyset: value %d exceeds %d-bit encoding range", value, p)
	}
	msg := value << shift

	ks.encMu.Lock()
	defer ks.encMu.Unlock()
	return lweEncrypt(ks.encSampler, sk, msg, gate.Encryption.Variance), nil
}

// Decrypt decrypts a ciphertext for the gate and decodes it back to
// the nearest representable plaintext.
func (ks *KeySet) Decrypt(gate params.CircuitGate, ct []uint64) (uint64, error) {
	sk, err := ks.gateKey(gate)
	if err != nil {
		return 0, err
	}
	if len(ct) != sk.param.Size+1 {
		return 0, fmt.Errorf("keyset: ciphertext length %d does not match key dimension %d", len(ct), sk.param.Size)
	}
	p := gate.Encryption.Encoding.Precision
	shift, err := encodingShift(p)
	if err != nil {
		return 0, err
	}
	phase := lwePhase(sk, ct)
	rounded := (phase + 1<<(shift-1)) >> shift
	return rounded & (1<<(p+1) - 1), nil
}

// EncryptInput encrypts a plaintext value for the input gate at pos.
func (ks *KeySet) EncryptInput(pos int, value uint64) ([]uint64, error) {
	return ks.Encrypt(ks.clientParams.Inputs[pos], value)
}

// DecryptOutput decrypts a ciphertext of the output gate at pos.
func (ks *KeySet) DecryptOutput(pos int, ct []uint64) (uint64, error) {
	return ks.Decrypt(ks.clientParams.Outputs[pos], ct)
}
