// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package params derives the client parameter record of a compiled
// function: the secret-key and evaluation-key specifications plus the
// input/output circuit gates the key lifecycle needs to move values
// across the encryption boundary.
package params

import (
	"math"

	"github.com/luxfi/fhec/security"
	"github.com/luxfi/fhec/wideint"
)

// KeyID identifies one key within a client parameter record. The set is
// a small enumeration; ids are unique per record.
type KeyID string

const (
	// BigKey is the large LWE secret key every gate encrypts under.
	BigKey KeyID = "big"
	// SmallKey is the optional small LWE secret key used between
	// keyswitch and bootstrap.
	SmallKey KeyID = "small"
	// BootstrapKey identifies the bootstrap evaluation key.
	BootstrapKey KeyID = "bootstrap"
	// KeyswitchKey identifies the keyswitch evaluation key.
	KeyswitchKey KeyID = "keyswitch"
	// PackingKey identifies the CRT packing-keyswitch evaluation key.
	PackingKey KeyID = "packing"
)

// CRTParameters configures multi-precision circuits: the CRT residue
// decomposition and the packing-keyswitch decomposition the circuit
// bootstrap uses to recombine residues.
type CRTParameters struct {
	Moduli     []int64 `json:"moduli"`
	PksLevel   int     `json:"pksLevel"`
	PksBaseLog int     `json:"pksBaseLog"`
}

// SchemeParameters is one chosen parameter set for a compiled function.
// Parameter derivation turns it, together with the function signature
// and a security curve, into a ClientParameters record.
type SchemeParameters struct {
	// GlweDimension is the number of polynomials of the GLWE key.
	GlweDimension int `json:"glweDimension"`
	// LogPolynomialSize is log2 of the GLWE polynomial size.
	LogPolynomialSize int `json:"logPolynomialSize"`
	// SmallLweDimension is the small-key size; zero means no small key.
	SmallLweDimension int `json:"smallLweDimension"`
	// BrLevel and BrBaseLog set the bootstrap-key decomposition; a zero
	// level means no bootstrap key.
	BrLevel   int `json:"brLevel"`
	BrBaseLog int `json:"brBaseLog"`
	// KsLevel and KsBaseLog set the keyswitch-key decomposition.
	KsLevel   int `json:"ksLevel"`
	KsBaseLog int `json:"ksBaseLog"`
	// CRT configures multi-precision packing, nil for native circuits.
	CRT *CRTParameters `json:"crt,omitempty"`
}

// PolynomialSize returns the GLWE polynomial size.
func (p SchemeParameters) PolynomialSize() int {
	return 1 << p.LogPolynomialSize
}

// BigLweDimension returns the size of the big LWE key, the flattened
// GLWE key.
func (p SchemeParameters) BigLweDimension() int {
	return p.GlweDimension * p.PolynomialSize()
}

// SupportsPadding reports whether the parameter set keeps a computation
// with the given reported noise padding below the decryption failure
// threshold at the given encoding precision: the amplified input noise
// must stay under half an encoding step.
func (p SchemeParameters) SupportsPadding(curve *security.Curve, precision uint, padding wideint.Int) bool {
	v := curve.Variance(1, p.BigLweDimension(), 64)
	logStd := math.Log2(v) / 2
	pad, ok := padding.Uint64()
	if !ok {
		return false
	}
	// Amplified noise stddev must leave the top precision+1 bits and a
	// rounding margin untouched: log2(pad*std) < -(precision + 2).
	return math.Log2(float64(pad))+logStd < -float64(precision+2)
}

// SecretKeyParam describes one LWE secret key to generate.
type SecretKeyParam struct {
	Size int `json:"size"`
}

// BootstrapKeyParam describes one bootstrap key: GGSW encryptions of
// the input key under the GLWE view of the output key.
type BootstrapKeyParam struct {
	InputKey      KeyID             `json:"inputKey"`
	OutputKey     KeyID             `json:"outputKey"`
	Level         int               `json:"level"`
	BaseLog       int               `json:"baseLog"`
	GlweDimension int               `json:"glweDimension"`
	Variance      security.Variance `json:"variance"`
}

// KeyswitchKeyParam describes one keyswitch key converting ciphertexts
// from the input key's domain to the output key's.
type KeyswitchKeyParam struct {
	InputKey  KeyID             `json:"inputKey"`
	OutputKey KeyID             `json:"outputKey"`
	Level     int               `json:"level"`
	BaseLog   int               `json:"baseLog"`
	Variance  security.Variance `json:"variance"`
}

// PackingKeyParam describes one packing-keyswitch key used by the CRT
// circuit bootstrap.
type PackingKeyParam struct {
	InputKey       KeyID             `json:"inputKey"`
	OutputKey      KeyID             `json:"outputKey"`
	Level          int               `json:"level"`
	BaseLog        int               `json:"baseLog"`
	GlweDimension  int               `json:"glweDimension"`
	PolynomialSize int               `json:"polynomialSize"`
	Variance       security.Variance `json:"variance"`
}

// Encoding describes how a plaintext is laid out inside a ciphertext.
type Encoding struct {
	// Precision is the number of plaintext bits.
	Precision uint `json:"precision"`
	// Crt lists the residue moduli of a CRT-decomposed integer, empty
	// for natively encoded integers.
	Crt []int64 `json:"crt,omitempty"`
}

// EncryptionGate carries the encryption parameters of an encrypted
// circuit gate.
type EncryptionGate struct {
	KeyID    KeyID             `json:"keyId"`
	Variance security.Variance `json:"variance"`
	Encoding Encoding          `json:"encoding"`
}

// CircuitGate describes one function parameter or result. A gate
// without an Encryption descriptor is plaintext.
type CircuitGate struct {
	Encryption *EncryptionGate `json:"encryption,omitempty"`
	// Width is the scalar bit width.
	Width uint `json:"width"`
	// Dimensions is the tensor shape, empty for scalars; Size is the
	// total element count, zero for scalars.
	Dimensions []int64 `json:"dimensions,omitempty"`
	Size       int64   `json:"size"`
}

// IsEncrypted reports whether the gate carries encrypted data.
func (g CircuitGate) IsEncrypted() bool { return g.Encryption != nil }

// ClientParameters is the client parameter record of one compiled
// function. It is immutable once produced and content-addresses the
// key-set cache.
type ClientParameters struct {
	FunctionName  string                      `json:"functionName"`
	SecretKeys    map[KeyID]SecretKeyParam    `json:"secretKeys"`
	BootstrapKeys map[KeyID]BootstrapKeyParam `json:"bootstrapKeys,omitempty"`
	KeyswitchKeys map[KeyID]KeyswitchKeyParam `json:"keyswitchKeys,omitempty"`
	PackingKeys   map[KeyID]PackingKeyParam   `json:"packingKeys,omitempty"`
	Inputs        []CircuitGate               `json:"inputs"`
	Outputs       []CircuitGate               `json:"outputs"`
}
