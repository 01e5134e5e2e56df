// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package keyset

import (
	"math"

	"github.com/luxfi/fhec/internal/csprng"
	"github.com/luxfi/fhec/params"
	"github.com/luxfi/fhec/security"
)

// All arithmetic is over q = 2^64, so uint64 wraparound is the modular
// reduction.

// secretKey is raw LWE secret-key material: a vector of uniform bits.
// The type is unexported and carries no marshal methods; nothing
// outside this package can construct or transmit one.
type secretKey struct {
	param params.SecretKeyParam
	bits  []uint64
}

// genSecretKey draws a fresh binary secret key from the sampler.
func genSecretKey(s *csprng.Sampler, param params.SecretKeyParam) *secretKey {
	bits := make([]uint64, param.Size)
	for i := range bits {
		bits[i] = s.Bit()
	}
	return &secretKey{param: param, bits: bits}
}

// glweView reinterprets the flattened key as dimension polynomials.
// The big key is the flattened GLWE key, so its length is always
// dimension * polySize.
func (sk *secretKey) glweView(dimension int) [][]uint64 {
	polySize := len(sk.bits) / dimension
	polys := make([][]uint64, dimension)
	for j := range polys {
		polys[j] = sk.bits[j*polySize : (j+1)*polySize]
	}
	return polys
}

// noiseStddev converts a variance relative to the modulus into an
// absolute standard deviation over q = 2^64.
func noiseStddev(v security.Variance) float64 {
	return math.Sqrt(v) * math.Exp2(64)
}

// lweEncrypt produces (a_1..a_n, b) with b = <a, s> + msg + e.
func lweEncrypt(s *csprng.Sampler, sk *secretKey, msg uint64, variance security.Variance) []uint64 {
	n := len(sk.bits)
	ct := make([]uint64, n+1)
	var body uint64
	for i := 0; i < n; i++ {
		ct[i] = s.Uint64()
		body += ct[i] * sk.bits[i]
	}
	body += msg
	body += uint64(s.NormalInt64(noiseStddev(variance)))
	ct[n] = body
	return ct
}

// lwePhase recovers msg + e from a ciphertext: b - <a, s>.
func lwePhase(sk *secretKey, ct []uint64) uint64 {
	n := len(sk.bits)
	phase := ct[n]
	for i := 0; i < n; i++ {
		phase -= ct[i] * sk.bits[i]
	}
	return phase
}

// GlweCiphertext is a GLWE sample: dimension mask polynomials and a
// body polynomial, all of the same size.
type GlweCiphertext struct {
	Mask [][]uint64
	Body []uint64
}

// mulAddNegacyclic accumulates a*s into acc in Z[X]/(X^N + 1), with
// coefficients wrapping mod 2^64.
func mulAddNegacyclic(acc, a, s []uint64) {
	n := len(a)
	for i := 0; i < n; i++ {
		if a[i] == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			if idx := i + j; idx < n {
				acc[idx] += a[i] * s[j]
			} else {
				acc[idx-n] -= a[i] * s[j]
			}
		}
	}
}

// glweEncrypt encrypts a message polynomial under a GLWE key given as
// polynomials of key bits.
func glweEncrypt(s *csprng.Sampler, key [][]uint64, msg []uint64, variance security.Variance) GlweCiphertext {
	polySize := len(msg)
	ct := GlweCiphertext{
		Mask: make([][]uint64, len(key)),
		Body: make([]uint64, polySize),
	}
	for j := range key {
		ct.Mask[j] = make([]uint64, polySize)
		for i := range ct.Mask[j] {
			ct.Mask[j][i] = s.Uint64()
		}
		mulAddNegacyclic(ct.Body, ct.Mask[j], key[j])
	}
	stddev := noiseStddev(variance)
	for i := 0; i < polySize; i++ {
		ct.Body[i] += msg[i]
		ct.Body[i] += uint64(s.NormalInt64(stddev))
	}
	return ct
}

// decompScale returns the message scale of decomposition level l
// (1-based): q / B^l for base log baseLog.
func decompScale(baseLog, level int) uint64 {
	shift := 64 - baseLog*level
	if shift <= 0 {
		return 1
	}
	return 1 << uint(shift)
}
