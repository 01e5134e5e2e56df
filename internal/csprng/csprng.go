// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package csprng provides the pseudo-random sources key generation and
// encryption draw from: a deterministic keyed source for reproducible
// key material and a system source backed by crypto/rand.
//
// The keyed source expands its key through a blake2b XOF, so two
// sources built from the same key produce the same stream.
package csprng

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/crypto/blake2b"
)

// Source is a stream of random bytes.
type Source = io.Reader

// NewKeyed returns a deterministic source seeded with key.
func NewKeyed(key []byte) (Source, error) {
	return blake2b.NewXOF(blake2b.OutputLengthUnknown, key)
}

// NewKeyedFromWords returns a deterministic source seeded with two
// 64-bit seed words.
func NewKeyedFromWords(hi, lo uint64) (Source, error) {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[:8], hi)
	binary.LittleEndian.PutUint64(key[8:], lo)
	return NewKeyed(key[:])
}

// NewSystem returns a source backed by the operating system's
// cryptographic randomness.
func NewSystem() Source {
	return rand.Reader
}

// Sampler draws typed samples from a source. Not safe for concurrent
// use; callers that share a sampler serialize access.
type Sampler struct {
	src Source
	buf [8]byte
}

// NewSampler returns a sampler over src.
func NewSampler(src Source) *Sampler {
	return &Sampler{src: src}
}

// Uint64 returns a uniform 64-bit sample.
func (s *Sampler) Uint64() uint64 {
	if _, err := io.ReadFull(s.src, s.buf[:]); err != nil {
		// Both sources are stream expanders that cannot run dry; a
		// read failure means the process lost its entropy source.
		panic("csprng: read from random source: " + err.Error())
	}
	return binary.LittleEndian.Uint64(s.buf[:])
}

// Bit returns a uniform bit.
func (s *Sampler) Bit() uint64 {
	return s.Uint64() & 1
}

// NormalInt64 returns a sample from a rounded centered Gaussian of the
// given standard deviation, via the Box-Muller transform.
func (s *Sampler) NormalInt64(stddev float64) int64 {
	u1 := float64(s.Uint64()>>11) * 0x1p-53
	u2 := float64(s.Uint64()>>11) * 0x1p-53
	for u1 == 0 {
		u1 = float64(s.Uint64()>>11) * 0x1p-53
	}
	n := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return int64(math.Round(n * stddev))
}
