// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package security maps key geometry to the minimal noise variance
// satisfying a target security level.
//
// A curve is a linear fit, in log2 space, of lattice-estimator output
// for one (security level, key format) pair: the minimal standard
// deviation of the encryption noise, relative to the ciphertext
// modulus, as a function of the total key dimension. The table is
// opaque and swappable; asking for an undefined pair is a fatal
// configuration error.
package security

import (
	"fmt"
	"math"
)

// Variance is a noise-distribution variance, relative to the ciphertext
// modulus (so a variance of 2^-48 at a 64-bit modulus is an absolute
// standard deviation of 2^40).
type Variance = float64

// Level is a target security level in bits.
type Level int

// Level128 is the supported classical security level.
const Level128 Level = 128

// KeyFormat identifies the secret-key coefficient distribution.
type KeyFormat int

// KeyFormatBinary is the supported binary-secret key format.
const KeyFormatBinary KeyFormat = iota

// Curve bounds the noise variance required for one security level and
// key format. Stateless and safe for concurrent use.
type Curve struct {
	level  Level
	format KeyFormat

	// log2 stddev = slope*n + bias for total key dimension n.
	slope float64
	bias  float64
}

// Fit of the lattice estimator for 128-bit security with binary
// secrets, uniform ternary attacks included.
var curve128Binary = &Curve{
	level:  Level128,
	format: KeyFormatBinary,
	slope:  -0.026599462343105267,
	bias:   2.981543184145991,
}

// CurveFor returns the security curve for the given level and key
// format. The error it returns for an undefined pair is a configuration
// error: execution must abort rather than proceed with undefined
// cryptographic guarantees.
func CurveFor(level Level, format KeyFormat) (*Curve, error) {
	if level == Level128 && format == KeyFormatBinary {
		return curve128Binary, nil
	}
	return nil, fmt.Errorf("security: no curve defined for level %d, key format %d", level, format)
}

// Level returns the security level the curve guarantees.
func (c *Curve) Level() Level { return c.level }

// Variance returns the minimal secure noise variance for a key of the
// given geometry: dimension GLWE polynomials of the given size (LWE
// keys use dimension 1 and size n), at a logQ-bit ciphertext modulus.
//
// The standard deviation is clamped below at the representation floor
// 2^(2-logQ): noise narrower than the rounding error of a logQ-bit
// sample cannot be realized.
func (c *Curve) Variance(dimension, size, logQ int) Variance {
	n := float64(dimension * size)
	logStd := c.slope*n + c.bias
	if floor := float64(2 - logQ); logStd < floor {
		logStd = floor
	}
	std := math.Exp2(logStd)
	return std * std
}
