// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package wideint provides overflow-safe arithmetic on unsigned integers
// with an explicit bit width.
//
// Every operation picks a result width large enough that the result
// provably fits: a sum of a w1-bit and a w2-bit value is max(w1,w2)+1
// bits wide, a product is w1+w2 bits wide and a square doubles the
// input width. Values are immutable once produced.
package wideint

import "math/big"

// MaxWidth is the largest bit width a value may reach. Exceeding it is
// an implementation limit, not a user error, and panics.
const MaxWidth = 1 << 24

// Int is an unsigned integer with an explicit bit width.
// The zero value is the 1-bit value 0.
type Int struct {
	width uint
	value *big.Int
}

// New returns a width-bit value holding v. It panics if v does not fit
// in width bits or if width exceeds MaxWidth.
func New(width uint, v uint64) Int {
	checkWidth(width)
	b := new(big.Int).SetUint64(v)
	if uint(b.BitLen()) > width {
		panic("wideint: value does not fit in requested width")
	}
	return Int{width: width, value: b}
}

// One returns the 1-bit value 1, the baseline noise bound of a fresh
// encryption.
func One() Int {
	return New(1, 1)
}

// MaxValue returns the largest width-bit value, 2^width - 1.
func MaxValue(width uint) Int {
	checkWidth(width)
	v := new(big.Int).Lsh(big.NewInt(1), width)
	v.Sub(v, big.NewInt(1))
	return Int{width: width, value: v}
}

// PowerOfTwo returns 2^width as a (width+1)-bit value.
func PowerOfTwo(width uint) Int {
	checkWidth(width + 1)
	return Int{width: width + 1, value: new(big.Int).Lsh(big.NewInt(1), width)}
}

func checkWidth(width uint) {
	if width == 0 || width > MaxWidth {
		panic("wideint: bit width out of range")
	}
}

// BitWidth returns the declared width of x in bits.
func (x Int) BitWidth() uint { return x.wnorm() }

// wnorm treats the zero Int as a 1-bit zero.
func (x Int) wnorm() uint {
	if x.width == 0 {
		return 1
	}
	return x.width
}

func (x Int) big() *big.Int {
	if x.value == nil {
		return new(big.Int)
	}
	return x.value
}

// Big returns a copy of the magnitude of x.
func (x Int) Big() *big.Int {
	return new(big.Int).Set(x.big())
}

// Uint64 returns x as a uint64 and reports whether it fits.
func (x Int) Uint64() (uint64, bool) {
	if !x.big().IsUint64() {
		return 0, false
	}
	return x.big().Uint64(), true
}

// String formats x in base 10.
func (x Int) String() string { return x.big().String() }

// Add returns x+y at width max(x,y)+1, which cannot overflow.
func Add(x, y Int) Int {
	w := max(x.wnorm(), y.wnorm()) + 1
	checkWidth(w)
	return Int{width: w, value: new(big.Int).Add(x.big(), y.big())}
}

// Mul returns x*y at the sum of the operand widths.
func Mul(x, y Int) Int {
	w := x.wnorm() + y.wnorm()
	checkWidth(w)
	return Int{width: w, value: new(big.Int).Mul(x.big(), y.big())}
}

// Sqr returns x*x at twice the operand width.
func Sqr(x Int) Int {
	w := 2 * x.wnorm()
	checkWidth(w)
	return Int{width: w, value: new(big.Int).Mul(x.big(), x.big())}
}

// Less reports x < y, zero-extending the narrower operand.
func Less(x, y Int) bool {
	return x.big().Cmp(y.big()) < 0
}

// Equal reports x == y as magnitudes, ignoring widths.
func Equal(x, y Int) bool {
	return x.big().Cmp(y.big()) == 0
}

// CeilSqrt returns the smallest r with r*r >= x: the integer square
// root, incremented when its square falls strictly below x.
func CeilSqrt(x Int) Int {
	r := Int{width: (x.wnorm() + 1) / 2, value: new(big.Int).Sqrt(x.big())}
	if r.width == 0 {
		r.width = 1
	}
	if Less(Sqr(r), x) {
		return Add(r, One())
	}
	return r
}
