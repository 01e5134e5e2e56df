// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package manp computes the Minimal Arithmetic Noise Padding of every
// encrypted value in a function: a provable upper bound on the noise a
// value has accumulated, expressed as the 2-norm of an equivalent dot
// operation.
//
// The analysis is a single forward pass over the operation graph. Each
// operation kind has its own exact combination rule; there is no
// generic join of two known bounds. Encrypted-typed function parameters
// start at a squared bound of 1 (a fresh encryption), everything else
// starts unknown. The pass is idempotent and needs no fixpoint
// iteration since function bodies are acyclic.
package manp

import (
	"fmt"
	"log"

	"github.com/luxfi/fhec/opgraph"
	"github.com/luxfi/fhec/wideint"
)

// AttrName is the operation attribute the analysis writes the reported
// noise padding to.
const AttrName = "MANP"

// Bound is the final noise bound of one operation result.
type Bound struct {
	// Sq is the squared 2-norm equivalent of the accumulated noise.
	Sq wideint.Int
	// Padding is the reported value, the ceiling square root of Sq.
	Padding wideint.Int
}

// Analysis runs the noise-growth analysis. The zero value is ready to
// use; set Debug to log the squared bound of every annotated operation.
type Analysis struct {
	Debug  bool
	Logger *log.Logger
}

// Analyze runs the analysis on fn with default settings.
func Analyze(fn *opgraph.Func) (map[*opgraph.Op]Bound, error) {
	return Analysis{}.Analyze(fn)
}

// Analyze computes the noise bound of every encrypted-dialect operation
// in fn and annotates each bounded operation with its padding value.
// It fails on an encrypted-dialect operation it has no rule for.
func (a Analysis) Analyze(fn *opgraph.Func) (map[*opgraph.Op]Bound, error) {
	state := make(map[*opgraph.Value]wideint.Int)
	for _, p := range fn.Params {
		if opgraph.IsEncrypted(p.Type) {
			state[p] = wideint.One()
		}
	}

	bounds := make(map[*opgraph.Op]Bound)
	for _, op := range fn.Ops {
		sq, tracked, err := transfer(fn, op, state)
		if err != nil {
			return nil, err
		}
		if !tracked {
			continue
		}
		for _, res := range op.Results {
			state[res] = sq
		}
		b := Bound{Sq: sq, Padding: wideint.CeilSqrt(sq)}
		bounds[op] = b
		op.SetAttr(AttrName, b.Padding.String())
		if a.Debug {
			logger := a.Logger
			if logger == nil {
				logger = log.Default()
			}
			logger.Printf("%s: %s: squared noise bound %s, padding %s",
				fn.Name, op.Kind, sq, b.Padding)
		}
	}
	return bounds, nil
}

// transfer applies the combination rule for op. It reports whether the
// operation produces a bound at all: operations outside the encrypted
// dialect are processed but not tracked.
func transfer(fn *opgraph.Func, op *opgraph.Op, state map[*opgraph.Value]wideint.Int) (wideint.Int, bool, error) {
	switch op.Kind {
	case opgraph.KindDot:
		sq, err := dotNorm2Sq(fn, op)
		return sq, err == nil, err

	case opgraph.KindAddEintInt:
		e, err := operandBound(fn, op, state, 0)
		if err != nil {
			return wideint.Int{}, false, err
		}
		return wideint.Add(scalarNorm2Sq(op.Operands[1]), e), true, nil

	case opgraph.KindAddEint:
		a, err := operandBound(fn, op, state, 0)
		if err != nil {
			return wideint.Int{}, false, err
		}
		b, err := operandBound(fn, op, state, 1)
		if err != nil {
			return wideint.Int{}, false, err
		}
		return wideint.Add(a, b), true, nil

	case opgraph.KindSubIntEint:
		e, err := operandBound(fn, op, state, 1)
		if err != nil {
			return wideint.Int{}, false, err
		}
		return wideint.Add(scalarNorm2Sq(op.Operands[0]), e), true, nil

	case opgraph.KindMulEintInt:
		e, err := operandBound(fn, op, state, 0)
		if err != nil {
			return wideint.Int{}, false, err
		}
		return wideint.Mul(scalarNorm2Sq(op.Operands[1]), e), true, nil

	case opgraph.KindZeroEint, opgraph.KindApplyLookupTable:
		// A bootstrap re-baselines the noise of its result.
		return wideint.One(), true, nil

	default:
		if op.Kind.EncryptedDialect() {
			// An unsupported operation must never silently propagate
			// an unbounded noise estimate.
			return wideint.Int{}, false, fmt.Errorf(
				"manp: %s: unsupported operation %s", fn.Name, op.Kind)
		}
		return wideint.Int{}, false, nil
	}
}

// operandBound returns the already-computed bound of an encrypted
// operand. A missing bound means the graph was not topologically
// ordered or an operand is not tracked, which is a malformed graph.
func operandBound(fn *opgraph.Func, op *opgraph.Op, state map[*opgraph.Value]wideint.Int, idx int) (wideint.Int, error) {
	b, ok := state[op.Operands[idx]]
	if !ok {
		return wideint.Int{}, fmt.Errorf(
			"manp: %s: %s: missing noise bound for encrypted operand %d",
			fn.Name, op.Kind, idx)
	}
	return b, nil
}

// dotNorm2Sq computes the squared 2-norm of a weighted sum of an
// encrypted vector against a plaintext vector. Only dot operations
// whose encrypted operand is itself a function parameter are supported.
func dotNorm2Sq(fn *opgraph.Func, op *opgraph.Op) (wideint.Int, error) {
	if !op.Operands[0].IsParam() {
		return wideint.Int{}, fmt.Errorf(
			"manp: %s: dot operand must be a function parameter", fn.Name)
	}
	weights := op.Operands[1]
	tTy, ok := weights.Type.(opgraph.TensorType)
	if !ok {
		return wideint.Int{}, fmt.Errorf(
			"manp: %s: dot weights must be a tensor, got %s", fn.Name, weights.Type)
	}

	if def := weights.Def; def != nil && def.Kind == opgraph.KindConstant {
		// Literal weights: the exact sum of the squared elements.
		sq := wideint.New(1, 0)
		for _, v := range def.DenseAttr {
			sq = wideint.Add(sq, wideint.Sqr(literalNorm(v)))
		}
		return sq, nil
	}

	// Dynamic weights: every element is conservatively the maximum
	// value representable at the element width.
	elem, ok := tTy.Elem.(opgraph.IntegerType)
	if !ok {
		return wideint.Int{}, fmt.Errorf(
			"manp: %s: dot weights must be plaintext integers, got %s", fn.Name, tTy.Elem)
	}
	maxSq := wideint.Sqr(wideint.MaxValue(elem.Width))
	n := tTy.NumElements()
	return wideint.Mul(maxSq, wideint.New(countWidth(n), uint64(n))), nil
}

// scalarNorm2Sq returns the squared 2-norm of a plaintext scalar
// operand: the square of its literal value when constant, otherwise the
// square of one past the largest value representable at its width.
func scalarNorm2Sq(v *opgraph.Value) wideint.Int {
	if def := v.Def; def != nil && def.Kind == opgraph.KindConstant && def.IntAttr != nil {
		return wideint.Sqr(literalNorm(*def.IntAttr))
	}
	var width uint
	switch ty := v.Type.(type) {
	case opgraph.IntegerType:
		width = ty.Width
	case opgraph.IndexType:
		width = 64
	default:
		// Encrypted or structural operands never reach the plaintext
		// slot of these operations in a well-typed graph.
		width = 64
	}
	return wideint.Sqr(wideint.PowerOfTwo(width))
}

// literalNorm returns |v| as a wideint of minimal width.
func literalNorm(v int64) wideint.Int {
	m := v
	if m < 0 {
		m = -m
	}
	w := uint(1)
	for x := uint64(m); x > 1; x >>= 1 {
		w++
	}
	return wideint.New(w, uint64(m))
}

// countWidth returns the number of bits needed to store n.
func countWidth(n int64) uint {
	w := uint(1)
	for x := uint64(n); x > 1; x >>= 1 {
		w++
	}
	return w
}
