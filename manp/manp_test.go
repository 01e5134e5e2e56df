// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package manp

import (
	"strings"
	"testing"

	"github.com/luxfi/fhec/opgraph"
	"github.com/luxfi/fhec/wideint"
)

func eint(p uint) opgraph.EncryptedType { return opgraph.EncryptedType{Precision: p} }

func intTy(w uint) opgraph.IntegerType { return opgraph.IntegerType{Width: w} }

// mustBound returns the bound recorded for the defining op of v.
func mustBound(t *testing.T, bounds map[*opgraph.Op]Bound, v *opgraph.Value) Bound {
	t.Helper()
	b, ok := bounds[v.Def]
	if !ok {
		t.Fatalf("no bound for %s", v.Def.Kind)
	}
	return b
}

func checkBound(t *testing.T, b Bound, sq, padding uint64) {
	t.Helper()
	if got, _ := b.Sq.Uint64(); got != sq {
		t.Errorf("squared bound = %d, want %d", got, sq)
	}
	if got, _ := b.Padding.Uint64(); got != padding {
		t.Errorf("padding = %d, want %d", got, padding)
	}
}

func TestZeroThenAddConstant(t *testing.T) {
	// zero() then add_eint_int(result, 3): the zero result carries the
	// baseline squared bound 1, so the sum is 3^2 + 1 = 10 with padding
	// ceil(sqrt(10)) = 4.
	fn := opgraph.NewFunc("main", []opgraph.Type{eint(4)}, []opgraph.Type{eint(4)})
	z := fn.NewOp(opgraph.KindZeroEint, eint(4))
	c := fn.Constant(intTy(5), 3)
	sum := fn.NewOp(opgraph.KindAddEintInt, eint(4), z, c)
	fn.Return(sum)

	bounds, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, mustBound(t, bounds, z), 1, 1)
	checkBound(t, mustBound(t, bounds, sum), 10, 4)

	if attr, ok := sum.Def.Attr(AttrName); !ok || attr != "4" {
		t.Errorf("MANP attr = %q, want \"4\"", attr)
	}
}

func TestDotLiteralWeights(t *testing.T) {
	// dot(param, [1,2,3]): squared bound 1+4+9 = 14, padding 4.
	vecTy := opgraph.TensorType{Elem: eint(4), Dims: []int64{3}}
	wTy := opgraph.TensorType{Elem: intTy(3), Dims: []int64{3}}
	fn := opgraph.NewFunc("dot", []opgraph.Type{vecTy}, []opgraph.Type{eint(4)})
	w := fn.DenseConstant(wTy, 1, 2, 3)
	d := fn.NewOp(opgraph.KindDot, eint(4), fn.Params[0], w)
	fn.Return(d)

	bounds, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, mustBound(t, bounds, d), 14, 4)
}

func TestDotDynamicWeights(t *testing.T) {
	// Dynamic 3-bit weights over 4 elements: (2^3-1)^2 * 4 = 196.
	vecTy := opgraph.TensorType{Elem: eint(4), Dims: []int64{4}}
	wTy := opgraph.TensorType{Elem: intTy(3), Dims: []int64{4}}
	fn := opgraph.NewFunc("dot", []opgraph.Type{vecTy, wTy}, []opgraph.Type{eint(4)})
	d := fn.NewOp(opgraph.KindDot, eint(4), fn.Params[0], fn.Params[1])
	fn.Return(d)

	bounds, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, mustBound(t, bounds, d), 196, 14)
}

func TestDotRequiresParameterOperand(t *testing.T) {
	vecTy := opgraph.TensorType{Elem: eint(4), Dims: []int64{2}}
	wTy := opgraph.TensorType{Elem: intTy(3), Dims: []int64{2}}
	fn := opgraph.NewFunc("dot", []opgraph.Type{vecTy}, []opgraph.Type{eint(4)})
	z := fn.NewOp(opgraph.KindZeroEint, vecTy)
	w := fn.DenseConstant(wTy, 1, 1)
	fn.NewOp(opgraph.KindDot, eint(4), z, w)

	if _, err := Analyze(fn); err == nil {
		t.Fatal("expected failure for dot on a non-parameter operand")
	}
}

func TestAddEint(t *testing.T) {
	fn := opgraph.NewFunc("add", []opgraph.Type{eint(4), eint(4)}, []opgraph.Type{eint(4)})
	c := fn.Constant(intTy(4), 2)
	a := fn.NewOp(opgraph.KindMulEintInt, eint(4), fn.Params[0], c) // 1*4 = 4
	sum := fn.NewOp(opgraph.KindAddEint, eint(4), a, fn.Params[1])  // 4+1 = 5
	fn.Return(sum)

	bounds, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, mustBound(t, bounds, a), 4, 2)
	checkBound(t, mustBound(t, bounds, sum), 5, 3)
}

func TestSubIntEint(t *testing.T) {
	fn := opgraph.NewFunc("sub", []opgraph.Type{eint(4)}, []opgraph.Type{eint(4)})
	c := fn.Constant(intTy(4), 7)
	d := fn.NewOp(opgraph.KindSubIntEint, eint(4), c, fn.Params[0]) // 49+1 = 50
	fn.Return(d)

	bounds, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, mustBound(t, bounds, d), 50, 8)
}

func TestDynamicScalarIsConservative(t *testing.T) {
	// A dynamic w-bit operand must never yield a smaller bound than
	// any literal representable at that width.
	makeFn := func(lit *int64) Bound {
		fn := opgraph.NewFunc("f", []opgraph.Type{eint(4), intTy(4)}, []opgraph.Type{eint(4)})
		var operand *opgraph.Value
		if lit != nil {
			operand = fn.Constant(intTy(4), *lit)
		} else {
			operand = fn.Params[1]
		}
		res := fn.NewOp(opgraph.KindAddEintInt, eint(4), fn.Params[0], operand)
		fn.Return(res)
		bounds, err := Analyze(fn)
		if err != nil {
			panic(err)
		}
		return bounds[res.Def]
	}

	dyn := makeFn(nil)
	for v := int64(0); v < 16; v++ {
		v := v
		lit := makeFn(&v)
		if wideint.Less(dyn.Sq, lit.Sq) {
			t.Fatalf("dynamic bound %s smaller than literal %d bound %s", dyn.Sq, v, lit.Sq)
		}
	}
}

func TestBootstrapResetsBound(t *testing.T) {
	fn := opgraph.NewFunc("lut", []opgraph.Type{eint(4)}, []opgraph.Type{eint(4)})
	c := fn.Constant(intTy(4), 5)
	noisy := fn.NewOp(opgraph.KindMulEintInt, eint(4), fn.Params[0], c)
	fresh := fn.NewOp(opgraph.KindApplyLookupTable, eint(4), noisy)
	fn.Return(fresh)

	bounds, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, mustBound(t, bounds, noisy), 25, 5)
	checkBound(t, mustBound(t, bounds, fresh), 1, 1)
}

func TestUnsupportedEncryptedOpFails(t *testing.T) {
	fn := opgraph.NewFunc("bad", []opgraph.Type{eint(4), eint(4)}, []opgraph.Type{eint(4)})
	fn.NewOp(opgraph.KindMulEint, eint(4), fn.Params[0], fn.Params[1])

	_, err := Analyze(fn)
	if err == nil {
		t.Fatal("expected unsupported-operation failure")
	}
	if !strings.Contains(err.Error(), "mul_eint") || !strings.Contains(err.Error(), "bad") {
		t.Errorf("error should name the op and function: %v", err)
	}
}

func TestPlaintextOpsUntracked(t *testing.T) {
	fn := opgraph.NewFunc("plain", []opgraph.Type{intTy(8), intTy(8)}, []opgraph.Type{intTy(8)})
	sum := fn.NewOp(opgraph.KindAddInt, intTy(8), fn.Params[0], fn.Params[1])
	fn.Return(sum)

	bounds, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(bounds) != 0 {
		t.Errorf("plaintext ops must produce no bounds, got %d", len(bounds))
	}
	if _, ok := sum.Def.Attr(AttrName); ok {
		t.Error("plaintext op must not be annotated")
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	fn := opgraph.NewFunc("main", []opgraph.Type{eint(4)}, []opgraph.Type{eint(4)})
	c := fn.Constant(intTy(5), 3)
	sum := fn.NewOp(opgraph.KindAddEintInt, eint(4), fn.Params[0], c)
	fn.Return(sum)

	first, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Analyze(fn)
	if err != nil {
		t.Fatal(err)
	}
	for op, b := range first {
		if !wideint.Equal(b.Sq, second[op].Sq) {
			t.Errorf("%s: bound changed across runs", op.Kind)
		}
	}
}
