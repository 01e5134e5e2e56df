// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package opgraph models the operation graph and function signatures
// handed over by the IR layer: operations with a closed kind tag, an
// ordered operand list, literal attributes and typed results.
//
// The graph is acyclic per function body and operations appear in
// topological order; loop constructs are unrolled or rejected before a
// graph reaches this package.
package opgraph

import "fmt"

// Kind tags one operation. The set is closed so that analyses dispatch
// with an exhaustive switch instead of open-ended dynamic dispatch.
type Kind uint8

const (
	// KindDot is the weighted sum of an encrypted vector against a
	// plaintext vector.
	KindDot Kind = iota
	// KindAddEintInt adds a plaintext scalar to an encrypted value.
	KindAddEintInt
	// KindAddEint adds two encrypted values.
	KindAddEint
	// KindSubIntEint subtracts an encrypted value from a plaintext scalar.
	KindSubIntEint
	// KindMulEintInt multiplies an encrypted value by a plaintext scalar.
	KindMulEintInt
	// KindZeroEint materializes a zero-valued encrypted constant.
	KindZeroEint
	// KindApplyLookupTable applies a programmable lookup table
	// (a bootstrap) to an encrypted value.
	KindApplyLookupTable
	// KindMulEint multiplies two encrypted values. Part of the
	// encrypted dialect but not supported by the noise analysis.
	KindMulEint
	// KindNegEint negates an encrypted value. Part of the encrypted
	// dialect but not supported by the noise analysis.
	KindNegEint

	// KindConstant materializes a plaintext literal (scalar or dense
	// tensor).
	KindConstant
	// KindAddInt adds two plaintext values.
	KindAddInt
	// KindMulInt multiplies two plaintext values.
	KindMulInt
	// KindReturn terminates a function body.
	KindReturn
)

var kindNames = map[Kind]string{
	KindDot:              "dot_eint_int",
	KindAddEintInt:       "add_eint_int",
	KindAddEint:          "add_eint",
	KindSubIntEint:       "sub_int_eint",
	KindMulEintInt:       "mul_eint_int",
	KindZeroEint:         "zero",
	KindApplyLookupTable: "apply_lookup_table",
	KindMulEint:          "mul_eint",
	KindNegEint:          "neg_eint",
	KindConstant:         "constant",
	KindAddInt:           "add_int",
	KindMulInt:           "mul_int",
	KindReturn:           "return",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// EncryptedDialect reports whether k belongs to the encrypted-value
// dialect. Encrypted-dialect operations without a noise transfer rule
// make the analysis fail rather than propagate an unbounded estimate.
func (k Kind) EncryptedDialect() bool {
	return k <= KindNegEint
}

// Value is one edge of the graph: a typed SSA value, either a function
// parameter (Def == nil) or the result of an operation.
type Value struct {
	Type Type
	// Def is the producing operation, nil for function parameters.
	Def *Op
}

// IsParam reports whether v is a function parameter.
func (v *Value) IsParam() bool { return v.Def == nil }

// Op is one operation of the graph.
type Op struct {
	Kind     Kind
	Operands []*Value
	Results  []*Value

	// IntAttr holds the literal of a scalar constant.
	IntAttr *int64
	// DenseAttr holds the literals of a dense tensor constant.
	DenseAttr []int64

	// Attrs carries analysis annotations attached to the operation,
	// such as the reported noise padding.
	Attrs map[string]string
}

// SetAttr attaches an annotation to the operation.
func (o *Op) SetAttr(name, value string) {
	if o.Attrs == nil {
		o.Attrs = make(map[string]string, 1)
	}
	o.Attrs[name] = value
}

// Attr returns an annotation previously attached to the operation.
func (o *Op) Attr(name string) (string, bool) {
	v, ok := o.Attrs[name]
	return v, ok
}

// Func is one function: an ordered parameter list, result types and a
// body in topological order.
type Func struct {
	Name        string
	Params      []*Value
	ResultTypes []Type
	Ops         []*Op
}

// Module is an ordered collection of functions, the unit the compiler
// hands to parameter derivation.
type Module struct {
	Funcs []*Func
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// NewFunc creates a function with parameter values for each parameter
// type.
func NewFunc(name string, params []Type, results []Type) *Func {
	f := &Func{Name: name, ResultTypes: results}
	for _, t := range params {
		f.Params = append(f.Params, &Value{Type: t})
	}
	return f
}

// NewOp appends an operation producing a single result of the given
// type and returns that result value.
func (f *Func) NewOp(kind Kind, resultType Type, operands ...*Value) *Value {
	op := &Op{Kind: kind, Operands: operands}
	res := &Value{Type: resultType, Def: op}
	op.Results = []*Value{res}
	f.Ops = append(f.Ops, op)
	return res
}

// Constant appends a scalar literal constant of the given type.
func (f *Func) Constant(t Type, v int64) *Value {
	res := f.NewOp(KindConstant, t)
	res.Def.IntAttr = &v
	return res
}

// DenseConstant appends a dense tensor literal constant.
func (f *Func) DenseConstant(t TensorType, vs ...int64) *Value {
	res := f.NewOp(KindConstant, t)
	res.Def.DenseAttr = vs
	return res
}

// Return appends the terminator consuming the function results.
func (f *Func) Return(vs ...*Value) {
	f.Ops = append(f.Ops, &Op{Kind: KindReturn, Operands: vs})
}
