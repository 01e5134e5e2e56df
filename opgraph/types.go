// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package opgraph

import "fmt"

// Type describes the value carried on one edge of the operation graph.
// The set of types is closed: plaintext integers, the machine index
// type, encrypted integers, fixed-shape tensors of any of those, and
// the opaque runtime context passed as a trailing function parameter.
type Type interface {
	fmt.Stringer
	isType()
}

// IntegerType is a plaintext integer of a fixed bit width.
type IntegerType struct {
	Width uint
}

// IndexType is the target word-size integer used for indexing. It is
// treated as 64 bits wide.
type IndexType struct{}

// EncryptedType is an encrypted integer of a declared precision, with
// an optional CRT decomposition into smaller-precision residues.
type EncryptedType struct {
	Precision uint
	Crt       []int64
}

// TensorType is a fixed-shape tensor of a scalar element type.
type TensorType struct {
	Elem Type
	Dims []int64
}

// ContextType is the opaque runtime context. It may only appear as the
// trailing parameter of a function.
type ContextType struct{}

func (IntegerType) isType()   {}
func (IndexType) isType()     {}
func (EncryptedType) isType() {}
func (TensorType) isType()    {}
func (ContextType) isType()   {}

func (t IntegerType) String() string { return fmt.Sprintf("i%d", t.Width) }

func (IndexType) String() string { return "index" }

func (t EncryptedType) String() string {
	if len(t.Crt) > 0 {
		return fmt.Sprintf("eint<%d, crt=%v>", t.Precision, t.Crt)
	}
	return fmt.Sprintf("eint<%d>", t.Precision)
}

func (t TensorType) String() string { return fmt.Sprintf("tensor<%v x %s>", t.Dims, t.Elem) }

func (ContextType) String() string { return "context" }

// NumElements returns the product of the tensor dimensions.
func (t TensorType) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// IsEncrypted reports whether t carries encrypted data, directly or as
// a tensor element.
func IsEncrypted(t Type) bool {
	switch ty := t.(type) {
	case EncryptedType:
		return true
	case TensorType:
		return IsEncrypted(ty.Elem)
	default:
		return false
	}
}
