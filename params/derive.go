// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package params

import (
	"errors"
	"fmt"

	"github.com/luxfi/fhec/opgraph"
	"github.com/luxfi/fhec/security"
)

// ErrTypeConversion wraps failures to map a signature type to a circuit
// gate. Callers recover by rejecting the function.
var ErrTypeConversion = errors.New("params: cannot convert type to circuit gate")

// Derive produces the client parameter record for the named function:
// registered secret and evaluation keys from the scheme parameters and
// the security curve, and one circuit gate per input and output.
//
// Derivation is pure; it must be re-run whenever the scheme parameters
// or the function signature change.
func Derive(sp SchemeParameters, module *opgraph.Module, functionName string, curve *security.Curve) (*ClientParameters, error) {
	inputVariance := curve.Variance(1, sp.BigLweDimension(), 64)
	bootstrapVariance := curve.Variance(sp.GlweDimension, sp.PolynomialSize(), 64)
	keyswitchVariance := curve.Variance(1, sp.SmallLweDimension, 64)

	c := &ClientParameters{
		FunctionName: functionName,
		SecretKeys: map[KeyID]SecretKeyParam{
			BigKey: {Size: sp.BigLweDimension()},
		},
		BootstrapKeys: map[KeyID]BootstrapKeyParam{},
		KeyswitchKeys: map[KeyID]KeyswitchKeyParam{},
		PackingKeys:   map[KeyID]PackingKeyParam{},
	}

	hasSmallKey := sp.SmallLweDimension != 0
	hasBootstrap := sp.BrLevel != 0

	if hasSmallKey {
		c.SecretKeys[SmallKey] = SecretKeyParam{Size: sp.SmallLweDimension}
	}
	if hasBootstrap {
		inputKey := BigKey
		if hasSmallKey {
			inputKey = SmallKey
		}
		c.BootstrapKeys[BootstrapKey] = BootstrapKeyParam{
			InputKey:      inputKey,
			OutputKey:     BigKey,
			Level:         sp.BrLevel,
			BaseLog:       sp.BrBaseLog,
			GlweDimension: sp.GlweDimension,
			Variance:      bootstrapVariance,
		}
	}
	if hasSmallKey {
		c.KeyswitchKeys[KeyswitchKey] = KeyswitchKeyParam{
			InputKey:  BigKey,
			OutputKey: SmallKey,
			Level:     sp.KsLevel,
			BaseLog:   sp.KsBaseLog,
			Variance:  keyswitchVariance,
		}
	}
	if sp.CRT != nil && hasBootstrap {
		c.PackingKeys[PackingKey] = PackingKeyParam{
			InputKey:       BigKey,
			OutputKey:      BigKey,
			Level:          sp.CRT.PksLevel,
			BaseLog:        sp.CRT.PksBaseLog,
			GlweDimension:  sp.GlweDimension,
			PolynomialSize: sp.PolynomialSize(),
			Variance:       bootstrapVariance,
		}
	}

	fn := module.Func(functionName)
	if fn == nil {
		return nil, fmt.Errorf("params: cannot find function to derive client parameters: %q", functionName)
	}

	// A trailing runtime-context parameter is excluded from gate
	// conversion.
	paramTypes := make([]opgraph.Type, 0, len(fn.Params))
	for _, p := range fn.Params {
		paramTypes = append(paramTypes, p.Type)
	}
	if n := len(paramTypes); n > 0 {
		if _, ok := paramTypes[n-1].(opgraph.ContextType); ok {
			paramTypes = paramTypes[:n-1]
		}
	}

	for _, t := range paramTypes {
		gate, err := gateFromType(BigKey, inputVariance, t)
		if err != nil {
			return nil, err
		}
		c.Inputs = append(c.Inputs, gate)
	}
	for _, t := range fn.ResultTypes {
		gate, err := gateFromType(BigKey, inputVariance, t)
		if err != nil {
			return nil, err
		}
		c.Outputs = append(c.Outputs, gate)
	}
	return c, nil
}

// gateFromType converts one signature type to a circuit gate. The
// secret key id and variance are the same for all gates of a record.
func gateFromType(keyID KeyID, variance security.Variance, t opgraph.Type) (CircuitGate, error) {
	switch ty := t.(type) {
	case opgraph.IntegerType:
		return CircuitGate{Width: ty.Width}, nil

	case opgraph.IndexType:
		// The index width depends on the target word size; only 64-bit
		// targets are supported.
		return CircuitGate{Width: 64}, nil

	case opgraph.EncryptedType:
		return CircuitGate{
			Encryption: &EncryptionGate{
				KeyID:    keyID,
				Variance: variance,
				Encoding: Encoding{Precision: ty.Precision, Crt: ty.Crt},
			},
			Width: ty.Precision,
		}, nil

	case opgraph.TensorType:
		gate, err := gateFromType(keyID, variance, ty.Elem)
		if err != nil {
			return CircuitGate{}, err
		}
		gate.Dimensions = append([]int64(nil), ty.Dims...)
		gate.Size = 1
		for _, d := range gate.Dimensions {
			gate.Size *= d
		}
		return gate, nil

	default:
		return CircuitGate{}, fmt.Errorf("%w: %s", ErrTypeConversion, t)
	}
}
