// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package keyset

import (
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhec/params"
)

// testRecord is a small record with every key kind registered: big and
// small secret keys, bootstrap, keyswitch and packing keys. Sizes are
// tiny so generation stays fast; the big key is the flattened 1x16
// GLWE key.
func testRecord() *params.ClientParameters {
	const variance = 1e-16
	return &params.ClientParameters{
		FunctionName: "main",
		SecretKeys: map[params.KeyID]params.SecretKeyParam{
			params.BigKey:   {Size: 16},
			params.SmallKey: {Size: 8},
		},
		BootstrapKeys: map[params.KeyID]params.BootstrapKeyParam{
			params.BootstrapKey: {
				InputKey: params.SmallKey, OutputKey: params.BigKey,
				Level: 2, BaseLog: 8, GlweDimension: 1, Variance: variance,
			},
		},
		KeyswitchKeys: map[params.KeyID]params.KeyswitchKeyParam{
			params.KeyswitchKey: {
				InputKey: params.BigKey, OutputKey: params.SmallKey,
				Level: 3, BaseLog: 4, Variance: variance,
			},
		},
		PackingKeys: map[params.KeyID]params.PackingKeyParam{
			params.PackingKey: {
				InputKey: params.BigKey, OutputKey: params.BigKey,
				Level: 2, BaseLog: 10, GlweDimension: 1, PolynomialSize: 16,
				Variance: variance,
			},
		},
		Inputs: []params.CircuitGate{
			{
				Encryption: &params.EncryptionGate{
					KeyID:    params.BigKey,
					Variance: variance,
					Encoding: params.Encoding{Precision: 4},
				},
				Width: 4,
			},
			{Width: 8},
		},
		Outputs: []params.CircuitGate{
			{
				Encryption: &params.EncryptionGate{
					KeyID:    params.BigKey,
					Variance: variance,
					Encoding: params.Encoding{Precision: 4},
				},
				Width: 4,
			},
		},
	}
}

func TestGenerateDeterministic(t *testing.T) {
	record := testRecord()

	a, err := Generate(record, 11, 42)
	require.NoError(t, err)
	b, err := Generate(record, 11, 42)
	require.NoError(t, err)

	for id := range record.SecretKeys {
		require.Equal(t, a.secretKeys[id].bits, b.secretKeys[id].bits,
			"secret key %q must be bit-identical across runs", id)
	}
	require.Equal(t, a.bootstrapKeys, b.bootstrapKeys)
	require.Equal(t, a.keyswitchKeys, b.keyswitchKeys)
	require.Equal(t, a.packingKeys, b.packingKeys)

	c, err := Generate(record, 11, 43)
	require.NoError(t, err)
	require.NotEqual(t, a.secretKeys[params.BigKey].bits, c.secretKeys[params.BigKey].bits,
		"a different seed must yield different key material")
}

func TestGenerateManyKeysOfOneKind(t *testing.T) {
	// CRT-style records register several keyswitch keys; their build
	// tasks run concurrently and must all land in the key set.
	record := testRecord()
	extra := []params.KeyID{"ks-0", "ks-1", "ks-2", "ks-3", "ks-4", "ks-5", "ks-6"}
	for _, id := range extra {
		record.KeyswitchKeys[id] = params.KeyswitchKeyParam{
			InputKey: params.BigKey, OutputKey: params.SmallKey,
			Level: 2, BaseLog: 4, Variance: 1e-16,
		}
	}

	for i := 0; i < 20; i++ {
		ks, err := Generate(record, 2, uint64(i))
		require.NoError(t, err)
		require.Len(t, ks.keyswitchKeys, len(extra)+1)
		for _, id := range extra {
			require.NotNil(t, ks.keyswitchKeys[id])
		}
	}

	a, err := Generate(record, 6, 6)
	require.NoError(t, err)
	b, err := Generate(record, 6, 6)
	require.NoError(t, err)
	require.Equal(t, a.keyswitchKeys, b.keyswitchKeys,
		"determinism survives concurrent building")
}

func TestGenerateMissingSecretKey(t *testing.T) {
	record := testRecord()
	delete(record.SecretKeys, params.SmallKey)

	_, err := Generate(record, 0, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), string(params.SmallKey), "error names the missing key id")
}

func TestKeyMaterialShape(t *testing.T) {
	ks, err := Generate(testRecord(), 1, 2)
	require.NoError(t, err)

	bsk := ks.bootstrapKeys[params.BootstrapKey]
	require.Len(t, bsk.Rows, 8, "one row per input-key bit")
	require.Len(t, bsk.Rows[0], 2, "one GLWE sample per level")
	require.Len(t, bsk.Rows[0][0].Body, 16)
	require.Len(t, bsk.Rows[0][0].Mask, 1)

	ksk := ks.keyswitchKeys[params.KeyswitchKey]
	require.Len(t, ksk.Rows, 16)
	require.Len(t, ksk.Rows[0], 3)
	require.Len(t, ksk.Rows[0][0], 9, "LWE sample over the 8-bit small key")

	for id, sk := range ks.secretKeys {
		for _, b := range sk.bits {
			require.LessOrEqual(t, b, uint64(1), "secret key %q must be binary", id)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	record := testRecord()
	ks, err := Generate(record, 7, 7)
	require.NoError(t, err)

	gate := record.Inputs[0]
	const trials = 500

	failures := 0
	for trial := 0; trial < trials; trial++ {
		for v := uint64(0); v < 16; v++ {
			ct, err := ks.Encrypt(gate, v)
			require.NoError(t, err)
			got, err := ks.Decrypt(gate, ct)
			require.NoError(t, err)
			if got != v {
				failures++
			}
		}
	}
	// At this variance the failure probability is far below the test
	// threshold of 1 in 10,000 trials.
	require.Zero(t, failures, "decryption failures in %d trials", trials*16)
}

func TestEncryptionNoiseDistribution(t *testing.T) {
	record := testRecord()
	ks, err := Generate(record, 3, 9)
	require.NoError(t, err)

	gate := record.Inputs[0]
	sk := ks.secretKeys[params.BigKey]
	shift := 64 - gate.Encryption.Encoding.Precision - 1
	msg := uint64(5) << shift

	samples := make([]float64, 0, 2000)
	for i := 0; i < 2000; i++ {
		ct, err := ks.Encrypt(gate, 5)
		require.NoError(t, err)
		samples = append(samples, float64(int64(lwePhase(sk, ct)-msg)))
	}

	want := math.Sqrt(gate.Encryption.Variance) * math.Exp2(64)
	got, err := stats.StandardDeviation(samples)
	require.NoError(t, err)
	require.InEpsilon(t, want, got, 0.15, "observed noise stddev tracks the declared variance")

	mean, err := stats.Mean(samples)
	require.NoError(t, err)
	require.Less(t, math.Abs(mean), 4*want, "noise is centered")
}

func TestEncryptRejectsOutOfRange(t *testing.T) {
	record := testRecord()
	ks, err := Generate(record, 0, 1)
	require.NoError(t, err)

	_, err = ks.Encrypt(record.Inputs[0], 16)
	require.Error(t, err, "precision-4 gates hold values below 16")
}

func TestEncodingRejectsUnusablePrecision(t *testing.T) {
	record := testRecord()
	ks, err := Generate(record, 0, 1)
	require.NoError(t, err)

	for _, p := range []uint{0, 63, 64} {
		gate := record.Inputs[0]
		enc := *gate.Encryption
		enc.Encoding.Precision = p
		gate.Encryption = &enc

		_, err := ks.Encrypt(gate, 0)
		require.Error(t, err, "precision %d must not encode", p)

		ct := make([]uint64, 17)
		_, err = ks.Decrypt(gate, ct)
		require.Error(t, err, "precision %d must not decode", p)
	}
}

func TestGateMismatch(t *testing.T) {
	record := testRecord()
	ks, err := Generate(record, 0, 1)
	require.NoError(t, err)

	plain := record.Inputs[1]

	_, err = ks.Encrypt(plain, 3)
	require.ErrorIs(t, err, ErrNotEncrypted)
	_, err = ks.Decrypt(plain, make([]uint64, 17))
	require.ErrorIs(t, err, ErrNotEncrypted)
	_, err = ks.AllocateLWE(plain)
	require.ErrorIs(t, err, ErrNotEncrypted)

	require.True(t, ks.IsInputEncrypted(0))
	require.False(t, ks.IsInputEncrypted(1))
	require.True(t, ks.IsOutputEncrypted(0))
}

func TestAllocateLWE(t *testing.T) {
	record := testRecord()
	ks, err := Generate(record, 0, 1)
	require.NoError(t, err)

	buf, err := ks.AllocateLWE(record.Inputs[0])
	require.NoError(t, err)
	require.Len(t, buf, 17, "big-key ciphertexts carry 16 mask words and a body")
}

func TestEvaluationKeys(t *testing.T) {
	t.Run("FullBundle", func(t *testing.T) {
		ks, err := Generate(testRecord(), 5, 5)
		require.NoError(t, err)

		eks := ks.EvaluationKeys()
		require.False(t, eks.IsEmpty())
		require.NotNil(t, eks.Keyswitch)
		require.NotNil(t, eks.Bootstrap)
		require.NotNil(t, eks.Packing)

		ctx, err := NewComputeContext(eks)
		require.NoError(t, err)
		require.Same(t, eks, ctx.Keys)
	})

	t.Run("EmptyBundle", func(t *testing.T) {
		record := testRecord()
		record.BootstrapKeys = nil
		record.KeyswitchKeys = nil
		record.PackingKeys = nil

		ks, err := Generate(record, 5, 5)
		require.NoError(t, err)

		eks := ks.EvaluationKeys()
		require.True(t, eks.IsEmpty(), "a client-only record yields an explicitly empty bundle")

		_, err = NewComputeContext(eks)
		require.ErrorIs(t, err, ErrEmptyEvaluationKeys,
			"an empty bundle on a compute node is a fatal configuration error")
	})
}

func TestEvaluationKeysTransport(t *testing.T) {
	ks, err := Generate(testRecord(), 21, 12)
	require.NoError(t, err)

	eks := ks.EvaluationKeys()
	data, err := eks.MarshalBinary()
	require.NoError(t, err)

	var got EvaluationKeys
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, eks.Keyswitch.Param, got.Keyswitch.Param)
	require.Equal(t, eks.Keyswitch.Rows, got.Keyswitch.Rows)
	require.Equal(t, eks.Bootstrap.Rows, got.Bootstrap.Rows)
	require.Equal(t, eks.Packing.Rows, got.Packing.Rows)
}
