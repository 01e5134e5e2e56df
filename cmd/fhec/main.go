// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command fhec provides developer tooling around client parameter
// records: security-curve lookups, record fingerprinting and key-set
// generation into a shared cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/fhec/internal/keystore"
	"github.com/luxfi/fhec/keyset"
	"github.com/luxfi/fhec/params"
	"github.com/luxfi/fhec/security"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fhec",
	Short: "FHE compiler parameter and key tooling",
}

func init() {
	rootCmd.AddCommand(curveCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(keygenCmd)

	curveCmd.Flags().Int("dimension", 1, "GLWE dimension (1 for LWE keys)")
	curveCmd.Flags().Int("size", 0, "polynomial size, or LWE key size")
	curveCmd.Flags().Int("logq", 64, "log2 of the ciphertext modulus")

	keygenCmd.Flags().Uint64("seed-hi", 0, "high 64 bits of the generation seed")
	keygenCmd.Flags().Uint64("seed-lo", 0, "low 64 bits of the generation seed")
	keygenCmd.Flags().String("cache", "", "key-set cache directory")
	keygenCmd.Flags().String("redis", "", "Redis address of a shared key-set cache")
	keygenCmd.Flags().String("out", "", "write the evaluation-key bundle to this file")
}

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Print the minimal secure noise variance for a key geometry",
	RunE: func(cmd *cobra.Command, args []string) error {
		dimension, _ := cmd.Flags().GetInt("dimension")
		size, _ := cmd.Flags().GetInt("size")
		logq, _ := cmd.Flags().GetInt("logq")

		curve, err := security.CurveFor(security.Level128, security.KeyFormatBinary)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%g\n", curve.Variance(dimension, size, logq))
		return nil
	},
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <record.json>",
	Short: "Print the content fingerprint of a client parameter record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := readRecord(args[0])
		if err != nil {
			return err
		}
		fp, err := record.Fingerprint()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), fp)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen <record.json>",
	Short: "Generate (or load from cache) the key set of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := readRecord(args[0])
		if err != nil {
			return err
		}
		seedHi, _ := cmd.Flags().GetUint64("seed-hi")
		seedLo, _ := cmd.Flags().GetUint64("seed-lo")
		cacheDir, _ := cmd.Flags().GetString("cache")
		redisAddr, _ := cmd.Flags().GetString("redis")
		out, _ := cmd.Flags().GetString("out")

		var store keystore.Store
		switch {
		case redisAddr != "":
			store, err = keystore.NewRedisStore(keystore.RedisConfig{Addr: redisAddr})
		case cacheDir != "":
			store, err = keystore.NewFileStore(cacheDir)
		}
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		ks, err := keyset.NewCache(store).KeySet(context.Background(), record, seedHi, seedLo)
		if err != nil {
			return err
		}

		eks := ks.EvaluationKeys()
		if out == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "generated key set for %q (evaluation keys empty: %v)\n",
				record.FunctionName, eks.IsEmpty())
			return nil
		}
		data, err := eks.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0600); err != nil {
			return fmt.Errorf("write evaluation keys: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote evaluation keys to %s (%d bytes)\n", out, len(data))
		return nil
	},
}

func readRecord(path string) (*params.ClientParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var record params.ClientParameters
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return &record, nil
}
