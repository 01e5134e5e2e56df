// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package params

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Fingerprint returns the content address of the record: the blake3
// hash of its canonical JSON form, hex encoded. Two records that are
// structurally equal fingerprint identically (the JSON encoder emits
// map keys in sorted order), so the fingerprint keys the key-set cache.
func (c *ClientParameters) Fingerprint() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("params: marshal record for fingerprint: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
