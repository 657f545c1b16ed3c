// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-cst.
//
// go-cst is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package encryption

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// CheckNonceHealth draws two nonces of size bytes from rnd and fails with
// ErrRngHealthFailure when they are equal or either one is all zero.
func CheckNonceHealth(rnd io.Reader, size int) error {
	a := make([]byte, size)
	b := make([]byte, size)
	if _, err := io.ReadFull(rnd, a); err != nil {
		return fmt.Errorf("%w: %w: %w", types.ErrRngHealthFailure, ErrNonceHealth, err)
	}
	if _, err := io.ReadFull(rnd, b); err != nil {
		return fmt.Errorf("%w: %w: %w", types.ErrRngHealthFailure, ErrNonceHealth, err)
	}
	zero := make([]byte, size)
	switch {
	case bytes.Equal(a, zero), bytes.Equal(b, zero):
		return fmt.Errorf("%w: %w: all-zero nonce", types.ErrRngHealthFailure, ErrNonceHealth)
	case bytes.Equal(a, b):
		return fmt.Errorf("%w: %w: repeated nonce", types.ErrRngHealthFailure, ErrNonceHealth)
	}
	return nil
}

// NonceTracker records the nonces used under each key and rejects
// repeats. Keys are identified by a digest, never stored.
type NonceTracker struct {
	nonces map[string]map[string]struct{}
	mu     sync.Mutex
}

// NewNonceTracker creates an empty tracker.
func NewNonceTracker() *NonceTracker {
	return &NonceTracker{nonces: make(map[string]map[string]struct{})}
}

// CheckAndRecord records nonce for key, or fails if it was seen before.
func (nt *NonceTracker) CheckAndRecord(key, nonce []byte) error {
	id := keyID(key)
	n := hex.EncodeToString(nonce)

	nt.mu.Lock()
	defer nt.mu.Unlock()

	seen, ok := nt.nonces[id]
	if !ok {
		seen = make(map[string]struct{})
		nt.nonces[id] = seen
	}
	if _, exists := seen[n]; exists {
		return fmt.Errorf("%w: %w", types.ErrRngHealthFailure, ErrNonceReuse)
	}
	seen[n] = struct{}{}
	return nil
}

// Count returns the number of nonces recorded for key.
func (nt *NonceTracker) Count(key []byte) int {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	return len(nt.nonces[keyID(key)])
}

func keyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:8])
}
