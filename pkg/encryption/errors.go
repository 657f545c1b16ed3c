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

import "errors"

var (
	// ErrNonceReuse is returned when a CCM nonce repeats under the same key.
	ErrNonceReuse = errors.New("encryption: nonce reuse detected")

	// ErrNonceHealth is returned when the nonce source fails its health check.
	ErrNonceHealth = errors.New("encryption: nonce source failed health check")

	// ErrUnalignedInput is returned when AES-CBC input is not a multiple of
	// the block size.
	ErrUnalignedInput = errors.New("encryption: input is not block aligned")

	// ErrInvalidNonceSize is returned for CCM nonce sizes outside 7..13.
	ErrInvalidNonceSize = errors.New("encryption: invalid nonce size")
)
