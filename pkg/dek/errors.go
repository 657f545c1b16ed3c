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

package dek

import "errors"

var (
	// ErrInvalidKeySize is returned for DEK sizes other than 16, 24 or 32 bytes.
	ErrInvalidKeySize = errors.New("dek: invalid key size")

	// ErrKeyFileShort is returned when a reused key file holds fewer bytes
	// than the requested key size.
	ErrKeyFileShort = errors.New("dek: key file shorter than key size")

	// ErrKeySizeMismatch is returned when a request asks for a different
	// size than the DEK already cached in the session.
	ErrKeySizeMismatch = errors.New("dek: key size differs from cached DEK")

	// ErrSessionDestroyed is returned when a destroyed session is used.
	ErrSessionDestroyed = errors.New("dek: session destroyed")
)
