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

package cms

import "errors"

var (
	ErrUnsupportedHash = errors.New("cms: unsupported digest algorithm")
	ErrUnsupportedKey  = errors.New("cms: unsupported key type")
	ErrInvalidKeySize  = errors.New("cms: invalid content encryption key size")
	ErrMissingSigner   = errors.New("cms: signer and certificate are required")
	ErrEncoding        = errors.New("cms: DER encoding failed")
)
