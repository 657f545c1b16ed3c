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

//go:build azurekv

package azurekv

import "errors"

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("azurekv: invalid configuration")

	// ErrInvalidVaultURL is returned when an invalid vault URL is specified.
	ErrInvalidVaultURL = errors.New("azurekv: invalid vault URL")

	// ErrInvalidJWK is returned when the vault returns an unusable key.
	ErrInvalidJWK = errors.New("azurekv: invalid JSON web key")

	// ErrSignFailed is returned when the Sign call fails.
	ErrSignFailed = errors.New("azurekv: sign operation failed")
)
