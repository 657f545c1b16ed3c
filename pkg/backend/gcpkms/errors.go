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

//go:build gcpkms

package gcpkms

import "errors"

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("gcpkms: invalid configuration")

	// ErrInvalidProjectID is returned when the project ID is invalid or empty.
	ErrInvalidProjectID = errors.New("gcpkms: invalid project ID")

	// ErrInvalidLocationID is returned when the location ID is invalid or empty.
	ErrInvalidLocationID = errors.New("gcpkms: invalid location ID")

	// ErrInvalidKeyRingID is returned when the key ring ID is invalid or empty.
	ErrInvalidKeyRingID = errors.New("gcpkms: invalid key ring ID")

	// ErrInvalidCredentials is returned when credentials are invalid or cannot be loaded.
	ErrInvalidCredentials = errors.New("gcpkms: invalid credentials")

	// ErrChecksumMismatch is returned when a CRC32C checksum does not match
	// the data it covers.
	ErrChecksumMismatch = errors.New("gcpkms: checksum mismatch")

	// ErrPaddingMismatch is returned when the requested RSA padding differs
	// from the padding fixed by the key version's algorithm.
	ErrPaddingMismatch = errors.New("gcpkms: padding does not match key algorithm")
)
