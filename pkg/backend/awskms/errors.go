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

//go:build awskms

package awskms

import "errors"

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("awskms: invalid configuration")

	// ErrInvalidRegion is returned when an invalid AWS region is specified.
	ErrInvalidRegion = errors.New("awskms: invalid region")

	// ErrSignFailed is returned when the Sign call fails.
	ErrSignFailed = errors.New("awskms: sign operation failed")

	// ErrPublicKey is returned when the public key cannot be fetched.
	ErrPublicKey = errors.New("awskms: failed to get public key")
)
