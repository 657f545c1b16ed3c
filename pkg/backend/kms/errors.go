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
package kms

import "errors"

var (
	// ErrInvalidConfig is returned when no provider is configured.
	ErrInvalidConfig = errors.New("kms: invalid configuration")

	// ErrKeyReferenceRequired is returned when neither the request nor the
	// configuration names a KMS key.
	ErrKeyReferenceRequired = errors.New("kms: key reference required")

	// ErrUnsupportedAlgorithm is returned by providers for a hash or
	// padding the service cannot sign with.
	ErrUnsupportedAlgorithm = errors.New("kms: unsupported signing algorithm")

	// ErrUnsupportedKeyType is returned for keys that are neither RSA nor
	// ECDSA.
	ErrUnsupportedKeyType = errors.New("kms: unsupported key type")
)
