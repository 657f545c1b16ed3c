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
package pkcs11

import "errors"

var (
	// ErrUnsupportedKeyAlgorithm is returned when a token key is neither RSA nor ECDSA.
	ErrUnsupportedKeyAlgorithm = errors.New("pkcs11: unsupported key algorithm")

	// ErrNotCompiled is returned when token support is not built in.
	ErrNotCompiled = errors.New("pkcs11: token support not compiled (build with -tags pkcs11)")

	// ErrInvalidPINLength is returned when the user PIN is too short.
	// PKCS#11 typically requires PINs to be at least 4 characters.
	ErrInvalidPINLength = errors.New("pkcs11: invalid pin length, must be at least 4 characters")

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("pkcs11: invalid configuration")

	// ErrLibraryNotFound is returned when the PKCS#11 library cannot be found.
	ErrLibraryNotFound = errors.New("pkcs11: library not found")

	// ErrInvalidURI is returned for a malformed PKCS#11 URI.
	ErrInvalidURI = errors.New("pkcs11: invalid token URI")

	// ErrObjectNotFound is returned when no certificate or key matches a reference.
	ErrObjectNotFound = errors.New("pkcs11: object not found")

	// ErrSessionFailed is returned when the token cannot be opened or logged in.
	ErrSessionFailed = errors.New("pkcs11: session open failed")

	// ErrKeyReferenceRequired is returned when no key reference can be determined.
	ErrKeyReferenceRequired = errors.New("pkcs11: token key reference required")
)
