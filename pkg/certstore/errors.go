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

package certstore

import "errors"

var (
	// ErrCertNotFound is returned when a certificate file does not exist.
	ErrCertNotFound = errors.New("certstore: certificate not found")

	// ErrCertInvalid is returned when a certificate cannot be parsed.
	ErrCertInvalid = errors.New("certstore: invalid certificate")

	// ErrKeyNotFound is returned when a private key file does not exist or
	// cannot be derived from a certificate path.
	ErrKeyNotFound = errors.New("certstore: private key not found")

	// ErrKeyInvalid is returned when a private key cannot be parsed.
	ErrKeyInvalid = errors.New("certstore: invalid private key")

	// ErrPassphraseRequired is returned for an encrypted key loaded without
	// a passphrase callback.
	ErrPassphraseRequired = errors.New("certstore: passphrase required")

	// ErrKeyMismatch is returned when a certificate does not belong to the
	// private key it is paired with.
	ErrKeyMismatch = errors.New("certstore: certificate does not match private key")
)
