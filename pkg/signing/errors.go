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
package signing

import "errors"

var (
	// ErrSignerRequired indicates a nil signer was provided
	ErrSignerRequired = errors.New("signing: signer is required")

	// ErrCertificateRequired indicates a CMS signature was requested without
	// a signer certificate
	ErrCertificateRequired = errors.New("signing: certificate is required for CMS")

	// ErrUnsupportedAlgorithm indicates the key type cannot produce the
	// requested format
	ErrUnsupportedAlgorithm = errors.New("signing: unsupported signing algorithm")

	// ErrInvalidHashFunction indicates an invalid or unavailable hash function
	ErrInvalidHashFunction = errors.New("signing: invalid or unavailable hash function")

	// ErrMalformedSignature indicates the provider returned a signature that
	// could not be decoded
	ErrMalformedSignature = errors.New("signing: malformed signature")

	// ErrSigningFailed indicates the signing operation failed
	ErrSigningFailed = errors.New("signing: operation failed")
)
