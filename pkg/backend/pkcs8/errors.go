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
package pkcs8

import "errors"

var (
	// ErrStorageClosed is returned when attempting to use a closed backend.
	ErrStorageClosed = errors.New("pkcs8: backend is closed")

	// ErrCertificateRequired is returned when a request has no signing
	// certificate.
	ErrCertificateRequired = errors.New("pkcs8: signing certificate is required")
)
