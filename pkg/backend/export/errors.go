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

package export

import "errors"

var (
	// ErrCertificateRequired is returned when a request has no certificate
	// to name in the signing request.
	ErrCertificateRequired = errors.New("export: certificate reference is required")

	// ErrInvalidTarget is returned for an unknown secure-boot target.
	ErrInvalidTarget = errors.New("export: invalid target")
)
