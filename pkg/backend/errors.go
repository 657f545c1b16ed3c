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
package backend

import "errors"

var (
	// ErrUnsupportedFormat is returned when a backend cannot produce the
	// requested signature format.
	ErrUnsupportedFormat = errors.New("backend: unsupported signature format")

	// ErrBackendClosed is returned when a closed backend is used.
	ErrBackendClosed = errors.New("backend: backend is closed")

	// ErrNotSupported is returned when an operation is not supported by the backend.
	ErrNotSupported = errors.New("backend: operation not supported")
)
