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

package selector

import "errors"

var (
	// ErrBackendNotFound is returned when no backend is registered for a mode.
	ErrBackendNotFound = errors.New("selector: backend not found")

	// ErrNoDefaultBackend is returned when no default mode is configured.
	ErrNoDefaultBackend = errors.New("selector: no default backend configured")

	// ErrNoBackends is returned when a selector is created without backends.
	ErrNoBackends = errors.New("selector: at least one backend must be configured")
)
