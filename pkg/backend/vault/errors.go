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


package vault

import "errors"

// Sentinels are wrapped together with a types kind, so callers can match
// either.
var (
	ErrInvalidConfig   = errors.New("vault: invalid configuration")
	ErrKeyNotFound     = errors.New("vault: transit key not found")
	ErrVaultConnection = errors.New("vault: connection failed")
	ErrInvalidResponse = errors.New("vault: unexpected transit response")
)
