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

//go:build !pkcs11

package pkcs11

import (
	"fmt"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// NewCrypto11Opener returns an opener that always fails when PKCS#11
// support is not compiled.
func NewCrypto11Opener(*Config) Opener {
	return OpenerFunc(func() (Session, error) {
		return nil, fmt.Errorf("%w: %w", types.ErrUnsupportedOperation, ErrNotCompiled)
	})
}
