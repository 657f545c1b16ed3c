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

//go:build !azurekv

package server

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/types"
)

// createAzureKVProvider is a stub when Azure Key Vault support is not compiled in
func createAzureKVProvider(context.Context, *config.KMSConfig) (kms.Provider, error) {
	return nil, fmt.Errorf("%w: azurekv provider not compiled in (use -tags azurekv)", types.ErrUnsupportedOperation)
}
