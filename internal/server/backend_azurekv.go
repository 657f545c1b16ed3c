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

//go:build azurekv

package server

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/backend/azurekv"
	"github.com/jeremyhahn/go-cst/pkg/backend/kms"
)

// createAzureKVProvider builds the Key Vault provider from kms.azure settings
func createAzureKVProvider(_ context.Context, cfg *config.KMSConfig) (kms.Provider, error) {
	if cfg.Azure == nil {
		return nil, fmt.Errorf("kms.azure is required for the azurekv provider")
	}
	provider, err := azurekv.NewProvider(&azurekv.Config{
		VaultURL:     cfg.Azure.VaultURL,
		TenantID:     cfg.Azure.TenantID,
		ClientID:     cfg.Azure.ClientID,
		ClientSecret: cfg.Azure.ClientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Key Vault provider: %w", err)
	}
	return provider, nil
}
