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

//go:build vault

package server

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/backend/vault"
)

// createVaultProvider builds the Vault transit provider from kms.vault settings
func createVaultProvider(_ context.Context, cfg *config.KMSConfig) (kms.Provider, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("kms.vault is required for the vault provider")
	}
	provider, err := vault.NewProvider(&vault.Config{
		Address:       cfg.Vault.Address,
		Token:         cfg.Vault.Token,
		TransitPath:   cfg.Vault.MountPath,
		Namespace:     cfg.Vault.Namespace,
		CACert:        cfg.Vault.CACert,
		TLSSkipVerify: cfg.Vault.TLSSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault provider: %w", err)
	}
	return provider, nil
}
