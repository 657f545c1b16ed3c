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

package vault

import (
	"context"

	vault "github.com/hashicorp/vault/api"
)

// LogicalClient is the part of the Vault API used by transit signing.
// *vault.Logical implements it.
type LogicalClient interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*vault.Secret, error)
}

var _ LogicalClient = (*vault.Logical)(nil)

// newLogicalClient creates an authenticated Vault client from config.
func newLogicalClient(config *Config) (LogicalClient, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address

	if config.TLSSkipVerify || config.CACert != "" {
		tlsConfig := &vault.TLSConfig{
			CACert:   config.CACert,
			Insecure: config.TLSSkipVerify,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, err
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, err
	}
	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}
	return client.Logical(), nil
}
