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

package azurekv

import (
	"fmt"
	"strings"
)

// Config contains configuration for Azure Key Vault signing keys.
type Config struct {
	// VaultURL is the vault endpoint, e.g. "https://fw-signing.vault.azure.net/".
	VaultURL string `yaml:"vault_url" json:"vault_url" mapstructure:"vault_url"`

	// TenantID, ClientID and ClientSecret select a service principal. When
	// all are empty DefaultAzureCredential is used.
	TenantID     string `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty" mapstructure:"tenant_id"`
	ClientID     string `yaml:"client_id,omitempty" json:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret,omitempty" json:"client_secret,omitempty" mapstructure:"client_secret"`
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if c.VaultURL == "" {
		return fmt.Errorf("%w: vault URL is required", ErrInvalidConfig)
	}
	if !isValidVaultURL(c.VaultURL) {
		return fmt.Errorf("%w: %s", ErrInvalidVaultURL, c.VaultURL)
	}
	set := 0
	for _, v := range []string{c.TenantID, c.ClientID, c.ClientSecret} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("%w: tenant_id, client_id, and client_secret must all be provided together", ErrInvalidConfig)
	}
	return nil
}

// String returns the config with credentials masked.
func (c *Config) String() string {
	secret := "<not set>"
	if c.ClientSecret != "" {
		secret = "****"
	}
	return fmt.Sprintf("azurekv.Config{VaultURL: %s, TenantID: %s, ClientID: %s, ClientSecret: %s}",
		c.VaultURL, maskID(c.TenantID), maskID(c.ClientID), secret)
}

func maskID(id string) string {
	switch {
	case id == "":
		return "<not set>"
	case len(id) > 4:
		return "****" + id[len(id)-4:]
	default:
		return "****"
	}
}

// isValidVaultURL accepts https URLs on a Key Vault domain, and localhost
// for emulators.
func isValidVaultURL(url string) bool {
	host, ok := strings.CutPrefix(url, "https://")
	if !ok {
		return false
	}
	if strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1") {
		return true
	}
	for _, domain := range []string{".vault.azure.net", ".vault.azure.cn", ".vault.usgovcloudapi.net", ".vault.microsoftazure.de"} {
		if strings.Contains(host, domain) {
			return true
		}
	}
	return false
}
