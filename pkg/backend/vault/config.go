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

import "fmt"

// DefaultTransitPath is the mount used when Config.TransitPath is empty.
const DefaultTransitPath = "transit"

// Config selects a Vault transit mount whose keys sign CST payloads.
// The key reference of a request names the transit key; the certificate
// reference still points at a local file.
type Config struct {
	Address     string `yaml:"address" json:"address" mapstructure:"address"`
	Token       string `yaml:"token,omitempty" json:"token,omitempty" mapstructure:"token"`
	TransitPath string `yaml:"transit_path,omitempty" json:"transit_path,omitempty" mapstructure:"transit_path"`

	// Namespace is only honored by Vault Enterprise.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty" mapstructure:"namespace"`

	CACert        string `yaml:"ca_cert,omitempty" json:"ca_cert,omitempty" mapstructure:"ca_cert"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify,omitempty" json:"tls_skip_verify,omitempty" mapstructure:"tls_skip_verify"`
}

// Validate reports missing connection settings and fills in the default
// transit mount.
func (c *Config) Validate() error {
	switch {
	case c == nil:
		return ErrInvalidConfig
	case c.Address == "":
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	case c.Token == "":
		return fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}
	if c.TransitPath == "" {
		c.TransitPath = DefaultTransitPath
	}
	return nil
}
