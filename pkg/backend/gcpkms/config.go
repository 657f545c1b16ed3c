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

//go:build gcpkms

package gcpkms

import (
	"fmt"
	"os"
	"strings"
)

// Config contains configuration for GCP KMS signing keys.
type Config struct {
	// ProjectID is the GCP project ID where the KMS resources are located.
	ProjectID string `yaml:"project_id" json:"project_id" mapstructure:"project_id"`

	// LocationID is the GCP location, e.g. "us-east1" or "global".
	LocationID string `yaml:"location_id" json:"location_id" mapstructure:"location_id"`

	// KeyRingID is the key ring holding the signing keys.
	KeyRingID string `yaml:"key_ring_id" json:"key_ring_id" mapstructure:"key_ring_id"`

	// CredentialsFile is the path to a service account JSON key file.
	// Optional. If not provided, uses Application Default Credentials (ADC).
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty" mapstructure:"credentials_file"`

	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON []byte `yaml:"credentials_json,omitempty" json:"credentials_json,omitempty" mapstructure:"credentials_json"`

	// Endpoint is a custom KMS API endpoint, e.g. an emulator.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" mapstructure:"endpoint"`
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if c.ProjectID == "" {
		return fmt.Errorf("%w: project ID is required", ErrInvalidProjectID)
	}
	if c.LocationID == "" {
		return fmt.Errorf("%w: location ID is required", ErrInvalidLocationID)
	}
	if c.KeyRingID == "" {
		return fmt.Errorf("%w: key ring ID is required", ErrInvalidKeyRingID)
	}
	if c.CredentialsFile != "" && len(c.CredentialsJSON) == 0 {
		if _, err := os.Stat(c.CredentialsFile); os.IsNotExist(err) {
			return fmt.Errorf("%w: credentials file not found: %s", ErrInvalidCredentials, c.CredentialsFile)
		}
	}
	return nil
}

// KeyRingName returns the fully qualified key ring resource name.
// Format: projects/{project}/locations/{location}/keyRings/{keyRing}
func (c *Config) KeyRingName() string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s",
		c.ProjectID, c.LocationID, c.KeyRingID)
}

// VersionName expands a short key name to the resource name of its first
// version. Names that already start with "projects/" are returned as is.
func (c *Config) VersionName(keyID string) string {
	if strings.HasPrefix(keyID, "projects/") {
		return keyID
	}
	return fmt.Sprintf("%s/cryptoKeys/%s/cryptoKeyVersions/1", c.KeyRingName(), keyID)
}

// String returns a string representation of the config with sensitive data masked.
func (c *Config) String() string {
	creds := "<not set>"
	if c.CredentialsFile != "" {
		creds = maskPath(c.CredentialsFile)
	} else if len(c.CredentialsJSON) > 0 {
		creds = fmt.Sprintf("<json: %d bytes>", len(c.CredentialsJSON))
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = "<default>"
	}
	return fmt.Sprintf("gcpkms.Config{Project: %s, Location: %s, KeyRing: %s, Credentials: %s, Endpoint: %s}",
		c.ProjectID, c.LocationID, c.KeyRingID, creds, endpoint)
}

// maskPath keeps the first and last path elements.
// Example: /home/user/credentials.json becomes /.../credentials.json
func maskPath(path string) string {
	parts := strings.Split(path, string(os.PathSeparator))
	if len(parts) <= 3 {
		return path
	}
	return strings.Join([]string{parts[0], "...", parts[len(parts)-1]}, string(os.PathSeparator))
}
