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

//go:build awskms

package awskms

import (
	"fmt"
	"strings"
)

// Config contains the AWS KMS connection settings for code signing.
type Config struct {
	// Region is the AWS region holding the signing keys, e.g. "eu-west-1".
	Region string `yaml:"region" json:"region" mapstructure:"region"`

	// AccessKeyID and SecretAccessKey are optional static credentials.
	// Without them the default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	SessionToken    string `yaml:"session_token,omitempty" json:"session_token,omitempty" mapstructure:"session_token"`

	// Endpoint overrides the KMS endpoint, e.g. "http://localhost:4566"
	// for LocalStack.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" mapstructure:"endpoint"`

	// KeyID is the default key ID, ARN or alias ("alias/srk1").
	KeyID string `yaml:"key_id,omitempty" json:"key_id,omitempty" mapstructure:"key_id"`
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if c.Region == "" {
		return fmt.Errorf("%w: region is required", ErrInvalidConfig)
	}
	if !isValidRegion(c.Region) {
		return fmt.Errorf("%w: %s", ErrInvalidRegion, c.Region)
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("%w: access_key_id and secret_access_key must be provided together", ErrInvalidConfig)
	}
	return nil
}

// String returns the config with credentials masked.
func (c *Config) String() string {
	accessKey := "<not set>"
	if n := len(c.AccessKeyID); n > 4 {
		accessKey = "****" + c.AccessKeyID[n-4:]
	} else if n > 0 {
		accessKey = "****"
	}
	secret := "<not set>"
	if c.SecretAccessKey != "" {
		secret = "****"
	}
	endpoint := "<default>"
	if c.Endpoint != "" {
		endpoint = c.Endpoint
	}
	return fmt.Sprintf("awskms.Config{Region: %s, AccessKeyID: %s, SecretAccessKey: %s, Endpoint: %s, KeyID: %s}",
		c.Region, accessKey, secret, endpoint, c.KeyID)
}

// isValidRegion accepts dash separated lower case alphanumeric parts
// ("us-east-1") and the LocalStack names.
func isValidRegion(region string) bool {
	if region == "local" || region == "us-east-1-local" {
		return true
	}
	parts := strings.Split(region, "-")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, c := range part {
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
				return false
			}
		}
	}
	return true
}
