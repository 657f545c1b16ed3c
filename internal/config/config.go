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

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config represents the complete cst configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Signing    SigningConfig    `yaml:"signing"`
	Local      LocalConfig      `yaml:"local"`
	PKCS11     PKCS11Config     `yaml:"pkcs11"`
	Remote     RemoteConfig     `yaml:"remote"`
	KMS        KMSConfig        `yaml:"kms"`
	Export     ExportConfig     `yaml:"export"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Server     ServerConfig     `yaml:"server"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SigningConfig holds request defaults
type SigningConfig struct {
	// Mode is the backend used when a request names none
	Mode   string `yaml:"mode"`
	Hash   string `yaml:"hash"`
	Format string `yaml:"format"`
	Target string `yaml:"target"` // hab, ahab

	// WorkDir receives remote staging files and export requests
	WorkDir string `yaml:"work_dir"`
}

// LocalConfig controls the on-disk key backend
type LocalConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PKCS11Config contains hardware token settings
type PKCS11Config struct {
	Enabled    bool   `yaml:"enabled"`
	Library    string `yaml:"library"`
	TokenLabel string `yaml:"token_label"`
	Slot       *int   `yaml:"slot,omitempty"`
	PIN        string `yaml:"pin"`
}

// RemoteConfig contains remote signing service settings
type RemoteConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Endpoint         string        `yaml:"endpoint"`
	ClientCert       string        `yaml:"client_cert"`
	ClientKey        string        `yaml:"client_key"`
	RootCA           string        `yaml:"root_ca"`
	ServerName       string        `yaml:"server_name"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int           `yaml:"max_response_bytes"`
	MinVersion       string        `yaml:"min_version"` // TLS1.2, TLS1.3
	MaxVersion       string        `yaml:"max_version"`
}

// KMSConfig selects a cloud KMS provider
type KMSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // awskms, gcpkms, azurekv, vault

	// KeyID is used for requests without a token key reference
	KeyID string `yaml:"key_id"`

	AWS   *AWSKMSConfig  `yaml:"aws,omitempty"`
	GCP   *GCPKMSConfig  `yaml:"gcp,omitempty"`
	Azure *AzureKVConfig `yaml:"azure,omitempty"`
	Vault *VaultConfig   `yaml:"vault,omitempty"`
}

// AWSKMSConfig contains AWS KMS settings
type AWSKMSConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// GCPKMSConfig contains GCP KMS settings
type GCPKMSConfig struct {
	ProjectID   string `yaml:"project_id"`
	Location    string `yaml:"location"`
	KeyRing     string `yaml:"key_ring"`
	Credentials string `yaml:"credentials_file"`
	Endpoint    string `yaml:"endpoint"`
}

// AzureKVConfig contains Azure Key Vault settings
type AzureKVConfig struct {
	VaultURL     string `yaml:"vault_url"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// VaultConfig contains HashiCorp Vault transit settings
type VaultConfig struct {
	Address       string `yaml:"address"`
	Token         string `yaml:"token"`
	Namespace     string `yaml:"namespace"`
	MountPath     string `yaml:"mount_path"`
	CACert        string `yaml:"ca_cert"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify"`
}

// ExportConfig controls offline signing-request export
type ExportConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RequestFile string `yaml:"request_file"`
}

// EncryptionConfig controls payload encryption
type EncryptionConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CCMNonceSize int    `yaml:"ccm_nonce_size"`
	RNG          string `yaml:"rng"` // auto, software, pkcs11, tpm2
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig contains signing server settings
type ServerConfig struct {
	Listen string    `yaml:"listen"`
	TLS    TLSConfig `yaml:"tls"`

	// SignerCert and SignerKey identify the key the server signs with
	SignerCert string `yaml:"signer_cert"`
	SignerKey  string `yaml:"signer_key"`

	// MaxRequestBytes bounds the request body
	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
}

// RateLimitConfig limits signing requests per client
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// AuthConfig enables bearer token authentication of signing requests
type AuthConfig struct {
	// JWTPublicKey is a PEM public key or certificate that verifies tokens.
	// Authentication is off when empty.
	JWTPublicKey string   `yaml:"jwt_public_key"`
	Issuer       string   `yaml:"issuer"`
	Audience     []string `yaml:"audience"`
}

// TLSConfig controls server TLS settings
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Client certificate verification (mTLS)
	ClientAuth string   `yaml:"client_auth"` // none, request, require, verify, require_and_verify
	ClientCAs  []string `yaml:"client_cas"`

	MinVersion   string   `yaml:"min_version"`
	MaxVersion   string   `yaml:"max_version"`
	CipherSuites []string `yaml:"cipher_suites"`
}

// DefaultConfig returns a configuration that signs with local keys.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Signing: SigningConfig{
			Mode:    string(types.ModeLocal),
			Hash:    string(types.SHA256),
			Format:  string(types.FormatCMSDetached),
			Target:  string(types.TargetHAB),
			WorkDir: ".",
		},
		Local: LocalConfig{Enabled: true},
		Remote: RemoteConfig{
			Timeout:          30 * time.Second,
			MaxResponseBytes: 1024,
			MinVersion:       "TLS1.2",
		},
		Encryption: EncryptionConfig{
			Enabled:      true,
			CCMNonceSize: 13,
			RNG:          "software",
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Server: ServerConfig{
			Listen:          ":8443",
			MaxRequestBytes: 64 << 20,
			TLS: TLSConfig{
				ClientAuth: "require_and_verify",
				MinVersion: "TLS1.2",
			},
		},
	}
}

// Load reads configuration from a YAML file on disk
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs reads configuration from a YAML file over DefaultConfig and
// applies environment variable overrides
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv returns DefaultConfig with environment variable overrides, for
// running without a config file
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Logging
	if level := os.Getenv("CST_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("CST_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Signing defaults
	if mode := os.Getenv("CST_MODE"); mode != "" {
		cfg.Signing.Mode = mode
	}
	if workDir := os.Getenv("CST_WORK_DIR"); workDir != "" {
		cfg.Signing.WorkDir = workDir
	}
	if target := os.Getenv("CST_TARGET"); target != "" {
		cfg.Signing.Target = target
	}

	// PKCS#11 settings
	if lib := os.Getenv("CST_PKCS11_LIBRARY"); lib != "" {
		cfg.PKCS11.Library = lib
	}
	if pin := os.Getenv("CST_PKCS11_PIN"); pin != "" {
		cfg.PKCS11.PIN = pin
	}

	// Remote settings
	if endpoint := os.Getenv("CST_REMOTE_ENDPOINT"); endpoint != "" {
		cfg.Remote.Endpoint = endpoint
	}
	if timeout := os.Getenv("CST_REMOTE_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			log.Printf("Warning: invalid CST_REMOTE_TIMEOUT value %q, using %s: %v",
				timeout, cfg.Remote.Timeout, err)
		} else {
			cfg.Remote.Timeout = d
		}
	}

	// KMS settings
	if provider := os.Getenv("CST_KMS_PROVIDER"); provider != "" {
		cfg.KMS.Provider = provider
	}
	if keyID := os.Getenv("CST_KMS_KEY_ID"); keyID != "" {
		cfg.KMS.KeyID = keyID
	}
	if cfg.KMS.AWS != nil {
		if region := os.Getenv("AWS_REGION"); region != "" {
			cfg.KMS.AWS.Region = region
		}
		if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
			cfg.KMS.AWS.AccessKey = accessKey
		}
		if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
			cfg.KMS.AWS.SecretKey = secretKey
		}
	}
	if cfg.KMS.GCP != nil {
		if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
			cfg.KMS.GCP.ProjectID = projectID
		}
		if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
			cfg.KMS.GCP.Credentials = credsFile
		}
	}
	if cfg.KMS.Azure != nil {
		if vaultURL := os.Getenv("AZURE_KEYVAULT_URL"); vaultURL != "" {
			cfg.KMS.Azure.VaultURL = vaultURL
		}
		if clientSecret := os.Getenv("AZURE_CLIENT_SECRET"); clientSecret != "" {
			cfg.KMS.Azure.ClientSecret = clientSecret
		}
	}
	if cfg.KMS.Vault != nil {
		if addr := os.Getenv("VAULT_ADDR"); addr != "" {
			cfg.KMS.Vault.Address = addr
		}
		if token := os.Getenv("VAULT_TOKEN"); token != "" {
			cfg.KMS.Vault.Token = token
		}
		if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
			cfg.KMS.Vault.Namespace = namespace
		}
	}

	// Encryption
	if enabled := os.Getenv("CST_ENCRYPTION_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid CST_ENCRYPTION_ENABLED value %q, using %t: %v",
				enabled, cfg.Encryption.Enabled, err)
		} else {
			cfg.Encryption.Enabled = v
		}
	}

	// Server
	if listen := os.Getenv("CST_SERVER_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	mode, err := types.ParseMode(c.Signing.Mode)
	if err != nil {
		return fmt.Errorf("signing.mode: %w", err)
	}
	if _, err := types.ParseHashAlgorithm(c.Signing.Hash); err != nil {
		return fmt.Errorf("signing.hash: %w", err)
	}
	if _, err := types.ParseSignatureFormat(c.Signing.Format); err != nil {
		return fmt.Errorf("signing.format: %w", err)
	}
	if _, err := types.ParseTarget(c.Signing.Target); err != nil {
		return fmt.Errorf("signing.target: %w", err)
	}
	if !c.ModeEnabled(mode) {
		return fmt.Errorf("signing.mode %s has no enabled backend", mode)
	}

	if c.PKCS11.Enabled {
		if c.PKCS11.Library == "" {
			return fmt.Errorf("pkcs11.library is required when enabled")
		}
		if c.PKCS11.TokenLabel == "" && c.PKCS11.Slot == nil {
			return fmt.Errorf("pkcs11.token_label or pkcs11.slot is required when enabled")
		}
	}

	if c.Remote.Enabled {
		if !strings.HasPrefix(c.Remote.Endpoint, "https://") {
			return fmt.Errorf("remote.endpoint must be an https URL: %q", c.Remote.Endpoint)
		}
		if c.Remote.ClientCert == "" || c.Remote.ClientKey == "" || c.Remote.RootCA == "" {
			return fmt.Errorf("remote.client_cert, remote.client_key and remote.root_ca are required when enabled")
		}
		if c.Remote.Timeout < 0 || c.Remote.MaxResponseBytes < 0 {
			return fmt.Errorf("remote.timeout and remote.max_response_bytes must not be negative")
		}
	}

	if c.KMS.Enabled {
		switch c.KMS.Provider {
		case "awskms", "gcpkms", "azurekv", "vault":
		default:
			return fmt.Errorf("invalid kms.provider: %q (must be awskms, gcpkms, azurekv or vault)", c.KMS.Provider)
		}
	}

	if c.Encryption.CCMNonceSize < 7 || c.Encryption.CCMNonceSize > 13 {
		return fmt.Errorf("invalid encryption.ccm_nonce_size: %d (must be 7..13)", c.Encryption.CCMNonceSize)
	}
	switch c.Encryption.RNG {
	case "auto", "software", "pkcs11", "tpm2":
	default:
		return fmt.Errorf("invalid encryption.rng: %q", c.Encryption.RNG)
	}

	return nil
}

// ValidateServer checks the settings needed to run the signing server
func (c *Config) ValidateServer() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
		return fmt.Errorf("server.tls.cert_file and server.tls.key_file are required")
	}
	if c.Server.SignerCert == "" {
		return fmt.Errorf("server.signer_cert is required")
	}
	if _, err := parseClientAuthType(c.Server.TLS.ClientAuth); err != nil {
		return fmt.Errorf("server.tls.client_auth: %w", err)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_minute must be positive when enabled")
	}
	return nil
}

// ModeEnabled reports whether the backend serving mode is enabled
func (c *Config) ModeEnabled(mode types.Mode) bool {
	switch mode {
	case types.ModeLocal:
		return c.Local.Enabled
	case types.ModeToken:
		return c.PKCS11.Enabled
	case types.ModeRemote:
		return c.Remote.Enabled
	case types.ModeKMS:
		return c.KMS.Enabled
	case types.ModeExport:
		return c.Export.Enabled
	}
	return false
}

// EnabledModes returns the enabled backend modes
func (c *Config) EnabledModes() []types.Mode {
	var modes []types.Mode
	for _, m := range []types.Mode{types.ModeLocal, types.ModeToken, types.ModeKMS, types.ModeRemote, types.ModeExport} {
		if c.ModeEnabled(m) {
			modes = append(modes, m)
		}
	}
	return modes
}
