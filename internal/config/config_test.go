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
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

func writeConfig(t *testing.T, content string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/cst/config.yaml", []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return fs
}

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	fs := writeConfig(t, `
logging:
  level: debug
  format: json

signing:
  mode: direct-token
  hash: sha384
  format: ecdsa
  target: ahab
  work_dir: /var/lib/cst

pkcs11:
  enabled: true
  library: /usr/lib/softhsm/libsofthsm2.so
  token_label: cst
  pin: "1234"

remote:
  enabled: true
  endpoint: https://hsm.example.com/v1/sign
  client_cert: /etc/cst/client.pem
  client_key: /etc/cst/client-key.pem
  root_ca: /etc/cst/ca.pem
  timeout: 10s

encryption:
  ccm_nonce_size: 12
`)

	cfg, err := LoadFs(fs, "/etc/cst/config.yaml")
	if err != nil {
		t.Fatalf("LoadFs() error = %v", err)
	}

	if cfg.Signing.Mode != "direct-token" {
		t.Errorf("Signing.Mode = %q, want direct-token", cfg.Signing.Mode)
	}
	if cfg.Remote.Timeout != 10*time.Second {
		t.Errorf("Remote.Timeout = %v, want 10s", cfg.Remote.Timeout)
	}
	// Defaults survive for keys the file does not set
	if cfg.Remote.MaxResponseBytes != 1024 {
		t.Errorf("Remote.MaxResponseBytes = %d, want 1024", cfg.Remote.MaxResponseBytes)
	}
	if !cfg.Local.Enabled {
		t.Error("Local backend should stay enabled by default")
	}
	if cfg.Encryption.CCMNonceSize != 12 {
		t.Errorf("Encryption.CCMNonceSize = %d, want 12", cfg.Encryption.CCMNonceSize)
	}

	modes := cfg.EnabledModes()
	want := []types.Mode{types.ModeLocal, types.ModeToken, types.ModeRemote}
	if len(modes) != len(want) {
		t.Fatalf("EnabledModes() = %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Errorf("EnabledModes()[%d] = %s, want %s", i, modes[i], want[i])
		}
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := LoadFs(afero.NewMemMapFs(), "/nonexistent.yaml")
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("LoadFs() error = %v, want read failure", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	fs := writeConfig(t, "logging: [unterminated")
	_, err := LoadFs(fs, "/etc/cst/config.yaml")
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("LoadFs() error = %v, want parse failure", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CST_LOG_LEVEL", "warn")
	t.Setenv("CST_MODE", "export")
	t.Setenv("CST_WORK_DIR", "/tmp/cst")
	t.Setenv("CST_REMOTE_ENDPOINT", "https://signer:8443/v1/sign")
	t.Setenv("CST_REMOTE_TIMEOUT", "5s")
	t.Setenv("CST_PKCS11_PIN", "9999")
	t.Setenv("CST_KMS_PROVIDER", "vault")
	t.Setenv("CST_KMS_KEY_ID", "fw-signing")
	t.Setenv("VAULT_ADDR", "https://vault:8200")
	t.Setenv("CST_ENCRYPTION_ENABLED", "false")
	t.Setenv("CST_SERVER_LISTEN", ":9443")

	cfg := DefaultConfig()
	cfg.KMS.Vault = &VaultConfig{}
	applyEnvOverrides(cfg)

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"log level", cfg.Logging.Level, "warn"},
		{"mode", cfg.Signing.Mode, "export"},
		{"work dir", cfg.Signing.WorkDir, "/tmp/cst"},
		{"endpoint", cfg.Remote.Endpoint, "https://signer:8443/v1/sign"},
		{"timeout", cfg.Remote.Timeout, 5 * time.Second},
		{"pin", cfg.PKCS11.PIN, "9999"},
		{"kms provider", cfg.KMS.Provider, "vault"},
		{"kms key", cfg.KMS.KeyID, "fw-signing"},
		{"vault address", cfg.KMS.Vault.Address, "https://vault:8200"},
		{"encryption", cfg.Encryption.Enabled, false},
		{"listen", cfg.Server.Listen, ":9443"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestApplyEnvOverrides_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("CST_REMOTE_TIMEOUT", "soon")
	t.Setenv("CST_ENCRYPTION_ENABLED", "maybe")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Remote.Timeout != 30*time.Second {
		t.Errorf("Remote.Timeout = %v, want default", cfg.Remote.Timeout)
	}
	if !cfg.Encryption.Enabled {
		t.Error("Encryption.Enabled should keep its default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"mode", func(c *Config) { c.Signing.Mode = "cloud" }, "signing.mode"},
		{"hash", func(c *Config) { c.Signing.Hash = "md5" }, "signing.hash"},
		{"format", func(c *Config) { c.Signing.Format = "jws" }, "signing.format"},
		{"target", func(c *Config) { c.Signing.Target = "imx" }, "signing.target"},
		{"mode without backend", func(c *Config) { c.Signing.Mode = "delegate-remote" }, "no enabled backend"},
		{"pkcs11 library", func(c *Config) { c.PKCS11.Enabled = true }, "pkcs11.library"},
		{"pkcs11 token", func(c *Config) {
			c.PKCS11.Enabled = true
			c.PKCS11.Library = "/lib.so"
		}, "pkcs11.token_label"},
		{"remote scheme", func(c *Config) {
			c.Remote.Enabled = true
			c.Remote.Endpoint = "http://signer"
		}, "https"},
		{"remote credentials", func(c *Config) {
			c.Remote.Enabled = true
			c.Remote.Endpoint = "https://signer"
		}, "remote.client_cert"},
		{"kms provider", func(c *Config) {
			c.KMS.Enabled = true
			c.KMS.Provider = "oracle"
		}, "kms.provider"},
		{"nonce size", func(c *Config) { c.Encryption.CCMNonceSize = 16 }, "ccm_nonce_size"},
		{"rng", func(c *Config) { c.Encryption.RNG = "dice" }, "encryption.rng"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateServer(); err == nil {
		t.Error("ValidateServer() should require TLS files")
	}

	cfg.Server.TLS.CertFile = "/srv.pem"
	cfg.Server.TLS.KeyFile = "/srv-key.pem"
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "signer_cert") {
		t.Errorf("ValidateServer() error = %v, want signer_cert", err)
	}

	cfg.Server.SignerCert = "/signer.pem"
	cfg.Server.TLS.ClientAuth = "sometimes"
	if err := cfg.ValidateServer(); err == nil {
		t.Error("ValidateServer() should reject unknown client_auth")
	}

	cfg.Server.TLS.ClientAuth = "require_and_verify"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer() error = %v", err)
	}

	cfg.Server.RateLimit.Enabled = true
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "rate_limit") {
		t.Errorf("ValidateServer() error = %v, want rate_limit", err)
	}
	cfg.Server.RateLimit.RequestsPerMinute = 60
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer() error = %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CST_LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %v, want debug", cfg.Logging.Level)
	}
	if cfg.Signing.Mode != "direct-local" {
		t.Errorf("Signing.Mode = %v, want direct-local", cfg.Signing.Mode)
	}

	t.Setenv("CST_MODE", "delegate-remote")
	if _, err := FromEnv(); err == nil {
		t.Error("FromEnv() should reject a default mode without an enabled backend")
	}
}
