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
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/url"
	"strings"

	kmsbackend "github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/types"
)

// Provider resolves transit key names to signers.
type Provider struct {
	config *Config
	client LogicalClient
}

var _ kmsbackend.Provider = (*Provider)(nil)

// NewProvider creates a transit provider for the configured Vault server.
func NewProvider(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	client, err := newLogicalClient(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrVaultConnection, err)
	}
	return &Provider{config: config, client: client}, nil
}

// NewProviderWithClient creates a provider with a custom client (for testing).
func NewProviderWithClient(config *Config, client LogicalClient) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "vault"
}

// Signer returns a crypto.Signer for the transit key keyID. The latest
// key version signs.
func (p *Provider) Signer(ctx context.Context, keyID string) (crypto.Signer, error) {
	name := url.PathEscape(keyID)
	pub, err := p.publicKey(ctx, name)
	if err != nil {
		return nil, err
	}
	return &vaultSigner{ctx: ctx, provider: p, name: name, publicKey: pub}, nil
}

func (p *Provider) publicKey(ctx context.Context, name string) (crypto.PublicKey, error) {
	path := fmt.Sprintf("%s/keys/%s", p.config.TransitPath, name)
	secret, err := p.client.ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read key from vault: %w", types.ErrProvider, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %w: %s", types.ErrNotFound, ErrKeyNotFound, name)
	}

	keys, ok := secret.Data["keys"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %w: no keys data", types.ErrProvider, ErrInvalidResponse)
	}
	latest := fmt.Sprintf("%v", secret.Data["latest_version"])
	keyData, ok := keys[latest].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %w: version %s not found", types.ErrProvider, ErrInvalidResponse, latest)
	}
	publicPEM, ok := keyData["public_key"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %w: no public key in response", types.ErrProvider, ErrInvalidResponse)
	}

	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: %w: failed to decode PEM", types.ErrProvider, ErrInvalidResponse)
	}
	return kmsbackend.ParsePublicKey(block.Bytes)
}

// vaultSigner signs digests with transit/sign/<key>/<hash>.
type vaultSigner struct {
	ctx       context.Context
	provider  *Provider
	name      string
	publicKey crypto.PublicKey
}

func (s *vaultSigner) Public() crypto.PublicKey {
	return s.publicKey
}

// Sign signs a prehashed digest. ECDSA signatures come back DER encoded.
func (s *vaultSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	var vaultHash string
	switch opts.HashFunc() {
	case crypto.SHA256:
		vaultHash = "sha2-256"
	case crypto.SHA384:
		vaultHash = "sha2-384"
	case crypto.SHA512:
		vaultHash = "sha2-512"
	default:
		return nil, kmsbackend.UnsupportedHash(s.publicKey, opts.HashFunc())
	}

	data := map[string]interface{}{
		"input":     base64.StdEncoding.EncodeToString(digest),
		"prehashed": true,
	}
	if _, ok := s.publicKey.(*rsa.PublicKey); ok {
		data["signature_algorithm"] = "pkcs1v15"
		if kmsbackend.IsPSS(opts) {
			data["signature_algorithm"] = "pss"
			data["salt_length"] = "hash"
		}
	}

	path := fmt.Sprintf("%s/sign/%s/%s", s.provider.config.TransitPath, s.name, vaultHash)
	secret, err := s.provider.client.WriteWithContext(s.ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign with vault: %w", types.ErrProvider, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %w: no signature returned", types.ErrProvider, ErrInvalidResponse)
	}
	signature, ok := secret.Data["signature"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %w: no signature in response", types.ErrProvider, ErrInvalidResponse)
	}
	return decodeSignature(signature)
}

// decodeSignature decodes the "vault:v<N>:<base64>" signature format.
func decodeSignature(s string) ([]byte, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "vault" {
		return nil, fmt.Errorf("%w: %w: invalid signature format", types.ErrProvider, ErrInvalidResponse)
	}
	sig, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrInvalidResponse, err)
	}
	return sig, nil
}
