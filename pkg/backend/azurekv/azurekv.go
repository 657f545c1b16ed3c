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
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	kmsbackend "github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/signing"
	"github.com/jeremyhahn/go-cst/pkg/types"
)

// Provider resolves Key Vault key names to signers.
type Provider struct {
	config *Config
	client KeyVaultClient
	mu     sync.Mutex
}

var _ kmsbackend.Provider = (*Provider)(nil)

// NewProvider creates a Key Vault provider. The SDK client is created on
// first use.
func NewProvider(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Provider{config: config}, nil
}

// NewProviderWithClient creates a provider with a custom client.
// This is primarily used for testing with mock clients.
func NewProviderWithClient(config *Config, client KeyVaultClient) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Provider{config: config, client: client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "azurekv"
}

func (p *Provider) initClient() (KeyVaultClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	var cred azcore.TokenCredential
	var err error
	if p.config.ClientID != "" {
		cred, err = azidentity.NewClientSecretCredential(
			p.config.TenantID,
			p.config.ClientID,
			p.config.ClientSecret,
			&azidentity.ClientSecretCredentialOptions{AdditionallyAllowedTenants: []string{"*"}},
		)
	} else {
		cred, err = azidentity.NewDefaultAzureCredential(
			&azidentity.DefaultAzureCredentialOptions{AdditionallyAllowedTenants: []string{"*"}},
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Azure credential: %w", types.ErrProvider, err)
	}

	client, err := azkeys.NewClient(p.config.VaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Azure Key Vault client: %w", types.ErrProvider, err)
	}
	p.client = client
	return p.client, nil
}

// Signer returns a crypto.Signer for keyID, "name" or "name/version".
func (p *Provider) Signer(ctx context.Context, keyID string) (crypto.Signer, error) {
	client, err := p.initClient()
	if err != nil {
		return nil, err
	}

	name, version, _ := strings.Cut(keyID, "/")
	resp, err := client.GetKey(ctx, name, version, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get key %s: %w", types.ErrProvider, keyID, err)
	}
	pub, err := jwkToPublicKey(resp.Key)
	if err != nil {
		return nil, err
	}

	return &azurekvSigner{ctx: ctx, client: client, name: name, version: version, publicKey: pub}, nil
}

// azurekvSigner implements crypto.Signer for Key Vault keys.
type azurekvSigner struct {
	ctx       context.Context
	client    KeyVaultClient
	name      string
	version   string
	publicKey crypto.PublicKey
}

// Public returns the public key corresponding to the Azure Key Vault signing key.
func (s *azurekvSigner) Public() crypto.PublicKey {
	return s.publicKey
}

// Sign signs digest with RS*, PS* or ES* depending on the key and opts.
// Key Vault returns ECDSA signatures as r||s; they are converted to DER to
// honor the crypto.Signer contract.
func (s *azurekvSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	alg, err := signatureAlgorithm(s.publicKey, opts)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Sign(s.ctx, s.name, s.version, azkeys.SignParameters{
		Algorithm: &alg,
		Value:     digest,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrSignFailed, err)
	}

	if _, ok := s.publicKey.(*ecdsa.PublicKey); ok {
		der, err := signing.ECDSADERFromRaw(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrSignFailed, err)
		}
		return der, nil
	}
	return resp.Result, nil
}

func signatureAlgorithm(pub crypto.PublicKey, opts crypto.SignerOpts) (azkeys.SignatureAlgorithm, error) {
	hash := opts.HashFunc()
	switch pub.(type) {
	case *rsa.PublicKey:
		pss := kmsbackend.IsPSS(opts)
		switch {
		case hash == crypto.SHA256 && pss:
			return azkeys.SignatureAlgorithmPS256, nil
		case hash == crypto.SHA384 && pss:
			return azkeys.SignatureAlgorithmPS384, nil
		case hash == crypto.SHA512 && pss:
			return azkeys.SignatureAlgorithmPS512, nil
		case hash == crypto.SHA256:
			return azkeys.SignatureAlgorithmRS256, nil
		case hash == crypto.SHA384:
			return azkeys.SignatureAlgorithmRS384, nil
		case hash == crypto.SHA512:
			return azkeys.SignatureAlgorithmRS512, nil
		}
	case *ecdsa.PublicKey:
		switch hash {
		case crypto.SHA256:
			return azkeys.SignatureAlgorithmES256, nil
		case crypto.SHA384:
			return azkeys.SignatureAlgorithmES384, nil
		case crypto.SHA512:
			return azkeys.SignatureAlgorithmES512, nil
		}
	}
	return "", kmsbackend.UnsupportedHash(pub, hash)
}

// jwkToPublicKey converts a Key Vault JSON web key to an RSA or ECDSA
// public key.
func jwkToPublicKey(jwk *azkeys.JSONWebKey) (crypto.PublicKey, error) {
	if jwk == nil || jwk.Kty == nil {
		return nil, fmt.Errorf("%w: %w: missing key", types.ErrProvider, ErrInvalidJWK)
	}

	switch *jwk.Kty {
	case azkeys.KeyTypeRSA, azkeys.KeyTypeRSAHSM:
		if jwk.N == nil || jwk.E == nil {
			return nil, fmt.Errorf("%w: %w: RSA key missing N or E", types.ErrProvider, ErrInvalidJWK)
		}
		e := new(big.Int).SetBytes(jwk.E)
		if !e.IsInt64() {
			return nil, fmt.Errorf("%w: %w: RSA exponent too large", types.ErrProvider, ErrInvalidJWK)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(jwk.N), E: int(e.Int64())}, nil

	case azkeys.KeyTypeEC, azkeys.KeyTypeECHSM:
		if jwk.X == nil || jwk.Y == nil || jwk.Crv == nil {
			return nil, fmt.Errorf("%w: %w: EC key missing X, Y, or Crv", types.ErrProvider, ErrInvalidJWK)
		}
		var curve elliptic.Curve
		switch *jwk.Crv {
		case azkeys.CurveNameP256:
			curve = elliptic.P256()
		case azkeys.CurveNameP384:
			curve = elliptic.P384()
		case azkeys.CurveNameP521:
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("%w: %w: %v", types.ErrUnsupportedOperation, kmsbackend.ErrUnsupportedKeyType, *jwk.Crv)
		}
		return &ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(jwk.X), Y: new(big.Int).SetBytes(jwk.Y)}, nil

	default:
		return nil, fmt.Errorf("%w: %w: %v", types.ErrUnsupportedOperation, kmsbackend.ErrUnsupportedKeyType, *jwk.Kty)
	}
}
