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
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	awstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	kmsbackend "github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/types"
)

// Provider resolves AWS KMS key IDs to signers.
type Provider struct {
	config *Config
	client KMSClient
	mu     sync.Mutex
}

var _ kmsbackend.Provider = (*Provider)(nil)

// kmsSigner implements the crypto.Signer interface using AWS KMS.
type kmsSigner struct {
	ctx       context.Context
	client    KMSClient
	keyID     string
	publicKey crypto.PublicKey
}

// NewProvider creates an AWS KMS provider. The SDK client is created on
// first use.
func NewProvider(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &Provider{config: config}, nil
}

// NewProviderWithClient creates a provider with a custom client.
// This is primarily used for testing with mock clients.
func NewProviderWithClient(config *Config, client KMSClient) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "awskms"
}

// initClient initializes the AWS KMS client if not already initialized.
func (p *Provider) initClient(ctx context.Context) (KMSClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(p.config.Region)}
	if p.config.AccessKeyID != "" {
		creds := credentials.NewStaticCredentialsProvider(
			p.config.AccessKeyID,
			p.config.SecretAccessKey,
			p.config.SessionToken,
		)
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %w", types.ErrProvider, err)
	}

	var clientOpts []func(*kms.Options)
	if p.config.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(p.config.Endpoint)
		})
	}
	p.client = kms.NewFromConfig(cfg, clientOpts...)
	return p.client, nil
}

// Signer returns a crypto.Signer for keyID.
func (p *Provider) Signer(ctx context.Context, keyID string) (crypto.Signer, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return nil, err
	}

	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %w", types.ErrProvider, ErrPublicKey, keyID, err)
	}
	pub, err := kmsbackend.ParsePublicKey(out.PublicKey)
	if err != nil {
		return nil, err
	}

	return &kmsSigner{ctx: ctx, client: client, keyID: keyID, publicKey: pub}, nil
}

// Public returns the public key corresponding to the KMS signing key.
func (s *kmsSigner) Public() crypto.PublicKey {
	return s.publicKey
}

// Sign signs the given digest using AWS KMS. RSA signatures use PSS when
// opts is *rsa.PSSOptions and PKCS#1 v1.5 otherwise; ECDSA signatures are
// returned DER encoded.
func (s *kmsSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	alg, err := signingAlgorithm(s.publicKey, opts)
	if err != nil {
		return nil, err
	}

	output, err := s.client.Sign(s.ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest,
		MessageType:      awstypes.MessageTypeDigest,
		SigningAlgorithm: alg,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrSignFailed, err)
	}
	return output.Signature, nil
}

// signingAlgorithm maps the key type, hash and padding to a KMS signing
// algorithm.
func signingAlgorithm(pub crypto.PublicKey, opts crypto.SignerOpts) (awstypes.SigningAlgorithmSpec, error) {
	hash := opts.HashFunc()
	switch pub.(type) {
	case *rsa.PublicKey:
		pss := kmsbackend.IsPSS(opts)
		switch {
		case hash == crypto.SHA256 && pss:
			return awstypes.SigningAlgorithmSpecRsassaPssSha256, nil
		case hash == crypto.SHA384 && pss:
			return awstypes.SigningAlgorithmSpecRsassaPssSha384, nil
		case hash == crypto.SHA512 && pss:
			return awstypes.SigningAlgorithmSpecRsassaPssSha512, nil
		case hash == crypto.SHA256:
			return awstypes.SigningAlgorithmSpecRsassaPkcs1V15Sha256, nil
		case hash == crypto.SHA384:
			return awstypes.SigningAlgorithmSpecRsassaPkcs1V15Sha384, nil
		case hash == crypto.SHA512:
			return awstypes.SigningAlgorithmSpecRsassaPkcs1V15Sha512, nil
		}
	case *ecdsa.PublicKey:
		switch hash {
		case crypto.SHA256:
			return awstypes.SigningAlgorithmSpecEcdsaSha256, nil
		case crypto.SHA384:
			return awstypes.SigningAlgorithmSpecEcdsaSha384, nil
		case crypto.SHA512:
			return awstypes.SigningAlgorithmSpecEcdsaSha512, nil
		}
	}
	return "", kmsbackend.UnsupportedHash(pub, hash)
}
