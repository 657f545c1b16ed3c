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
	"context"
	"crypto"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	kmsbackend "github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Provider resolves Cloud KMS key versions to signers.
type Provider struct {
	config *Config
	client KMSClient
}

var _ kmsbackend.Provider = (*Provider)(nil)

// NewProvider creates a Cloud KMS provider and its API client.
func NewProvider(ctx context.Context, config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if len(config.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(config.CredentialsJSON))
	} else if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	client, err := kms.NewKeyManagementClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create KMS client: %w", types.ErrProvider, err)
	}
	return &Provider{config: config, client: &realKMSClient{KeyManagementClient: client}}, nil
}

// NewProviderWithClient creates a provider with a custom KMS client.
// This is primarily used for testing with mock clients.
func NewProviderWithClient(config *Config, client KMSClient) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Provider{config: config, client: client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "gcpkms"
}

// Close releases the API client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Signer returns a crypto.Signer for keyID, a short key name in the
// configured key ring or a full key version resource name.
func (p *Provider) Signer(ctx context.Context, keyID string) (crypto.Signer, error) {
	name := p.config.VersionName(keyID)

	resp, err := p.client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("%w: get public key %s: %w", types.ErrProvider, name, err)
	}
	if resp.PemCrc32C != nil && resp.PemCrc32C.Value != crc32c([]byte(resp.Pem)) {
		return nil, fmt.Errorf("%w: %w: public key %s", types.ErrProvider, ErrChecksumMismatch, name)
	}

	block, _ := pem.Decode([]byte(resp.Pem))
	if block == nil {
		return nil, fmt.Errorf("%w: public key %s is not PEM", types.ErrProvider, name)
	}
	pub, err := kmsbackend.ParsePublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	return &kmsSigner{
		ctx:       ctx,
		client:    p.client,
		name:      name,
		publicKey: pub,
		pss:       strings.Contains(resp.Algorithm.String(), "_PSS_"),
	}, nil
}

// kmsSigner implements crypto.Signer for GCP KMS keys.
type kmsSigner struct {
	ctx       context.Context
	client    KMSClient
	name      string
	publicKey crypto.PublicKey

	// pss is fixed by the key version algorithm
	pss bool
}

// Public returns the public key of the key version.
func (s *kmsSigner) Public() crypto.PublicKey {
	return s.publicKey
}

// Sign signs digest with the key version. The padding of RSA keys is part
// of the key algorithm, so opts must agree with it.
func (s *kmsSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if _, ok := s.publicKey.(*rsa.PublicKey); ok && kmsbackend.IsPSS(opts) != s.pss {
		return nil, fmt.Errorf("%w: %w: %s", types.ErrUnsupportedOperation, ErrPaddingMismatch, s.name)
	}

	var msg *kmspb.Digest
	switch opts.HashFunc() {
	case crypto.SHA256:
		msg = &kmspb.Digest{Digest: &kmspb.Digest_Sha256{Sha256: digest}}
	case crypto.SHA384:
		msg = &kmspb.Digest{Digest: &kmspb.Digest_Sha384{Sha384: digest}}
	case crypto.SHA512:
		msg = &kmspb.Digest{Digest: &kmspb.Digest_Sha512{Sha512: digest}}
	default:
		return nil, kmsbackend.UnsupportedHash(s.publicKey, opts.HashFunc())
	}

	resp, err := s.client.AsymmetricSign(s.ctx, &kmspb.AsymmetricSignRequest{
		Name:         s.name,
		Digest:       msg,
		DigestCrc32C: wrapperspb.Int64(crc32c(digest)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sign with %s: %w", types.ErrProvider, s.name, err)
	}
	if !resp.VerifiedDigestCrc32C {
		return nil, fmt.Errorf("%w: %w: digest not verified by service", types.ErrProvider, ErrChecksumMismatch)
	}
	if resp.SignatureCrc32C != nil && resp.SignatureCrc32C.Value != crc32c(resp.Signature) {
		return nil, fmt.Errorf("%w: %w: signature", types.ErrProvider, ErrChecksumMismatch)
	}
	return resp.Signature, nil
}

// crc32c computes the Castagnoli checksum GCP KMS uses for data integrity.
func crc32c(data []byte) int64 {
	return int64(crc32.Checksum(data, crc32cTable))
}
