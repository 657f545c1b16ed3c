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
package kms

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// Config contains configuration for a KMS signing backend.
type Config struct {
	// Provider is the cloud service holding the keys.
	Provider Provider

	// KeyID is used when a request carries no key reference.
	KeyID string

	// Fs holds the files being signed and the signing certificates.
	Fs afero.Fs

	Logger *logging.Logger
}

// Backend signs with keys that never leave a cloud KMS. Certificates are
// read from local files; the service only performs the private key
// operation.
type Backend struct {
	provider Provider
	keyID    string
	fs       afero.Fs
	loader   *certstore.Loader
	logger   *logging.Logger
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend creates a KMS backend.
func NewBackend(config *Config) (*Backend, error) {
	if config == nil || config.Provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Backend{
		provider: config.Provider,
		keyID:    config.KeyID,
		fs:       fs,
		loader:   certstore.NewLoader(fs, logger),
		logger:   logger.With("provider", config.Provider.Name()),
	}, nil
}

// Type returns the backend mode.
func (b *Backend) Type() types.Mode {
	return types.ModeKMS
}

// Supports reports whether format can be produced. The key type is
// checked when signing.
func (b *Backend) Supports(format types.SignatureFormat) bool {
	return format.Valid()
}

// Sign signs req.InFile with the KMS key named by req.KeyRef.TokenURI, or
// the configured default key.
func (b *Backend) Sign(ctx context.Context, req *types.SigningRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.CertRef == "" {
		return nil, fmt.Errorf("%w: certificate reference is required", types.ErrInvalidArgument)
	}

	keyID := req.KeyRef.TokenURI
	if keyID == "" {
		keyID = b.keyID
	}
	if keyID == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrKeyReferenceRequired)
	}

	cert, err := b.loader.LoadCertificate(req.CertRef)
	if err != nil {
		return nil, err
	}
	signer, err := b.provider.Signer(ctx, keyID)
	if err != nil {
		return nil, err
	}

	sig, err := backend.SignFile(ctx, b.fs, signer, cert, req)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("signed with KMS key", "key", keyID, "file", req.InFile, "format", req.Format, "bytes", len(sig))
	return sig, nil
}

// LoadCertificate reads the certificate at ref from disk.
func (b *Backend) LoadCertificate(ctx context.Context, ref string) (*x509.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.loader.LoadCertificate(ref)
}

// Close releases the provider client when it holds one.
func (b *Backend) Close() error {
	if closer, ok := b.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
