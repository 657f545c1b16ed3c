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

// Package pkcs8 implements the direct-local signing mode: the private key
// is read from disk next to its certificate and used in process.
package pkcs8

import (
	"context"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// PKCS8Backend signs with PEM or DER private keys stored on a filesystem.
// Keys may be plain or encrypted PKCS#8, PKCS#1 or SEC1.
//
// Thread-safe: Yes. Keys are loaded per call and never cached.
type PKCS8Backend struct {
	fs         afero.Fs
	loader     *certstore.Loader
	passphrase certstore.PassphraseFunc
	logger     *logging.Logger
	closed     bool
	mu         sync.RWMutex
}

var _ backend.Backend = (*PKCS8Backend)(nil)

// Type returns the backend mode.
func (b *PKCS8Backend) Type() types.Mode {
	return types.ModeLocal
}

// Supports reports whether format can be produced. Every format is
// available; the key type is checked when signing.
func (b *PKCS8Backend) Supports(format types.SignatureFormat) bool {
	return format.Valid()
}

// Sign signs req.InFile with the key belonging to req.CertRef.
//
// The key path is req.KeyRef.Path when set, otherwise it is derived from
// the certificate path (see certstore.KeyPathCandidates). RSA keys must
// match the certificate public key.
func (b *PKCS8Backend) Sign(ctx context.Context, req *types.SigningRequest) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrStorageClosed
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.CertRef == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrCertificateRequired)
	}

	keyPath := req.KeyRef.Path
	if keyPath == "" {
		var err error
		if keyPath, err = b.loader.KeyPathForCert(req.CertRef); err != nil {
			return nil, err
		}
	}

	cert, err := b.loader.LoadCertificate(req.CertRef)
	if err != nil {
		return nil, err
	}
	key, err := b.loader.LoadPrivateKey(keyPath, b.passphrase)
	if err != nil {
		return nil, err
	}

	sig, err := backend.SignFile(ctx, b.fs, key, cert, req)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("signed with local key",
		"file", req.InFile, "key", keyPath, "format", req.Format, "bytes", len(sig))
	return sig, nil
}

// LoadCertificate parses the certificate file at ref.
func (b *PKCS8Backend) LoadCertificate(ctx context.Context, ref string) (*x509.Certificate, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.loader.LoadCertificate(ref)
}

// Close marks the backend closed.
func (b *PKCS8Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return nil
}
