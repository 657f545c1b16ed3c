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
package pkcs11

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// Backend signs with keys held on a PKCS#11 token.
//
// Thread Safety:
// The backend holds no session between calls; each call opens and closes
// its own, so concurrent use is safe when the token allows concurrent
// sessions.
type Backend struct {
	opener Opener
	fs     afero.Fs
	loader *certstore.Loader
	logger *logging.Logger
}

var _ backend.Backend = (*Backend)(nil)

// Options configures a Backend.
type Options struct {
	// Opener opens token sessions. Defaults to NewCrypto11Opener(config).
	Opener Opener

	// Fs holds the files being signed and any certificate kept on disk.
	Fs afero.Fs

	Logger *logging.Logger
}

// NewBackend creates a new PKCS#11 backend instance. The token is not
// touched until the first request.
func NewBackend(config *Config, opts Options) (*Backend, error) {
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	if opts.Opener == nil {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		opts.Opener = NewCrypto11Opener(config)
		opts.Logger.Debug("token backend configured", "token", config)
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Backend{
		opener: opts.Opener,
		fs:     opts.Fs,
		loader: certstore.NewLoader(opts.Fs, opts.Logger),
		logger: opts.Logger,
	}, nil
}

// Type returns the backend mode.
func (b *Backend) Type() types.Mode {
	return types.ModeToken
}

// Supports reports whether format can be produced. Every format is
// available; the key type is checked when signing.
func (b *Backend) Supports(format types.SignatureFormat) bool {
	return format.Valid()
}

// Sign signs req.InFile with a token key.
//
// The key is named by req.KeyRef.TokenURI, or by req.CertRef when the
// certificate itself comes from the token. RSA keys must match the
// certificate; EC keys are not compared.
func (b *Backend) Sign(ctx context.Context, req *types.SigningRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := b.open()
	if err != nil {
		return nil, err
	}
	defer b.closeSession(session)

	cert, certRef, err := b.certificate(session, req.CertRef)
	if err != nil {
		return nil, err
	}

	keyURI := req.KeyRef.TokenURI
	var keyRef Reference
	switch {
	case keyURI != "":
		if keyRef, err = ParseReference(keyURI); err != nil {
			return nil, err
		}
	case certRef != nil:
		keyRef = *certRef
	default:
		return nil, fmt.Errorf("%w: %w: certificate %s is a file", types.ErrInvalidArgument, ErrKeyReferenceRequired, req.CertRef)
	}

	signer, err := session.LoadPrivateKey(keyRef)
	if err != nil {
		return nil, wrapLookup(err, "private key", keyRef)
	}

	sig, err := backend.SignFile(ctx, b.fs, signer, cert, req)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("signed with token key",
		"file", req.InFile, "key", keyRef.String(), "format", req.Format, "bytes", len(sig))
	return sig, nil
}

// LoadCertificate returns the certificate named by ref, from the token or
// from disk.
func (b *Backend) LoadCertificate(ctx context.Context, ref string) (*x509.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, err := b.open()
	if err != nil {
		return nil, err
	}
	defer b.closeSession(session)

	cert, _, err := b.certificate(session, ref)
	return cert, err
}

// certificate resolves ref to a certificate. A reference that is not a URI
// and names an existing file is loaded from disk; the returned Reference
// is nil in that case.
func (b *Backend) certificate(session Session, ref string) (*x509.Certificate, *Reference, error) {
	if ref == "" {
		return nil, nil, fmt.Errorf("%w: certificate reference is required", types.ErrInvalidArgument)
	}
	if !IsURI(ref) {
		if ok, _ := afero.Exists(b.fs, ref); ok {
			cert, err := b.loader.LoadCertificate(ref)
			return cert, nil, err
		}
	}

	tokenRef, err := ParseReference(ref)
	if err != nil {
		return nil, nil, err
	}
	cert, err := session.LoadCertificate(tokenRef)
	if err != nil {
		return nil, nil, wrapLookup(err, "certificate", tokenRef)
	}
	return cert, &tokenRef, nil
}

func (b *Backend) open() (Session, error) {
	session, err := b.opener.Open()
	if err != nil {
		if errors.Is(err, types.ErrUnsupportedOperation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrSessionFailed, err)
	}
	return session, nil
}

func (b *Backend) closeSession(session Session) {
	if err := session.Close(); err != nil {
		b.logger.Warn("failed to close token session", "error", err)
	}
}

// wrapLookup adds the object to a lookup failure. Sessions report a
// missing object as ErrObjectNotFound; anything else is a provider error.
func wrapLookup(err error, what string, ref Reference) error {
	if errors.Is(err, ErrObjectNotFound) {
		return fmt.Errorf("%w: %s %s: %w", types.ErrNotFound, what, ref, err)
	}
	return fmt.Errorf("%w: %s %s: %w", types.ErrProvider, what, ref, err)
}
