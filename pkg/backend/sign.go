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
package backend

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/signing"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// SignFile reads req.InFile from fs and signs it with signer in req.Format.
//
// For RSA certificates the certificate public key must match the signing
// key. The whole file is read into memory; firmware images and CSF blobs
// are small.
func SignFile(ctx context.Context, fs afero.Fs, signer crypto.Signer, cert *x509.Certificate, req *types.SigningRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cert != nil {
		if err := certstore.MatchesPublicKey(cert, signer.Public()); err != nil {
			return nil, err
		}
	}
	if !signing.SupportsFormat(signer.Public(), req.Format) {
		return nil, fmt.Errorf("%w: %w: %s with %T key",
			types.ErrUnsupportedOperation, ErrUnsupportedFormat, req.Format, signer.Public())
	}

	data, err := certstore.ReadFile(fs, req.InFile)
	if err != nil {
		return nil, err
	}

	s, err := signing.NewSigner(signer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}
	return s.SignData(data, signing.FromRequest(req, cert))
}

// CheckFormat returns ErrUnsupportedFormat wrapped in
// types.ErrUnsupportedOperation when supported is false.
func CheckFormat(supported bool, format types.SignatureFormat, mode types.Mode) error {
	if !supported {
		return fmt.Errorf("%w: %w: %s in %s mode",
			types.ErrUnsupportedOperation, ErrUnsupportedFormat, format, mode)
	}
	return nil
}
