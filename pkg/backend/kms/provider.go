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
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// Provider resolves KMS key identifiers to signers. The returned signer
// runs every operation in the service and is bound to ctx.
type Provider interface {
	// Name identifies the service in logs, e.g. "awskms".
	Name() string

	// Signer returns a signer for keyID. The public key is fetched once.
	Signer(ctx context.Context, keyID string) (crypto.Signer, error)
}

// ParsePublicKey parses a DER SubjectPublicKeyInfo returned by a service
// and rejects key types the signature formats cannot use.
func ParsePublicKey(der []byte) (crypto.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %w", types.ErrProvider, err)
	}
	switch pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: %w: %T", types.ErrUnsupportedOperation, ErrUnsupportedKeyType, pub)
	}
}

// IsPSS reports whether opts request RSASSA-PSS padding.
func IsPSS(opts crypto.SignerOpts) bool {
	_, ok := opts.(*rsa.PSSOptions)
	return ok
}

// UnsupportedHash returns the error providers use for a hash the service
// does not accept.
func UnsupportedHash(pub crypto.PublicKey, hash crypto.Hash) error {
	return fmt.Errorf("%w: %w: %s with %T", types.ErrUnsupportedOperation, ErrUnsupportedAlgorithm, hash, pub)
}
