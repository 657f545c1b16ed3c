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
package signing

import (
	"crypto"
	"crypto/x509"
	"io"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// SignerOpts selects the wire format of a signature and the limits it must
// fit in. It implements crypto.SignerOpts so it can travel through APIs
// that only know about the hash.
type SignerOpts struct {
	// Hash is the digest algorithm for the data and, for CMS, the signed
	// attributes.
	Hash crypto.Hash

	// Format is the output encoding.
	Format types.SignatureFormat

	// Capacity is the caller's output buffer size in bytes. Zero means
	// unbounded.
	Capacity int

	// Certificate identifies the signer in CMS output.
	Certificate *x509.Certificate

	// SigningTime is placed in CMS signed attributes; zero uses the
	// current time.
	SigningTime time.Time

	// Rand defaults to crypto/rand.Reader.
	Rand io.Reader
}

// HashFunc returns the hash function for this signing operation.
// Implements crypto.SignerOpts.
func (opts *SignerOpts) HashFunc() crypto.Hash {
	return opts.Hash
}

// NewSignerOpts returns options for format with hash and no capacity
// limit.
func NewSignerOpts(hash crypto.Hash, format types.SignatureFormat) *SignerOpts {
	return &SignerOpts{
		Hash:   hash,
		Format: format,
	}
}

// WithCapacity sets the output capacity and returns the opts for chaining.
func (opts *SignerOpts) WithCapacity(capacity int) *SignerOpts {
	opts.Capacity = capacity
	return opts
}

// WithCertificate sets the CMS signer certificate and returns the opts for
// chaining.
func (opts *SignerOpts) WithCertificate(cert *x509.Certificate) *SignerOpts {
	opts.Certificate = cert
	return opts
}

// FromRequest builds options from a signing request and the signer
// certificate.
func FromRequest(req *types.SigningRequest, cert *x509.Certificate) *SignerOpts {
	return &SignerOpts{
		Hash:        req.Hash.Hash(),
		Format:      req.Format,
		Capacity:    req.Capacity,
		Certificate: cert,
	}
}

// Digest hashes data with the configured hash function.
func (opts *SignerOpts) Digest(data []byte) ([]byte, error) {
	if opts.Hash == 0 || !opts.Hash.Available() {
		return nil, ErrInvalidHashFunction
	}
	hasher := opts.Hash.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, err
	}
	return hasher.Sum(nil), nil
}

// checkCapacity reports a SizeError when size exceeds a non-zero capacity.
func (opts *SignerOpts) checkCapacity(size int, kind error) error {
	if opts.Capacity > 0 && size > opts.Capacity {
		return &types.SizeError{Required: size, Capacity: opts.Capacity, Kind: kind}
	}
	return nil
}
