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

// Package signing turns a digest and a crypto.Signer into one of the four
// signature encodings consumed by secure-boot images: raw PKCS#1 v1.5,
// raw RSA-PSS, raw ECDSA r|s and detached CMS.
//
// The wrapped signer may be an in-memory key, a PKCS#11 token object or a
// cloud KMS key; only hashing and re-encoding happen locally.
package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"

	"github.com/jeremyhahn/go-cst/pkg/encoding/cms"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Signer wraps a crypto.Signer and encodes its signatures in the
// requested wire format.
type Signer struct {
	signer crypto.Signer
}

// NewSigner creates a new format-aware signer wrapping the provided
// crypto.Signer.
func NewSigner(signer crypto.Signer) (*Signer, error) {
	if signer == nil {
		return nil, ErrSignerRequired
	}
	return &Signer{
		signer: signer,
	}, nil
}

// Public returns the public key corresponding to the wrapped signer.
// Implements crypto.Signer.
func (s *Signer) Public() crypto.PublicKey {
	return s.signer.Public()
}

// Sign signs digest. With *SignerOpts the result is encoded in
// opts.Format, otherwise the call is passed through unchanged.
// Implements crypto.Signer.
func (s *Signer) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if signerOpts, ok := opts.(*SignerOpts); ok {
		if rand != nil && signerOpts.Rand == nil {
			o := *signerOpts
			o.Rand = rand
			signerOpts = &o
		}
		return s.SignDigest(digest, signerOpts)
	}
	return s.signer.Sign(rand, digest, opts)
}

// SignData hashes data with opts.Hash and signs the digest.
func (s *Signer) SignData(data []byte, opts *SignerOpts) ([]byte, error) {
	digest, err := opts.Digest(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}
	return s.SignDigest(digest, opts)
}

// SignDigest signs a precomputed digest and encodes it in opts.Format.
//
// Size limits follow the format: ECDSA output is checked against
// opts.Capacity before the key is used and fails with
// types.ErrBufferTooSmall; RSA and CMS output is checked after it is
// produced and fails with types.ErrSignatureTooLarge. In both cases the
// returned *types.SizeError carries the true size and no signature bytes
// are returned.
func (s *Signer) SignDigest(digest []byte, opts *SignerOpts) ([]byte, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: signer options are required", types.ErrInvalidArgument)
	}
	if opts.Hash == 0 || !opts.Hash.Available() {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrInvalidHashFunction)
	}
	if len(digest) != opts.Hash.Size() {
		return nil, fmt.Errorf("%w: digest is %d bytes, %v needs %d",
			types.ErrInvalidArgument, len(digest), opts.Hash, opts.Hash.Size())
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Reader
	}

	switch opts.Format {
	case types.FormatRawPKCS1:
		return s.signRSA(rnd, digest, opts.Hash, opts)
	case types.FormatRSAPSS:
		pss := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: opts.Hash}
		return s.signRSA(rnd, digest, pss, opts)
	case types.FormatECDSARaw:
		return s.signECDSARaw(rnd, digest, opts)
	case types.FormatCMSDetached:
		return s.signCMS(rnd, digest, opts)
	default:
		return nil, fmt.Errorf("%w: unknown signature format %q", types.ErrInvalidArgument, opts.Format)
	}
}

// signRSA produces a PKCS#1 v1.5 or PSS signature, always exactly the
// modulus size.
func (s *Signer) signRSA(rnd io.Reader, digest []byte, signOpts crypto.SignerOpts, opts *SignerOpts) ([]byte, error) {
	pub, ok := s.signer.Public().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s needs an RSA key, have %T",
			types.ErrInvalidArgument, ErrUnsupportedAlgorithm, opts.Format, s.signer.Public())
	}
	sig, err := s.signer.Sign(rnd, digest, signOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrSigningFailed, err)
	}
	// Providers may strip leading zeros
	if size := pub.Size(); len(sig) < size {
		padded := make([]byte, size)
		copy(padded[size-len(sig):], sig)
		sig = padded
	}
	if err := opts.checkCapacity(len(sig), types.ErrSignatureTooLarge); err != nil {
		return nil, err
	}
	return sig, nil
}

// signECDSARaw produces the fixed width r|s encoding, each half left
// padded with zeros to the curve byte size.
func (s *Signer) signECDSARaw(rnd io.Reader, digest []byte, opts *SignerOpts) ([]byte, error) {
	pub, ok := s.signer.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s needs an EC key, have %T",
			types.ErrInvalidArgument, ErrUnsupportedAlgorithm, opts.Format, s.signer.Public())
	}
	keySize := (pub.Curve.Params().BitSize + 7) / 8
	if err := opts.checkCapacity(2*keySize, types.ErrBufferTooSmall); err != nil {
		return nil, err
	}

	der, err := s.signer.Sign(rnd, digest, opts.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrSigningFailed, err)
	}
	return ECDSARawFromDER(der, keySize)
}

// ECDSARawFromDER reshapes an ASN.1 ECDSA-Sig-Value into r|s with each
// half keySize bytes.
func ECDSARawFromDER(der []byte, keySize int) ([]byte, error) {
	var (
		r, s  big.Int
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) || !input.Empty() ||
		!inner.ReadASN1Integer(&r) || !inner.ReadASN1Integer(&s) || !inner.Empty() {
		return nil, fmt.Errorf("%w: %w: invalid ECDSA DER", types.ErrProvider, ErrMalformedSignature)
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.BitLen() > keySize*8 || s.BitLen() > keySize*8 {
		return nil, fmt.Errorf("%w: %w: ECDSA component out of range", types.ErrProvider, ErrMalformedSignature)
	}
	out := make([]byte, 2*keySize)
	r.FillBytes(out[:keySize])
	s.FillBytes(out[keySize:])
	return out, nil
}

// ECDSADERFromRaw is the inverse of ECDSARawFromDER, for providers that
// return r|s.
func ECDSADERFromRaw(raw []byte) ([]byte, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: %w: raw ECDSA signature has odd length %d",
			types.ErrProvider, ErrMalformedSignature, len(raw))
	}
	half := len(raw) / 2
	r := new(big.Int).SetBytes(raw[:half])
	s := new(big.Int).SetBytes(raw[half:])

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}

// signCMS builds the complete detached SignedData, then compares its true
// length with the capacity.
func (s *Signer) signCMS(rnd io.Reader, digest []byte, opts *SignerOpts) ([]byte, error) {
	if opts.Certificate == nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrCertificateRequired)
	}
	der, err := cms.SignDetached(s.signer, opts.Certificate, digest, cms.SignOptions{
		Hash:        opts.Hash,
		SigningTime: opts.SigningTime,
		Rand:        rnd,
	})
	if err != nil {
		return nil, err
	}
	if err := opts.checkCapacity(len(der), types.ErrSignatureTooLarge); err != nil {
		return nil, err
	}
	return der, nil
}

// SupportsFormat reports whether the wrapped key type can produce format.
func (s *Signer) SupportsFormat(format types.SignatureFormat) bool {
	return SupportsFormat(s.signer.Public(), format)
}

// SupportsFormat reports whether a key of pub's type can produce format.
func SupportsFormat(pub crypto.PublicKey, format types.SignatureFormat) bool {
	switch pub.(type) {
	case *rsa.PublicKey:
		return format == types.FormatRawPKCS1 || format == types.FormatRSAPSS || format == types.FormatCMSDetached
	case *ecdsa.PublicKey:
		return format == types.FormatECDSARaw || format == types.FormatCMSDetached
	default:
		return false
	}
}
