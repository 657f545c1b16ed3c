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

// Package cms builds the two CMS (RFC 5652) structures used for firmware
// signing: detached SignedData for CSF and image signatures, and
// EnvelopedData for wrapping data encryption keys.
//
// Only the profile produced by the NXP code-signing tool is supported:
// binary DER, a single signer identified by issuer and serial number, no
// embedded certificates and no S/MIME capabilities.
package cms

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/types"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// SignOptions controls SignDetached.
type SignOptions struct {
	// Hash is the digest used for the content and signed attributes
	Hash crypto.Hash

	// SigningTime defaults to the current time
	SigningTime time.Time

	// Rand defaults to crypto/rand.Reader
	Rand io.Reader
}

// SignDetached returns a DER encoded ContentInfo wrapping a detached
// SignedData. contentDigest is the digest of the signed data under
// opts.Hash; the content itself is never embedded.
//
// The signature covers the DER SET of signed attributes (contentType,
// signingTime and messageDigest). RSA signers produce PKCS#1 v1.5
// signatures, ECDSA signers produce DER (r, s) signatures.
func SignDetached(signer crypto.Signer, cert *x509.Certificate, contentDigest []byte, opts SignOptions) ([]byte, error) {
	if signer == nil || cert == nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrMissingSigner)
	}
	digestOID, err := DigestOID(opts.Hash)
	if err != nil {
		return nil, err
	}
	if len(contentDigest) != opts.Hash.Size() {
		return nil, fmt.Errorf("%w: digest is %d bytes, %v needs %d",
			types.ErrInvalidArgument, len(contentDigest), opts.Hash, opts.Hash.Size())
	}
	sigAlg, err := signatureAlgorithm(signer.Public(), opts.Hash)
	if err != nil {
		return nil, err
	}
	if opts.SigningTime.IsZero() {
		opts.SigningTime = time.Now()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}

	attrs, err := signedAttributes(contentDigest, opts.SigningTime)
	if err != nil {
		return nil, err
	}

	// The signature is computed over the attributes re-tagged as a SET
	var set cryptobyte.Builder
	set.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
		b.AddBytes(attrs)
	})
	toSign, err := set.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrEncoding, err)
	}
	h := opts.Hash.New()
	h.Write(toSign)
	signature, err := signer.Sign(opts.Rand, h.Sum(nil), opts.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: cms signature: %w", types.ErrProvider, err)
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { // ContentInfo
		b.AddASN1ObjectIdentifier(OIDSignedData)
		b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { // SignedData
				b.AddASN1Int64(1)
				b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
					addAlgorithm(b, digestOID, false)
				})
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { // EncapsulatedContentInfo
					b.AddASN1ObjectIdentifier(OIDData)
				})
				b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { // SignerInfo
						b.AddASN1Int64(1)
						addIssuerAndSerial(b, cert)
						addAlgorithm(b, digestOID, false)
						b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
							b.AddBytes(attrs)
						})
						b.AddBytes(sigAlg)
						b.AddASN1OctetString(signature)
					})
				})
			})
		})
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrEncoding, err)
	}
	return der, nil
}

// signedAttributes returns the DER sorted concatenation of the signed
// attributes, without the enclosing SET header.
func signedAttributes(contentDigest []byte, signingTime time.Time) ([]byte, error) {
	signingTime = signingTime.UTC()
	encoded := make([][]byte, 0, 3)
	for _, attr := range []struct {
		oid   asn1.ObjectIdentifier
		value func(b *cryptobyte.Builder)
	}{
		{OIDAttributeContentType, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(OIDData)
		}},
		{OIDAttributeSigningTime, func(b *cryptobyte.Builder) {
			// UTCTime covers 1950 through 2049
			if y := signingTime.Year(); y >= 1950 && y < 2050 {
				b.AddASN1UTCTime(signingTime)
			} else {
				b.AddASN1GeneralizedTime(signingTime)
			}
		}},
		{OIDAttributeMessageDigest, func(b *cryptobyte.Builder) {
			b.AddASN1OctetString(contentDigest)
		}},
	} {
		var b cryptobyte.Builder
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(attr.oid)
			b.AddASN1(cbasn1.SET, attr.value)
		})
		der, err := b.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrEncoding, err)
		}
		encoded = append(encoded, der)
	}

	// DER orders SET OF members by their encodings
	sort.Slice(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	})
	return bytes.Join(encoded, nil), nil
}

func signatureAlgorithm(pub crypto.PublicKey, h crypto.Hash) ([]byte, error) {
	var b cryptobyte.Builder
	switch pub.(type) {
	case *rsa.PublicKey:
		addAlgorithm(&b, OIDRSAEncryption, true)
	case *ecdsa.PublicKey:
		oid, ok := ecdsaSignatureOIDs[h]
		if !ok {
			return nil, fmt.Errorf("%w: %w: ECDSA with %v", types.ErrInvalidArgument, ErrUnsupportedHash, h)
		}
		addAlgorithm(&b, oid, false)
	default:
		return nil, fmt.Errorf("%w: %w: %T", types.ErrInvalidArgument, ErrUnsupportedKey, pub)
	}
	return b.Bytes()
}

func addAlgorithm(b *cryptobyte.Builder, oid asn1.ObjectIdentifier, nullParams bool) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oid)
		if nullParams {
			b.AddASN1NULL()
		}
	})
}

func addIssuerAndSerial(b *cryptobyte.Builder, cert *x509.Certificate) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(cert.RawIssuer)
		b.AddASN1BigInt(cert.SerialNumber)
	})
}
