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
package cms

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-cst/pkg/types"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Envelope encrypts content for the RSA key of recipient and returns a
// DER encoded ContentInfo wrapping an EnvelopedData.
//
// A fresh content encryption key of keySize bytes (16, 24 or 32) is drawn
// from rnd and selects AES-128, AES-192 or AES-256 in CBC mode with PKCS#7
// padding. The content encryption key is transported to the recipient
// with RSAES-PKCS1-v1_5.
func Envelope(content []byte, recipient *x509.Certificate, keySize int, rnd io.Reader) ([]byte, error) {
	if recipient == nil {
		return nil, fmt.Errorf("%w: recipient certificate is required", types.ErrInvalidArgument)
	}
	pub, ok := recipient.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %w: key transport needs RSA, have %T",
			types.ErrInvalidArgument, ErrUnsupportedKey, recipient.PublicKey)
	}
	encOID, err := ContentEncryptionOID(keySize)
	if err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = rand.Reader
	}

	cek := make([]byte, keySize)
	defer clear(cek)
	if _, err := io.ReadFull(rnd, cek); err != nil {
		return nil, fmt.Errorf("%w: content encryption key: %w", types.ErrProvider, err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rnd, iv); err != nil {
		return nil, fmt.Errorf("%w: content encryption iv: %w", types.ErrProvider, err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrProvider, err)
	}
	ciphertext := pkcs7Pad(content, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, ciphertext)

	encryptedKey, err := rsa.EncryptPKCS1v15(rnd, pub, cek)
	if err != nil {
		return nil, fmt.Errorf("%w: key transport: %w", types.ErrProvider, err)
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { // ContentInfo
		b.AddASN1ObjectIdentifier(OIDEnvelopedData)
		b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { // EnvelopedData
				b.AddASN1Int64(0)
				b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { // KeyTransRecipientInfo
						b.AddASN1Int64(0)
						addIssuerAndSerial(b, recipient)
						addAlgorithm(b, OIDRSAEncryption, true)
						b.AddASN1OctetString(encryptedKey)
					})
				})
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { // EncryptedContentInfo
					b.AddASN1ObjectIdentifier(OIDData)
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1ObjectIdentifier(encOID)
						b.AddASN1OctetString(iv)
					})
					b.AddASN1(cbasn1.Tag(0).ContextSpecific(), func(b *cryptobyte.Builder) {
						b.AddBytes(ciphertext)
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

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}
