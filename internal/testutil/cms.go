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
package testutil

import (
	"bytes"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

type issuerAndSerial struct {
	Issuer asn1.RawValue
	Serial *big.Int
}

type encapContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

type signedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo encapContentInfo
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	SignerInfos      []signerInfo  `asn1:"set"`
}

type signerInfo struct {
	Version            int
	SID                issuerAndSerial
	DigestAlgorithm    pkix.AlgorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
}

type envelopedData struct {
	Version              int
	RecipientInfos       []keyTransRecipientInfo `asn1:"set"`
	EncryptedContentInfo encryptedContentInfo
}

type keyTransRecipientInfo struct {
	Version                int
	RID                    issuerAndSerial
	KeyEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedKey           []byte
}

type encryptedContentInfo struct {
	ContentType                asn1.ObjectIdentifier
	ContentEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedContent           []byte `asn1:"tag:0"`
}

// DetachedSignature is the parsed form of a single signer CMS SignedData.
type DetachedSignature struct {
	Version          int
	DigestAlgorithm  asn1.ObjectIdentifier
	SignatureAlg     asn1.ObjectIdentifier
	IssuerRaw        []byte
	Serial           *big.Int
	HasCertificates  bool
	HasContent       bool
	SignedAttributes []byte
	Signature        []byte
}

// ParseDetachedSignature decodes a DER ContentInfo holding SignedData.
func ParseDetachedSignature(der []byte) (*DetachedSignature, error) {
	var ci contentInfo
	rest, err := asn1.Unmarshal(der, &ci)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.New("trailing data after ContentInfo")
	}
	var sd signedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, err
	}
	if len(sd.SignerInfos) != 1 || len(sd.DigestAlgorithms) != 1 {
		return nil, fmt.Errorf("expected one signer, have %d", len(sd.SignerInfos))
	}
	si := sd.SignerInfos[0]

	// Signed attributes are signed as a SET, not as the [0] they are stored in
	attrs := append([]byte{0x31}, si.SignedAttrs.FullBytes[1:]...)

	return &DetachedSignature{
		Version:          sd.Version,
		DigestAlgorithm:  si.DigestAlgorithm.Algorithm,
		SignatureAlg:     si.SignatureAlgorithm.Algorithm,
		IssuerRaw:        si.SID.Issuer.FullBytes,
		Serial:           si.SID.Serial,
		HasCertificates:  len(sd.Certificates.FullBytes) > 0,
		HasContent:       len(sd.EncapContentInfo.EContent.FullBytes) > 0,
		SignedAttributes: attrs,
		Signature:        si.Signature,
	}, nil
}

// Verify checks the signature over the signed attributes and that the
// messageDigest attribute equals h(content).
func (s *DetachedSignature) Verify(cert *x509.Certificate, h crypto.Hash, content []byte) error {
	digest := h.New()
	digest.Write(content)
	if !bytes.Contains(s.SignedAttributes, digest.Sum(nil)) {
		return errors.New("messageDigest attribute does not match content")
	}
	if !bytes.Equal(s.IssuerRaw, cert.RawIssuer) || s.Serial.Cmp(cert.SerialNumber) != 0 {
		return errors.New("signer identifier does not match certificate")
	}

	attrDigest := h.New()
	attrDigest.Write(s.SignedAttributes)
	sum := attrDigest.Sum(nil)
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(pub, h, sum, s.Signature)
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, sum, s.Signature) {
			return errors.New("ecdsa signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("unsupported key %T", pub)
	}
}

// DecryptEnvelope opens a DER ContentInfo holding EnvelopedData with the
// recipient's RSA key. It returns the content and the key size in bytes
// of the content encryption algorithm.
func DecryptEnvelope(der []byte, key *rsa.PrivateKey) ([]byte, int, error) {
	var ci contentInfo
	if _, err := asn1.Unmarshal(der, &ci); err != nil {
		return nil, 0, err
	}
	var ed envelopedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &ed); err != nil {
		return nil, 0, err
	}
	if len(ed.RecipientInfos) != 1 {
		return nil, 0, fmt.Errorf("expected one recipient, have %d", len(ed.RecipientInfos))
	}

	cek, err := rsa.DecryptPKCS1v15(nil, key, ed.RecipientInfos[0].EncryptedKey)
	if err != nil {
		return nil, 0, err
	}

	var iv []byte
	if _, err := asn1.Unmarshal(ed.EncryptedContentInfo.ContentEncryptionAlgorithm.Parameters.FullBytes, &iv); err != nil {
		return nil, 0, err
	}
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, 0, err
	}
	ct := ed.EncryptedContentInfo.EncryptedContent
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, 0, errors.New("ciphertext is not block aligned")
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	pad := int(pt[len(pt)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, 0, errors.New("bad padding")
	}
	return pt[:len(pt)-pad], len(cek), nil
}
