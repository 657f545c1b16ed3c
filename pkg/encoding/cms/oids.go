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
	"crypto"
	"encoding/asn1"
	"fmt"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

var (
	OIDData          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OIDSignedData    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OIDEnvelopedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 3}

	OIDAttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDAttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OIDAttributeSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}

	OIDRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

	OIDAES128CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 2}
	OIDAES192CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 22}
	OIDAES256CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
)

var digestOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA1:     {1, 3, 14, 3, 2, 26},
	crypto.SHA224:   {2, 16, 840, 1, 101, 3, 4, 2, 4},
	crypto.SHA256:   {2, 16, 840, 1, 101, 3, 4, 2, 1},
	crypto.SHA384:   {2, 16, 840, 1, 101, 3, 4, 2, 2},
	crypto.SHA512:   {2, 16, 840, 1, 101, 3, 4, 2, 3},
	crypto.SHA3_256: {2, 16, 840, 1, 101, 3, 4, 2, 8},
	crypto.SHA3_384: {2, 16, 840, 1, 101, 3, 4, 2, 9},
	crypto.SHA3_512: {2, 16, 840, 1, 101, 3, 4, 2, 10},
}

var ecdsaSignatureOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA1:     {1, 2, 840, 10045, 4, 1},
	crypto.SHA224:   {1, 2, 840, 10045, 4, 3, 1},
	crypto.SHA256:   {1, 2, 840, 10045, 4, 3, 2},
	crypto.SHA384:   {1, 2, 840, 10045, 4, 3, 3},
	crypto.SHA512:   {1, 2, 840, 10045, 4, 3, 4},
	crypto.SHA3_256: {2, 16, 840, 1, 101, 3, 4, 3, 10},
	crypto.SHA3_384: {2, 16, 840, 1, 101, 3, 4, 3, 11},
	crypto.SHA3_512: {2, 16, 840, 1, 101, 3, 4, 3, 12},
}

// DigestOID returns the algorithm identifier OID of h.
func DigestOID(h crypto.Hash) (asn1.ObjectIdentifier, error) {
	oid, ok := digestOIDs[h]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %v", types.ErrInvalidArgument, ErrUnsupportedHash, h)
	}
	return oid, nil
}

// ContentEncryptionOID returns the AES-CBC OID for a key of keySize bytes.
func ContentEncryptionOID(keySize int) (asn1.ObjectIdentifier, error) {
	switch keySize {
	case 16:
		return OIDAES128CBC, nil
	case 24:
		return OIDAES192CBC, nil
	case 32:
		return OIDAES256CBC, nil
	default:
		return nil, fmt.Errorf("%w: %w: %d bytes", types.ErrInvalidArgument, ErrInvalidKeySize, keySize)
	}
}
