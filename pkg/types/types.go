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

// Package types defines the request, result and enumeration types shared by
// the signing backends, the DEK manager and the image encryptor.
package types

import (
	"crypto"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"strings"

	// Registers SHA-3 digests with crypto.Hash
	_ "golang.org/x/crypto/sha3"
)

// HashAlgorithm identifies the message digest used for a signature.
type HashAlgorithm string

const (
	SHA1     HashAlgorithm = "sha1"
	SHA224   HashAlgorithm = "sha224"
	SHA256   HashAlgorithm = "sha256"
	SHA384   HashAlgorithm = "sha384"
	SHA512   HashAlgorithm = "sha512"
	SHA3_256 HashAlgorithm = "sha3-256"
	SHA3_384 HashAlgorithm = "sha3-384"
	SHA3_512 HashAlgorithm = "sha3-512"
)

var hashAlgorithms = map[HashAlgorithm]crypto.Hash{
	SHA1:     crypto.SHA1,
	SHA224:   crypto.SHA224,
	SHA256:   crypto.SHA256,
	SHA384:   crypto.SHA384,
	SHA512:   crypto.SHA512,
	SHA3_256: crypto.SHA3_256,
	SHA3_384: crypto.SHA3_384,
	SHA3_512: crypto.SHA3_512,
}

// Hash returns the crypto.Hash for the algorithm, or 0 if unknown.
func (h HashAlgorithm) Hash() crypto.Hash {
	return hashAlgorithms[h]
}

// Valid reports whether the algorithm is known and linked into the binary.
func (h HashAlgorithm) Valid() bool {
	hash, ok := hashAlgorithms[h]
	return ok && hash.Available()
}

func (h HashAlgorithm) String() string {
	return string(h)
}

// ParseHashAlgorithm parses a digest name such as "sha256" or "SHA-256".
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "sha-1":
		name = "sha1"
	case "sha-224":
		name = "sha224"
	case "sha-256":
		name = "sha256"
	case "sha-384":
		name = "sha384"
	case "sha-512":
		name = "sha512"
	case "sha3_256":
		name = "sha3-256"
	case "sha3_384":
		name = "sha3-384"
	case "sha3_512":
		name = "sha3-512"
	}
	h := HashAlgorithm(name)
	if _, ok := hashAlgorithms[h]; !ok {
		return "", fmt.Errorf("%w: unknown hash algorithm %q", ErrInvalidArgument, s)
	}
	return h, nil
}

// SignatureFormat selects the output encoding of a signature.
type SignatureFormat string

const (
	// FormatRawPKCS1 is an RSA PKCS#1 v1.5 signature, modulus sized.
	FormatRawPKCS1 SignatureFormat = "pkcs1"

	// FormatRSAPSS is an RSA-PSS signature with salt length equal to the
	// digest length, modulus sized.
	FormatRSAPSS SignatureFormat = "rsa-pss"

	// FormatECDSARaw is the fixed width r|s concatenation.
	FormatECDSARaw SignatureFormat = "ecdsa"

	// FormatCMSDetached is a DER encoded detached CMS SignedData.
	FormatCMSDetached SignatureFormat = "cms"
)

// SignatureFormats lists every supported format.
var SignatureFormats = []SignatureFormat{
	FormatRawPKCS1,
	FormatRSAPSS,
	FormatECDSARaw,
	FormatCMSDetached,
}

func (f SignatureFormat) String() string {
	return string(f)
}

// Valid reports whether the format is one of SignatureFormats.
func (f SignatureFormat) Valid() bool {
	for _, format := range SignatureFormats {
		if f == format {
			return true
		}
	}
	return false
}

// ParseSignatureFormat parses a format name. Both the short names and the
// CSF style names (RAW_PKCS1, RSA_PSS, ECDSA_RAW, CMS_DETACHED) are accepted.
func ParseSignatureFormat(s string) (SignatureFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pkcs1", "raw_pkcs1", "raw-pkcs1":
		return FormatRawPKCS1, nil
	case "rsa-pss", "rsa_pss", "pss":
		return FormatRSAPSS, nil
	case "ecdsa", "ecdsa_raw", "ecdsa-raw":
		return FormatECDSARaw, nil
	case "cms", "cms_detached", "cms-detached":
		return FormatCMSDetached, nil
	default:
		return "", fmt.Errorf("%w: unknown signature format %q", ErrInvalidArgument, s)
	}
}

// Mode selects the signing backend.
type Mode string

const (
	ModeLocal  Mode = "direct-local"
	ModeToken  Mode = "direct-token"
	ModeKMS    Mode = "direct-kms"
	ModeRemote Mode = "delegate-remote"
	ModeExport Mode = "export"
)

func (m Mode) String() string {
	return string(m)
}

// ParseMode parses a backend mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLocal, "local":
		return ModeLocal, nil
	case ModeToken, "token", "pkcs11":
		return ModeToken, nil
	case ModeKMS, "kms":
		return ModeKMS, nil
	case ModeRemote, "remote", "hsm":
		return ModeRemote, nil
	case ModeExport:
		return ModeExport, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, s)
	}
}

// Target is the secure boot generation an image is prepared for.
type Target string

const (
	TargetHAB  Target = "hab"
	TargetAHAB Target = "ahab"
)

// ParseTarget parses a target name.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case TargetHAB:
		return TargetHAB, nil
	case TargetAHAB:
		return TargetAHAB, nil
	default:
		return "", fmt.Errorf("%w: unknown target %q", ErrInvalidArgument, s)
	}
}

// PayloadKind tells the remote backend what is being signed.
type PayloadKind string

const (
	PayloadImage PayloadKind = "image"
	PayloadCSF   PayloadKind = "csf"
)

// KeyReference locates a private key. An empty reference lets the backend
// derive the key from the certificate, or sign without a local key.
type KeyReference struct {
	// Path is a filesystem path to a PEM or DER private key.
	Path string

	// TokenURI is a PKCS#11 URI or object label resolved by a token.
	TokenURI string
}

// IsEmpty reports whether neither a path nor a token URI is set.
func (r KeyReference) IsEmpty() bool {
	return r.Path == "" && r.TokenURI == ""
}

// SigningRequest describes one signature operation.
type SigningRequest struct {
	// InFile is the file whose contents are signed.
	InFile string

	// CertRef is the signing certificate path or token reference.
	CertRef string

	// KeyRef optionally overrides the key derived from CertRef.
	KeyRef KeyReference

	Hash    HashAlgorithm
	Format  SignatureFormat
	Mode    Mode
	Payload PayloadKind

	// Capacity is the size of the caller's output buffer in bytes.
	// Zero means unbounded.
	Capacity int
}

// Validate checks the request fields that every backend depends on.
func (r *SigningRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil signing request", ErrInvalidArgument)
	}
	if r.InFile == "" {
		return fmt.Errorf("%w: input file is required", ErrInvalidArgument)
	}
	if !r.Format.Valid() {
		return fmt.Errorf("%w: unknown signature format %q", ErrInvalidArgument, r.Format)
	}
	if !r.Hash.Valid() {
		return fmt.Errorf("%w: unknown hash algorithm %q", ErrInvalidArgument, r.Hash)
	}
	if r.Capacity < 0 {
		return fmt.Errorf("%w: negative capacity %d", ErrInvalidArgument, r.Capacity)
	}
	return nil
}

// CheckCapacity returns a SizeError when size exceeds the request capacity.
func (r *SigningRequest) CheckCapacity(size int, kind error) error {
	if r.Capacity > 0 && size > r.Capacity {
		return &SizeError{Required: size, Capacity: r.Capacity, Kind: kind}
	}
	return nil
}
