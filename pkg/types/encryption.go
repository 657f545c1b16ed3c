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

package types

import (
	"fmt"
	"strings"
)

// EncryptionScheme selects how an image payload is encrypted.
type EncryptionScheme string

const (
	// SchemeAESCCM is authenticated: it produces a nonce and a MAC.
	SchemeAESCCM EncryptionScheme = "aes-ccm"

	// SchemeAESCBC provides confidentiality only and produces no MAC.
	SchemeAESCBC EncryptionScheme = "aes-cbc"
)

// Authenticated reports whether the scheme produces a MAC.
func (s EncryptionScheme) Authenticated() bool {
	return s == SchemeAESCCM
}

func (s EncryptionScheme) String() string {
	return string(s)
}

// ParseEncryptionScheme parses "aes-ccm" / "aes-cbc" (and the CSF spellings).
func ParseEncryptionScheme(s string) (EncryptionScheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aes-ccm", "aes_ccm", "ccm":
		return SchemeAESCCM, nil
	case "aes-cbc", "aes_cbc", "cbc":
		return SchemeAESCBC, nil
	default:
		return "", fmt.Errorf("%w: unknown encryption scheme %q", ErrInvalidArgument, s)
	}
}

// DefaultScheme returns the scheme used by a secure boot generation.
func DefaultScheme(target Target) EncryptionScheme {
	if target == TargetAHAB {
		return SchemeAESCBC
	}
	return SchemeAESCCM
}

// ValidDEKSize reports whether n is an AES key length in bytes.
func ValidDEKSize(n int) bool {
	return n == 16 || n == 24 || n == 32
}

// EncryptionRequest describes one image encryption operation.
type EncryptionRequest struct {
	InFile  string
	OutFile string
	Scheme  EncryptionScheme

	// AAD is authenticated but not encrypted. Ignored for AES-CBC.
	AAD []byte

	// KeySizeBytes is the DEK length: 16, 24 or 32.
	KeySizeBytes int

	// CertFile optionally names the recipient certificate used to wrap
	// the DEK. Without it the DEK is written in plaintext.
	CertFile string

	// KeyFile receives the wrapped DEK, or holds it when ReuseDEK is set.
	KeyFile string

	ReuseDEK bool
}

// Validate checks the request fields.
func (r *EncryptionRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil encryption request", ErrInvalidArgument)
	}
	if r.InFile == "" || r.OutFile == "" {
		return fmt.Errorf("%w: input and output files are required", ErrInvalidArgument)
	}
	if r.KeyFile == "" {
		return fmt.Errorf("%w: key file is required", ErrInvalidArgument)
	}
	if r.Scheme != SchemeAESCCM && r.Scheme != SchemeAESCBC {
		return fmt.Errorf("%w: unknown encryption scheme %q", ErrInvalidArgument, r.Scheme)
	}
	if !ValidDEKSize(r.KeySizeBytes) {
		return fmt.Errorf("%w: invalid DEK size %d", ErrInvalidArgument, r.KeySizeBytes)
	}
	return nil
}

// EncryptionResult is returned to the image header builder. The ciphertext
// itself is written to the request's OutFile.
type EncryptionResult struct {
	Scheme EncryptionScheme

	// Nonce is the CCM nonce or the CBC initialization vector.
	Nonce []byte

	// MAC is the 16 byte CCM tag. It is nil for AES-CBC.
	MAC []byte

	CiphertextLen int
}

// Authenticated reports whether MAC carries an authentication tag.
func (r *EncryptionResult) Authenticated() bool {
	return r != nil && r.Scheme.Authenticated() && len(r.MAC) > 0
}
