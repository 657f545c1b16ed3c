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

// Package certstore loads signing certificates and private keys from disk.
//
// Certificates are PEM when the path ends in ".pem" (any case) and a single
// DER certificate otherwise. Private keys follow the same rule and may be
// PKCS#8 (plain or encrypted), PKCS#1 or SEC1. Encrypted keys are opened
// with a passphrase supplied by a PassphraseFunc.
package certstore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
	"github.com/youmark/pkcs8"
)

// PEM block types
const (
	PEMTypeCertificate         = "CERTIFICATE"
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
)

// PassphraseFunc returns the passphrase for the encrypted key at path.
// It is only called for keys that are actually encrypted.
type PassphraseFunc func(path string) ([]byte, error)

// StaticPassphrase returns a PassphraseFunc that always yields pass.
func StaticPassphrase(pass []byte) PassphraseFunc {
	return func(string) ([]byte, error) {
		return pass, nil
	}
}

// Loader reads certificates and keys through an afero filesystem.
type Loader struct {
	fs     afero.Fs
	logger *logging.Logger
}

// NewLoader returns a loader. A nil fs uses the OS filesystem.
func NewLoader(fs afero.Fs, logger *logging.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Loader{fs: fs, logger: logger}
}

// Fs returns the filesystem the loader reads from.
func (l *Loader) Fs() afero.Fs {
	return l.fs
}

// IsPEM reports whether path names a PEM file.
func IsPEM(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pem")
}

// ReadFile reads a whole file, mapping a missing file to types.ErrNotFound
// and any other failure to types.ErrIO.
func (l *Loader) ReadFile(path string) ([]byte, error) {
	return ReadFile(l.fs, path)
}

// ReadFile reads path from fs with the error mapping of Loader.ReadFile.
func ReadFile(fsys afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %w", types.ErrIO, path, err)
	}
	return data, nil
}

// LoadCertificate parses the certificate at ref.
func (l *Loader) LoadCertificate(ref string) (*x509.Certificate, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: certificate path is required", types.ErrInvalidArgument)
	}
	data, err := l.ReadFile(ref)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w: %s", types.ErrNotFound, ErrCertNotFound, ref)
		}
		return nil, err
	}
	cert, err := ParseCertificate(data, IsPEM(ref))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	l.logger.Debugf("loaded certificate %s (subject %s)", ref, cert.Subject)
	return cert, nil
}

// ParseCertificate parses one certificate. When isPEM is set the first
// CERTIFICATE block is used, otherwise data must be exactly one DER
// certificate.
func ParseCertificate(data []byte, isPEM bool) (*x509.Certificate, error) {
	der := data
	if isPEM {
		block := findBlock(data, PEMTypeCertificate)
		if block == nil {
			return nil, fmt.Errorf("%w: %w: no CERTIFICATE block", types.ErrProvider, ErrCertInvalid)
		}
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrCertInvalid, err)
	}
	return cert, nil
}

// LoadPrivateKey parses the private key at ref. pass may be nil for
// unencrypted keys.
func (l *Loader) LoadPrivateKey(ref string, pass PassphraseFunc) (crypto.Signer, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: key path is required", types.ErrInvalidArgument)
	}
	data, err := l.ReadFile(ref)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w: %s", types.ErrNotFound, ErrKeyNotFound, ref)
		}
		return nil, err
	}

	passphrase := func() ([]byte, error) {
		if pass == nil {
			return nil, fmt.Errorf("%w: %w: %s", types.ErrInvalidArgument, ErrPassphraseRequired, ref)
		}
		return pass(ref)
	}

	var key any
	if IsPEM(ref) {
		key, err = parsePEMKey(data, passphrase)
	} else {
		key, err = parseDERKey(data, passphrase)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %T is not a signing key", types.ErrProvider, ErrKeyInvalid, key)
	}
	l.logger.Debugf("loaded private key %s (%T)", ref, signer.Public())
	return signer, nil
}

func parsePEMKey(data []byte, passphrase func() ([]byte, error)) (any, error) {
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("%w: %w: no private key block", types.ErrProvider, ErrKeyInvalid)
		}

		switch block.Type {
		case PEMTypeEncryptedPrivateKey:
			pass, err := passphrase()
			if err != nil {
				return nil, err
			}
			return parsePKCS8(block.Bytes, pass)

		case PEMTypePrivateKey:
			return parsePKCS8(block.Bytes, nil)

		case PEMTypeRSAPrivateKey, PEMTypeECPrivateKey:
			der := block.Bytes
			//nolint:staticcheck // legacy OpenSSL encrypted PEM keys are still issued by CST PKI scripts
			if x509.IsEncryptedPEMBlock(block) {
				pass, err := passphrase()
				if err != nil {
					return nil, err
				}
				//nolint:staticcheck
				der, err = x509.DecryptPEMBlock(block, pass)
				if err != nil {
					return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrKeyInvalid, err)
				}
			}
			if block.Type == PEMTypeRSAPrivateKey {
				key, err := x509.ParsePKCS1PrivateKey(der)
				if err != nil {
					return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrKeyInvalid, err)
				}
				return key, nil
			}
			key, err := x509.ParseECPrivateKey(der)
			if err != nil {
				return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrKeyInvalid, err)
			}
			return key, nil
		}
		// Skip EC PARAMETERS and other non key blocks
	}
}

func parseDERKey(der []byte, passphrase func() ([]byte, error)) (any, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	// Last resort: encrypted PKCS#8
	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: unrecognized DER key", types.ErrProvider, ErrKeyInvalid)
	}
	return parsePKCS8(der, pass)
}

func parsePKCS8(der, pass []byte) (any, error) {
	var (
		key any
		err error
	)
	if len(pass) == 0 {
		key, err = pkcs8.ParsePKCS8PrivateKey(der)
	} else {
		key, err = pkcs8.ParsePKCS8PrivateKey(der, pass)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrProvider, ErrKeyInvalid, err)
	}
	return key, nil
}

func findBlock(data []byte, blockType string) *pem.Block {
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil
		}
		if block.Type == blockType {
			return block
		}
	}
}

// KeyPathCandidates maps a certificate path to the paths its private key
// may live at. CST PKI trees keep certificates in "crts" and keys in a
// sibling "keys" directory, with "crt" in the file name replaced by "key":
//
//	crts/SRK1_sha256_2048_65537_v3_usr_crt.pem -> keys/SRK1_sha256_2048_65537_v3_usr_key.pem
//
// The same file name next to the certificate is the second candidate.
func KeyPathCandidates(certPath string) ([]string, error) {
	dir, base := filepath.Split(certPath)
	idx := strings.LastIndex(base, "crt")
	if idx < 0 {
		return nil, fmt.Errorf("%w: %w: cannot derive key name from %s", types.ErrNotFound, ErrKeyNotFound, certPath)
	}
	keyBase := base[:idx] + "key" + base[idx+len("crt"):]

	var candidates []string
	if dir != "" {
		parent, last := filepath.Split(filepath.Clean(dir))
		if last == "crts" {
			candidates = append(candidates, filepath.Join(parent, "keys", keyBase))
		}
	}
	candidates = append(candidates, filepath.Join(dir, keyBase))
	return candidates, nil
}

// KeyPathForCert returns the first existing private key path for certPath.
func (l *Loader) KeyPathForCert(certPath string) (string, error) {
	candidates, err := KeyPathCandidates(certPath)
	if err != nil {
		return "", err
	}
	for _, candidate := range candidates {
		ok, err := afero.Exists(l.fs, candidate)
		if err != nil {
			return "", fmt.Errorf("%w: stat %s: %w", types.ErrIO, candidate, err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %w: for certificate %s (tried %s)",
		types.ErrNotFound, ErrKeyNotFound, certPath, strings.Join(candidates, ", "))
}

// MatchesPublicKey checks that an RSA certificate belongs to the key whose
// public half is pub. EC and other key types are not compared: token EC
// keys do not always expose the public point needed for the check.
func MatchesPublicKey(cert *x509.Certificate, pub crypto.PublicKey) error {
	if cert == nil || pub == nil {
		return fmt.Errorf("%w: certificate and public key are required", types.ErrInvalidArgument)
	}
	certPub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil
	}
	keyPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: %w: certificate is RSA, key is %T",
			types.ErrInvalidArgument, ErrKeyMismatch, pub)
	}
	if !certPub.Equal(keyPub) {
		return fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrKeyMismatch)
	}
	return nil
}

// KeyBits returns the key size in bits of an RSA or ECDSA public key.
func KeyBits(pub crypto.PublicKey) (int, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return k.N.BitLen(), nil
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize, nil
	default:
		return 0, fmt.Errorf("%w: unsupported public key type %T", types.ErrInvalidArgument, pub)
	}
}
