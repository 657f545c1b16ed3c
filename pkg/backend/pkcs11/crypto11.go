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

//go:build pkcs11

package pkcs11

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/ThalesGroup/crypto11"
)

// crypto11Opener opens sessions with crypto11. Each Open configures a new
// context so that the login lives exactly as long as the request.
type crypto11Opener struct {
	config *Config
}

// NewCrypto11Opener returns an Opener backed by the PKCS#11 library named
// in config.
func NewCrypto11Opener(config *Config) Opener {
	return &crypto11Opener{config: config}
}

func (o *crypto11Opener) Open() (Session, error) {
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(o.config.Library); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, o.config.Library)
	}

	ctx, err := crypto11.Configure(&crypto11.Config{
		Path:       o.config.Library,
		TokenLabel: o.config.TokenLabel,
		SlotNumber: o.config.Slot,
		Pin:        o.config.PIN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure PKCS#11 context: %w", err)
	}
	return &crypto11Session{ctx: ctx}, nil
}

type crypto11Session struct {
	ctx *crypto11.Context
}

func (s *crypto11Session) LoadCertificate(ref Reference) (*x509.Certificate, error) {
	cert, err := s.ctx.FindCertificate(ref.ID, labelBytes(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find certificate: %w", err)
	}
	if cert == nil {
		return nil, ErrObjectNotFound
	}
	return cert, nil
}

func (s *crypto11Session) LoadPrivateKey(ref Reference) (crypto.Signer, error) {
	signer, err := s.ctx.FindKeyPair(ref.ID, labelBytes(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to find key: %w", err)
	}
	if signer == nil {
		return nil, ErrObjectNotFound
	}
	switch signer.Public().(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyAlgorithm, signer.Public())
	}
	return signer, nil
}

func (s *crypto11Session) Close() error {
	// Recover from potential panics in crypto11 Close()
	defer func() {
		_ = recover()
	}()
	return s.ctx.Close()
}

func labelBytes(ref Reference) []byte {
	if ref.Label == "" {
		return nil
	}
	return []byte(ref.Label)
}
