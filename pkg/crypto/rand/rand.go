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

// Package rand provides the random sources used for DEK generation and for
// image encryption nonces.
//
// Sources:
//   - Software: crypto/rand
//   - PKCS11: C_GenerateRandom on a token (build tag pkcs11)
//   - TPM2: TPM2_GetRandom on a device or simulator (build tag tpm2)
//   - Reader: any io.Reader, used to inject deterministic or faulty sources
//
// Auto mode prefers hardware and falls back to software.
//
//	rng, _ := rand.NewResolver(&rand.Config{Mode: rand.ModeAuto})
//	dek, _ := rng.Rand(32)
//
// Every Resolver is an io.Reader and can be passed to rsa.EncryptPKCS1v15
// and friends.
package rand

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNotCompiled is returned when a hardware source was requested from a
// binary built without its tag.
var ErrNotCompiled = errors.New("rand: source not compiled into this binary")

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto selects PKCS#11, then TPM2, then software.
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand
	ModeSoftware Mode = "software"

	// ModeTPM2 uses the TPM2 hardware RNG
	ModeTPM2 Mode = "tpm2"

	// ModePKCS11 uses the PKCS#11 token RNG
	ModePKCS11 Mode = "pkcs11"
)

// Config contains RNG configuration.
type Config struct {
	// Mode defaults to ModeAuto.
	Mode Mode

	// FallbackMode is used when the primary source fails. Empty disables
	// fallback and failures are returned as errors.
	FallbackMode Mode

	TPM2Config   *TPM2Config
	PKCS11Config *PKCS11Config
}

// TPM2Config contains configuration for the TPM2 RNG.
type TPM2Config struct {
	// Device defaults to /dev/tpmrm0. Ignored when UseSimulator is set.
	Device string

	// MaxRequestSize caps the bytes requested per GetRandom. Default 32.
	MaxRequestSize int

	UseSimulator  bool
	SimulatorHost string
	SimulatorPort int
}

// PKCS11Config contains configuration for the PKCS#11 RNG.
type PKCS11Config struct {
	// Module is the PKCS#11 library path.
	Module string

	SlotID uint
	PIN    string
}

// Resolver generates random bytes.
type Resolver interface {
	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader.
	Read(p []byte) (n int, err error)

	// Available returns true if the source is ready.
	Available() bool

	// Close releases any resources.
	Close() error
}

// NewResolver creates a resolver. A nil config selects auto mode.
func NewResolver(config *Config) (Resolver, error) {
	if config == nil {
		config = &Config{Mode: ModeAuto}
	}
	return newResolver(config)
}

func newResolver(cfg *Config) (Resolver, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModeAuto:
		return newAutoResolver(cfg)
	case ModeSoftware:
		return NewSoftwareResolver(), nil
	case ModeTPM2:
		return newTPM2Resolver(cfg.TPM2Config)
	case ModePKCS11:
		return newPKCS11Resolver(cfg.PKCS11Config)
	default:
		return nil, fmt.Errorf("unknown RNG mode: %s", mode)
	}
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

// NewSoftwareResolver returns a crypto/rand backed resolver.
func NewSoftwareResolver() *SoftwareResolver {
	return &SoftwareResolver{}
}

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *SoftwareResolver) Read(p []byte) (n int, err error) {
	return rand.Read(p)
}

func (s *SoftwareResolver) Available() bool {
	return true
}

func (s *SoftwareResolver) Close() error {
	return nil
}

// ReaderResolver draws from an arbitrary io.Reader. Reads are serialized.
type ReaderResolver struct {
	r  io.Reader
	mu sync.Mutex
}

var _ Resolver = (*ReaderResolver)(nil)

// NewReaderResolver wraps r as a Resolver.
func NewReaderResolver(r io.Reader) *ReaderResolver {
	return &ReaderResolver{r: r}
}

func (s *ReaderResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := s.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *ReaderResolver) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.ReadFull(s.r, p)
}

func (s *ReaderResolver) Available() bool {
	return s.r != nil
}

func (s *ReaderResolver) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Zero is an io.Reader that yields only zero bytes. It models a stuck
// entropy source in tests.
var Zero io.Reader = zeroReader{}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
