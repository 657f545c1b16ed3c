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

// Package dek manages the data encryption key of one encryption
// invocation: generating or reusing it, and writing it to the key file
// either wrapped for a recipient certificate or in plaintext.
package dek

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/encoding/cms"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/metrics"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// Config configures a Session.
type Config struct {
	// Rand supplies fresh DEKs. Defaults to crypto/rand.
	Rand io.Reader

	Fs     afero.Fs
	Logger *logging.Logger
}

// Session owns at most one cached DEK. It is safe for concurrent use but
// is meant to live for a single invocation.
type Session struct {
	rand    io.Reader
	fs      afero.Fs
	loader  *certstore.Loader
	logger  *logging.Logger
	key     []byte
	wrapped bool
	closed  bool
	mu      sync.Mutex
}

// NewSession creates an empty session.
func NewSession(config *Config) *Session {
	if config == nil {
		config = &Config{}
	}
	rnd := config.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Session{
		rand:   rnd,
		fs:     fs,
		loader: certstore.NewLoader(fs, logger),
		logger: logger,
	}
}

// GenerateOrReuse returns the cached DEK if there is one. Otherwise the
// DEK is read from keyFile when reuse is set, or drawn from the session
// RNG. The returned slice is a copy the caller may clear.
func (s *Session) GenerateOrReuse(keySize int, reuse bool, keyFile string) (key []byte, err error) {
	start := time.Now()
	defer func() { metrics.Observe(metrics.OpDEK, "session", start, err, types.Kind(err)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrSessionDestroyed)
	}
	if !types.ValidDEKSize(keySize) {
		return nil, fmt.Errorf("%w: %w: %d", types.ErrInvalidArgument, ErrInvalidKeySize, keySize)
	}
	if s.key != nil {
		if len(s.key) != keySize {
			return nil, fmt.Errorf("%w: %w: cached %d bytes, requested %d",
				types.ErrInvalidArgument, ErrKeySizeMismatch, len(s.key), keySize)
		}
		return bytes.Clone(s.key), nil
	}

	if reuse {
		data, err := certstore.ReadFile(s.fs, keyFile)
		if err != nil {
			return nil, err
		}
		defer clear(data)
		if len(data) < keySize {
			return nil, fmt.Errorf("%w: %w: %s has %d bytes, need %d",
				types.ErrNotFound, ErrKeyFileShort, keyFile, len(data), keySize)
		}
		s.key = bytes.Clone(data[:keySize])
		// The reused key is still wrapped for the image, like a fresh one
		s.wrapped = false
		s.logger.Debug("reusing DEK", "file", keyFile, "bytes", keySize)
		return bytes.Clone(s.key), nil
	}

	k := make([]byte, keySize)
	if _, err := io.ReadFull(s.rand, k); err != nil {
		return nil, fmt.Errorf("%w: DEK generation: %w", types.ErrProvider, err)
	}
	s.key = k
	s.wrapped = false
	s.logger.Debug("generated DEK", "bytes", keySize)
	return bytes.Clone(k), nil
}

// Wrap writes dek to keyFile once per cached DEK. With certFile the key is
// wrapped in a CMS EnvelopedData for the certificate's RSA key; without
// it the raw key is written and a warning is logged.
func (s *Session) Wrap(dek []byte, certFile, keyFile string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(metrics.OpWrap, "session", start, err, types.Kind(err)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrSessionDestroyed)
	}
	if !types.ValidDEKSize(len(dek)) {
		return fmt.Errorf("%w: %w: %d", types.ErrInvalidArgument, ErrInvalidKeySize, len(dek))
	}
	if keyFile == "" {
		return fmt.Errorf("%w: key file is required", types.ErrInvalidArgument)
	}
	if s.wrapped && bytes.Equal(s.key, dek) {
		return nil
	}

	out := dek
	if certFile != "" {
		cert, err := s.loader.LoadCertificate(certFile)
		if err != nil {
			return err
		}
		if out, err = cms.Envelope(dek, cert, len(dek), nil); err != nil {
			return err
		}
	} else {
		s.logger.Warn("writing DEK in plaintext, no certificate given to wrap it", "file", keyFile)
	}

	if err := afero.WriteFile(s.fs, keyFile, out, 0o600); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", types.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", types.ErrIO, err)
	}
	if s.key == nil {
		s.key = bytes.Clone(dek)
	}
	s.wrapped = bytes.Equal(s.key, dek)
	return nil
}

// Prepare returns the DEK for req. The first call for a cached DEK writes
// it to req.KeyFile, enveloped for req.CertFile when one is given. A DEK
// read back with ReuseDEK is written the same way, so with a certificate
// the plaintext key file is replaced by its wrapped form.
func (s *Session) Prepare(req *types.EncryptionRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key, err := s.GenerateOrReuse(req.KeySizeBytes, req.ReuseDEK, req.KeyFile)
	if err != nil {
		return nil, err
	}
	if err := s.Wrap(key, req.CertFile, req.KeyFile); err != nil {
		clear(key)
		return nil, err
	}
	return key, nil
}

// Destroy zeroes the cached DEK. The session cannot be used afterwards.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.key)
	s.key = nil
	s.wrapped = false
	s.closed = true
}
