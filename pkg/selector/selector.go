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

// Package selector routes signing and certificate requests to the backend
// registered for the requested mode.
package selector

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/metrics"
	"github.com/jeremyhahn/go-cst/pkg/types"
)

// tokenURIPrefix marks certificate references that live on a token.
const tokenURIPrefix = "pkcs11:"

// Config configures a Selector.
type Config struct {
	// Backends are registered by their Type.
	Backends []backend.Backend

	// DefaultMode is used for requests without a mode. When empty and
	// exactly one backend is registered, that backend is the default.
	DefaultMode types.Mode

	Logger *logging.Logger
}

// Selector dispatches each request to exactly one backend. It performs no
// cryptography itself.
type Selector struct {
	backends    map[types.Mode]backend.Backend
	defaultMode types.Mode
	logger      *logging.Logger
	mu          sync.RWMutex
}

// New creates a Selector from config.
func New(config *Config) (*Selector, error) {
	if config == nil || len(config.Backends) == 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrNoBackends)
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	backends := make(map[types.Mode]backend.Backend, len(config.Backends))
	for _, b := range config.Backends {
		if b == nil {
			return nil, fmt.Errorf("%w: nil backend", types.ErrInvalidArgument)
		}
		if _, dup := backends[b.Type()]; dup {
			return nil, fmt.Errorf("%w: duplicate backend for mode %s", types.ErrInvalidArgument, b.Type())
		}
		backends[b.Type()] = b
	}

	defaultMode := config.DefaultMode
	if defaultMode == "" && len(backends) == 1 {
		defaultMode = config.Backends[0].Type()
	}
	if defaultMode != "" {
		if _, ok := backends[defaultMode]; !ok {
			return nil, fmt.Errorf("%w: %w: default mode %s", types.ErrInvalidArgument, ErrBackendNotFound, defaultMode)
		}
	}

	return &Selector{
		backends:    backends,
		defaultMode: defaultMode,
		logger:      logger,
	}, nil
}

// Backend returns the backend registered for mode. An empty mode selects
// the default backend.
func (s *Selector) Backend(mode types.Mode) (backend.Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if mode == "" {
		if s.defaultMode == "" {
			return nil, fmt.Errorf("%w: %w", types.ErrUnsupportedOperation, ErrNoDefaultBackend)
		}
		mode = s.defaultMode
	}
	b, ok := s.backends[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", types.ErrUnsupportedOperation, ErrBackendNotFound, mode)
	}
	return b, nil
}

// Modes returns the registered modes in sorted order.
func (s *Selector) Modes() []types.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	modes := make([]types.Mode, 0, len(s.backends))
	for m := range s.backends {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// DefaultMode returns the default mode, which may be empty.
func (s *Selector) DefaultMode() types.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultMode
}

// Sign routes req to the backend for req.Mode.
func (s *Selector) Sign(ctx context.Context, req *types.SigningRequest) (sig []byte, err error) {
	start := time.Now()
	label := string(s.DefaultMode())
	if req != nil && req.Mode != "" {
		label = string(req.Mode)
	}
	defer func() {
		metrics.Observe(metrics.OpSign, label, start, err, types.Kind(err))
		if err != nil {
			s.logger.Error(err, "operation", metrics.OpSign, "mode", label)
			sig = nil
		}
	}()

	if err = req.Validate(); err != nil {
		return nil, err
	}
	b, err := s.Backend(req.Mode)
	if err != nil {
		return nil, err
	}
	label = string(b.Type())
	if err = backend.CheckFormat(b.Supports(req.Format), req.Format, b.Type()); err != nil {
		return nil, err
	}

	s.logger.Debug("dispatching signing request",
		"mode", b.Type(), "file", req.InFile, "format", req.Format, "hash", req.Hash)
	sig, err = b.Sign(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.RecordSignature(string(req.Format), len(sig))
	return sig, nil
}

// ReadCertificate loads a certificate through the default backend. PKCS#11
// URIs are read from the token backend when one is registered.
func (s *Selector) ReadCertificate(ctx context.Context, ref string) (cert *x509.Certificate, err error) {
	start := time.Now()
	label := string(s.DefaultMode())
	defer func() {
		metrics.Observe(metrics.OpReadCert, label, start, err, types.Kind(err))
		if err != nil {
			s.logger.Error(err, "operation", metrics.OpReadCert, "ref", ref)
			cert = nil
		}
	}()

	if ref == "" {
		return nil, fmt.Errorf("%w: empty certificate reference", types.ErrInvalidArgument)
	}

	mode := types.Mode("")
	if strings.HasPrefix(ref, tokenURIPrefix) {
		mode = types.ModeToken
	}
	b, err := s.Backend(mode)
	if err != nil {
		return nil, err
	}
	label = string(b.Type())
	return b.LoadCertificate(ctx, ref)
}

// Close closes every backend that holds resources.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, b := range s.backends {
		if c, ok := b.(backend.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
