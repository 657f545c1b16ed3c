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

package rand

import (
	"errors"
	"sync"
)

// autoResolver draws from the first hardware source that opens, then
// software. A failing primary is retried on the fallback, if any.
type autoResolver struct {
	mu       sync.RWMutex
	primary  Resolver
	source   Mode
	fallback Resolver
}

var _ Resolver = (*autoResolver)(nil)

type candidate struct {
	mode    Mode
	enabled bool
	open    func() (Resolver, error)
}

func newAutoResolver(cfg *Config) (Resolver, error) {
	candidates := []candidate{
		{ModePKCS11, pkcs11Available() && cfg.PKCS11Config != nil, func() (Resolver, error) {
			return newPKCS11Resolver(cfg.PKCS11Config)
		}},
		{ModeTPM2, tpm2Available() && cfg.TPM2Config != nil, func() (Resolver, error) {
			return newTPM2Resolver(cfg.TPM2Config)
		}},
	}

	a := &autoResolver{}
	for _, c := range candidates {
		if !c.enabled {
			continue
		}
		r, err := c.open()
		if err != nil {
			continue
		}
		if !r.Available() {
			_ = r.Close()
			continue
		}
		a.primary, a.source = r, c.mode
		break
	}
	if a.primary == nil {
		a.primary, a.source = NewSoftwareResolver(), ModeSoftware
	}

	// A fallback that cannot be opened is treated as no fallback.
	if cfg.FallbackMode != "" && cfg.FallbackMode != ModeAuto && cfg.FallbackMode != a.source {
		a.fallback, _ = newResolver(&Config{
			Mode:         cfg.FallbackMode,
			TPM2Config:   cfg.TPM2Config,
			PKCS11Config: cfg.PKCS11Config,
		})
	}
	return a, nil
}

// Source reports which mode auto selection settled on.
func (a *autoResolver) Source() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.source
}

func (a *autoResolver) Rand(n int) ([]byte, error) {
	a.mu.RLock()
	primary, fallback := a.primary, a.fallback
	a.mu.RUnlock()

	if primary == nil {
		return nil, errors.New("rand: resolver closed")
	}
	out, err := primary.Rand(n)
	if err == nil || fallback == nil {
		return out, err
	}
	return fallback.Rand(n)
}

func (a *autoResolver) Read(p []byte) (int, error) {
	data, err := a.Rand(len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, data), nil
}

func (a *autoResolver) Available() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.primary != nil && a.primary.Available() {
		return true
	}
	return a.fallback != nil && a.fallback.Available()
}

func (a *autoResolver) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, r := range []Resolver{a.primary, a.fallback} {
		if r != nil {
			errs = append(errs, r.Close())
		}
	}
	a.primary, a.fallback = nil, nil
	return errors.Join(errs...)
}
