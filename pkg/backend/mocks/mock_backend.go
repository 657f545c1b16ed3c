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
package mocks

import (
	"context"
	"crypto/x509"
	"sync"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// MockBackend is a mock implementation of backend.Backend for testing.
type MockBackend struct {
	mu sync.Mutex

	// Configurable behavior
	Mode                types.Mode
	Formats             []types.SignatureFormat
	SignFunc            func(context.Context, *types.SigningRequest) ([]byte, error)
	LoadCertificateFunc func(context.Context, string) (*x509.Certificate, error)
	CloseFunc           func() error

	// Call tracking
	SignCalls            []*types.SigningRequest
	LoadCertificateCalls []string
	CloseCalls           int
}

// NewMockBackend creates a new MockBackend for mode that supports every
// signature format.
func NewMockBackend(mode types.Mode) *MockBackend {
	return &MockBackend{
		Mode:    mode,
		Formats: types.SignatureFormats,
	}
}

// Type returns the configured mode.
func (m *MockBackend) Type() types.Mode {
	return m.Mode
}

// Sign records the request and calls SignFunc, or returns a fixed signature.
func (m *MockBackend) Sign(ctx context.Context, req *types.SigningRequest) ([]byte, error) {
	m.mu.Lock()
	m.SignCalls = append(m.SignCalls, req)
	fn := m.SignFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return []byte("mock-signature"), nil
}

// LoadCertificate records the reference and calls LoadCertificateFunc.
func (m *MockBackend) LoadCertificate(ctx context.Context, ref string) (*x509.Certificate, error) {
	m.mu.Lock()
	m.LoadCertificateCalls = append(m.LoadCertificateCalls, ref)
	fn := m.LoadCertificateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, ref)
	}
	return &x509.Certificate{}, nil
}

// Supports reports whether format is in Formats.
func (m *MockBackend) Supports(format types.SignatureFormat) bool {
	for _, f := range m.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Close counts calls and invokes CloseFunc.
func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
