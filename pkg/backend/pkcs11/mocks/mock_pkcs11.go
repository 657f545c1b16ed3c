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
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"sync"
)

// ErrObjectNotFound is returned by MockToken lookups that match nothing.
// Tests configure it to the backend's own sentinel through NotFound.
var ErrObjectNotFound = errors.New("mock: object not found")

// Object is a certificate or key stored on a MockToken.
type Object struct {
	Label string
	ID    []byte
	Cert  *x509.Certificate
	Key   crypto.Signer
}

// MockToken simulates a PKCS#11 token holding certificates and key pairs.
// It hands out MockSession values and tracks how many are open so tests
// can check that every session is closed.
type MockToken struct {
	mu sync.Mutex

	Objects []Object

	// NotFound is returned for lookups that match no object.
	NotFound error

	// Error injection
	OpenError  error
	CloseError error

	// Call tracking
	OpenCalls  int
	CloseCalls int
}

// NewMockToken creates a token with the given objects.
func NewMockToken(objects ...Object) *MockToken {
	return &MockToken{Objects: objects, NotFound: ErrObjectNotFound}
}

// OpenSessions returns the number of sessions opened and not yet closed.
func (t *MockToken) OpenSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.OpenCalls - t.CloseCalls
}

// Open starts a session. The return type matches the token Session
// interface structurally.
func (t *MockToken) Open() (*MockSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.OpenError != nil {
		return nil, t.OpenError
	}
	t.OpenCalls++
	return &MockSession{token: t}, nil
}

func (t *MockToken) find(label string, id []byte, wantCert bool) (*Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.Objects {
		o := &t.Objects[i]
		if wantCert && o.Cert == nil || !wantCert && o.Key == nil {
			continue
		}
		if label != "" && o.Label != label {
			continue
		}
		if len(id) > 0 && !bytes.Equal(o.ID, id) {
			continue
		}
		return o, nil
	}
	return nil, t.NotFound
}

// MockSession is one session on a MockToken.
type MockSession struct {
	token  *MockToken
	closed bool
}

// FindCertificate returns the certificate object matching label and id.
func (s *MockSession) FindCertificate(label string, id []byte) (*x509.Certificate, error) {
	o, err := s.token.find(label, id, true)
	if err != nil {
		return nil, err
	}
	return o.Cert, nil
}

// FindKeyPair returns the key object matching label and id.
func (s *MockSession) FindKeyPair(label string, id []byte) (crypto.Signer, error) {
	o, err := s.token.find(label, id, false)
	if err != nil {
		return nil, err
	}
	return o.Key, nil
}

// Close ends the session. Closing twice is counted once.
func (s *MockSession) Close() error {
	s.token.mu.Lock()
	defer s.token.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.token.CloseCalls++
	}
	return s.token.CloseError
}
