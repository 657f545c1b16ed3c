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
package pkcs11

import (
	"crypto"
	"crypto/x509"
)

// Session is one logged-in token session.
type Session interface {
	// LoadCertificate returns the certificate object matching ref.
	LoadCertificate(ref Reference) (*x509.Certificate, error)

	// LoadPrivateKey returns a signer whose operations run on the token.
	LoadPrivateKey(ref Reference) (crypto.Signer, error)

	// Close logs out and releases the session.
	Close() error
}

// Opener opens token sessions.
type Opener interface {
	Open() (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func() (Session, error)

// Open calls f.
func (f OpenerFunc) Open() (Session, error) {
	return f()
}
