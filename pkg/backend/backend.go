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

// Package backend defines the interface every signing backend implements
// and the helpers shared by the key-holding backends.
package backend

import (
	"context"
	"crypto/x509"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// Backend produces signatures for one signing mode.
//
// Implementations own every resource they acquire during a call (files,
// token sessions, HTTP connections) and release it before returning.
type Backend interface {
	// Type returns the mode this backend serves.
	Type() types.Mode

	// Sign signs req.InFile and returns the encoded signature.
	Sign(ctx context.Context, req *types.SigningRequest) ([]byte, error)

	// LoadCertificate returns the certificate identified by ref.
	LoadCertificate(ctx context.Context, ref string) (*x509.Certificate, error)

	// Supports reports whether the backend can produce format.
	Supports(format types.SignatureFormat) bool
}

// Closer is implemented by backends that hold long lived resources.
type Closer interface {
	Close() error
}
