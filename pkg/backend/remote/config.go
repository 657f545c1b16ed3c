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
package remote

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/spf13/afero"
)

const (
	// DefaultMaxResponseBytes is the largest signature the image format
	// can hold.
	DefaultMaxResponseBytes = 1024

	// DefaultTimeout bounds one signing round trip.
	DefaultTimeout = 30 * time.Second

	// maxErrorExcerpt bounds the response body quoted in ErrRemoteRejected.
	maxErrorExcerpt = 256
)

// Config contains configuration for the remote signing backend.
type Config struct {
	// Endpoint is the HTTPS URL the staged payload is posted to.
	Endpoint string

	// TLSConfig carries the client certificate and root CA pool for
	// mutual TLS. MinVersion is raised to TLS 1.2 when lower.
	TLSConfig *tls.Config

	// HTTPClient replaces the pooled client built from TLSConfig. Used by
	// tests and callers that manage their own transport.
	HTTPClient *http.Client

	// Timeout bounds one round trip. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxResponseBytes is the largest signature accepted. Defaults to
	// DefaultMaxResponseBytes.
	MaxResponseBytes int

	// WorkDir holds the staging and response files.
	WorkDir string

	Fs     afero.Fs
	Logger *logging.Logger
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint: %w", ErrInvalidConfig, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("%w: endpoint must use https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if c.HTTPClient == nil && c.TLSConfig == nil {
		return fmt.Errorf("%w: TLS configuration is required", ErrInvalidConfig)
	}
	if c.MaxResponseBytes < 0 {
		return fmt.Errorf("%w: negative max response size", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}
