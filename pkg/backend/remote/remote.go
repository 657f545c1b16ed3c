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
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// RequestIDHeader carries the per-request uuid.
const RequestIDHeader = "X-Request-ID"

// Staging file names inside the work directory.
const (
	StageCSF    = "to_sign_file_csf.bin"
	StageImage  = "to_sign_file_image.bin"
	SignedCSF   = "signed_file_csf.bin"
	SignedImage = "signed_file_image.bin"
)

// Backend delegates CMS signing to a remote HSM service over mutual TLS.
//
// Each Sign call is exactly one POST. Failures are reported as-is and
// never retried.
type Backend struct {
	endpoint    string
	client      *http.Client
	maxResponse int
	workDir     string
	fs          afero.Fs
	logger      *logging.Logger
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend creates a remote backend from config.
func NewBackend(config *Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxResponse := config.MaxResponseBytes
	if maxResponse == 0 {
		maxResponse = DefaultMaxResponseBytes
	}
	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	client := config.HTTPClient
	if client == nil {
		tlsConfig := config.TLSConfig.Clone()
		if tlsConfig.MinVersion < tls.VersionTLS12 {
			tlsConfig.MinVersion = tls.VersionTLS12
		}
		transport := cleanhttp.DefaultPooledTransport()
		transport.TLSClientConfig = tlsConfig
		client = &http.Client{Transport: transport, Timeout: timeout}
	}

	return &Backend{
		endpoint:    config.Endpoint,
		client:      client,
		maxResponse: maxResponse,
		workDir:     config.WorkDir,
		fs:          fs,
		logger:      logger,
	}, nil
}

// Type returns the backend mode.
func (b *Backend) Type() types.Mode {
	return types.ModeRemote
}

// Supports reports whether format can be produced. The service only
// returns detached CMS.
func (b *Backend) Supports(format types.SignatureFormat) bool {
	return format == types.FormatCMSDetached
}

// LoadCertificate is not supported: the certificate stays with the
// service.
func (b *Backend) LoadCertificate(context.Context, string) (*x509.Certificate, error) {
	return nil, fmt.Errorf("%w: %w: certificates are held by the signing service",
		types.ErrUnsupportedOperation, backend.ErrNotSupported)
}

// Sign stages req.InFile, posts it to the service and returns the
// signature it answers with.
func (b *Backend) Sign(ctx context.Context, req *types.SigningRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := backend.CheckFormat(b.Supports(req.Format), req.Format, types.ModeRemote); err != nil {
		return nil, err
	}

	stagePath, signedPath := b.stagingPaths(req.Payload)
	payload, err := b.stage(req.InFile, stagePath)
	if err != nil {
		return nil, err
	}

	body, err := b.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	// Only an acceptable signature reaches the response file
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrProvider, ErrEmptyResponse)
	}
	if err := req.CheckCapacity(len(body), types.ErrSignatureTooLarge); err != nil {
		return nil, err
	}

	if err := afero.WriteFile(b.fs, signedPath, body, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", types.ErrIO, signedPath, err)
	}
	sig, err := certstore.ReadFile(b.fs, signedPath)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("remote signature received", "file", req.InFile, "bytes", len(sig))
	return sig, nil
}

func (b *Backend) stagingPaths(payload types.PayloadKind) (string, string) {
	if payload == types.PayloadCSF {
		return filepath.Join(b.workDir, StageCSF), filepath.Join(b.workDir, SignedCSF)
	}
	return filepath.Join(b.workDir, StageImage), filepath.Join(b.workDir, SignedImage)
}

// stage copies the input to the staging file and returns the staged bytes.
func (b *Backend) stage(inFile, stagePath string) ([]byte, error) {
	data, err := certstore.ReadFile(b.fs, inFile)
	if err != nil {
		return nil, err
	}
	if b.workDir != "" {
		if err := b.fs.MkdirAll(b.workDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %w", types.ErrIO, b.workDir, err)
		}
	}
	if err := afero.WriteFile(b.fs, stagePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", types.ErrIO, stagePath, err)
	}
	return certstore.ReadFile(b.fs, stagePath)
}

// post performs the single signing round trip.
func (b *Backend) post(ctx context.Context, payload []byte) ([]byte, error) {
	requestID := uuid.NewString()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrIO, ErrRemoteTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set(RequestIDHeader, requestID)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w: %w: %w", types.ErrIO, ErrRemoteTransport, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w: request %s: %w", types.ErrIO, ErrRemoteTransport, requestID, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.logger.Warn("failed to close response body", "request_id", requestID, "error", closeErr)
		}
	}()

	// One byte past the bound is enough to tell an oversized answer apart
	limit := max(b.maxResponse, maxErrorExcerpt) + 1
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: read response %s: %w", types.ErrIO, ErrRemoteTransport, requestID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := body
		if len(excerpt) > maxErrorExcerpt {
			excerpt = excerpt[:maxErrorExcerpt]
		}
		b.logger.Slog().Error("remote signing rejected", "request_id", requestID, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %w: status %d: %q", types.ErrProvider, ErrRemoteRejected, resp.StatusCode, excerpt)
	}
	if len(body) > b.maxResponse {
		required := len(body)
		if resp.ContentLength > int64(required) {
			required = int(resp.ContentLength)
		}
		b.logger.Slog().Error("remote signature exceeds bound", "request_id", requestID, "bound", b.maxResponse, "bytes", required)
		return nil, &types.SizeError{Required: required, Capacity: b.maxResponse, Kind: types.ErrSignatureTooLarge}
	}
	return body, nil
}
