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

// Package export writes signing requests for an offline HSM instead of
// signing. The signatures are produced elsewhere and patched into the
// output by the caller.
package export

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/signing"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// TagSize is the length of the HAB placeholder tag in bytes.
const TagSize = 8

// Backend implements the export mode.
type Backend struct {
	target      types.Target
	workDir     string
	requestFile string
	fs          afero.Fs
	loader      *certstore.Loader
	logger      *logging.Logger
	newTag      func() []byte
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend creates an export backend.
func NewBackend(config *Config) (*Backend, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Backend{
		target:      config.Target,
		workDir:     config.WorkDir,
		requestFile: filepath.Join(config.WorkDir, config.RequestFile),
		fs:          fs,
		loader:      certstore.NewLoader(fs, logger),
		logger:      logger.With("backend", types.ModeExport),
		newTag:      uuidTag,
	}, nil
}

func uuidTag() []byte {
	id := uuid.New()
	return id[:TagSize]
}

func (b *Backend) Type() types.Mode {
	return types.ModeExport
}

// Supports reports CMS only for HAB, whose requests are CMS placeholders.
func (b *Backend) Supports(format types.SignatureFormat) bool {
	if b.target == types.TargetHAB {
		return format == types.FormatCMSDetached
	}
	return format.Valid()
}

// RequestFile returns the path of the signing-request file.
func (b *Backend) RequestFile() string {
	return b.requestFile
}

// Sign records a signing request. For AHAB no bytes are returned. For HAB
// the result is a placeholder sized like the expected CMS signature with
// the request tag in its first TagSize bytes.
func (b *Backend) Sign(ctx context.Context, req *types.SigningRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := backend.CheckFormat(b.Supports(req.Format), req.Format, types.ModeExport); err != nil {
		return nil, err
	}
	if req.CertRef == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrCertificateRequired)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.fs.MkdirAll(b.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrIO, err)
	}

	if b.target == types.TargetAHAB {
		entry := fmt.Sprintf("[Signing request]\r\nSigning certificate = %s\r\nData to be signed   = %s\r\n\r\n",
			req.CertRef, req.InFile)
		if err := b.appendRequest(entry); err != nil {
			return nil, err
		}
		b.logger.Debug("exported signing request", "file", req.InFile, "cert", req.CertRef)
		return []byte{}, nil
	}
	return b.signHAB(req)
}

func (b *Backend) signHAB(req *types.SigningRequest) ([]byte, error) {
	cert, err := b.loader.LoadCertificate(req.CertRef)
	if err != nil {
		return nil, err
	}
	size, err := signing.EstimateCMSSize(cert)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}
	if err := req.CheckCapacity(size, types.ErrSignatureTooLarge); err != nil {
		return nil, err
	}

	data, err := certstore.ReadFile(b.fs, req.InFile)
	if err != nil {
		return nil, err
	}
	dataFile := filepath.Join(b.workDir, "data_"+filepath.Base(req.InFile))
	if err := afero.WriteFile(b.fs, dataFile, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrIO, err)
	}

	tag := b.newTag()
	entry := fmt.Sprintf("Signing Request:\n%s\nunique tag: %s\n", dataFile, hex.EncodeToString(tag))
	if err := b.appendRequest(entry); err != nil {
		return nil, err
	}

	placeholder := make([]byte, size)
	copy(placeholder, tag)
	b.logger.Debug("exported signing request",
		"file", dataFile, "cert", req.CertRef, "placeholder", size)
	return placeholder, nil
}

func (b *Backend) appendRequest(entry string) error {
	f, err := b.fs.OpenFile(b.requestFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrIO, err)
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("%w: %w", types.ErrIO, err)
	}
	return nil
}

func (b *Backend) LoadCertificate(ctx context.Context, ref string) (*x509.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.loader.LoadCertificate(ref)
}
