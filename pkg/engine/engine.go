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

// Package engine is the entry point for signing, certificate reading and
// payload encryption.
package engine

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-cst/pkg/dek"
	"github.com/jeremyhahn/go-cst/pkg/encryption"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/selector"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// Config wires an Engine.
type Config struct {
	Selector  *selector.Selector
	Encryptor *encryption.Encryptor

	// Rand generates DEKs. Defaults to crypto/rand.
	Rand io.Reader

	// Fs holds DEK files. Defaults to the OS filesystem.
	Fs afero.Fs

	Logger *logging.Logger
}

// Engine routes signing to the selector. It owns one DEK session, so
// every Encrypt call between New and Close uses the same DEK and the key
// file is written once.
type Engine struct {
	selector  *selector.Selector
	encryptor *encryption.Encryptor
	session   *dek.Session
	logger    *logging.Logger
}

// New creates an Engine. A nil encryptor leaves encryption disabled.
func New(config *Config) (*Engine, error) {
	if config == nil || config.Selector == nil {
		return nil, fmt.Errorf("%w: selector is required", types.ErrInvalidArgument)
	}
	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Engine{
		selector:  config.Selector,
		encryptor: config.Encryptor,
		session:   dek.NewSession(&dek.Config{Rand: config.Rand, Fs: fs, Logger: logger}),
		logger:    logger,
	}, nil
}

// Selector returns the backend selector.
func (e *Engine) Selector() *selector.Selector {
	return e.selector
}

// Sign signs req with the backend for req.Mode.
func (e *Engine) Sign(ctx context.Context, req *types.SigningRequest) ([]byte, error) {
	return e.selector.Sign(ctx, req)
}

// ReadCertificate loads the certificate identified by ref.
func (e *Engine) ReadCertificate(ctx context.Context, ref string) (*x509.Certificate, error) {
	return e.selector.ReadCertificate(ctx, ref)
}

// Encrypt prepares the DEK for req and encrypts req.InFile into
// req.OutFile. The DEK is cached until Close.
func (e *Engine) Encrypt(ctx context.Context, req *types.EncryptionRequest) (*types.EncryptionResult, error) {
	if e.encryptor == nil || !e.encryptor.Enabled() {
		return nil, types.ErrEncryptionDisabled
	}

	key, err := e.session.Prepare(req)
	if err != nil {
		e.logger.Error(err, "operation", "dek", "key_file", keyFile(req))
		return nil, err
	}
	defer clear(key)

	result, err := e.encryptor.Encrypt(ctx, req, key)
	if err != nil {
		e.logger.Error(err, "operation", "encrypt", "file", req.InFile)
		return nil, err
	}
	return result, nil
}

// Close zeroes the cached DEK and releases backend resources.
func (e *Engine) Close() error {
	e.session.Destroy()
	return e.selector.Close()
}

func keyFile(req *types.EncryptionRequest) string {
	if req == nil {
		return ""
	}
	return req.KeyFile
}
