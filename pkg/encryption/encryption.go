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

// Package encryption encrypts firmware payloads with a data encryption
// key using AES-CCM or AES-CBC.
package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/metrics"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/pion/dtls/v2/pkg/crypto/ccm"
	"github.com/spf13/afero"
)

const (
	// DefaultNonceSize is the CCM nonce length used by the boot ROM.
	DefaultNonceSize = 13

	// MinNonceSize and MaxNonceSize bound the CCM nonce length.
	MinNonceSize = 7
	MaxNonceSize = 13

	// TagSize is the CCM authentication tag length.
	TagSize = 16
)

// Config configures an Encryptor.
type Config struct {
	Enabled bool

	// NonceSize is the CCM nonce length. Zero selects DefaultNonceSize.
	NonceSize int

	// Rand supplies nonces and IVs. Defaults to crypto/rand.
	Rand io.Reader

	Fs     afero.Fs
	Logger *logging.Logger
}

// Encryptor encrypts whole files in memory.
type Encryptor struct {
	enabled   bool
	nonceSize int
	rand      io.Reader
	fs        afero.Fs
	tracker   *NonceTracker
	logger    *logging.Logger
}

// NewEncryptor creates an Encryptor.
func NewEncryptor(config *Config) (*Encryptor, error) {
	if config == nil {
		config = &Config{}
	}
	nonceSize := config.NonceSize
	if nonceSize == 0 {
		nonceSize = DefaultNonceSize
	}
	if nonceSize < MinNonceSize || nonceSize > MaxNonceSize {
		return nil, fmt.Errorf("%w: %w: %d", types.ErrInvalidArgument, ErrInvalidNonceSize, nonceSize)
	}
	rnd := config.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Encryptor{
		enabled:   config.Enabled,
		nonceSize: nonceSize,
		rand:      rnd,
		fs:        fs,
		tracker:   NewNonceTracker(),
		logger:    logger,
	}, nil
}

// Enabled reports whether encryption is enabled.
func (e *Encryptor) Enabled() bool {
	return e.enabled
}

// Encrypt encrypts req.InFile under key and writes the ciphertext to
// req.OutFile. The CCM tag is returned in the result, not written.
func (e *Encryptor) Encrypt(ctx context.Context, req *types.EncryptionRequest, key []byte) (result *types.EncryptionResult, err error) {
	start := time.Now()
	scheme := "disabled"
	if req != nil {
		scheme = string(req.Scheme)
	}
	defer func() {
		metrics.Observe(metrics.OpEncrypt, scheme, start, err, types.Kind(err))
		if err != nil {
			result = nil
		}
	}()

	if !e.enabled {
		return nil, types.ErrEncryptionDisabled
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(key) != req.KeySizeBytes {
		return nil, fmt.Errorf("%w: key is %d bytes, request wants %d",
			types.ErrInvalidArgument, len(key), req.KeySizeBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plaintext, err := certstore.ReadFile(e.fs, req.InFile)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}

	var ciphertext []byte
	switch req.Scheme {
	case types.SchemeAESCCM:
		result, ciphertext, err = e.sealCCM(block, key, plaintext, req.AAD)
	default:
		result, ciphertext, err = e.encryptCBC(block, plaintext)
	}
	if err != nil {
		return nil, err
	}

	if err := afero.WriteFile(e.fs, req.OutFile, ciphertext, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrIO, err)
	}
	e.logger.Debug("encrypted payload",
		"in", req.InFile, "out", req.OutFile, "scheme", req.Scheme, "bytes", len(ciphertext))
	return result, nil
}

func (e *Encryptor) sealCCM(block cipher.Block, key, plaintext, aad []byte) (*types.EncryptionResult, []byte, error) {
	if err := CheckNonceHealth(e.rand, e.nonceSize); err != nil {
		return nil, nil, err
	}
	aead, err := ccm.NewCCM(block, TagSize, e.nonceSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", types.ErrProvider, err)
	}
	if len(plaintext) > aead.MaxLength() {
		return nil, nil, fmt.Errorf("%w: %d bytes exceeds CCM limit %d for a %d byte nonce",
			types.ErrInvalidArgument, len(plaintext), aead.MaxLength(), e.nonceSize)
	}

	nonce := make([]byte, e.nonceSize)
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: %w: %w", types.ErrRngHealthFailure, ErrNonceHealth, err)
	}
	if err := e.tracker.CheckAndRecord(key, nonce); err != nil {
		return nil, nil, err
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	n := len(sealed) - TagSize
	return &types.EncryptionResult{
		Scheme:        types.SchemeAESCCM,
		Nonce:         nonce,
		MAC:           sealed[n:],
		CiphertextLen: n,
	}, sealed[:n], nil
}

func (e *Encryptor) encryptCBC(block cipher.Block, plaintext []byte) (*types.EncryptionResult, []byte, error) {
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, nil, fmt.Errorf("%w: %w: %d bytes", types.ErrInvalidArgument, ErrUnalignedInput, len(plaintext))
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(e.rand, iv); err != nil {
		return nil, nil, fmt.Errorf("%w: %w: %w", types.ErrRngHealthFailure, ErrNonceHealth, err)
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)
	return &types.EncryptionResult{
		Scheme:        types.SchemeAESCBC,
		Nonce:         iv,
		CiphertextLen: len(ciphertext),
	}, ciphertext, nil
}
