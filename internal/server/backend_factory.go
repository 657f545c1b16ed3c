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

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/backend/export"
	"github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/backend/pkcs11"
	"github.com/jeremyhahn/go-cst/pkg/backend/pkcs8"
	"github.com/jeremyhahn/go-cst/pkg/backend/remote"
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/crypto/rand"
	"github.com/jeremyhahn/go-cst/pkg/encryption"
	"github.com/jeremyhahn/go-cst/pkg/engine"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/selector"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// FactoryOptions holds dependencies that override what the config file
// would build.
type FactoryOptions struct {
	// Fs holds keys, certificates and payloads. Defaults to the OS
	// filesystem.
	Fs afero.Fs

	// Passphrase opens encrypted local keys.
	Passphrase certstore.PassphraseFunc

	// PKCS11Opener replaces the crypto11 session opener.
	PKCS11Opener pkcs11.Opener

	// RemoteClient replaces the mTLS client built from remote settings.
	RemoteClient *http.Client

	// KMSProvider replaces the provider named by kms.provider.
	KMSProvider kms.Provider

	// Rand replaces the resolver named by encryption.rng.
	Rand rand.Resolver

	Logger *logging.Logger
}

// Engine is an engine.Engine that also owns its random source.
type Engine struct {
	*engine.Engine
	rng rand.Resolver
}

// Close closes every backend and the random source.
func (e *Engine) Close() error {
	return errors.Join(e.Engine.Close(), e.rng.Close())
}

// NewEngine creates the signing engine for every enabled backend in cfg.
// Backends that fail to initialize are fatal; a disabled backend is
// simply absent.
func NewEngine(ctx context.Context, cfg *config.Config, opts FactoryOptions) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", types.ErrInvalidArgument)
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}

	defaultMode, err := types.ParseMode(cfg.Signing.Mode)
	if err != nil {
		return nil, err
	}

	backends, err := createBackends(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	closeAll := func() {
		for _, be := range backends {
			if closer, ok := be.(backend.Closer); ok {
				_ = closer.Close()
			}
		}
	}

	sel, err := selector.New(&selector.Config{
		Backends:    backends,
		DefaultMode: defaultMode,
		Logger:      opts.Logger,
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	rng := opts.Rand
	if rng == nil {
		if rng, err = newRandResolver(cfg); err != nil {
			closeAll()
			return nil, err
		}
	}

	enc, err := encryption.NewEncryptor(&encryption.Config{
		Enabled:   cfg.Encryption.Enabled,
		NonceSize: cfg.Encryption.CCMNonceSize,
		Rand:      rng,
		Fs:        opts.Fs,
		Logger:    opts.Logger,
	})
	if err != nil {
		closeAll()
		_ = rng.Close()
		return nil, err
	}

	eng, err := engine.New(&engine.Config{
		Selector:  sel,
		Encryptor: enc,
		Rand:      rng,
		Fs:        opts.Fs,
		Logger:    opts.Logger,
	})
	if err != nil {
		closeAll()
		_ = rng.Close()
		return nil, err
	}

	opts.Logger.Debug("engine initialized", "modes", sel.Modes(), "default", defaultMode)
	return &Engine{Engine: eng, rng: rng}, nil
}

// createBackends builds one backend per enabled mode.
func createBackends(ctx context.Context, cfg *config.Config, opts FactoryOptions) ([]backend.Backend, error) {
	var backends []backend.Backend
	for _, mode := range cfg.EnabledModes() {
		be, err := createBackend(ctx, mode, cfg, opts)
		if err != nil {
			for _, created := range backends {
				if closer, ok := created.(backend.Closer); ok {
					_ = closer.Close()
				}
			}
			return nil, fmt.Errorf("failed to initialize %s backend: %w", mode, err)
		}
		backends = append(backends, be)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, selector.ErrNoBackends)
	}
	return backends, nil
}

func createBackend(ctx context.Context, mode types.Mode, cfg *config.Config, opts FactoryOptions) (backend.Backend, error) {
	switch mode {
	case types.ModeLocal:
		return pkcs8.NewBackend(&pkcs8.Config{
			Fs:         opts.Fs,
			Passphrase: opts.Passphrase,
			Logger:     opts.Logger,
		})

	case types.ModeToken:
		return pkcs11.NewBackend(&pkcs11.Config{
			Library:    cfg.PKCS11.Library,
			PIN:        cfg.PKCS11.PIN,
			Slot:       cfg.PKCS11.Slot,
			TokenLabel: cfg.PKCS11.TokenLabel,
		}, pkcs11.Options{
			Opener: opts.PKCS11Opener,
			Fs:     opts.Fs,
			Logger: opts.Logger,
		})

	case types.ModeRemote:
		rc := &remote.Config{
			Endpoint:         cfg.Remote.Endpoint,
			HTTPClient:       opts.RemoteClient,
			Timeout:          cfg.Remote.Timeout,
			MaxResponseBytes: cfg.Remote.MaxResponseBytes,
			WorkDir:          cfg.Signing.WorkDir,
			Fs:               opts.Fs,
			Logger:           opts.Logger,
		}
		if rc.HTTPClient == nil {
			tlsConfig, err := cfg.Remote.LoadClientTLSConfig()
			if err != nil {
				return nil, err
			}
			rc.TLSConfig = tlsConfig
		}
		return remote.NewBackend(rc)

	case types.ModeKMS:
		provider := opts.KMSProvider
		if provider == nil {
			var err error
			if provider, err = createKMSProvider(ctx, &cfg.KMS); err != nil {
				return nil, err
			}
		}
		return kms.NewBackend(&kms.Config{
			Provider: provider,
			KeyID:    cfg.KMS.KeyID,
			Fs:       opts.Fs,
			Logger:   opts.Logger,
		})

	case types.ModeExport:
		target, err := types.ParseTarget(cfg.Signing.Target)
		if err != nil {
			return nil, err
		}
		return export.NewBackend(&export.Config{
			Target:      target,
			WorkDir:     cfg.Signing.WorkDir,
			RequestFile: cfg.Export.RequestFile,
			Fs:          opts.Fs,
			Logger:      opts.Logger,
		})
	}
	return nil, fmt.Errorf("%w: unknown mode %q", types.ErrUnsupportedOperation, mode)
}

// createKMSProvider dispatches to the provider compiled in for name.
func createKMSProvider(ctx context.Context, cfg *config.KMSConfig) (kms.Provider, error) {
	switch cfg.Provider {
	case "awskms":
		return createAWSKMSProvider(ctx, cfg)
	case "gcpkms":
		return createGCPKMSProvider(ctx, cfg)
	case "azurekv":
		return createAzureKVProvider(ctx, cfg)
	case "vault":
		return createVaultProvider(ctx, cfg)
	}
	return nil, fmt.Errorf("%w: unknown kms provider %q", types.ErrInvalidArgument, cfg.Provider)
}

// newRandResolver opens the random source named by encryption.rng.
func newRandResolver(cfg *config.Config) (rand.Resolver, error) {
	rc := &rand.Config{
		Mode:         rand.Mode(cfg.Encryption.RNG),
		FallbackMode: rand.ModeSoftware,
	}
	if rc.Mode == "" {
		rc.Mode = rand.ModeSoftware
	}
	if rc.Mode == rand.ModeTPM2 || rc.Mode == rand.ModeAuto {
		rc.TPM2Config = &rand.TPM2Config{}
	}
	if cfg.PKCS11.Library != "" {
		rc.PKCS11Config = &rand.PKCS11Config{
			Module: cfg.PKCS11.Library,
			PIN:    cfg.PKCS11.PIN,
		}
		if cfg.PKCS11.Slot != nil && *cfg.PKCS11.Slot >= 0 {
			rc.PKCS11Config.SlotID = uint(*cfg.PKCS11.Slot)
		}
	}
	return rand.NewResolver(rc)
}
