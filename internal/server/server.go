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

// Package server runs the HTTPS signing service that remote backends
// delegate to.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/backend/pkcs8"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/metrics"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

const (
	// DefaultMaxRequestBytes bounds the signing request body.
	DefaultMaxRequestBytes = 64 << 20

	shutdownTimeout = 10 * time.Second
)

// Options holds dependencies that do not come from the config file.
type Options struct {
	// Signer produces the signatures. Defaults to a local key backend
	// over Fs.
	Signer backend.Backend

	// Fs stages request bodies. Defaults to the OS filesystem.
	Fs afero.Fs

	// TempDir receives staged request bodies. Defaults to os.TempDir().
	TempDir string

	// TLSConfig overrides the TLS settings loaded from config.
	TLSConfig *tls.Config

	Version string
	Logger  *logging.Logger
}

// Server signs request bodies with one configured certificate and key.
type Server struct {
	config     *config.Config
	signer     backend.Backend
	fs         afero.Fs
	tempDir    string
	hash       types.HashAlgorithm
	maxRequest int64
	version    string
	tlsConfig  *tls.Config
	limiter    *rateLimiter
	auth       *tokenAuthenticator
	logger     *logging.Logger

	router *chi.Mux
	server *http.Server

	mu   sync.Mutex
	addr net.Addr
}

// New creates a signing server from cfg.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", types.ErrInvalidArgument)
	}
	if cfg.Server.SignerCert == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrNoSigner)
	}

	hash := types.SHA256
	if cfg.Signing.Hash != "" {
		var err error
		if hash, err = types.ParseHashAlgorithm(cfg.Signing.Hash); err != nil {
			return nil, err
		}
	}

	log := opts.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	version := opts.Version
	if version == "" {
		version = Version()
	}
	maxRequest := cfg.Server.MaxRequestBytes
	if maxRequest <= 0 {
		maxRequest = DefaultMaxRequestBytes
	}

	signer := opts.Signer
	if signer == nil {
		local, err := pkcs8.NewBackend(&pkcs8.Config{Fs: fs, Logger: log})
		if err != nil {
			return nil, fmt.Errorf("failed to create signer: %w", err)
		}
		signer = local
	}

	tlsConfig := opts.TLSConfig
	if tlsConfig == nil && cfg.Server.TLS.CertFile != "" {
		var err error
		if tlsConfig, err = cfg.Server.TLS.LoadServerTLSConfig(); err != nil {
			return nil, err
		}
	}

	auth, err := newTokenAuthenticator(fs, cfg.Server.Auth)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:     cfg,
		signer:     signer,
		fs:         fs,
		tempDir:    tempDir,
		hash:       hash,
		maxRequest: maxRequest,
		version:    version,
		tlsConfig:  tlsConfig,
		limiter:    newRateLimiter(cfg.Server.RateLimit),
		auth:       auth,
		logger:     log.With("component", "server"),
	}
	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           s.router,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(s.RecoveryMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", s.healthHandler)
	r.Head("/health", s.healthHandler)

	if s.config.Metrics.Enabled {
		path := s.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.AuthMiddleware())
		r.Use(s.RateLimitMiddleware())
		r.Post("/sign", s.signHandler)
	})

	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once serving, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts TLS connections on ln until ctx is done, then shuts down
// gracefully. Plain HTTP is never served.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.tlsConfig == nil {
		_ = ln.Close()
		return fmt.Errorf("%w: TLS configuration is required", types.ErrInvalidArgument)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("starting signing server",
		"addr", ln.Addr().String(),
		"client_auth", s.tlsConfig.ClientAuth.String(),
		"signer", s.config.Server.SignerCert,
		"version", s.version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(tls.NewListener(ln, s.tlsConfig))
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop gracefully stops the server and closes the signer.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")

	err := s.server.Shutdown(ctx)
	if closer, ok := s.signer.(backend.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	if err != nil {
		s.logger.Error(err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Version retrieves the version from build information
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.version" && setting.Value != "" && setting.Value != "devel" {
			return setting.Value
		}
		if setting.Key == "vcs.revision" {
			if len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
