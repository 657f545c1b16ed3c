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
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/metrics"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// Asymmetric algorithms only; a public key cannot verify HMAC tokens.
var tokenMethods = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
}

// tokenAuthenticator verifies JWT bearer tokens on signing requests.
type tokenAuthenticator struct {
	key      crypto.PublicKey
	audience []string
	parser   *jwt.Parser
}

// newTokenAuthenticator returns nil when server.auth.jwt_public_key is unset.
func newTokenAuthenticator(fs afero.Fs, cfg config.AuthConfig) (*tokenAuthenticator, error) {
	if cfg.JWTPublicKey == "" {
		return nil, nil
	}

	data, err := afero.ReadFile(fs, cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: read jwt public key: %w", types.ErrInvalidArgument, err)
	}
	key, err := parseVerificationKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, cfg.JWTPublicKey, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(tokenMethods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &tokenAuthenticator{
		key:      key,
		audience: cfg.Audience,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// parseVerificationKey accepts a PEM public key or certificate.
func parseVerificationKey(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block")
	}
	switch block.Type {
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		return cert.PublicKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// authenticate returns the subject of the request's bearer token.
func (a *tokenAuthenticator) authenticate(r *http.Request) (string, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: bearer token required", ErrUnauthorized)
	}

	claims := jwt.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	if len(a.audience) > 0 {
		aud, _ := claims.GetAudience()
		if !slices.ContainsFunc(aud, func(s string) bool { return slices.Contains(a.audience, s) }) {
			return "", fmt.Errorf("%w: invalid audience %v", ErrUnauthorized, []string(aud))
		}
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrUnauthorized)
	}
	return sub, nil
}

// AuthMiddleware requires a valid bearer token when authentication is
// configured and stores its subject in the request context.
func (s *Server) AuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.auth == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, err := s.auth.authenticate(r)
			if err != nil {
				metrics.RecordError(metrics.OpSign, "server", "unauthorized")
				s.logger.Warn("authentication failed",
					"error", err, "peer", peerName(r), "request_id", RequestID(r.Context()))
				w.Header().Set("WWW-Authenticate", `Bearer realm="cst"`)
				s.writeError(w, r, err, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, sub)))
		})
	}
}
