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
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*serverFixture, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	f := newServerFixture(t, func(cfg *config.Config, opts *Options) {
		require.NoError(t, afero.WriteFile(opts.Fs, "/auth/jwt.pem", pub, 0o644))
		cfg.Server.Auth = config.AuthConfig{
			JWTPublicKey: "/auth/jwt.pem",
			Issuer:       "build-ci",
			Audience:     []string{"cst"},
		}
	})
	return f, key
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "release-pipeline",
		"iss": "build-ci",
		"aud": "cst",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func (f *serverFixture) signWithToken(token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/sign", bytes.NewReader([]byte("image")))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAuth_ValidToken(t *testing.T) {
	f, key := newAuthFixture(t)

	rec := f.signWithToken(signToken(t, jwt.SigningMethodES256, key, validClaims()))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAuth_Rejected(t *testing.T) {
	f, key := newAuthFixture(t)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	with := func(mutate func(jwt.MapClaims)) jwt.MapClaims {
		c := validClaims()
		mutate(c)
		return c
	}

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage", "not.a.token"},
		{"wrong key", signToken(t, jwt.SigningMethodES256, other, validClaims())},
		{"hmac", signToken(t, jwt.SigningMethodHS256, []byte("shared"), validClaims())},
		{"expired", signToken(t, jwt.SigningMethodES256, key, with(func(c jwt.MapClaims) {
			c["exp"] = time.Now().Add(-time.Minute).Unix()
		}))},
		{"no expiry", signToken(t, jwt.SigningMethodES256, key, with(func(c jwt.MapClaims) { delete(c, "exp") }))},
		{"wrong issuer", signToken(t, jwt.SigningMethodES256, key, with(func(c jwt.MapClaims) { c["iss"] = "laptop" }))},
		{"wrong audience", signToken(t, jwt.SigningMethodES256, key, with(func(c jwt.MapClaims) { c["aud"] = "vault" }))},
		{"no subject", signToken(t, jwt.SigningMethodES256, key, with(func(c jwt.MapClaims) { delete(c, "sub") }))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.signWithToken(tt.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			assert.Contains(t, decodeError(t, rec).Error, "unauthorized")
		})
	}
}

func TestAuth_HealthIsOpen(t *testing.T) {
	f, _ := newAuthFixture(t)
	rec := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_VerificationKeyFromCertificate(t *testing.T) {
	f := newServerFixture(t, func(cfg *config.Config, _ *Options) {
		cfg.Server.Auth.JWTPublicKey = cfg.Server.SignerCert
	})
	require.NotNil(t, f.server.auth)

	token := signToken(t, jwt.SigningMethodRS256, f.id.Key, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	rec := f.signWithToken(token)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNewTokenAuthenticator_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.pem", []byte("nope"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/key.pem",
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}}), 0o644))

	auth, err := newTokenAuthenticator(fs, config.AuthConfig{})
	assert.NoError(t, err)
	assert.Nil(t, auth)

	for _, path := range []string{"/missing.pem", "/bad.pem", "/key.pem"} {
		_, err := newTokenAuthenticator(fs, config.AuthConfig{JWTPublicKey: path})
		assert.True(t, errors.Is(err, types.ErrInvalidArgument), path)
	}
}
