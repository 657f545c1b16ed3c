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

//go:build vault

package vault

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	vault "github.com/hashicorp/vault/api"
	kmsbackend "github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransit answers transit reads and signs with local keys.
type fakeTransit struct {
	keys     map[string]crypto.Signer
	lastPath string
	lastData map[string]interface{}
	readErr  error
	badSig   bool
}

func (f *fakeTransit) ReadWithContext(_ context.Context, path string) (*vault.Secret, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	name := path[strings.LastIndex(path, "/")+1:]
	key, ok := f.keys[name]
	if !ok {
		return nil, nil
	}
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, err
	}
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	return &vault.Secret{Data: map[string]interface{}{
		"latest_version": json.Number("2"),
		"keys": map[string]interface{}{
			"1": map[string]interface{}{"public_key": "stale"},
			"2": map[string]interface{}{"public_key": pemKey},
		},
	}}, nil
}

func (f *fakeTransit) WriteWithContext(_ context.Context, path string, data map[string]interface{}) (*vault.Secret, error) {
	f.lastPath = path
	f.lastData = data
	if f.badSig {
		return &vault.Secret{Data: map[string]interface{}{"signature": "not-a-signature"}}, nil
	}
	parts := strings.Split(path, "/")
	key := f.keys[parts[len(parts)-2]]
	digest, err := base64.StdEncoding.DecodeString(data["input"].(string))
	if err != nil {
		return nil, err
	}
	var opts crypto.SignerOpts = crypto.SHA256
	if data["signature_algorithm"] == "pss" {
		opts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
	}
	sig, err := key.Sign(rand.Reader, digest, opts)
	if err != nil {
		return nil, err
	}
	return &vault.Secret{Data: map[string]interface{}{
		"signature": "vault:v2:" + base64.StdEncoding.EncodeToString(sig),
	}}, nil
}

func newTestProvider(t *testing.T) (*Provider, *fakeTransit) {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	fake := &fakeTransit{keys: map[string]crypto.Signer{"srk": rsaKey, "img": ecKey}}
	p, err := NewProviderWithClient(&Config{Address: "https://vault:8200", Token: "s.test"}, fake)
	require.NoError(t, err)
	return p, fake
}

func TestProvider_SignRSA(t *testing.T) {
	p, fake := newTestProvider(t)
	assert.Equal(t, "vault", p.Name())

	signer, err := p.Signer(context.Background(), "srk")
	require.NoError(t, err)
	pub := signer.Public().(*rsa.PublicKey)
	digest := sha256.Sum256([]byte("image"))

	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)
	assert.Equal(t, "transit/sign/srk/sha2-256", fake.lastPath)
	assert.Equal(t, "pkcs1v15", fake.lastData["signature_algorithm"])
	assert.Equal(t, true, fake.lastData["prehashed"])
	assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig))

	sig, err = signer.Sign(rand.Reader, digest[:], &rsa.PSSOptions{Hash: crypto.SHA256, SaltLength: rsa.PSSSaltLengthEqualsHash})
	require.NoError(t, err)
	assert.Equal(t, "pss", fake.lastData["signature_algorithm"])
	assert.NoError(t, rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil))
}

func TestProvider_SignECDSA(t *testing.T) {
	p, fake := newTestProvider(t)
	signer, err := p.Signer(context.Background(), "img")
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("csf"))
	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)
	assert.NotContains(t, fake.lastData, "signature_algorithm")
	assert.True(t, ecdsa.VerifyASN1(signer.Public().(*ecdsa.PublicKey), digest[:], sig))
}

func TestProvider_Errors(t *testing.T) {
	p, fake := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Signer(ctx, "missing")
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	assert.True(t, errors.Is(err, types.ErrNotFound))

	signer, err := p.Signer(ctx, "srk")
	require.NoError(t, err)
	_, err = signer.Sign(rand.Reader, make([]byte, 20), crypto.SHA1)
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	assert.True(t, errors.Is(err, kmsbackend.ErrUnsupportedAlgorithm))

	fake.badSig = true
	_, err = signer.Sign(rand.Reader, make([]byte, 32), crypto.SHA256)
	assert.True(t, errors.Is(err, ErrInvalidResponse))

	fake.readErr = errors.New("permission denied")
	_, err = p.Signer(ctx, "srk")
	assert.True(t, errors.Is(err, types.ErrProvider))
}

func TestProvider_AgainstHTTPServer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s.http", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/signing/keys/fw":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{
				"latest_version": 1,
				"keys":           map[string]interface{}{"1": map[string]interface{}{"public_key": pemKey}},
			}})
		case r.URL.Path == "/v1/signing/sign/fw/sha2-256":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			digest, _ := base64.StdEncoding.DecodeString(body["input"].(string))
			sig, _ := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{
				"signature": "vault:v1:" + base64.StdEncoding.EncodeToString(sig),
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p, err := NewProvider(&Config{Address: srv.URL, Token: "s.http", TransitPath: "signing"})
	require.NoError(t, err)

	signer, err := p.Signer(context.Background(), "fw")
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("payload"))
	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"nil", nil, true},
		{"missing address", &Config{Token: "t"}, true},
		{"missing token", &Config{Address: "https://v"}, true},
		{"valid", &Config{Address: "https://v", Token: "t"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "transit", tt.config.TransitPath)
		})
	}
}

func TestDecodeSignature(t *testing.T) {
	sig, err := decodeSignature("vault:v3:" + base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, sig)

	_, err = decodeSignature("vault:v1")
	assert.True(t, errors.Is(err, ErrInvalidResponse))
	_, err = decodeSignature("other:v1:AAAA")
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}
