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

//go:build azurekv

package azurekv

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"math/big"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/jeremyhahn/go-cst/internal/testutil"
	kmsbackend "github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/signing"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = &Config{VaultURL: "https://fw-signing.vault.azure.net/"}

func toJWK(pub crypto.PublicKey) *azkeys.JSONWebKey {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		kty := azkeys.KeyTypeRSAHSM
		return &azkeys.JSONWebKey{Kty: &kty, N: k.N.Bytes(), E: big.NewInt(int64(k.E)).Bytes()}
	case *ecdsa.PublicKey:
		kty := azkeys.KeyTypeECHSM
		crv := map[string]azkeys.CurveName{
			"P-256": azkeys.CurveNameP256, "P-384": azkeys.CurveNameP384, "P-521": azkeys.CurveNameP521,
		}[k.Curve.Params().Name]
		return &azkeys.JSONWebKey{Kty: &kty, Crv: &crv, X: k.X.Bytes(), Y: k.Y.Bytes()}
	}
	return nil
}

// newMockClient behaves like Key Vault for key: ES signatures come back
// as r||s. The last algorithm is stored in *alg.
func newMockClient(key crypto.Signer, alg *azkeys.SignatureAlgorithm) *MockKeyVaultClient {
	return &MockKeyVaultClient{
		GetKeyFunc: func(ctx context.Context, name, version string, _ *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error) {
			var resp azkeys.GetKeyResponse
			resp.Key = toJWK(key.Public())
			return resp, nil
		},
		SignFunc: func(ctx context.Context, name, version string, params azkeys.SignParameters, _ *azkeys.SignOptions) (azkeys.SignResponse, error) {
			*alg = *params.Algorithm
			var resp azkeys.SignResponse
			switch *params.Algorithm {
			case azkeys.SignatureAlgorithmRS256:
				sig, err := key.Sign(rand.Reader, params.Value, crypto.SHA256)
				resp.Result = sig
				return resp, err
			case azkeys.SignatureAlgorithmPS256:
				sig, err := key.Sign(rand.Reader, params.Value, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256})
				resp.Result = sig
				return resp, err
			case azkeys.SignatureAlgorithmES256, azkeys.SignatureAlgorithmES384:
				der, err := key.Sign(rand.Reader, params.Value, crypto.SHA256)
				if err != nil {
					return resp, err
				}
				size := (key.Public().(*ecdsa.PublicKey).Curve.Params().BitSize + 7) / 8
				resp.Result, err = signing.ECDSARawFromDER(der, size)
				return resp, err
			}
			return resp, errors.New("unexpected algorithm")
		},
	}
}

func TestSigner_ECDSAConvertedToDER(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	var alg azkeys.SignatureAlgorithm
	provider, err := NewProviderWithClient(testConfig, newMockClient(key, &alg))
	require.NoError(t, err)

	signer, err := provider.Signer(context.Background(), "img1/0123abcd")
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(signer.Public()))

	digest := sha256.Sum256([]byte("image"))
	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)
	assert.Equal(t, azkeys.SignatureAlgorithmES256, alg)
	assert.True(t, ecdsa.VerifyASN1(&key.PublicKey, digest[:], sig))
}

func TestSigner_RSAPadding(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	var alg azkeys.SignatureAlgorithm
	provider, err := NewProviderWithClient(testConfig, newMockClient(key, &alg))
	require.NoError(t, err)

	signer, err := provider.Signer(context.Background(), "srk1")
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("csf"))

	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)
	assert.Equal(t, azkeys.SignatureAlgorithmRS256, alg)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))

	pss := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
	sig, err = signer.Sign(rand.Reader, digest[:], pss)
	require.NoError(t, err)
	assert.Equal(t, azkeys.SignatureAlgorithmPS256, alg)
	assert.NoError(t, rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig, pss))

	_, err = signer.Sign(rand.Reader, make([]byte, 28), crypto.SHA224)
	assert.ErrorIs(t, err, kmsbackend.ErrUnsupportedAlgorithm)
}

func TestProvider_ThroughBackend(t *testing.T) {
	ca, err := testutil.GenerateTestCA()
	require.NoError(t, err)
	id, err := testutil.GenerateECSigningCert(ca, elliptic.P256())
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pki/img_crt.pem", id.CertPEM, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/image.bin", []byte("image"), 0o644))

	var alg azkeys.SignatureAlgorithm
	provider, err := NewProviderWithClient(testConfig, newMockClient(id.Key, &alg))
	require.NoError(t, err)
	be, err := kmsbackend.NewBackend(&kmsbackend.Config{Provider: provider, KeyID: "img1", Fs: fs, Logger: logging.Discard()})
	require.NoError(t, err)

	sig, err := be.Sign(context.Background(), &types.SigningRequest{
		InFile: "/in/image.bin", CertRef: "/pki/img_crt.pem", Hash: types.SHA256, Format: types.FormatECDSARaw,
	})
	require.NoError(t, err)
	assert.Len(t, sig, 64)
}

func TestProvider_Errors(t *testing.T) {
	client := &MockKeyVaultClient{
		GetKeyFunc: func(context.Context, string, string, *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error) {
			return azkeys.GetKeyResponse{}, errors.New("KeyNotFound")
		},
	}
	provider, err := NewProviderWithClient(testConfig, client)
	require.NoError(t, err)
	_, err = provider.Signer(context.Background(), "none")
	assert.ErrorIs(t, err, types.ErrProvider)

	client.GetKeyFunc = func(context.Context, string, string, *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error) {
		return azkeys.GetKeyResponse{}, nil
	}
	_, err = provider.Signer(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrInvalidJWK)

	oct := azkeys.KeyTypeOct
	_, err = jwkToPublicKey(&azkeys.JSONWebKey{Kty: &oct})
	assert.ErrorIs(t, err, kmsbackend.ErrUnsupportedKeyType)
}

func TestConfig(t *testing.T) {
	assert.NoError(t, testConfig.Validate())
	assert.NoError(t, (&Config{VaultURL: "https://localhost:8443"}).Validate())
	assert.ErrorIs(t, (*Config)(nil).Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, (&Config{}).Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, (&Config{VaultURL: "http://fw.vault.azure.net"}).Validate(), ErrInvalidVaultURL)
	assert.ErrorIs(t, (&Config{VaultURL: "https://example.com"}).Validate(), ErrInvalidVaultURL)
	assert.ErrorIs(t, (&Config{VaultURL: testConfig.VaultURL, ClientID: "abc"}).Validate(), ErrInvalidConfig)

	s := (&Config{VaultURL: testConfig.VaultURL, TenantID: "tenant-1234", ClientID: "client-5678", ClientSecret: "s3cret"}).String()
	assert.Contains(t, s, "****1234")
	assert.NotContains(t, s, "s3cret")
}
