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

//go:build gcpkms

package gcpkms

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	kmsbackend "github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var testConfig = &Config{ProjectID: "cst", LocationID: "global", KeyRingID: "firmware"}

// newMockClient serves key under alg. Requests are recorded in *seen.
func newMockClient(t *testing.T, key crypto.Signer, alg kmspb.CryptoKeyVersion_CryptoKeyVersionAlgorithm, seen *[]string) *MockKMSClient {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	require.NoError(t, err)
	pemData := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	return &MockKMSClient{
		GetPublicKeyFunc: func(ctx context.Context, req *kmspb.GetPublicKeyRequest) (*kmspb.PublicKey, error) {
			*seen = append(*seen, req.Name)
			return &kmspb.PublicKey{
				Pem:       pemData,
				PemCrc32C: wrapperspb.Int64(crc32c([]byte(pemData))),
				Algorithm: alg,
				Name:      req.Name,
			}, nil
		},
		AsymmetricSignFunc: func(ctx context.Context, req *kmspb.AsymmetricSignRequest) (*kmspb.AsymmetricSignResponse, error) {
			digest := req.Digest.GetSha256()
			var opts crypto.SignerOpts = crypto.SHA256
			if alg == kmspb.CryptoKeyVersion_RSA_SIGN_PSS_2048_SHA256 {
				opts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
			}
			sig, err := key.Sign(rand.Reader, digest, opts)
			if err != nil {
				return nil, err
			}
			return &kmspb.AsymmetricSignResponse{
				Signature:            sig,
				SignatureCrc32C:      wrapperspb.Int64(crc32c(sig)),
				VerifiedDigestCrc32C: req.DigestCrc32C.GetValue() == crc32c(digest),
				Name:                 req.Name,
			}, nil
		},
	}
}

func TestSigner_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	var seen []string
	provider, err := NewProviderWithClient(testConfig, newMockClient(t, key, kmspb.CryptoKeyVersion_RSA_SIGN_PKCS1_2048_SHA256, &seen))
	require.NoError(t, err)

	signer, err := provider.Signer(context.Background(), "srk1")
	require.NoError(t, err)
	assert.Equal(t, []string{"projects/cst/locations/global/keyRings/firmware/cryptoKeys/srk1/cryptoKeyVersions/1"}, seen)

	digest := sha256.Sum256([]byte("csf"))
	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))

	// The key version only does PKCS#1 v1.5
	_, err = signer.Sign(rand.Reader, digest[:], &rsa.PSSOptions{Hash: crypto.SHA256})
	assert.ErrorIs(t, err, ErrPaddingMismatch)

	_, err = signer.Sign(rand.Reader, make([]byte, 20), crypto.SHA1)
	assert.ErrorIs(t, err, kmsbackend.ErrUnsupportedAlgorithm)
}

func TestSigner_PSSKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	var seen []string
	provider, err := NewProviderWithClient(testConfig, newMockClient(t, key, kmspb.CryptoKeyVersion_RSA_SIGN_PSS_2048_SHA256, &seen))
	require.NoError(t, err)

	full := "projects/other/locations/eu/keyRings/r/cryptoKeys/k/cryptoKeyVersions/3"
	signer, err := provider.Signer(context.Background(), full)
	require.NoError(t, err)
	assert.Equal(t, []string{full}, seen)

	digest := sha256.Sum256([]byte("image"))
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
	sig, err := signer.Sign(rand.Reader, digest[:], opts)
	require.NoError(t, err)
	assert.NoError(t, rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig, opts))
}

func TestSigner_ECDSAAndChecksums(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	var seen []string
	client := newMockClient(t, key, kmspb.CryptoKeyVersion_EC_SIGN_P256_SHA256, &seen)
	provider, err := NewProviderWithClient(testConfig, client)
	require.NoError(t, err)

	signer, err := provider.Signer(context.Background(), "img1")
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("image"))
	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)
	assert.True(t, ecdsa.VerifyASN1(&key.PublicKey, digest[:], sig))

	client.AsymmetricSignFunc = func(ctx context.Context, req *kmspb.AsymmetricSignRequest) (*kmspb.AsymmetricSignResponse, error) {
		return &kmspb.AsymmetricSignResponse{Signature: []byte{1}, SignatureCrc32C: wrapperspb.Int64(0), VerifiedDigestCrc32C: true}, nil
	}
	_, err = signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	client.AsymmetricSignFunc = func(ctx context.Context, req *kmspb.AsymmetricSignRequest) (*kmspb.AsymmetricSignResponse, error) {
		return nil, errors.New("PERMISSION_DENIED")
	}
	_, err = signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	assert.ErrorIs(t, err, types.ErrProvider)

	client.GetPublicKeyFunc = func(ctx context.Context, req *kmspb.GetPublicKeyRequest) (*kmspb.PublicKey, error) {
		return &kmspb.PublicKey{Pem: "garbage", PemCrc32C: wrapperspb.Int64(crc32c([]byte("garbage")))}, nil
	}
	_, err = provider.Signer(context.Background(), "img1")
	assert.ErrorIs(t, err, types.ErrProvider)

	require.NoError(t, provider.Close())
	assert.True(t, client.Closed)
}

func TestConfig(t *testing.T) {
	assert.NoError(t, testConfig.Validate())
	assert.ErrorIs(t, (*Config)(nil).Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, (&Config{LocationID: "global", KeyRingID: "r"}).Validate(), ErrInvalidProjectID)
	assert.ErrorIs(t, (&Config{ProjectID: "p", KeyRingID: "r"}).Validate(), ErrInvalidLocationID)
	assert.ErrorIs(t, (&Config{ProjectID: "p", LocationID: "global"}).Validate(), ErrInvalidKeyRingID)
	assert.ErrorIs(t, (&Config{ProjectID: "p", LocationID: "l", KeyRingID: "r", CredentialsFile: "/nonexistent/sa.json"}).Validate(), ErrInvalidCredentials)

	s := (&Config{ProjectID: "p", LocationID: "l", KeyRingID: "r", CredentialsFile: "/home/user/keys/sa.json"}).String()
	assert.Contains(t, s, "/.../sa.json")
	assert.NotContains(t, s, "user")
}
