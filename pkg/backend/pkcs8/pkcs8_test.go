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
package pkcs8

import (
	"context"
	"crypto"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-cst/internal/testutil"
	"github.com/jeremyhahn/go-cst/pkg/backend"
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a test backend over an in-memory filesystem
func createTestBackend(t *testing.T) (*PKCS8Backend, afero.Fs, *testutil.TestCA) {
	t.Helper()

	fs := afero.NewMemMapFs()
	be, err := NewBackend(&Config{
		Fs:         fs,
		Passphrase: certstore.StaticPassphrase([]byte("test")),
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)

	ca, err := testutil.GenerateTestCA()
	require.NoError(t, err)
	return be, fs, ca
}

func writeInput(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
}

func TestPKCS8Backend_TypeAndSupports(t *testing.T) {
	be, _, _ := createTestBackend(t)
	assert.Equal(t, types.ModeLocal, be.Type())
	for _, f := range types.SignatureFormats {
		assert.True(t, be.Supports(f))
	}
	assert.False(t, be.Supports("jws"))
}

func TestPKCS8Backend_SignRawPKCS1_DerivedKey(t *testing.T) {
	be, fs, ca := createTestBackend(t)
	id, err := testutil.GenerateRSASigningCert(ca, 2048)
	require.NoError(t, err)
	certPath, _, err := testutil.WritePKI(fs, "/pki", "IMG1_1_sha256_2048_65537_v3_usr", id)
	require.NoError(t, err)
	writeInput(t, fs, "/work/empty.bin", nil)

	sig, err := be.Sign(context.Background(), &types.SigningRequest{
		InFile:  "/work/empty.bin",
		CertRef: certPath,
		Hash:    types.SHA256,
		Format:  types.FormatRawPKCS1,
	})
	require.NoError(t, err)
	require.Len(t, sig, 256)

	digest := sha256.Sum256(nil)
	expected, err := rsa.SignPKCS1v15(nil, id.Key.(*rsa.PrivateKey), crypto.SHA256, digest[:])
	require.NoError(t, err)
	assert.Equal(t, expected, sig)
}

func TestPKCS8Backend_SignECDSARaw_ExplicitEncryptedKey(t *testing.T) {
	be, fs, ca := createTestBackend(t)
	id, err := testutil.GenerateECSigningCert(ca, elliptic.P521())
	require.NoError(t, err)

	encKey, err := id.EncryptedKeyPEM([]byte("test"))
	require.NoError(t, err)
	writeInput(t, fs, "/pki/srk.der", id.CertDER)
	writeInput(t, fs, "/secure/srk.pem", encKey)
	writeInput(t, fs, "/work/img.bin", []byte("image payload"))

	req := &types.SigningRequest{
		InFile:  "/work/img.bin",
		CertRef: "/pki/srk.der",
		KeyRef:  types.KeyReference{Path: "/secure/srk.pem"},
		Hash:    types.SHA512,
		Format:  types.FormatECDSARaw,
	}
	sig, err := be.Sign(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, sig, 132)

	req.Capacity = 100
	sig, err = be.Sign(context.Background(), req)
	assert.Nil(t, sig)
	assert.ErrorIs(t, err, types.ErrBufferTooSmall)
	required, ok := types.RequiredSize(err)
	require.True(t, ok)
	assert.Equal(t, 132, required)
}

func TestPKCS8Backend_SignCMS(t *testing.T) {
	be, fs, ca := createTestBackend(t)
	id, err := testutil.GenerateRSASigningCert(ca, 2048)
	require.NoError(t, err)
	certPath, _, err := testutil.WritePKI(fs, "/pki", "CSF1_1_sha256_2048_65537_v3_usr", id)
	require.NoError(t, err)
	writeInput(t, fs, "/work/csf.bin", []byte("csf"))

	der, err := be.Sign(context.Background(), &types.SigningRequest{
		InFile:  "/work/csf.bin",
		CertRef: certPath,
		Hash:    types.SHA256,
		Format:  types.FormatCMSDetached,
	})
	require.NoError(t, err)

	parsed, err := testutil.ParseDetachedSignature(der)
	require.NoError(t, err)
	assert.NoError(t, parsed.Verify(id.Cert, crypto.SHA256, []byte("csf")))
}

func TestPKCS8Backend_SignErrors(t *testing.T) {
	be, fs, ca := createTestBackend(t)
	a, err := testutil.GenerateRSASigningCert(ca, 2048)
	require.NoError(t, err)
	b, err := testutil.GenerateRSASigningCert(ca, 2048)
	require.NoError(t, err)
	ec, err := testutil.GenerateECSigningCert(ca, elliptic.P256())
	require.NoError(t, err)

	certA, _, err := testutil.WritePKI(fs, "/pki", "a", a)
	require.NoError(t, err)
	writeInput(t, fs, "/pki/keys/b_key.pem", b.KeyPEM)
	certEC, _, err := testutil.WritePKI(fs, "/pki", "ec", ec)
	require.NoError(t, err)
	writeInput(t, fs, "/work/in.bin", []byte("x"))

	base := types.SigningRequest{InFile: "/work/in.bin", CertRef: certA, Hash: types.SHA256, Format: types.FormatRawPKCS1}

	t.Run("certificate and key mismatch", func(t *testing.T) {
		req := base
		req.KeyRef.Path = "/pki/keys/b_key.pem"
		_, err := be.Sign(context.Background(), &req)
		assert.ErrorIs(t, err, certstore.ErrKeyMismatch)
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("missing input", func(t *testing.T) {
		req := base
		req.InFile = "/work/missing.bin"
		_, err := be.Sign(context.Background(), &req)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("missing key", func(t *testing.T) {
		writeInput(t, fs, "/pki/crts/nokey_crt.pem", a.CertPEM)
		req := base
		req.CertRef = "/pki/crts/nokey_crt.pem"
		_, err := be.Sign(context.Background(), &req)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.ErrorIs(t, err, certstore.ErrKeyNotFound)
	})

	t.Run("format not possible with key", func(t *testing.T) {
		req := base
		req.CertRef = certEC
		_, err := be.Sign(context.Background(), &req)
		assert.ErrorIs(t, err, types.ErrUnsupportedOperation)
		assert.ErrorIs(t, err, backend.ErrUnsupportedFormat)
	})

	t.Run("missing certificate", func(t *testing.T) {
		req := base
		req.CertRef = ""
		_, err := be.Sign(context.Background(), &req)
		assert.ErrorIs(t, err, ErrCertificateRequired)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := be.Sign(ctx, &base)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestPKCS8Backend_LoadCertificateAndClose(t *testing.T) {
	be, fs, ca := createTestBackend(t)
	id, err := testutil.GenerateRSASigningCert(ca, 2048)
	require.NoError(t, err)
	certPath, _, err := testutil.WritePKI(fs, "/pki", "srk", id)
	require.NoError(t, err)

	cert, err := be.LoadCertificate(context.Background(), certPath)
	require.NoError(t, err)
	assert.Equal(t, id.Cert.Raw, cert.Raw)

	require.NoError(t, be.Close())
	_, err = be.LoadCertificate(context.Background(), certPath)
	assert.ErrorIs(t, err, ErrStorageClosed)
	_, err = be.Sign(context.Background(), &types.SigningRequest{})
	assert.ErrorIs(t, err, ErrStorageClosed)
}
