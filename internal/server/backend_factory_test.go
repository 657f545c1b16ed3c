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
	"crypto/sha256"
	"errors"
	"net/http"
	"testing"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/internal/testutil"
	"github.com/jeremyhahn/go-cst/pkg/backend/pkcs11"
	"github.com/jeremyhahn/go-cst/pkg/crypto/rand"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/selector"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	key crypto.Signer
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) Signer(context.Context, string) (crypto.Signer, error) {
	return p.key, nil
}

func factoryOptions(fs afero.Fs) FactoryOptions {
	return FactoryOptions{
		Fs:     fs,
		Rand:   rand.NewSoftwareResolver(),
		Logger: logging.Discard(),
	}
}

func TestNewEngine_LocalSigning(t *testing.T) {
	ca, err := testutil.GenerateTestCA()
	require.NoError(t, err)
	id, err := testutil.GenerateRSASigningCert(ca, 2048)
	require.NoError(t, err)
	fs := afero.NewMemMapFs()
	certPath, _, err := testutil.WritePKI(fs, "/pki", "CSF1_1_sha256_2048_65537_v3_usr", id)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/in/csf.bin", []byte("csf"), 0o644))

	eng, err := NewEngine(context.Background(), config.DefaultConfig(), factoryOptions(fs))
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, []types.Mode{types.ModeLocal}, eng.Selector().Modes())

	sig, err := eng.Sign(context.Background(), &types.SigningRequest{
		InFile:  "/in/csf.bin",
		CertRef: certPath,
		Hash:    types.SHA256,
		Format:  types.FormatCMSDetached,
	})
	require.NoError(t, err)
	parsed, err := testutil.ParseDetachedSignature(sig)
	require.NoError(t, err)
	assert.NoError(t, parsed.Verify(id.Cert, crypto.SHA256, []byte("csf")))
}

func TestNewEngine_AllModes(t *testing.T) {
	ca, err := testutil.GenerateTestCA()
	require.NoError(t, err)
	id, err := testutil.GenerateRSASigningCert(ca, 2048)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.PKCS11.Enabled = true
	cfg.PKCS11.Library = "/usr/lib/softhsm/libsofthsm2.so"
	cfg.PKCS11.TokenLabel = "cst"
	cfg.Remote.Enabled = true
	cfg.Remote.Endpoint = "https://hsm.example.com/v1/sign"
	cfg.KMS.Enabled = true
	cfg.KMS.Provider = "awskms"
	cfg.KMS.KeyID = "alias/srk1"
	cfg.Export.Enabled = true
	cfg.Signing.Mode = string(types.ModeKMS)

	opts := factoryOptions(afero.NewMemMapFs())
	opts.PKCS11Opener = pkcs11.OpenerFunc(func() (pkcs11.Session, error) {
		return nil, errors.New("no token")
	})
	opts.RemoteClient = &http.Client{}
	opts.KMSProvider = &staticProvider{key: id.Key}

	eng, err := NewEngine(context.Background(), cfg, opts)
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, []types.Mode{
		types.ModeRemote, types.ModeKMS, types.ModeLocal, types.ModeToken, types.ModeExport,
	}, eng.Selector().Modes())
	assert.Equal(t, types.ModeKMS, eng.Selector().DefaultMode())
}

func TestNewEngine_Errors(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewEngine(context.Background(), nil, FactoryOptions{})
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("no backends", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Local.Enabled = false
		_, err := NewEngine(context.Background(), cfg, factoryOptions(afero.NewMemMapFs()))
		assert.ErrorIs(t, err, selector.ErrNoBackends)
	})

	t.Run("default mode not enabled", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Signing.Mode = string(types.ModeExport)
		_, err := NewEngine(context.Background(), cfg, factoryOptions(afero.NewMemMapFs()))
		assert.ErrorIs(t, err, selector.ErrBackendNotFound)
	})

	t.Run("remote credentials missing", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.Enabled = true
		cfg.Remote.Endpoint = "https://hsm.example.com/v1/sign"
		cfg.Remote.ClientCert = "/nonexistent/client.pem"
		cfg.Remote.ClientKey = "/nonexistent/client-key.pem"
		_, err := NewEngine(context.Background(), cfg, factoryOptions(afero.NewMemMapFs()))
		assert.Error(t, err)
	})

	t.Run("unknown kms provider", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.KMS.Enabled = true
		cfg.KMS.Provider = "hsm"
		_, err := NewEngine(context.Background(), cfg, factoryOptions(afero.NewMemMapFs()))
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})
}

func TestNewEngine_EncryptionDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Encryption.Enabled = false
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/image.bin", make([]byte, 32), 0o644))

	eng, err := NewEngine(context.Background(), cfg, factoryOptions(fs))
	require.NoError(t, err)
	defer eng.Close()

	_, err = eng.Encrypt(context.Background(), &types.EncryptionRequest{
		InFile:       "/in/image.bin",
		OutFile:      "/image.enc",
		Scheme:       types.SchemeAESCCM,
		KeySizeBytes: 16,
		KeyFile:      "/dek.bin",
	})
	assert.ErrorIs(t, err, types.ErrEncryptionDisabled)

	exists, err := afero.Exists(fs, "/dek.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewEngine_EncryptsWithConfiguredNonceSize(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Encryption.CCMNonceSize = 12
	fs := afero.NewMemMapFs()
	payload := []byte("firmware image payload")
	require.NoError(t, afero.WriteFile(fs, "/in/image.bin", payload, 0o644))

	eng, err := NewEngine(context.Background(), cfg, factoryOptions(fs))
	require.NoError(t, err)
	defer eng.Close()

	res, err := eng.Encrypt(context.Background(), &types.EncryptionRequest{
		InFile:       "/in/image.bin",
		OutFile:      "/image.enc",
		Scheme:       types.SchemeAESCCM,
		KeySizeBytes: 16,
		KeyFile:      "/dek.bin",
	})
	require.NoError(t, err)
	assert.Len(t, res.Nonce, 12)
	assert.Len(t, res.MAC, 16)

	ct, err := afero.ReadFile(fs, "/image.enc")
	require.NoError(t, err)
	assert.Len(t, ct, len(payload))
	assert.NotEqual(t, sha256.Sum256(payload), sha256.Sum256(ct))
}
