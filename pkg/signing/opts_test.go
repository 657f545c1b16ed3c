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
package signing

import (
	"crypto"
	"crypto/sha256"
	"testing"

	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerOpts_HashFunc(t *testing.T) {
	opts := NewSignerOpts(crypto.SHA384, types.FormatCMSDetached)
	assert.Equal(t, crypto.SHA384, opts.HashFunc())
	assert.Zero(t, opts.Capacity)
}

func TestSignerOpts_Digest(t *testing.T) {
	opts := NewSignerOpts(crypto.SHA256, types.FormatRawPKCS1)
	digest, err := opts.Digest([]byte("abc"))
	require.NoError(t, err)
	expected := sha256.Sum256([]byte("abc"))
	assert.Equal(t, expected[:], digest)

	_, err = NewSignerOpts(0, types.FormatRawPKCS1).Digest([]byte("abc"))
	assert.ErrorIs(t, err, ErrInvalidHashFunction)
}

func TestSignerOpts_SHA3(t *testing.T) {
	opts := NewSignerOpts(types.SHA3_256.Hash(), types.FormatRSAPSS)
	digest, err := opts.Digest(nil)
	require.NoError(t, err)
	assert.Len(t, digest, 32)
}

func TestFromRequest(t *testing.T) {
	req := &types.SigningRequest{
		InFile:   "csf.bin",
		CertRef:  "crts/CSF1_crt.pem",
		Hash:     types.SHA384,
		Format:   types.FormatECDSARaw,
		Capacity: 96,
	}
	opts := FromRequest(req, nil)
	assert.Equal(t, crypto.SHA384, opts.Hash)
	assert.Equal(t, types.FormatECDSARaw, opts.Format)
	assert.Equal(t, 96, opts.Capacity)
}

func TestSignerOpts_CheckCapacity(t *testing.T) {
	opts := NewSignerOpts(crypto.SHA256, types.FormatECDSARaw)
	assert.NoError(t, opts.checkCapacity(1<<20, types.ErrBufferTooSmall))

	opts.WithCapacity(10)
	assert.NoError(t, opts.checkCapacity(10, types.ErrBufferTooSmall))
	err := opts.checkCapacity(11, types.ErrBufferTooSmall)
	assert.ErrorIs(t, err, types.ErrBufferTooSmall)
}
