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
package pkcs11

import (
	"testing"

	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		in    string
		label string
		id    []byte
	}{
		{"SRK1", "SRK1", nil},
		{"pkcs11:object=SRK1", "SRK1", nil},
		{"pkcs11:object=SRK1;id=%01", "SRK1", []byte{0x01}},
		{"pkcs11:id=0a0b", "", []byte{0x0a, 0x0b}},
		{"PKCS11:object=CSF%201;id=%0a%ff", "CSF 1", []byte{0x0a, 0xff}},
		{"pkcs11:token=cst;object=IMG1?pin-value=1234", "IMG1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref, err := ParseReference(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.label, ref.Label)
			assert.Equal(t, tt.id, ref.ID)
		})
	}
}

func TestParseReference_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"pkcs11:",
		"pkcs11:token=cst",
		"pkcs11:object",
		"pkcs11:id=zz",
		"pkcs11:object=%zz",
	} {
		_, err := ParseReference(in)
		assert.ErrorIs(t, err, ErrInvalidURI, in)
		assert.ErrorIs(t, err, types.ErrInvalidArgument, in)
	}
}

func TestReference_String(t *testing.T) {
	ref := Reference{Label: "CSF 1", ID: []byte{0x01, 0xab}}
	assert.Equal(t, "pkcs11:object=CSF%201;id=%01%ab", ref.String())

	back, err := ParseReference(ref.String())
	require.NoError(t, err)
	assert.Equal(t, ref, back)
}

func TestIsURI(t *testing.T) {
	assert.True(t, IsURI("pkcs11:object=a"))
	assert.True(t, IsURI("PKCS11:object=a"))
	assert.False(t, IsURI("/pki/crts/a_crt.pem"))
}
