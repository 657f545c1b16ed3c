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
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	slot := 0
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{"nil", nil, ErrInvalidConfig},
		{"no library", &Config{TokenLabel: "cst"}, ErrInvalidConfig},
		{"no token", &Config{Library: "/usr/lib/softhsm/libsofthsm2.so"}, ErrInvalidConfig},
		{"short pin", &Config{Library: "lib.so", TokenLabel: "cst", PIN: "12"}, ErrInvalidPINLength},
		{"label", &Config{Library: "lib.so", TokenLabel: "cst", PIN: "1234"}, nil},
		{"slot", &Config{Library: "lib.so", Slot: &slot}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_LogValue(t *testing.T) {
	slot := 2
	c := &Config{Library: "/usr/lib/softhsm/libsofthsm2.so", Slot: &slot, PIN: "secret"}

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("token", "config", c)

	out := buf.String()
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "config.pin_set=true")
	assert.Contains(t, out, "config.slot=2")
	assert.NotContains(t, out, "config.label")
}
