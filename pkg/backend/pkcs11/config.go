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
	"fmt"
	"log/slog"
)

// MinPINLength is the shortest user PIN accepted by Validate.
const MinPINLength = 4

// Config locates the token holding the CST signing keys. Either Slot or
// TokenLabel must be set; Library is the vendor PKCS#11 module, for
// example /usr/lib/softhsm/libsofthsm2.so.
type Config struct {
	Library    string `yaml:"library" json:"library" mapstructure:"library"`
	PIN        string `yaml:"pin,omitempty" json:"pin,omitempty" mapstructure:"pin"`
	Slot       *int   `yaml:"slot,omitempty" json:"slot,omitempty" mapstructure:"slot"`
	TokenLabel string `yaml:"label" json:"label" mapstructure:"label"`
}

// Validate reports a missing module or token selector and a PIN that is
// set but too short.
func (c *Config) Validate() error {
	switch {
	case c == nil:
		return ErrInvalidConfig
	case c.Library == "":
		return fmt.Errorf("%w: library path is required", ErrInvalidConfig)
	case c.TokenLabel == "" && c.Slot == nil:
		return fmt.Errorf("%w: token label or slot is required", ErrInvalidConfig)
	case c.PIN != "" && len(c.PIN) < MinPINLength:
		return ErrInvalidPINLength
	}
	return nil
}

// LogValue renders the token selector for structured logs. The PIN is
// never included.
func (c *Config) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("library", c.Library),
		slog.Bool("pin_set", c.PIN != ""),
	}
	if c.TokenLabel != "" {
		attrs = append(attrs, slog.String("label", c.TokenLabel))
	}
	if c.Slot != nil {
		attrs = append(attrs, slog.Int("slot", *c.Slot))
	}
	return slog.GroupValue(attrs...)
}
