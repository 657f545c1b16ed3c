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

package export

import (
	"fmt"

	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// DefaultRequestFile is the name of the signing-request file written to
// the work directory.
const DefaultRequestFile = "sig_request.txt"

// Config configures the signing-request export backend.
type Config struct {
	// Target selects the request layout. Defaults to HAB.
	Target types.Target

	// WorkDir receives the request file and HAB data copies.
	WorkDir string

	// RequestFile overrides DefaultRequestFile.
	RequestFile string

	Fs     afero.Fs
	Logger *logging.Logger
}

// Validate applies defaults and checks the target.
func (c *Config) Validate() error {
	if c.Target == "" {
		c.Target = types.TargetHAB
	}
	if c.Target != types.TargetHAB && c.Target != types.TargetAHAB {
		return fmt.Errorf("%w: %w: %q", types.ErrInvalidArgument, ErrInvalidTarget, c.Target)
	}
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.RequestFile == "" {
		c.RequestFile = DefaultRequestFile
	}
	return nil
}
