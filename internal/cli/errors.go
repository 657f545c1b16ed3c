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

package cli

import (
	"errors"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// Exit codes returned by Execute.
const (
	ExitOK = iota
	ExitFailure
	ExitInvalidArgument
	ExitNotFound
	ExitUnsupported
	ExitProvider
	ExitIO
	ExitSize
	ExitRngHealth
	ExitEncryptionDisabled
)

// ErrOutputRequired is returned when a command has nowhere to write.
var ErrOutputRequired = errors.New("cli: output file is required")

// ExitCode maps an error kind to a process exit code.
func ExitCode(err error) int {
	switch types.Kind(err) {
	case "":
		return ExitOK
	case "invalid_argument":
		return ExitInvalidArgument
	case "not_found":
		return ExitNotFound
	case "unsupported_operation":
		return ExitUnsupported
	case "provider_error", "insufficient_memory":
		return ExitProvider
	case "io_error":
		return ExitIO
	case "buffer_too_small", "signature_too_large":
		return ExitSize
	case "rng_health_failure":
		return ExitRngHealth
	case "encryption_disabled":
		return ExitEncryptionDisabled
	default:
		return ExitFailure
	}
}
