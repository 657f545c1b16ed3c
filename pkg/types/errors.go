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

package types

import (
	"errors"
	"fmt"
)

// Error kinds. Package level errors wrap one of these so callers can
// classify any failure with errors.Is.
var (
	// ErrInvalidArgument is returned for nil or malformed inputs and for
	// unknown format or mode names.
	ErrInvalidArgument = errors.New("cst: invalid argument")

	// ErrNotFound is returned for a missing certificate, key or key file.
	ErrNotFound = errors.New("cst: not found")

	// ErrProvider is returned for any failure inside the cryptography
	// provider: digest, sign, encrypt or parse.
	ErrProvider = errors.New("cst: crypto provider error")

	// ErrInsufficientMemory is returned when a buffer cannot be allocated.
	ErrInsufficientMemory = errors.New("cst: insufficient memory")

	// ErrBufferTooSmall is returned when the caller's buffer cannot hold a
	// fixed size signature. The output is left untouched.
	ErrBufferTooSmall = errors.New("cst: buffer too small")

	// ErrSignatureTooLarge is returned when a variable size signature is
	// larger than the caller's buffer or the format's upper bound.
	ErrSignatureTooLarge = errors.New("cst: signature too large")

	// ErrIO is returned for file create, read and write failures.
	ErrIO = errors.New("cst: i/o error")

	// ErrUnsupportedOperation is returned when no backend can serve a
	// mode and format combination.
	ErrUnsupportedOperation = errors.New("cst: unsupported operation")

	// ErrRngHealthFailure is returned when the nonce self check detects a
	// stuck random source.
	ErrRngHealthFailure = errors.New("cst: rng health check failed")

	// ErrEncryptionDisabled is returned instead of success when encryption
	// is switched off. Callers must not treat it as an encrypted result.
	ErrEncryptionDisabled = errors.New("cst: encryption disabled")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidArgument, "invalid_argument"},
	{ErrNotFound, "not_found"},
	{ErrBufferTooSmall, "buffer_too_small"},
	{ErrSignatureTooLarge, "signature_too_large"},
	{ErrInsufficientMemory, "insufficient_memory"},
	{ErrIO, "io_error"},
	{ErrUnsupportedOperation, "unsupported_operation"},
	{ErrRngHealthFailure, "rng_health_failure"},
	{ErrEncryptionDisabled, "encryption_disabled"},
	{ErrProvider, "provider_error"},
}

// Kind returns a short name for the error kind wrapped by err, "" for nil
// and "unknown" when err wraps none of the kinds.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

// SizeError reports a signature that does not fit the caller's buffer.
// Required is always the true size of the signature.
type SizeError struct {
	Required int
	Capacity int

	// Kind is ErrBufferTooSmall or ErrSignatureTooLarge.
	Kind error
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%v: required %d bytes, capacity %d", e.Kind, e.Required, e.Capacity)
}

func (e *SizeError) Unwrap() error {
	return e.Kind
}

// RequiredSize extracts the required size from a SizeError in err's chain.
func RequiredSize(err error) (int, bool) {
	var sizeErr *SizeError
	if errors.As(err, &sizeErr) {
		return sizeErr.Required, true
	}
	return 0, false
}
