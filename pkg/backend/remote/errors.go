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
package remote

import "errors"

var (
	// ErrRemoteRejected is returned when the signing service answers with
	// a non-2xx status.
	ErrRemoteRejected = errors.New("remote: signing request rejected")

	// ErrRemoteTransport is returned when the request cannot be delivered
	// or the response cannot be read.
	ErrRemoteTransport = errors.New("remote: transport failure")

	// ErrInvalidConfig is returned for a missing endpoint or TLS setup.
	ErrInvalidConfig = errors.New("remote: invalid configuration")

	// ErrEmptyResponse is returned when the service answers 2xx with no body.
	ErrEmptyResponse = errors.New("remote: empty signature")
)
