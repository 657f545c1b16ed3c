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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// Common errors
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrRequestTooLarge = errors.New("request body too large")
	ErrInternalError   = errors.New("internal server error")
	ErrNoSigner        = errors.New("server: signer certificate is required")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes an error response to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:     err.Error(),
		Kind:      types.Kind(err),
		Code:      statusCode,
		RequestID: RequestID(r.Context()),
	}
	if resp.Kind == "unknown" {
		resp.Kind = ""
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		s.logger.Warn("failed to encode error response", "error", encErr)
	}
}

// mapErrorToStatusCode maps error kinds to HTTP status codes.
func mapErrorToStatusCode(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, types.ErrInvalidArgument),
		errors.Is(err, types.ErrBufferTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
