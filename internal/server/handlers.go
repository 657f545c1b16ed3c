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
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-cst/pkg/metrics"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Mode    string `json:"mode"`
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	resp := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Mode:    s.signer.Type().String(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode health response", "error", err)
	}
}

// signHandler signs the request body with the configured signer and
// answers with the raw signature bytes.
//
// Query parameters: format (default cms), hash (default from config) and
// payload (image or csf, informational).
func (s *Server) signHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := s.parseSignRequest(r)
	if err != nil {
		s.writeError(w, r, err, mapErrorToStatusCode(err))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxRequest))
	if err != nil {
		if mapErrorToStatusCode(err) == http.StatusRequestEntityTooLarge {
			s.writeError(w, r, fmt.Errorf("%w: limit %d bytes", ErrRequestTooLarge, s.maxRequest), http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: read body: %w", ErrInvalidRequest, err), http.StatusBadRequest)
		return
	}

	inFile, cleanup, err := s.stage(body)
	if err != nil {
		s.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	defer cleanup()
	req.InFile = inFile

	sig, err := s.signer.Sign(r.Context(), req)
	metrics.Observe(metrics.OpSign, "server", start, err, types.Kind(err))
	if err != nil {
		s.logger.Error(err, "request_id", RequestID(r.Context()), "format", req.Format)
		s.writeError(w, r, err, mapErrorToStatusCode(err))
		return
	}
	metrics.RecordSignature(req.Format.String(), len(sig))

	contentType := "application/octet-stream"
	if req.Format == types.FormatCMSDetached {
		contentType = "application/pkcs7-signature"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(sig); err != nil {
		s.logger.Warn("failed to write signature", "request_id", RequestID(r.Context()), "error", err)
	}
}

func (s *Server) parseSignRequest(r *http.Request) (*types.SigningRequest, error) {
	q := r.URL.Query()

	req := &types.SigningRequest{
		CertRef: s.config.Server.SignerCert,
		KeyRef:  types.KeyReference{Path: s.config.Server.SignerKey},
		Hash:    s.hash,
		Format:  types.FormatCMSDetached,
		Mode:    s.signer.Type(),
		Payload: types.PayloadImage,
	}

	var err error
	if v := q.Get("format"); v != "" {
		if req.Format, err = types.ParseSignatureFormat(v); err != nil {
			return nil, err
		}
	}
	if v := q.Get("hash"); v != "" {
		if req.Hash, err = types.ParseHashAlgorithm(v); err != nil {
			return nil, err
		}
	}
	switch p := types.PayloadKind(q.Get("payload")); p {
	case "":
	case types.PayloadImage, types.PayloadCSF:
		req.Payload = p
	default:
		return nil, fmt.Errorf("%w: unknown payload %q", ErrInvalidRequest, p)
	}
	return req, nil
}

// stage writes body to a temporary file for the signer and returns a
// function that removes it.
func (s *Server) stage(body []byte) (string, func(), error) {
	if err := s.fs.MkdirAll(s.tempDir, 0o700); err != nil {
		return "", nil, fmt.Errorf("%w: create %s: %w", types.ErrIO, s.tempDir, err)
	}
	f, err := afero.TempFile(s.fs, s.tempDir, "cst-sign-*.bin")
	if err != nil {
		return "", nil, fmt.Errorf("%w: create staging file: %w", types.ErrIO, err)
	}
	name := f.Name()
	cleanup := func() {
		if err := s.fs.Remove(name); err != nil {
			s.logger.Warn("failed to remove staging file", "file", name, "error", err)
		}
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("%w: write staging file: %w", types.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: close staging file: %w", types.ErrIO, err)
	}
	return name, cleanup, nil
}
