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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddleware(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("signed"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sign", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "200")); got != 1 {
		t.Errorf("Expected 1 request recorded, got %v", got)
	}
}

func TestHTTPMiddleware_CapturesErrorStatus(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sign", nil))

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "400")); got != 1 {
		t.Errorf("Expected first status to be recorded, got %v", got)
	}
}

func TestHTTPMiddleware_Disabled(t *testing.T) {
	Disable()
	defer Enable()
	HTTPRequestsTotal.Reset()

	called := false
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if !called {
		t.Error("Expected handler to be called")
	}
	if count := testutil.CollectAndCount(HTTPRequestsTotal); count != 0 {
		t.Errorf("Expected no requests recorded, got %d", count)
	}
}

func TestHTTPMiddleware_EmptyHandlerIsOK(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "200")); got != 1 {
		t.Errorf("Expected 1 request recorded as 200, got %v", got)
	}
}
