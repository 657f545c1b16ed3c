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

// Package metrics provides Prometheus instrumentation for signing, DEK and
// image encryption operations, and for the remote signing server.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all cst metrics
	Namespace = "cst"

	// Label names
	LabelOperation  = "operation"
	LabelBackend    = "backend"
	LabelStatus     = "status"
	LabelErrorType  = "error_type"
	LabelFormat     = "format"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSign     = "sign"
	OpReadCert = "read_certificate"
	OpEncrypt  = "encrypt"
	OpDEK      = "dek"
	OpWrap     = "wrap"
	OpExport   = "export"
)

var (
	// OperationsTotal tracks operations by type, backend, and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of operations by type, backend, and status",
		},
		[]string{LabelOperation, LabelBackend, LabelStatus},
	)

	// OperationDuration tracks the duration of operations in seconds.
	// Remote and token round trips dominate the upper buckets.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelOperation, LabelBackend},
	)

	// ErrorsTotal tracks errors by operation, backend, and error kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, backend, and error kind",
		},
		[]string{LabelOperation, LabelBackend, LabelErrorType},
	)

	// SignatureBytes tracks the size of produced signatures per format.
	SignatureBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "signature_bytes",
			Help:      "Size of produced signatures in bytes",
			Buckets:   []float64{64, 128, 256, 384, 512, 768, 1024, 2048, 4096},
		},
		[]string{LabelFormat},
	)

	// HTTPRequestsTotal tracks signing server requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of signing server requests.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records an operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	sig, err := backend.Sign(ctx, req)
//	metrics.RecordOperation(metrics.OpSign, "direct-local", metrics.Status(err), time.Since(start).Seconds())
func RecordOperation(operation, backend, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, backend, status).Inc()
	OperationDuration.WithLabelValues(operation, backend).Observe(duration)
}

// RecordError records an error event. errorType should be a stable kind
// name such as "not_found" or "buffer_too_small".
func RecordError(operation, backend, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, backend, errorType).Inc()
}

// RecordSignature records the size of a produced signature.
func RecordSignature(format string, size int) {
	if !enabled.Load() {
		return
	}
	SignatureBytes.WithLabelValues(format).Observe(float64(size))
}

// RecordHTTPRequest records a signing server request.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// Status maps an error to StatusSuccess or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// Observe records the outcome of an operation started at start. kind is
// the error kind name used when err is non-nil.
func Observe(operation, backend string, start time.Time, err error, kind string) {
	RecordOperation(operation, backend, Status(err), time.Since(start).Seconds())
	if err != nil {
		RecordError(operation, backend, kind)
	}
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
