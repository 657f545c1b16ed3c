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
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpSign, "direct-local", StatusSuccess, 0.5)

	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpSign, "direct-local", StatusSuccess)); got != 1 {
		t.Errorf("Expected 1 sign operation, got %v", got)
	}
	if count := testutil.CollectAndCount(OperationDuration); count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}

	RecordOperation(OpEncrypt, "aes-ccm", StatusError, 0.1)
	if count := testutil.CollectAndCount(OperationsTotal); count != 2 {
		t.Errorf("Expected 2 operation series, got %d", count)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	OperationsTotal.Reset()
	RecordOperation(OpSign, "direct-local", StatusSuccess, 0.5)
	RecordError(OpSign, "direct-local", "not_found")
	RecordSignature("cms", 700)

	if count := testutil.CollectAndCount(OperationsTotal); count != 0 {
		t.Errorf("Expected 0 operations when disabled, got %d", count)
	}
}

func TestObserve(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	ErrorsTotal.Reset()

	Observe(OpSign, "direct-token", time.Now(), nil, "")
	Observe(OpSign, "direct-token", time.Now(), errors.New("boom"), "provider_error")

	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpSign, "direct-token", StatusSuccess)); got != 1 {
		t.Errorf("Expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpSign, "direct-token", StatusError)); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpSign, "direct-token", "provider_error")); got != 1 {
		t.Errorf("Expected 1 provider_error, got %v", got)
	}
}

func TestRecordSignature(t *testing.T) {
	Enable()
	SignatureBytes.Reset()

	RecordSignature("ecdsa", 64)
	RecordSignature("ecdsa", 132)

	if count := testutil.CollectAndCount(SignatureBytes); count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}
}

func TestStatus(t *testing.T) {
	if Status(nil) != StatusSuccess {
		t.Error("nil error should map to success")
	}
	if Status(errors.New("x")) != StatusError {
		t.Error("non-nil error should map to error")
	}
}
