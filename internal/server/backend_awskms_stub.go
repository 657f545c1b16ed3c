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

//go:build !awskms

package server

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/backend/kms"
	"github.com/jeremyhahn/go-cst/pkg/types"
)

// createAWSKMSProvider is a stub when AWS KMS support is not compiled in
func createAWSKMSProvider(context.Context, *config.KMSConfig) (kms.Provider, error) {
	return nil, fmt.Errorf("%w: awskms provider not compiled in (use -tags awskms)", types.ErrUnsupportedOperation)
}
