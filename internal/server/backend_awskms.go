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

//go:build awskms

package server

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/backend/awskms"
	"github.com/jeremyhahn/go-cst/pkg/backend/kms"
)

// createAWSKMSProvider builds the AWS KMS provider from kms.aws settings
func createAWSKMSProvider(_ context.Context, cfg *config.KMSConfig) (kms.Provider, error) {
	if cfg.AWS == nil {
		return nil, fmt.Errorf("kms.aws is required for the awskms provider")
	}
	provider, err := awskms.NewProvider(&awskms.Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKey,
		SecretAccessKey: cfg.AWS.SecretKey,
		Endpoint:        cfg.AWS.Endpoint,
		KeyID:           cfg.KeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS KMS provider: %w", err)
	}
	return provider, nil
}
