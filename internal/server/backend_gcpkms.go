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

//go:build gcpkms

package server

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/backend/gcpkms"
	"github.com/jeremyhahn/go-cst/pkg/backend/kms"
)

// createGCPKMSProvider builds the Cloud KMS provider from kms.gcp settings
func createGCPKMSProvider(ctx context.Context, cfg *config.KMSConfig) (kms.Provider, error) {
	if cfg.GCP == nil {
		return nil, fmt.Errorf("kms.gcp is required for the gcpkms provider")
	}
	provider, err := gcpkms.NewProvider(ctx, &gcpkms.Config{
		ProjectID:       cfg.GCP.ProjectID,
		LocationID:      cfg.GCP.Location,
		KeyRingID:       cfg.GCP.KeyRing,
		CredentialsFile: cfg.GCP.Credentials,
		Endpoint:        cfg.GCP.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP KMS provider: %w", err)
	}
	return provider, nil
}
