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

//go:build azurekv

package azurekv

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
)

// MockKeyVaultClient is a mock implementation of KeyVaultClient for testing.
type MockKeyVaultClient struct {
	GetKeyFunc func(ctx context.Context, name, version string, options *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error)
	SignFunc   func(ctx context.Context, name, version string, params azkeys.SignParameters, options *azkeys.SignOptions) (azkeys.SignResponse, error)
}

// GetKey mocks fetching a key.
func (m *MockKeyVaultClient) GetKey(ctx context.Context, name, version string, options *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error) {
	if m.GetKeyFunc != nil {
		return m.GetKeyFunc(ctx, name, version, options)
	}
	return azkeys.GetKeyResponse{}, nil
}

// Sign mocks signing a digest.
func (m *MockKeyVaultClient) Sign(ctx context.Context, name, version string, params azkeys.SignParameters, options *azkeys.SignOptions) (azkeys.SignResponse, error) {
	if m.SignFunc != nil {
		return m.SignFunc(ctx, name, version, params, options)
	}
	return azkeys.SignResponse{}, nil
}
