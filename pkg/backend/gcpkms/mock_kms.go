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

package gcpkms

import (
	"context"

	"cloud.google.com/go/kms/apiv1/kmspb"
)

// MockKMSClient is a mock implementation of the KMSClient interface for testing.
type MockKMSClient struct {
	AsymmetricSignFunc func(ctx context.Context, req *kmspb.AsymmetricSignRequest) (*kmspb.AsymmetricSignResponse, error)
	GetPublicKeyFunc   func(ctx context.Context, req *kmspb.GetPublicKeyRequest) (*kmspb.PublicKey, error)
	CloseFunc          func() error

	Closed bool
}

// AsymmetricSign mocks signing a digest.
func (m *MockKMSClient) AsymmetricSign(ctx context.Context, req *kmspb.AsymmetricSignRequest) (*kmspb.AsymmetricSignResponse, error) {
	if m.AsymmetricSignFunc != nil {
		return m.AsymmetricSignFunc(ctx, req)
	}
	return &kmspb.AsymmetricSignResponse{}, nil
}

// GetPublicKey mocks fetching a key version's public key.
func (m *MockKMSClient) GetPublicKey(ctx context.Context, req *kmspb.GetPublicKeyRequest) (*kmspb.PublicKey, error) {
	if m.GetPublicKeyFunc != nil {
		return m.GetPublicKeyFunc(ctx, req)
	}
	return &kmspb.PublicKey{}, nil
}

// Close mocks closing the client.
func (m *MockKMSClient) Close() error {
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
