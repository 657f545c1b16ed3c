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

package config

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/jeremyhahn/go-cst/internal/testutil"
)

type tlsFiles struct {
	caFile, certFile, keyFile, clientCert, clientKey string
}

func writeTLSFiles(t *testing.T) tlsFiles {
	t.Helper()
	ca, err := testutil.GenerateTestCA()
	if err != nil {
		t.Fatalf("Failed to generate CA: %v", err)
	}
	server, err := testutil.GenerateTestServerCert(ca, "localhost")
	if err != nil {
		t.Fatalf("Failed to generate server cert: %v", err)
	}
	client, err := testutil.GenerateTestClientCert(ca, "cst-client")
	if err != nil {
		t.Fatalf("Failed to generate client cert: %v", err)
	}

	dir := t.TempDir()
	f := tlsFiles{
		caFile:     filepath.Join(dir, "ca.pem"),
		certFile:   filepath.Join(dir, "server.pem"),
		keyFile:    filepath.Join(dir, "server-key.pem"),
		clientCert: filepath.Join(dir, "client.pem"),
		clientKey:  filepath.Join(dir, "client-key.pem"),
	}
	for path, data := range map[string][]byte{
		f.caFile:     ca.CertPEM,
		f.certFile:   server.CertPEM,
		f.keyFile:    server.KeyPEM,
		f.clientCert: client.CertPEM,
		f.clientKey:  client.KeyPEM,
	} {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	return f
}

func TestLoadServerTLSConfig(t *testing.T) {
	f := writeTLSFiles(t)
	cfg := &TLSConfig{
		CertFile:     f.certFile,
		KeyFile:      f.keyFile,
		CAFile:       f.caFile,
		ClientAuth:   "require_and_verify",
		MinVersion:   "TLS1.3",
		CipherSuites: []string{"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"},
	}

	tlsConfig, err := cfg.LoadServerTLSConfig()
	if err != nil {
		t.Fatalf("LoadServerTLSConfig() error = %v", err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Errorf("Certificates = %d, want 1", len(tlsConfig.Certificates))
	}
	if tlsConfig.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %x, want TLS 1.3", tlsConfig.MinVersion)
	}
	if tlsConfig.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %v, want RequireAndVerifyClientCert", tlsConfig.ClientAuth)
	}
	if tlsConfig.ClientCAs == nil {
		t.Error("ClientCAs should be loaded")
	}
	if len(tlsConfig.CipherSuites) != 1 {
		t.Errorf("CipherSuites = %v", tlsConfig.CipherSuites)
	}
}

func TestLoadServerTLSConfig_Errors(t *testing.T) {
	f := writeTLSFiles(t)
	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"missing cert", TLSConfig{CertFile: "/nope.pem", KeyFile: f.keyFile}},
		{"legacy version", TLSConfig{CertFile: f.certFile, KeyFile: f.keyFile, MinVersion: "TLS1.0"}},
		{"inverted versions", TLSConfig{CertFile: f.certFile, KeyFile: f.keyFile, MinVersion: "TLS1.3", MaxVersion: "TLS1.2"}},
		{"unknown suite", TLSConfig{CertFile: f.certFile, KeyFile: f.keyFile, CipherSuites: []string{"TLS_NULL"}}},
		{"unknown client auth", TLSConfig{CertFile: f.certFile, KeyFile: f.keyFile, ClientAuth: "maybe"}},
		{"bad client CA", TLSConfig{CertFile: f.certFile, KeyFile: f.keyFile, ClientAuth: "verify", ClientCAs: []string{f.keyFile}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.LoadServerTLSConfig(); err == nil {
				t.Error("LoadServerTLSConfig() error = nil, want error")
			}
		})
	}
}

func TestLoadClientTLSConfig(t *testing.T) {
	f := writeTLSFiles(t)
	cfg := &RemoteConfig{
		ClientCert: f.clientCert,
		ClientKey:  f.clientKey,
		RootCA:     f.caFile,
		ServerName: "localhost",
	}

	tlsConfig, err := cfg.LoadClientTLSConfig()
	if err != nil {
		t.Fatalf("LoadClientTLSConfig() error = %v", err)
	}
	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", tlsConfig.MinVersion)
	}
	if tlsConfig.RootCAs == nil || len(tlsConfig.Certificates) != 1 {
		t.Error("client certificate and root pool should be loaded")
	}
	if tlsConfig.ServerName != "localhost" {
		t.Errorf("ServerName = %q", tlsConfig.ServerName)
	}

	cfg.RootCA = "/missing/ca.pem"
	if _, err := cfg.LoadClientTLSConfig(); err == nil {
		t.Error("LoadClientTLSConfig() should fail without root CA")
	}
}
