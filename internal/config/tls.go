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
	"crypto/x509"
	"fmt"
	"os"
)

// LoadServerTLSConfig builds the signing server tls.Config
func (cfg *TLSConfig) LoadServerTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	minVersion, maxVersion, err := versionRange(cfg.MinVersion, cfg.MaxVersion)
	if err != nil {
		return nil, err
	}
	// #nosec G402 - MinVersion defaults to TLS 1.2
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		MaxVersion:   maxVersion,
	}

	if len(cfg.CipherSuites) > 0 {
		suites, err := parseCipherSuites(cfg.CipherSuites)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cipher suites: %w", err)
		}
		tlsConfig.CipherSuites = suites
	}

	clientAuth, err := parseClientAuthType(cfg.ClientAuth)
	if err != nil {
		return nil, fmt.Errorf("invalid client_auth value: %w", err)
	}
	tlsConfig.ClientAuth = clientAuth
	if clientAuth != tls.NoClientCert && (cfg.CAFile != "" || len(cfg.ClientCAs) > 0) {
		pool, err := loadCertPool(cfg.CAFile, cfg.ClientCAs)
		if err != nil {
			return nil, fmt.Errorf("failed to load client CA certificates: %w", err)
		}
		tlsConfig.ClientCAs = pool
	}

	return tlsConfig, nil
}

// LoadClientTLSConfig builds the mTLS client configuration for the
// remote signing service
func (cfg *RemoteConfig) LoadClientTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	pool, err := loadCertPool(cfg.RootCA, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load root CA: %w", err)
	}
	minVersion, maxVersion, err := versionRange(cfg.MinVersion, cfg.MaxVersion)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion defaults to TLS 1.2
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   cfg.ServerName,
		MinVersion:   minVersion,
		MaxVersion:   maxVersion,
	}, nil
}

// versionRange resolves the configured bounds. An empty maximum leaves
// the crypto/tls default (0) in place.
func versionRange(minName, maxName string) (lo, hi uint16, err error) {
	if lo, err = parseTLSVersion(minName); err != nil {
		return 0, 0, err
	}
	if maxName == "" {
		return lo, 0, nil
	}
	if hi, err = parseTLSVersion(maxName); err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("max TLS version %s is below min version %s", maxName, minName)
	}
	return lo, hi, nil
}

// parseTLSVersion converts a version name to a tls constant. TLS 1.0 and
// 1.1 are refused.
func parseTLSVersion(version string) (uint16, error) {
	switch version {
	case "", "TLS1.2":
		return tls.VersionTLS12, nil
	case "TLS1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version: %q (must be TLS1.2 or TLS1.3)", version)
	}
}

// parseClientAuthType converts a string to a tls.ClientAuthType
func parseClientAuthType(authType string) (tls.ClientAuthType, error) {
	switch authType {
	case "none", "":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "require":
		return tls.RequireAnyClientCert, nil
	case "verify":
		return tls.VerifyClientCertIfGiven, nil
	case "require_and_verify":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("unknown client auth type: %s", authType)
	}
}

// parseCipherSuites converts cipher suite names to IDs
func parseCipherSuites(suites []string) ([]uint16, error) {
	byName := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		byName[s.Name] = s.ID
	}

	result := make([]uint16, 0, len(suites))
	for _, name := range suites {
		id, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite: %s", name)
		}
		result = append(result, id)
	}
	return result, nil
}

// loadCertPool loads CA certificates into a cert pool
func loadCertPool(caFile string, additionalCAs []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, path := range append([]string{caFile}, additionalCAs...) {
		if path == "" {
			continue
		}
		// #nosec G304 - CA file paths from trusted config
		pemData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", path, err)
		}
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", path)
		}
	}
	return pool, nil
}
