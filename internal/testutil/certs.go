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

package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/youmark/pkcs8"
)

// certLifetime bounds every generated certificate; tests never outlive it.
const certLifetime = 24 * time.Hour

// TestCA is a throwaway P-256 issuing authority for server, client and
// code-signing certificates.
type TestCA struct {
	Cert    *x509.Certificate
	Key     *ecdsa.PrivateKey
	CertPEM []byte
	KeyPEM  []byte
}

// TestCertificate is an issued TLS certificate together with its key.
type TestCertificate struct {
	Cert    *x509.Certificate
	Key     *ecdsa.PrivateKey
	CertPEM []byte
	KeyPEM  []byte
	TLSCert tls.Certificate
}

// GenerateTestCA creates a self-signed CA.
//
//	ca, err := testutil.GenerateTestCA()
//	require.NoError(t, err)
func GenerateTestCA() (*TestCA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}
	tmpl := &x509.Certificate{
		Subject:               pkix.Name{Organization: []string{"go-cst tests"}, CommonName: "Test CST CA"},
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	cert, der, err := issue(tmpl, nil, key, key)
	if err != nil {
		return nil, err
	}
	keyPEM, err := ecKeyPEM(key)
	if err != nil {
		return nil, err
	}
	return &TestCA{Cert: cert, Key: key, CertPEM: certPEM(der), KeyPEM: keyPEM}, nil
}

// GenerateTestServerCert issues a TLS server certificate for dnsNames,
// defaulting to localhost.
func GenerateTestServerCert(ca *TestCA, dnsNames ...string) (*TestCertificate, error) {
	if len(dnsNames) == 0 {
		dnsNames = []string{"localhost"}
	}
	return issueTLS(ca, &x509.Certificate{
		Subject:     pkix.Name{Organization: []string{"cst signing server"}, CommonName: dnsNames[0]},
		DNSNames:    dnsNames,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
}

// GenerateTestClientCert issues a TLS client certificate. The common name
// is what the server logs and rate limits by.
func GenerateTestClientCert(ca *TestCA, commonName string) (*TestCertificate, error) {
	if commonName == "" {
		commonName = "test-client"
	}
	return issueTLS(ca, &x509.Certificate{
		Subject:     pkix.Name{Organization: []string{"cst signing client"}, CommonName: commonName},
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
}

func issueTLS(ca *TestCA, tmpl *x509.Certificate) (*TestCertificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	tmpl.BasicConstraintsValid = true
	cert, der, err := issue(tmpl, ca.Cert, key, ca.Key)
	if err != nil {
		return nil, err
	}
	keyPEM, err := ecKeyPEM(key)
	if err != nil {
		return nil, err
	}
	out := &TestCertificate{Cert: cert, Key: key, CertPEM: certPEM(der), KeyPEM: keyPEM}
	if out.TLSCert, err = tls.X509KeyPair(out.CertPEM, out.KeyPEM); err != nil {
		return nil, fmt.Errorf("failed to build TLS key pair: %w", err)
	}
	return out, nil
}

// issue fills in serial and validity and signs tmpl. A nil parent
// self-signs.
func issue(tmpl, parent *x509.Certificate, subject crypto.Signer, issuer crypto.Signer) (*x509.Certificate, []byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	tmpl.SerialNumber = serial
	tmpl.NotBefore = time.Now().Add(-time.Minute)
	tmpl.NotAfter = tmpl.NotBefore.Add(certLifetime)
	if parent == nil {
		parent = tmpl
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, subject.Public(), issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate %q: %w", tmpl.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, der, nil
}

func certPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func ecKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal EC key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// SigningIdentity is a code-signing certificate with its private key, in
// the layouts the loader accepts.
type SigningIdentity struct {
	Cert    *x509.Certificate
	Key     crypto.Signer
	CertDER []byte
	CertPEM []byte
	// KeyDER is the unencrypted PKCS#8 encoding of Key
	KeyDER []byte
	KeyPEM []byte
}

// GenerateRSASigningCert issues an RSA code-signing certificate of the
// given modulus size from ca.
func GenerateRSASigningCert(ca *TestCA, bits int) (*SigningIdentity, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return issueSigningCert(ca, key, fmt.Sprintf("SRK1 RSA-%d", bits))
}

// GenerateECSigningCert issues an ECDSA code-signing certificate on curve
// from ca.
func GenerateECSigningCert(ca *TestCA, curve elliptic.Curve) (*SigningIdentity, error) {
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate EC key: %w", err)
	}
	return issueSigningCert(ca, key, "SRK1 "+curve.Params().Name)
}

func issueSigningCert(ca *TestCA, key crypto.Signer, commonName string) (*SigningIdentity, error) {
	cert, certDER, err := issue(&x509.Certificate{
		Subject:               pkix.Name{Organization: []string{"cst code signing"}, CommonName: commonName},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		BasicConstraintsValid: true,
	}, ca.Cert, key, ca.Key)
	if err != nil {
		return nil, err
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	return &SigningIdentity{
		Cert:    cert,
		Key:     key,
		CertDER: certDER,
		CertPEM: certPEM(certDER),
		KeyDER:  keyDER,
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

// EncryptedKeyPEM returns the key as a passphrase protected PKCS#8 PEM
// block.
func (id *SigningIdentity) EncryptedKeyPEM(passphrase []byte) ([]byte, error) {
	der, err := pkcs8.MarshalPrivateKey(id.Key, passphrase, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: der}), nil
}

// WritePKI lays the identity out the way CST PKI trees do:
//
//	<root>/crts/<name>_crt.pem
//	<root>/keys/<name>_key.pem
//
// and returns both paths.
func WritePKI(fs afero.Fs, root, name string, id *SigningIdentity) (certPath, keyPath string, err error) {
	certPath = filepath.Join(root, "crts", name+"_crt.pem")
	keyPath = filepath.Join(root, "keys", name+"_key.pem")
	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fs, certPath, id.CertPEM, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := afero.WriteFile(fs, keyPath, id.KeyPEM, 0o600); err != nil {
		return "", "", fmt.Errorf("failed to write key: %w", err)
	}
	return certPath, keyPath, nil
}
