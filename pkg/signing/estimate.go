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
package signing

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"strings"
)

// cmsFixedOverhead is the part of a CST detached SignedData that does not
// depend on the signer certificate.
const cmsFixedOverhead = 217

// EstimateCMSSize returns the historical CMS size estimate for cert: the
// fixed overhead plus the key size in bytes, the serial number length and
// the length of the one-line issuer name. It only sizes placeholders for
// signatures produced elsewhere; CMS output from this package is always
// measured after encoding.
func EstimateCMSSize(cert *x509.Certificate) (int, error) {
	if cert == nil {
		return 0, fmt.Errorf("certificate is required")
	}
	var keyBytes int
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		keyBytes = pub.Size()
	case *ecdsa.PublicKey:
		keyBytes = (pub.Curve.Params().BitSize + 7) / 8
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedAlgorithm, pub)
	}
	serialBytes := len(cert.SerialNumber.Bytes())
	return cmsFixedOverhead + keyBytes + serialBytes + len(OnelineName(cert.Issuer)), nil
}

var shortNames = map[string]string{
	"2.5.4.3":              "CN",
	"2.5.4.5":              "serialNumber",
	"2.5.4.6":              "C",
	"2.5.4.7":              "L",
	"2.5.4.8":              "ST",
	"2.5.4.9":              "street",
	"2.5.4.10":             "O",
	"2.5.4.11":             "OU",
	"2.5.4.17":             "postalCode",
	"1.2.840.113549.1.9.1": "emailAddress",
}

// OnelineName renders name in the "/C=US/O=Org/CN=Name" form. Parsed
// names keep their certificate order.
func OnelineName(name pkix.Name) string {
	atvs := name.Names
	if len(atvs) == 0 {
		for _, rdn := range name.ToRDNSequence() {
			atvs = append(atvs, rdn...)
		}
	}
	var sb strings.Builder
	for _, atv := range atvs {
		key, ok := shortNames[atv.Type.String()]
		if !ok {
			key = atv.Type.String()
		}
		fmt.Fprintf(&sb, "/%s=%v", key, atv.Value)
	}
	return sb.String()
}
