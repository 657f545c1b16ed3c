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

package cli

import (
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates an --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputFormatText, OutputFormatJSON:
		return f, nil
	case "":
		return OutputFormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (text or json)", types.ErrInvalidArgument, s)
	}
}

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format OutputFormat, writer io.Writer) *Printer {
	return &Printer{
		format: format,
		writer: writer,
	}
}

// SignResult summarizes one sign command.
type SignResult struct {
	Out    string
	Bytes  int
	Mode   types.Mode
	Format types.SignatureFormat
	Hash   types.HashAlgorithm
}

// PrintSignResult prints where the signature went
func (p *Printer) PrintSignResult(r SignResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "success",
			"out":    r.Out,
			"bytes":  r.Bytes,
			"mode":   r.Mode,
			"format": r.Format,
			"hash":   r.Hash,
		})
	default:
		fmt.Fprintf(p.writer, "Signature: %d bytes written to %s\n", r.Bytes, r.Out)
		fmt.Fprintf(p.writer, "Mode:      %s\n", r.Mode)
		fmt.Fprintf(p.writer, "Format:    %s\n", r.Format)
		fmt.Fprintf(p.writer, "Hash:      %s\n", r.Hash)
		return nil
	}
}

// PrintEncryptionResult prints the nonce and MAC an image header needs
func (p *Printer) PrintEncryptionResult(out string, r *types.EncryptionResult) error {
	switch p.format {
	case OutputFormatJSON:
		info := map[string]interface{}{
			"status":         "success",
			"out":            out,
			"scheme":         r.Scheme,
			"nonce":          hex.EncodeToString(r.Nonce),
			"ciphertext_len": r.CiphertextLen,
		}
		if r.Authenticated() {
			info["mac"] = hex.EncodeToString(r.MAC)
		}
		return p.printJSON(info)
	default:
		fmt.Fprintf(p.writer, "Ciphertext: %d bytes written to %s\n", r.CiphertextLen, out)
		fmt.Fprintf(p.writer, "Scheme:     %s\n", r.Scheme)
		fmt.Fprintf(p.writer, "Nonce:      %s\n", hex.EncodeToString(r.Nonce))
		if r.Authenticated() {
			fmt.Fprintf(p.writer, "MAC:        %s\n", hex.EncodeToString(r.MAC))
		}
		return nil
	}
}

// PrintCertificate prints a certificate in PEM format
func (p *Printer) PrintCertificate(cert *x509.Certificate) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"subject":       cert.Subject.String(),
			"issuer":        cert.Issuer.String(),
			"serial_number": cert.SerialNumber.String(),
			"not_before":    cert.NotBefore.String(),
			"not_after":     cert.NotAfter.String(),
			"public_key":    cert.PublicKeyAlgorithm.String(),
			"pem":           string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})),
		})
	default:
		return pem.Encode(p.writer, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		info := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		if kind := types.Kind(err); kind != "unknown" {
			info["kind"] = kind
		}
		if required, ok := types.RequiredSize(err); ok {
			info["required_bytes"] = required
		}
		return p.printJSON(info)
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// printJSON prints data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
