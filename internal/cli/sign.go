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
	"fmt"

	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type signFlags struct {
	in, out  string
	cert     string
	key      string
	keyURI   string
	mode     string
	hash     string
	format   string
	payload  string
	capacity int
}

func (a *app) signCommand() *cobra.Command {
	var f signFlags

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a file",
		Long: `Sign a file with the configured backend and write the signature.

The private key is derived from the certificate path unless --key or
--key-uri is given. Hash and format default to the signing section of
the configuration.`,
		Example: `  cst sign --in csf.bin --cert crts/CSF1_1_sha256_2048_65537_v3_usr_crt.pem --out csf.sig
  cst sign --in img.bin --cert IMG1 --mode direct-token --format pkcs1 --out img.sig`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.out == "" {
				return fmt.Errorf("%w: %w", types.ErrInvalidArgument, ErrOutputRequired)
			}
			req, err := a.signingRequest(&f)
			if err != nil {
				return err
			}

			eng, err := a.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			if req.Mode == "" {
				req.Mode = eng.Selector().DefaultMode()
			}
			a.printVerbose("Signing %s with %s (%s, %s)", req.InFile, req.Mode, req.Format, req.Hash)

			sig, err := eng.Sign(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := afero.WriteFile(a.fs, f.out, sig, 0o644); err != nil {
				return fmt.Errorf("%w: write signature %s: %w", types.ErrIO, f.out, err)
			}

			return a.printer(a.stdout).PrintSignResult(SignResult{
				Out:    f.out,
				Bytes:  len(sig),
				Mode:   req.Mode,
				Format: req.Format,
				Hash:   req.Hash,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.in, "in", "", "file to sign")
	flags.StringVar(&f.out, "out", "", "signature output file")
	flags.StringVar(&f.cert, "cert", "", "signing certificate path or token reference")
	flags.StringVar(&f.key, "key", "", "private key path (default is derived from --cert)")
	flags.StringVar(&f.keyURI, "key-uri", "", "PKCS#11 URI or label of the private key")
	flags.StringVar(&f.mode, "mode", "", "signing backend (default from config)")
	flags.StringVar(&f.hash, "hash", "", "digest algorithm (sha1, sha256, sha384, sha512)")
	flags.StringVar(&f.format, "format", "", "signature format (pkcs1, rsa-pss, ecdsa, cms)")
	flags.StringVar(&f.payload, "payload", string(types.PayloadImage), "payload kind for remote signing (image, csf)")
	flags.IntVar(&f.capacity, "max-size", 0, "fail when the signature exceeds this many bytes (0 = unbounded)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("cert")

	return cmd
}

func (a *app) signingRequest(f *signFlags) (*types.SigningRequest, error) {
	hash := f.hash
	if hash == "" {
		hash = a.cfg.Signing.Hash
	}
	format := f.format
	if format == "" {
		format = a.cfg.Signing.Format
	}

	req := &types.SigningRequest{
		InFile:   f.in,
		CertRef:  f.cert,
		KeyRef:   types.KeyReference{Path: f.key, TokenURI: f.keyURI},
		Payload:  types.PayloadKind(f.payload),
		Capacity: f.capacity,
	}

	var err error
	if req.Hash, err = types.ParseHashAlgorithm(hash); err != nil {
		return nil, err
	}
	if req.Format, err = types.ParseSignatureFormat(format); err != nil {
		return nil, err
	}
	if f.mode != "" {
		if req.Mode, err = types.ParseMode(f.mode); err != nil {
			return nil, err
		}
	}
	switch req.Payload {
	case types.PayloadImage, types.PayloadCSF:
	default:
		return nil, fmt.Errorf("%w: unknown payload %q", types.ErrInvalidArgument, f.payload)
	}
	return req, nil
}
