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
	"encoding/hex"
	"fmt"

	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/cobra"
)

func (a *app) encryptCommand() *cobra.Command {
	var (
		req    types.EncryptionRequest
		scheme string
		aad    string
	)

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt an image",
		Long: `Encrypt an image with a fresh data encryption key (DEK).

The DEK is written to --dek-file, wrapped for the recipient certificate
when --cert is given. With --reuse-dek the existing plaintext DEK in
--dek-file is used instead. The nonce and MAC needed by the image
header are printed.`,
		Example: `  cst encrypt --in u-boot.bin --out u-boot.enc --dek-file dek.bin
  cst encrypt --in img.bin --out img.enc --dek-file dek.bin --scheme aes-cbc --key-size 32`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if scheme == "" {
				target, err := types.ParseTarget(a.cfg.Signing.Target)
				if err != nil {
					return err
				}
				req.Scheme = types.DefaultScheme(target)
			} else if req.Scheme, err = types.ParseEncryptionScheme(scheme); err != nil {
				return err
			}
			if aad != "" {
				if req.AAD, err = hex.DecodeString(aad); err != nil {
					return fmt.Errorf("%w: --aad must be hex: %w", types.ErrInvalidArgument, err)
				}
			}

			eng, err := a.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			a.printVerbose("Encrypting %s with %s", req.InFile, req.Scheme)
			result, err := eng.Encrypt(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return a.printer(a.stdout).PrintEncryptionResult(req.OutFile, result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.InFile, "in", "", "plaintext image")
	flags.StringVar(&req.OutFile, "out", "", "ciphertext output file")
	flags.StringVar(&req.KeyFile, "dek-file", "", "DEK output file, or input with --reuse-dek")
	flags.StringVar(&req.CertFile, "cert", "", "recipient certificate used to wrap the DEK")
	flags.IntVar(&req.KeySizeBytes, "key-size", 16, "DEK size in bytes (16, 24, 32)")
	flags.BoolVar(&req.ReuseDEK, "reuse-dek", false, "encrypt with the DEK already in --dek-file")
	flags.StringVar(&scheme, "scheme", "", "aes-ccm or aes-cbc (default from signing target)")
	flags.StringVar(&aad, "aad", "", "hex encoded additional authenticated data")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("dek-file")

	return cmd
}
