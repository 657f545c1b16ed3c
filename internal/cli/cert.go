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
	"github.com/spf13/cobra"
)

func (a *app) certCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cert <ref>",
		Short: "Read a certificate",
		Long: `Read a certificate from a file or a token and print it.

References starting with "pkcs11:" are looked up on the configured
PKCS#11 token. Anything else is read from disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			cert, err := eng.ReadCertificate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printer(a.stdout).PrintCertificate(cert)
		},
	}
}
