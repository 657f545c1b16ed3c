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

	"github.com/jeremyhahn/go-cst/internal/server"
	"github.com/jeremyhahn/go-cst/pkg/backend/pkcs8"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/cobra"
)

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the remote signing server",
		Long: `Run the signing service used by delegate-remote clients.

The server signs request bodies with server.signer_cert and its key over
TLS. Client certificates are verified when server.tls.client_auth asks
for them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateServer(); err != nil {
				return fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
			}

			signer, err := pkcs8.NewBackend(&pkcs8.Config{
				Fs:         a.fs,
				Passphrase: a.passphrase(),
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}

			srv, err := server.New(a.cfg, server.Options{
				Signer:  signer,
				Fs:      a.fs,
				Version: versionString(),
				Logger:  a.logger,
			})
			if err != nil {
				_ = signer.Close()
				return err
			}

			a.logger.Info("starting signing server", "listen", a.cfg.Server.Listen)
			return srv.Start(cmd.Context())
		},
	}
}
