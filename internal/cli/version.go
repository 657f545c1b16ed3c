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
	"runtime"

	"github.com/jeremyhahn/go-cst/internal/server"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X github.com/jeremyhahn/go-cst/internal/cli.Version=..."
var (
	Version   = ""
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func versionString() string {
	if Version != "" {
		return Version
	}
	return server.Version()
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_, err := ParseOutputFormat(a.v.GetString("output"))
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := a.printer(a.stdout)
			if p.format == OutputFormatJSON {
				return p.printJSON(map[string]string{
					"version":    versionString(),
					"git_commit": GitCommit,
					"build_date": BuildDate,
					"go_version": runtime.Version(),
					"platform":   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
				})
			}
			fmt.Fprintf(a.stdout, "cst version %s\n", versionString())
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(a.stdout, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
