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

// Package cli implements the cst command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/internal/server"
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/jeremyhahn/go-cst/pkg/metrics"
	"github.com/jeremyhahn/go-cst/pkg/types"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Options replaces process level dependencies, mainly for tests.
type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs

	Stdout io.Writer
	Stderr io.Writer

	// Factory overrides backend construction. Fs, Passphrase and Logger
	// are always set from the command.
	Factory server.FactoryOptions
}

// app carries state shared by every command of one invocation.
type app struct {
	fs      afero.Fs
	stdout  io.Writer
	stderr  io.Writer
	factory server.FactoryOptions
	v       *viper.Viper

	cfg    *config.Config
	logger *logging.Logger
}

func newApp(opts Options) *app {
	a := &app{
		fs:      opts.Fs,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		factory: opts.Factory,
		v:       viper.New(),
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	a.v.SetFs(a.fs)
	a.v.SetEnvPrefix("CST")
	a.v.AutomaticEnv()
	return a
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	return ExecuteArgs(os.Args[1:], Options{})
}

// ExecuteArgs runs the command line with args and returns the exit code.
// Errors are printed to stderr in the selected output format.
func ExecuteArgs(args []string, opts Options) int {
	a := newApp(opts)
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		_ = a.printer(a.stderr).PrintError(err) // best effort
		return ExitCode(err)
	}
	return ExitOK
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cst",
		Short: "cst - firmware code signing tool",
		Long: `cst signs and encrypts firmware images for secure boot.

Signing backends:
  - direct-local:    PEM or DER keys on disk
  - direct-token:    PKCS#11 hardware tokens
  - direct-kms:      AWS KMS, GCP KMS, Azure Key Vault, Vault transit
  - delegate-remote: remote HSM signing service over mutual TLS
  - export:          offline signing request files`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	})

	flags := cmd.PersistentFlags()
	flags.String("config", "",
		"config file (default is ./cst.yaml, $HOME/.cst/cst.yaml or /etc/cst/cst.yaml)")
	flags.StringP("output", "o", "text", "output format (text, json)")
	flags.BoolP("verbose", "v", false, "verbose output")
	for _, name := range []string{"config", "output", "verbose"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(
		a.signCommand(),
		a.encryptCommand(),
		a.certCommand(),
		a.serveCommand(),
		a.versionCommand(),
	)
	return cmd
}

// load reads the configuration and sets up logging before any command.
func (a *app) load(_ *cobra.Command, _ []string) error {
	if _, err := ParseOutputFormat(a.v.GetString("output")); err != nil {
		return err
	}

	path, err := a.configFile()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}
	var cfg *config.Config
	if path == "" {
		cfg, err = config.FromEnv()
	} else {
		cfg, err = config.LoadFs(a.fs, path)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidArgument, err)
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.v.GetBool("verbose") {
		level = "debug"
	}
	a.logger = logging.New(logging.Options{
		Level:  level,
		Format: logging.Format(cfg.Logging.Format),
		Output: a.stderr,
	})
	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	a.logger.Debug("configuration loaded", "file", path, "mode", cfg.Signing.Mode)
	return nil
}

// configFile returns --config, or the first cst.yaml found on the search
// path, or "" when there is none.
func (a *app) configFile() (string, error) {
	if path := a.v.GetString("config"); path != "" {
		return path, nil
	}

	a.v.SetConfigName("cst")
	a.v.SetConfigType("yaml")
	a.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, ".cst"))
	}
	a.v.AddConfigPath("/etc/cst")

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", err
	}
	return a.v.ConfigFileUsed(), nil
}

// passphrase returns the CST_KEY_PASSPHRASE callback for encrypted keys.
func (a *app) passphrase() certstore.PassphraseFunc {
	if p := a.v.GetString("key_passphrase"); p != "" {
		return certstore.StaticPassphrase([]byte(p))
	}
	return nil
}

func (a *app) newEngine(ctx context.Context) (*server.Engine, error) {
	opts := a.factory
	opts.Fs = a.fs
	opts.Passphrase = a.passphrase()
	opts.Logger = a.logger
	return server.NewEngine(ctx, a.cfg, opts)
}

func (a *app) printer(w io.Writer) *Printer {
	format, err := ParseOutputFormat(a.v.GetString("output"))
	if err != nil {
		format = OutputFormatText
	}
	return NewPrinter(format, w)
}

// printVerbose prints a message if verbose mode is enabled
func (a *app) printVerbose(format string, args ...interface{}) {
	if a.v.GetBool("verbose") {
		fmt.Fprintf(a.stderr, "[VERBOSE] "+format+"\n", args...)
	}
}
