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
package pkcs8

import (
	"github.com/jeremyhahn/go-cst/pkg/certstore"
	"github.com/jeremyhahn/go-cst/pkg/logging"
	"github.com/spf13/afero"
)

// Config contains configuration for the PKCS8Backend.
type Config struct {
	// Fs holds certificates, keys and the files being signed. Defaults to
	// the OS filesystem.
	Fs afero.Fs

	// Passphrase opens encrypted private keys. It is only called for
	// keys that are actually encrypted.
	Passphrase certstore.PassphraseFunc

	Logger *logging.Logger
}

// NewBackend creates a new local key backend with the given configuration.
//
// Example usage:
//
//	be, err := pkcs8.NewBackend(&pkcs8.Config{
//	    Passphrase: certstore.StaticPassphrase([]byte("test")),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer be.Close()
//
//	sig, err := be.Sign(ctx, &types.SigningRequest{
//	    InFile:  "csf.bin",
//	    CertRef: "crts/CSF1_1_sha256_2048_65537_v3_usr_crt.pem",
//	    Hash:    types.SHA256,
//	    Format:  types.FormatCMSDetached,
//	})
func NewBackend(config *Config) (*PKCS8Backend, error) {
	if config == nil {
		config = &Config{}
	}
	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &PKCS8Backend{
		fs:         fs,
		loader:     certstore.NewLoader(fs, logger),
		passphrase: config.Passphrase,
		logger:     logger,
	}, nil
}
