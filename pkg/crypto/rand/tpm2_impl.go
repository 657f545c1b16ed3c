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

//go:build tpm2

package rand

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/google/go-tpm/tpm2/transport/tcp"
	"github.com/google/go-tpm/tpmutil"
)

// tpm2Resolver draws from the TPM with TPM2_GetRandom, in chunks of at
// most MaxRequestSize bytes.
type tpm2Resolver struct {
	tpm     transport.TPMCloser
	maxSize int
	mu      sync.Mutex
}

var _ Resolver = (*tpm2Resolver)(nil)

const (
	defaultTPMDevice     = "/dev/tpmrm0"
	defaultTPMChunk      = 32
	defaultSimulatorHost = "localhost"
	defaultSimulatorPort = 2321
)

func (c TPM2Config) withDefaults() TPM2Config {
	if c.Device == "" {
		c.Device = defaultTPMDevice
	}
	if c.MaxRequestSize <= 0 {
		c.MaxRequestSize = defaultTPMChunk
	}
	if c.SimulatorHost == "" {
		c.SimulatorHost = defaultSimulatorHost
	}
	if c.SimulatorPort <= 0 {
		c.SimulatorPort = defaultSimulatorPort
	}
	return c
}

func newTPM2Resolver(config *TPM2Config) (Resolver, error) {
	var cfg TPM2Config
	if config != nil {
		cfg = *config
	}
	cfg = cfg.withDefaults()

	tpm, err := openTPM(cfg)
	if err != nil {
		return nil, err
	}
	return &tpm2Resolver{tpm: tpm, maxSize: cfg.MaxRequestSize}, nil
}

// openTPM connects to swtpm over TCP or to a character device.
func openTPM(cfg TPM2Config) (transport.TPMCloser, error) {
	if !cfg.UseSimulator {
		dev, err := tpmutil.OpenTPM(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("rand: open %s: %w", cfg.Device, err)
		}
		return transport.FromReadWriteCloser(dev), nil
	}
	// swtpm takes commands on port and platform control on port+1
	cmd := fmt.Sprintf("%s:%d", cfg.SimulatorHost, cfg.SimulatorPort)
	sim, err := tcp.Open(tcp.Config{
		CommandAddress:  cmd,
		PlatformAddress: fmt.Sprintf("%s:%d", cfg.SimulatorHost, cfg.SimulatorPort+1),
	})
	if err != nil {
		return nil, fmt.Errorf("rand: connect TPM simulator %s: %w", cmd, err)
	}
	return sim, nil
}

func tpm2Available() bool {
	return true
}

func (t *tpm2Resolver) Rand(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tpm == nil {
		return nil, errors.New("rand: TPM2 source closed")
	}

	result := make([]byte, 0, n)
	for len(result) < n {
		chunk := min(n-len(result), t.maxSize)
		getRandom := tpm2.GetRandom{BytesRequested: uint16(chunk)}
		rsp, err := getRandom.Execute(t.tpm)
		if err != nil {
			return nil, fmt.Errorf("rand: TPM2_GetRandom: %w", err)
		}
		if len(rsp.RandomBytes.Buffer) == 0 {
			return nil, errors.New("rand: TPM2_GetRandom returned no data")
		}
		result = append(result, rsp.RandomBytes.Buffer...)
	}
	return result[:n], nil
}

func (t *tpm2Resolver) Read(b []byte) (int, error) {
	data, err := t.Rand(len(b))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (t *tpm2Resolver) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tpm != nil
}

func (t *tpm2Resolver) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tpm == nil {
		return nil
	}
	err := t.tpm.Close()
	t.tpm = nil
	return err
}
