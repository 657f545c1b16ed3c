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

//go:build pkcs11

package rand

import (
	"errors"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// pkcs11Resolver draws from the token RNG with C_GenerateRandom.
type pkcs11Resolver struct {
	ctx        *pkcs11.Ctx
	mu         sync.RWMutex
	session    pkcs11.SessionHandle
	hasSession bool
	loggedIn   bool
}

var _ Resolver = (*pkcs11Resolver)(nil)

func newPKCS11Resolver(config *PKCS11Config) (Resolver, error) {
	if config == nil || config.Module == "" {
		return nil, fmt.Errorf("rand: %s source needs a module path", ModePKCS11)
	}

	ctx := pkcs11.New(config.Module)
	if ctx == nil {
		return nil, fmt.Errorf("rand: cannot load PKCS#11 module %s", config.Module)
	}
	if err := ctx.Initialize(); err != nil && !errors.Is(err, pkcs11.Error(pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED)) {
		ctx.Destroy()
		return nil, fmt.Errorf("rand: C_Initialize: %w", err)
	}

	r := &pkcs11Resolver{ctx: ctx}
	fail := func(step string, err error) (Resolver, error) {
		_ = r.Close()
		return nil, fmt.Errorf("rand: %s on slot %d: %w", step, config.SlotID, err)
	}

	// Some tokens only activate slots after C_GetSlotList
	if _, err := ctx.GetSlotList(true); err != nil {
		return fail("C_GetSlotList", err)
	}
	session, err := ctx.OpenSession(config.SlotID, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		return fail("C_OpenSession", err)
	}
	r.session, r.hasSession = session, true

	if config.PIN == "" {
		return r, nil
	}
	switch err := ctx.Login(session, pkcs11.CKU_USER, config.PIN); {
	case err == nil:
		r.loggedIn = true
	case errors.Is(err, pkcs11.Error(pkcs11.CKR_USER_ALREADY_LOGGED_IN)):
	default:
		return fail("C_Login", err)
	}
	return r, nil
}

func pkcs11Available() bool {
	return true
}

func (p *pkcs11Resolver) Rand(n int) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.ctx == nil {
		return nil, errors.New("rand: PKCS#11 source closed")
	}
	result, err := p.ctx.GenerateRandom(p.session, n)
	if err != nil {
		return nil, fmt.Errorf("rand: C_GenerateRandom: %w", err)
	}
	if len(result) != n {
		return nil, fmt.Errorf("rand: token returned %d of %d bytes", len(result), n)
	}
	return result, nil
}

func (p *pkcs11Resolver) Read(b []byte) (int, error) {
	data, err := p.Rand(len(b))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (p *pkcs11Resolver) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ctx != nil
}

func (p *pkcs11Resolver) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil
	}
	if p.loggedIn {
		_ = p.ctx.Logout(p.session)
	}
	if p.hasSession {
		_ = p.ctx.CloseSession(p.session)
	}
	_ = p.ctx.Finalize()
	p.ctx.Destroy()
	p.ctx = nil
	return nil
}
