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

// Package pkcs11 implements the direct-token signing mode: signing keys and
// certificates live on a PKCS#11 token and never leave it.
//
// Each request opens one token session, looks up the certificate and the
// key pair, signs, and closes the session before returning, including on
// every error path. Only hashing and the reshaping of ECDSA signatures
// into r|s happen on the host.
//
// # Token References
//
// Certificates and keys are named by PKCS#11 URIs or bare object labels:
//
//	pkcs11:object=SRK1;id=%01
//	pkcs11:object=CSF1_1_sha256_2048_65537_v3_usr;id=0a0b
//	IMG1_1_sha256_2048_65537_v3_usr
//
// A certificate reference that names an existing file is read from disk
// instead, so a token key can be paired with a certificate kept in the
// PKI tree.
//
// # Build Tags
//
// The crypto11 based token access is compiled with the pkcs11 build tag.
// Without it NewCrypto11Opener returns an opener that fails with
// types.ErrUnsupportedOperation. Tests inject an Opener instead.
//
// # Testing with SoftHSM
//
//	softhsm2-util --init-token --slot 0 --label "cst" \
//		--so-pin "admin1234" --pin "user1234"
//	pkcs11-tool --module /usr/lib/softhsm/libsofthsm2.so --login --pin user1234 \
//		--write-object SRK1_crt.der --type cert --label SRK1 --id 01
package pkcs11
