// Copyright 2024 The Armored Witness Bundle authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tufcrypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"math/big"
)

// ErrBadSignature means a well-formed public key, digest and signature were
// supplied but the signature does not verify. It carries no information
// about why; callers fold it into whatever business-level status applies.
var ErrBadSignature = errors.New("bad ecdsa signature")

// VerifyP256Signature checks sig (raw r||s, 64 bytes) against digest using
// the uncompressed P-256 public key pub (65 bytes: 0x04 || X || Y). All
// three inputs are fixed size and passed by value so callers may build them
// on the stack.
func VerifyP256Signature(pub [65]byte, digest [32]byte, sig [64]byte) error {
	if pub[0] != 0x04 {
		return errors.New("public key is not an uncompressed point")
	}
	curve := elliptic.P256()
	x := new(big.Int).SetBytes(pub[1:33])
	y := new(big.Int).SetBytes(pub[33:65])
	if !curve.IsOnCurve(x, y) {
		return errors.New("public key is not on the P-256 curve")
	}
	pk := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !ecdsa.Verify(pk, digest[:], r, s) {
		return ErrBadSignature
	}
	return nil
}
