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

// Package tufcrypto provides the two fixed-size cryptographic primitives
// the verification pipeline needs: a streaming SHA-256 digest and an
// ECDSA-P256 signature check. Both take stdlib types; see DESIGN.md for
// why these two stay on the standard library.
package tufcrypto

import (
	"crypto/sha256"
	"io"
)

// SHA256Stream digests r in a single forward pass. r need not support
// seeking or multiple passes.
func SHA256Stream(r io.Reader) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}
