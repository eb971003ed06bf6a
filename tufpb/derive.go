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

package tufpb

import "crypto/sha256"

// DeriveKeyID computes the key id a well-formed Key message is expected to
// carry: SHA-256 over the single type byte, the single scheme byte, and the
// raw key value, in that order. internal/verify.CheckRootContent uses
// DeriveKeyID to enforce that every key id on the wire actually matches its
// key material, rather than trusting a producer-supplied id at face value.
func DeriveKeyID(typ KeyType, scheme KeyScheme, keyval []byte) [32]byte {
	buf := make([]byte, 0, 2+len(keyval))
	buf = append(buf, byte(typ), byte(scheme))
	buf = append(buf, keyval...)
	return sha256.Sum256(buf)
}
