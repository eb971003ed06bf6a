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

import "testing"

func TestDeriveKeyIDDeterministic(t *testing.T) {
	keyval := make([]byte, PublicKeySize)
	for i := range keyval {
		keyval[i] = byte(i)
	}
	a := DeriveKeyID(KeyTypeECDSAP256, KeySchemeECDSASHA2NistP256, keyval)
	b := DeriveKeyID(KeyTypeECDSAP256, KeySchemeECDSASHA2NistP256, keyval)
	if a != b {
		t.Fatalf("DeriveKeyID is not deterministic: %x != %x", a, b)
	}
}

func TestDeriveKeyIDSensitiveToInputs(t *testing.T) {
	keyval := make([]byte, PublicKeySize)
	base := DeriveKeyID(KeyTypeECDSAP256, KeySchemeECDSASHA2NistP256, keyval)

	if got := DeriveKeyID(KeyTypeUnknown, KeySchemeECDSASHA2NistP256, keyval); got == base {
		t.Error("changing key type did not change the derived key id")
	}
	if got := DeriveKeyID(KeyTypeECDSAP256, KeySchemeUnknown, keyval); got == base {
		t.Error("changing key scheme did not change the derived key id")
	}
	other := append([]byte(nil), keyval...)
	other[0] ^= 0xff
	if got := DeriveKeyID(KeyTypeECDSAP256, KeySchemeECDSASHA2NistP256, other); got == base {
		t.Error("changing keyval did not change the derived key id")
	}
}
