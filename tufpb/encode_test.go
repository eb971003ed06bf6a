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

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestBuilderRoundTrip(t *testing.T) {
	msg := NewBuilder().
		Uint32(1, 7).
		String(2, "hello").
		Bytes(3, []byte{0xde, 0xad, 0xbe, 0xef}).
		Build()

	b := msg
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		t.Fatalf("ConsumeTag: %v", protowire.ParseError(n))
	}
	if num != 1 || typ != protowire.VarintType {
		t.Fatalf("field 1: got num=%d typ=%v", num, typ)
	}
	b = b[n:]
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		t.Fatalf("ConsumeVarint: %v", protowire.ParseError(n))
	}
	if v != 7 {
		t.Errorf("field 1 value = %d, want 7", v)
	}
	b = b[n:]

	num, typ, n = protowire.ConsumeTag(b)
	if n < 0 || num != 2 || typ != protowire.BytesType {
		t.Fatalf("field 2 tag: num=%d typ=%v n=%d", num, typ, n)
	}
	b = b[n:]
	s, n := protowire.ConsumeBytes(b)
	if n < 0 {
		t.Fatalf("ConsumeBytes: %v", protowire.ParseError(n))
	}
	if string(s) != "hello" {
		t.Errorf("field 2 value = %q, want %q", s, "hello")
	}
	b = b[n:]

	num, typ, n = protowire.ConsumeTag(b)
	if n < 0 || num != 3 || typ != protowire.BytesType {
		t.Fatalf("field 3 tag: num=%d typ=%v n=%d", num, typ, n)
	}
}

func TestMapEntry(t *testing.T) {
	entry := MapEntry("k", []byte{1, 2, 3})

	b := entry
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 || num != 1 || typ != protowire.BytesType {
		t.Fatalf("key tag: num=%d typ=%v n=%d", num, typ, n)
	}
	b = b[n:]
	key, n := protowire.ConsumeBytes(b)
	if n < 0 || string(key) != "k" {
		t.Fatalf("key value = %q, n=%d", key, n)
	}
	b = b[n:]

	num, typ, n = protowire.ConsumeTag(b)
	if n < 0 || num != 2 || typ != protowire.BytesType {
		t.Fatalf("value tag: num=%d typ=%v n=%d", num, typ, n)
	}
	b = b[n:]
	val, n := protowire.ConsumeBytes(b)
	if n < 0 || string(val) != "\x01\x02\x03" {
		t.Fatalf("value = %v, n=%d", val, n)
	}
}
