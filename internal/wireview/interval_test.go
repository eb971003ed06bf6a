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

package wireview

import (
	"errors"
	"testing"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

func TestReadFullWrongSizeBuffer(t *testing.T) {
	msg := tufpb.NewBuilder().Bytes(1, []byte("0123456789")).Build()
	v := newView(t, msg)
	ir, err := v.Bytes(1)
	if err != nil {
		t.Fatalf("Bytes(1): %v", err)
	}
	if err := ir.ReadFull(make([]byte, 4)); !errors.Is(err, status.ErrInternal) {
		t.Fatalf("ReadFull with undersized buffer = %v, want ErrInternal", err)
	}
}

func TestReadStringTooLong(t *testing.T) {
	msg := tufpb.NewBuilder().String(1, "a long target name").Build()
	v := newView(t, msg)
	ir, err := v.Bytes(1)
	if err != nil {
		t.Fatalf("Bytes(1): %v", err)
	}
	if _, err := ir.ReadString(make([]byte, 4)); !errors.Is(err, status.ErrResourceExhausted) {
		t.Fatalf("ReadString with undersized buffer = %v, want ErrResourceExhausted", err)
	}
}

func TestReadStringExactFit(t *testing.T) {
	msg := tufpb.NewBuilder().String(1, "bundle.bin").Build()
	v := newView(t, msg)
	ir, err := v.Bytes(1)
	if err != nil {
		t.Fatalf("Bytes(1): %v", err)
	}
	got, err := ir.ReadString(make([]byte, ir.Len()))
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if got != "bundle.bin" {
		t.Fatalf("ReadString() = %q, want %q", got, "bundle.bin")
	}
}
