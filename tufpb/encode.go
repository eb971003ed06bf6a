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

import "google.golang.org/protobuf/encoding/protowire"

// Builder appends fields to a message buffer in wire order. It is the
// counterpart to internal/wireview's decoder, used to build test fixtures.
// Manifest.Export does not use it: it streams the verified bytes verbatim.
//
// This module has no generated message types (see the package doc), so
// Builder works directly in terms of field numbers, the same ones defined
// in this package's constants.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Uint32 appends a varint-encoded uint32 field.
func (b *Builder) Uint32(num protowire.Number, v uint32) *Builder {
	return b.Uint64(num, uint64(v))
}

// Uint64 appends a varint-encoded uint64 field.
func (b *Builder) Uint64(num protowire.Number, v uint64) *Builder {
	b.buf = protowire.AppendTag(b.buf, num, protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, v)
	return b
}

// Bytes appends a length-delimited bytes field.
func (b *Builder) Bytes(num protowire.Number, v []byte) *Builder {
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, v)
	return b
}

// String appends a length-delimited string field.
func (b *Builder) String(num protowire.Number, v string) *Builder {
	return b.Bytes(num, []byte(v))
}

// Message appends an already-encoded nested message; embedded messages and
// bytes share the length-delimited wire type.
func (b *Builder) Message(num protowire.Number, msg []byte) *Builder {
	return b.Bytes(num, msg)
}

// Build returns the accumulated wire encoding.
func (b *Builder) Build() []byte {
	return b.buf
}

// MapEntry encodes a single string-keyed map entry (key field 1, value
// field 2) as a standalone message, suitable for passing to Builder.Message
// against the map's own field number.
func MapEntry(key string, value []byte) []byte {
	return NewBuilder().String(1, key).Message(2, value).Build()
}
