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

// Package wireview is a lazy, seek-based view over a protocol-buffer message
// living on a seekable byte source. It never materializes a message's
// payload: every accessor either decodes a small scalar directly or returns
// an IntervalReader (offset + length over the underlying source) that the
// caller streams on demand. Field lookup scans the wire encoding linearly,
// skipping length-delimited values it isn't interested in by seeking past
// them rather than reading them, so a multi-megabyte target payload never
// touches RAM during lookup.
//
// A View or IntervalReader that carries an error returns it from every
// accessor and iterator called on it, and ToBytes passes a View's error on
// to the IntervalReader it returns. An accessor that fails returns its
// error together with a zero View or IntervalReader; that zero value does
// not carry the error, so callers check the returned error before using it.
package wireview

import (
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
)

// View is a lazy reference to a length-delimited region of r that is
// expected to hold an encoded protobuf message.
type View struct {
	r     io.ReadSeeker
	base  int64
	limit int64
	err   error
}

// New wraps the region [base, base+limit) of r as a message view.
func New(r io.ReadSeeker, base, limit int64) View {
	return View{r: r, base: base, limit: limit}
}

// NewFromSeeker wraps the entirety of r, from its current position to EOF,
// as a message view. It is used to view backend-supplied root/manifest
// readers, which are seeked to 0 by their caller before use.
func NewFromSeeker(r io.ReadSeeker) (View, error) {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return View{}, fmt.Errorf("seek current: %w", err)
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return View{}, fmt.Errorf("seek end: %w", err)
	}
	if _, err := r.Seek(cur, io.SeekStart); err != nil {
		return View{}, fmt.Errorf("seek restore: %w", err)
	}
	return View{r: r, base: cur, limit: end - cur}, nil
}

// Err returns the sticky error latched by a prior failed accessor, if any.
func (v View) Err() error {
	return v.err
}

func (v View) fail(err error) View {
	return View{err: err}
}

// field is one decoded (tag, value) occurrence found while scanning v.
type field struct {
	num      protowire.Number
	typ      protowire.Type
	valStart int64
	valLen   int64
	scalar   uint64 // decoded value, valid only when typ == VarintType
}

// scan performs a single linear pass over v's byte range, invoking fn for
// every field encountered. fn returns stop=true to end the scan early.
func (v View) scan(fn func(field) (stop bool, err error)) error {
	if v.err != nil {
		return v.err
	}
	pos := v.base
	end := v.base + v.limit
	for pos < end {
		if _, err := v.r.Seek(pos, io.SeekStart); err != nil {
			return fmt.Errorf("seek tag at %d: %w", pos, err)
		}
		tag, tagLen, err := readVarint(v.r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tag at %d: %w", pos, err)
		}
		num, typ := protowire.DecodeTag(tag)
		if num < 1 {
			return fmt.Errorf("invalid field number in tag at %d: %w", pos, status.ErrInternal)
		}
		valPos := pos + int64(tagLen)

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			if _, err := v.r.Seek(valPos, io.SeekStart); err != nil {
				return fmt.Errorf("seek varint at %d: %w", valPos, err)
			}
			val, n, err := readVarint(v.r)
			if err != nil {
				return fmt.Errorf("read varint at %d: %w", valPos, err)
			}
			f.scalar = val
			f.valStart = valPos
			f.valLen = int64(n)
		case protowire.Fixed32Type:
			f.valStart = valPos
			f.valLen = 4
		case protowire.Fixed64Type:
			f.valStart = valPos
			f.valLen = 8
		case protowire.BytesType:
			if _, err := v.r.Seek(valPos, io.SeekStart); err != nil {
				return fmt.Errorf("seek length at %d: %w", valPos, err)
			}
			ln, n, err := readVarint(v.r)
			if err != nil {
				return fmt.Errorf("read length at %d: %w", valPos, err)
			}
			f.valStart = valPos + int64(n)
			f.valLen = int64(ln)
		default:
			return fmt.Errorf("unsupported wire type %d at %d: %w", typ, pos, status.ErrInternal)
		}

		if f.valStart+f.valLen > end {
			return fmt.Errorf("field %d value overruns message bound: %w", num, status.ErrInternal)
		}

		stop, err := fn(f)
		if err != nil {
			return err
		}
		pos = f.valStart + f.valLen
		if stop {
			return nil
		}
	}
	return nil
}

// firstMatch returns the first occurrence of fieldNum, or found=false if it
// never occurs.
func (v View) firstMatch(fieldNum protowire.Number) (f field, found bool, err error) {
	err = v.scan(func(c field) (bool, error) {
		if c.num != fieldNum {
			return false, nil
		}
		f = c
		found = true
		return true, nil
	})
	return f, found, err
}

// Uint32 reads a uint32-typed scalar field.
func (v View) Uint32(fieldNum protowire.Number) (uint32, error) {
	val, err := v.varint(fieldNum)
	return uint32(val), err
}

// Uint64 reads a uint64-typed scalar field.
func (v View) Uint64(fieldNum protowire.Number) (uint64, error) {
	return v.varint(fieldNum)
}

func (v View) varint(fieldNum protowire.Number) (uint64, error) {
	if v.err != nil {
		return 0, v.err
	}
	f, found, err := v.firstMatch(fieldNum)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("field %d absent: %w", fieldNum, status.ErrNotFound)
	}
	if f.typ != protowire.VarintType {
		return 0, fmt.Errorf("field %d: wrong wire type %d: %w", fieldNum, f.typ, status.ErrInternal)
	}
	return f.scalar, nil
}

// Bytes reads a bytes- or string-typed field as an IntervalReader.
func (v View) Bytes(fieldNum protowire.Number) (IntervalReader, error) {
	if v.err != nil {
		return IntervalReader{}, v.err
	}
	f, found, err := v.firstMatch(fieldNum)
	if err != nil {
		return IntervalReader{}, err
	}
	if !found {
		return IntervalReader{}, fmt.Errorf("field %d absent: %w", fieldNum, status.ErrNotFound)
	}
	if f.typ != protowire.BytesType {
		return IntervalReader{}, fmt.Errorf("field %d: wrong wire type %d: %w", fieldNum, f.typ, status.ErrInternal)
	}
	return IntervalReader{r: v.r, offset: f.valStart, length: f.valLen}, nil
}

// Message reads a nested-message-typed field as a View over the same
// underlying bytes Bytes() would return; embedded messages and bytes share
// the length-delimited wire type, so both accessors answer the same scan.
func (v View) Message(fieldNum protowire.Number) (View, error) {
	ir, err := v.Bytes(fieldNum)
	if err != nil {
		return View{}, err
	}
	return View{r: v.r, base: ir.offset, limit: ir.length}, nil
}

// ToBytes exposes v's own byte range, e.g. to hash or sign the message it
// views without re-fetching it through a parent accessor.
func (v View) ToBytes() IntervalReader {
	return IntervalReader{r: v.r, offset: v.base, length: v.limit, err: v.err}
}

// MessageIter iterates the occurrences of a repeated message field.
type MessageIter struct {
	v     View
	field protowire.Number
	pos   int64
	end   int64
	err   error
}

// RepeatedMessage returns an iterator over every occurrence of fieldNum
// decoded as a nested message.
func (v View) RepeatedMessage(fieldNum protowire.Number) *MessageIter {
	it := &MessageIter{v: v, field: fieldNum, pos: v.base, end: v.base + v.limit}
	if v.err != nil {
		it.err = v.err
	}
	return it
}

// Next returns the next matching element, or ok=false once exhausted or on
// error; callers should check Err() after a false return.
func (it *MessageIter) Next() (View, bool) {
	if it.err != nil {
		return View{}, false
	}
	for it.pos < it.end {
		sub, nextPos, num, typ, err := readOneField(it.v.r, it.pos)
		if err != nil {
			it.err = err
			return View{}, false
		}
		it.pos = nextPos
		if num != it.field {
			continue
		}
		if typ != protowire.BytesType {
			it.err = fmt.Errorf("field %d: wrong wire type %d: %w", num, typ, status.ErrInternal)
			return View{}, false
		}
		return sub, true
	}
	return View{}, false
}

// Err returns any error encountered while iterating.
func (it *MessageIter) Err() error {
	return it.err
}

// BytesIter iterates the occurrences of a repeated bytes/string field.
type BytesIter struct {
	inner *MessageIter
}

// RepeatedBytes returns an iterator over every occurrence of fieldNum
// decoded as bytes.
func (v View) RepeatedBytes(fieldNum protowire.Number) *BytesIter {
	return &BytesIter{inner: v.RepeatedMessage(fieldNum)}
}

// Next returns the next matching element as an IntervalReader.
func (it *BytesIter) Next() (IntervalReader, bool) {
	sub, ok := it.inner.Next()
	if !ok {
		return IntervalReader{}, false
	}
	return sub.ToBytes(), true
}

// Err returns any error encountered while iterating.
func (it *BytesIter) Err() error {
	return it.inner.Err()
}

// readOneField decodes the single field starting at pos and returns a View
// over its value (valid regardless of whether the value is bytes, a nested
// message, or a scalar reinterpreted as 8 bytes) plus the position of the
// following field.
func readOneField(r io.ReadSeeker, pos int64) (val View, nextPos int64, num protowire.Number, typ protowire.Type, err error) {
	if _, err = r.Seek(pos, io.SeekStart); err != nil {
		return View{}, 0, 0, 0, fmt.Errorf("seek tag at %d: %w", pos, err)
	}
	tag, tagLen, err := readVarint(r)
	if err != nil {
		return View{}, 0, 0, 0, fmt.Errorf("read tag at %d: %w", pos, err)
	}
	num, typ = protowire.DecodeTag(tag)
	valPos := pos + int64(tagLen)
	switch typ {
	case protowire.VarintType:
		if _, err = r.Seek(valPos, io.SeekStart); err != nil {
			return View{}, 0, 0, 0, err
		}
		_, n, err := readVarint(r)
		if err != nil {
			return View{}, 0, 0, 0, fmt.Errorf("read varint at %d: %w", valPos, err)
		}
		return View{}, valPos + int64(n), num, typ, nil
	case protowire.Fixed32Type:
		return View{}, valPos + 4, num, typ, nil
	case protowire.Fixed64Type:
		return View{}, valPos + 8, num, typ, nil
	case protowire.BytesType:
		if _, err = r.Seek(valPos, io.SeekStart); err != nil {
			return View{}, 0, 0, 0, err
		}
		ln, n, err := readVarint(r)
		if err != nil {
			return View{}, 0, 0, 0, fmt.Errorf("read length at %d: %w", valPos, err)
		}
		start := valPos + int64(n)
		return View{r: r, base: start, limit: int64(ln)}, start + int64(ln), num, typ, nil
	default:
		return View{}, 0, 0, 0, fmt.Errorf("unsupported wire type %d at %d: %w", typ, pos, status.ErrInternal)
	}
}

// MessageMapForEach iterates every entry of a string-keyed, message-valued
// map field, calling fn(rawKey, value) for each. The raw key bytes are
// handed to fn exactly as they appear on the wire: this module's key-id
// maps use 32 raw bytes as the map key, not a hex or otherwise re-encoded
// string, to stay wire-compatible with producers that do the same.
func (v View) MessageMapForEach(fieldNum protowire.Number, fn func(rawKey string, value View) (stop bool, err error)) error {
	it := v.RepeatedMessage(fieldNum)
	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		key, err := entry.Bytes(1)
		if err != nil {
			return fmt.Errorf("map entry key: %w", err)
		}
		keyBuf := make([]byte, key.Len())
		if err := key.ReadFull(keyBuf); err != nil {
			return fmt.Errorf("map entry key: %w", err)
		}
		val, err := entry.Message(2)
		if err != nil {
			return fmt.Errorf("map entry value: %w", err)
		}
		stop, err := fn(string(keyBuf), val)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return it.Err()
}

// MessageMapLookup returns the message-typed value for key in a
// string-keyed, message-valued map field, or a wrapped status.ErrNotFound
// if key is absent.
func (v View) MessageMapLookup(fieldNum protowire.Number, key string) (View, error) {
	var result View
	var found bool
	err := v.MessageMapForEach(fieldNum, func(rawKey string, value View) (bool, error) {
		if rawKey == key {
			result = value
			found = true
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return View{}, err
	}
	if !found {
		return View{}, fmt.Errorf("key %x: %w", []byte(key), status.ErrNotFound)
	}
	return result, nil
}

// BytesMapLookup returns the bytes-typed value for key in a string-keyed,
// bytes-valued map field, or a wrapped status.ErrNotFound if key is absent.
func (v View) BytesMapLookup(fieldNum protowire.Number, key string) (IntervalReader, error) {
	it := v.RepeatedMessage(fieldNum)
	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		k, err := entry.Bytes(1)
		if err != nil {
			return IntervalReader{}, fmt.Errorf("map entry key: %w", err)
		}
		keyBuf := make([]byte, k.Len())
		if err := k.ReadFull(keyBuf); err != nil {
			return IntervalReader{}, fmt.Errorf("map entry key: %w", err)
		}
		if string(keyBuf) == key {
			return entry.Bytes(2)
		}
	}
	if err := it.Err(); err != nil {
		return IntervalReader{}, err
	}
	return IntervalReader{}, fmt.Errorf("key %x: %w", []byte(key), status.ErrNotFound)
}

// readVarint reads a base-128 varint one byte at a time from r, returning
// the decoded value and the number of bytes consumed.
func readVarint(r io.Reader) (uint64, int, error) {
	var buf [1]byte
	var val uint64
	for shift := uint(0); shift < 64; shift += 7 {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, 0, err
		}
		val |= uint64(buf[0]&0x7f) << shift
		if buf[0]&0x80 == 0 {
			return val, int(shift/7) + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("varint overflow: %w", status.ErrInternal)
}
