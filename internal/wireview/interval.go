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
	"fmt"
	"io"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
)

// IntervalReader is a (offset, length) window over a seekable byte source.
// It never reads its interval into memory on its own; callers stream it via
// Reader, or, for the handful of fixed-size cryptographic fields (key ids,
// digests, signatures, public keys), read it whole into a caller-owned
// array with ReadFull.
type IntervalReader struct {
	r      io.ReadSeeker
	offset int64
	length int64
	err    error
}

// Len returns the interval's length in bytes.
func (ir IntervalReader) Len() int64 {
	return ir.length
}

// Err returns a sticky error latched by whatever accessor produced ir.
func (ir IntervalReader) Err() error {
	return ir.err
}

// Reader returns a forward-only, single-pass io.Reader over the interval,
// seeking the underlying source to its start.
func (ir IntervalReader) Reader() (io.Reader, error) {
	if ir.err != nil {
		return nil, ir.err
	}
	if _, err := ir.r.Seek(ir.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek interval: %w", err)
	}
	return io.LimitReader(ir.r, ir.length), nil
}

// ReadFull reads the entire interval into buf, which must be exactly Len()
// bytes; used for the module's fixed-size fields (32-byte key ids and
// digests, 64-byte signatures, 65-byte public keys).
func (ir IntervalReader) ReadFull(buf []byte) error {
	if ir.err != nil {
		return ir.err
	}
	if int64(len(buf)) != ir.length {
		return fmt.Errorf("expected %d bytes, buffer is %d: %w", ir.length, len(buf), status.ErrInternal)
	}
	r, err := ir.Reader()
	if err != nil {
		return err
	}
	_, err = io.ReadFull(r, buf)
	return err
}

// ReadString decodes the interval as UTF-8 text into buf, which must be at
// least Len() bytes; returns status.ErrResourceExhausted if it is not.
func (ir IntervalReader) ReadString(buf []byte) (string, error) {
	if ir.err != nil {
		return "", ir.err
	}
	if ir.length > int64(len(buf)) {
		return "", fmt.Errorf("name is %d bytes, buffer is %d: %w", ir.length, len(buf), status.ErrResourceExhausted)
	}
	r, err := ir.Reader()
	if err != nil {
		return "", err
	}
	n, err := io.ReadFull(r, buf[:ir.length])
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
