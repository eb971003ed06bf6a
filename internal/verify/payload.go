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

package verify

import (
	"crypto/subtle"
	"fmt"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
	"github.com/transparency-dev/armored-witness-bundle/internal/tufcrypto"
	"github.com/transparency-dev/armored-witness-bundle/internal/wireview"
	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

// PayloadLimits bounds the two caller-controlled sizes: the longest target
// name the verifier will accept and the largest single target payload.
type PayloadLimits struct {
	MaxTargetNameLength  int
	MaxTargetPayloadSize uint64
}

// TargetFileResult is one verified entry of a targets manifest: its
// declared name, length and expected SHA-256 digest, to be handed to
// payload lookup once all of a manifest's entries have passed structural
// checks.
type TargetFileResult struct {
	Name      string
	Length    uint64
	SHA256    [tufpb.DigestSize]byte
	HasSHA256 bool
}

// TargetFiles walks targets.target_files, checking each entry's name length
// and declared size against limits and extracting its SHA-256 digest (the
// only hash function the core honors). It does not touch payload bytes;
// Payload does that per entry.
func TargetFiles(targets wireview.View, limits PayloadLimits) ([]TargetFileResult, error) {
	var out []TargetFileResult
	it := targets.RepeatedMessage(tufpb.FieldTargetsMetadataTargetFiles)
	for {
		tf, ok := it.Next()
		if !ok {
			break
		}
		nameField, err := tf.Bytes(tufpb.FieldTargetFileName)
		if err != nil {
			return nil, fmt.Errorf("target file name: %w", err)
		}
		if int(nameField.Len()) > limits.MaxTargetNameLength {
			return nil, fmt.Errorf("target file name is %d bytes, max %d: %w", nameField.Len(), limits.MaxTargetNameLength, status.ErrOutOfRange)
		}
		nameBuf := make([]byte, nameField.Len())
		name, err := nameField.ReadString(nameBuf)
		if err != nil {
			return nil, fmt.Errorf("target file name: %w", err)
		}

		length, err := tf.Uint64(tufpb.FieldTargetFileLength)
		if err != nil {
			return nil, fmt.Errorf("target file %q length: %w", name, err)
		}
		if length > limits.MaxTargetPayloadSize {
			return nil, fmt.Errorf("target file %q length %d exceeds max %d: %w", name, length, limits.MaxTargetPayloadSize, status.ErrOutOfRange)
		}

		res := TargetFileResult{Name: name, Length: length}
		hashes := tf.RepeatedMessage(tufpb.FieldTargetFileHashes)
		for {
			h, ok := hashes.Next()
			if !ok {
				break
			}
			fn, err := h.Uint32(tufpb.FieldHashFunction)
			if err != nil {
				return nil, fmt.Errorf("target file %q hash function: %w", name, err)
			}
			if tufpb.HashFunction(fn) != tufpb.HashFunctionSHA256 {
				continue
			}
			digestField, err := h.Bytes(tufpb.FieldHashHash)
			if err != nil {
				return nil, fmt.Errorf("target file %q hash: %w", name, err)
			}
			if digestField.Len() != tufpb.DigestSize {
				continue
			}
			if err := digestField.ReadFull(res.SHA256[:]); err != nil {
				return nil, fmt.Errorf("target file %q hash: %w", name, err)
			}
			res.HasSHA256 = true
			break
		}
		if err := hashes.Err(); err != nil {
			return nil, fmt.Errorf("target file %q hashes: %w", name, err)
		}
		if !res.HasSHA256 {
			return nil, fmt.Errorf("target file %q: no sha256 hash: %w", name, status.ErrNotFound)
		}
		out = append(out, res)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("target files: %w", err)
	}
	return out, nil
}

// Payload validates tf either against the in-bundle payload, if present, or
// (when personalization is enabled) against the on-device manifest's record
// of the same name. inBundle, ok is the result of looking tf.Name up in the
// bundle's target_payloads map; onDevice, onDeviceOK the result of looking
// it up in the on-device manifest's target_files.
func Payload(tf TargetFileResult, inBundle wireview.IntervalReader, inBundleOK bool, personalizationEnabled bool, onDevice TargetFileResult, onDeviceOK bool) error {
	if inBundleOK {
		if inBundle.Len() != int64(tf.Length) {
			return fmt.Errorf("target %q: payload is %d bytes, expected %d: %w", tf.Name, inBundle.Len(), tf.Length, status.ErrUnauthenticated)
		}
		r, err := inBundle.Reader()
		if err != nil {
			return fmt.Errorf("target %q payload: %w", tf.Name, err)
		}
		digest, err := tufcrypto.SHA256Stream(r)
		if err != nil {
			return fmt.Errorf("target %q payload: %w", tf.Name, err)
		}
		if subtle.ConstantTimeCompare(digest[:], tf.SHA256[:]) != 1 {
			return fmt.Errorf("target %q: payload hash mismatch: %w", tf.Name, status.ErrUnauthenticated)
		}
		return nil
	}

	if !personalizationEnabled {
		return fmt.Errorf("target %q: payload absent from bundle and personalization disabled: %w", tf.Name, status.ErrUnauthenticated)
	}
	if !onDeviceOK || !onDevice.HasSHA256 {
		return fmt.Errorf("target %q: no on-device record for personalized payload: %w", tf.Name, status.ErrUnauthenticated)
	}
	if onDevice.Length != tf.Length || subtle.ConstantTimeCompare(onDevice.SHA256[:], tf.SHA256[:]) != 1 {
		return fmt.Errorf("target %q: on-device record does not match manifest: %w", tf.Name, status.ErrUnauthenticated)
	}
	return nil
}
