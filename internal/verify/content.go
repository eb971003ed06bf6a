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

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
	"github.com/transparency-dev/armored-witness-bundle/internal/wireview"
	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

// CheckRootContent validates a RootMetadata message's internal
// well-formedness: every key id is unique, every key is an ECDSA-P256 key,
// and every key id equals tufpb.DeriveKeyID of its own type/scheme/keyval.
// A producer is expected to guarantee this; CheckRootContent exists so a
// malformed or tampered root key table is rejected explicitly rather than
// silently misattributing a signature.
func CheckRootContent(root wireview.View) error {
	seen := make(map[string]bool)
	return root.MessageMapForEach(tufpb.FieldRootMetadataKeys, func(keyID string, key wireview.View) (bool, error) {
		if seen[keyID] {
			return true, fmt.Errorf("duplicate key id %x: %w", []byte(keyID), status.ErrInternal)
		}
		seen[keyID] = true

		if len(keyID) != tufpb.KeyIDSize {
			return true, fmt.Errorf("key id %x is %d bytes, want %d: %w", []byte(keyID), len(keyID), tufpb.KeyIDSize, status.ErrInternal)
		}

		typ, err := key.Uint32(tufpb.FieldKeyType)
		if err != nil {
			return true, fmt.Errorf("key id %x type: %w", []byte(keyID), err)
		}
		if tufpb.KeyType(typ) != tufpb.KeyTypeECDSAP256 {
			return true, fmt.Errorf("key id %x: unsupported key type %d: %w", []byte(keyID), typ, status.ErrInternal)
		}

		scheme, err := key.Uint32(tufpb.FieldKeyScheme)
		if err != nil {
			return true, fmt.Errorf("key id %x scheme: %w", []byte(keyID), err)
		}
		if tufpb.KeyScheme(scheme) != tufpb.KeySchemeECDSASHA2NistP256 {
			return true, fmt.Errorf("key id %x: unsupported scheme %d: %w", []byte(keyID), scheme, status.ErrInternal)
		}

		keyValField, err := key.Bytes(tufpb.FieldKeyval)
		if err != nil {
			return true, fmt.Errorf("key id %x keyval: %w", []byte(keyID), err)
		}
		if keyValField.Len() != tufpb.PublicKeySize {
			return true, fmt.Errorf("key id %x keyval is %d bytes, want %d: %w", []byte(keyID), keyValField.Len(), tufpb.PublicKeySize, status.ErrInternal)
		}
		keyVal := make([]byte, tufpb.PublicKeySize)
		if err := keyValField.ReadFull(keyVal); err != nil {
			return true, fmt.Errorf("key id %x keyval: %w", []byte(keyID), err)
		}

		want := tufpb.DeriveKeyID(tufpb.KeyType(typ), tufpb.KeyScheme(scheme), keyVal)
		if subtle.ConstantTimeCompare(want[:], []byte(keyID)) != 1 {
			return true, fmt.Errorf("key id %x does not match sha256(type||scheme||keyval): %w", []byte(keyID), status.ErrInternal)
		}
		return false, nil
	})
}

// targetsKeyIDSet returns the set of key ids allowed to sign targets
// metadata under root, keyed by raw key id bytes reinterpreted as a string.
func targetsKeyIDSet(root wireview.View) (map[string]bool, error) {
	req, err := root.Message(tufpb.FieldRootMetadataTargetsRequirement)
	if err != nil {
		return nil, fmt.Errorf("targets signature requirement: %w", err)
	}
	set := make(map[string]bool)
	it := req.RepeatedBytes(tufpb.FieldSignatureRequirementKeyIDs)
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		buf := make([]byte, b.Len())
		if err := b.ReadFull(buf); err != nil {
			return nil, fmt.Errorf("targets key id: %w", err)
		}
		set[string(buf)] = true
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("targets key ids: %w", err)
	}
	return set, nil
}

func keySetsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// metadataVersion reads the uint32 version out of a nested CommonMetadata
// field shared by RootMetadata and TargetsMetadata.
func metadataVersion(v wireview.View, commonField protowire.Number) (uint32, error) {
	common, err := v.Message(commonField)
	if err != nil {
		return 0, fmt.Errorf("common_metadata: %w", err)
	}
	version, err := common.Uint32(tufpb.FieldCommonMetadataVersion)
	if err != nil {
		return 0, fmt.Errorf("common_metadata.version: %w", err)
	}
	return version, nil
}
