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

// Package verify implements the signature, root-chain, targets, and
// payload verification stages. It knows nothing about bundle lifecycle
// (open/close) or the wire format beyond what it reads through
// internal/wireview; bundle.Accessor sequences these stages.
package verify

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
	"github.com/transparency-dev/armored-witness-bundle/internal/tufcrypto"
	"github.com/transparency-dev/armored-witness-bundle/internal/wireview"
	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

// Signatures checks that messageBytes is attested to by at least
// requirement's threshold of the signatures yielded by sigs, using only
// keys both allowed by requirement and present in keyMapping.
//
// It returns:
//   - nil, if the threshold was met;
//   - a wrapped status.ErrNotFound, if sigs yielded no signatures at all
//     (the caller may choose to tolerate this in self-verification mode);
//   - a wrapped status.ErrUnauthenticated, if signatures were present but
//     threshold was not met;
//   - a wrapped status.ErrInternal, if the requirement or a signature is
//     structurally malformed (bad threshold, wrong-size key id, an allowed
//     key id absent from keyMapping).
func Signatures(messageBytes wireview.IntervalReader, sigs *wireview.MessageIter, requirement wireview.View, keyMapping wireview.View) error {
	threshold, err := requirement.Uint32(tufpb.FieldSignatureRequirementThreshold)
	if err != nil {
		return fmt.Errorf("signature requirement threshold: %w", err)
	}
	keyIDCount, err := countKeyIDs(requirement)
	if err != nil {
		return fmt.Errorf("signature requirement key ids: %w", err)
	}
	if threshold < 1 || threshold > uint32(keyIDCount) {
		return fmt.Errorf("threshold %d outside [1,%d]: %w", threshold, keyIDCount, status.ErrInternal)
	}

	var verified, total uint32
	for {
		sig, ok := sigs.Next()
		if !ok {
			break
		}
		total++

		keyIDField, err := sig.Bytes(tufpb.FieldSignatureKeyID)
		if err != nil {
			return fmt.Errorf("signature key_id: %w", err)
		}
		if keyIDField.Len() != tufpb.KeyIDSize {
			return fmt.Errorf("signature key_id is %d bytes, want %d: %w", keyIDField.Len(), tufpb.KeyIDSize, status.ErrInternal)
		}
		var keyID [tufpb.KeyIDSize]byte
		if err := keyIDField.ReadFull(keyID[:]); err != nil {
			return fmt.Errorf("signature key_id: %w", err)
		}

		allowed, err := keyIDAllowed(requirement, keyID)
		if err != nil {
			return fmt.Errorf("allowed key ids: %w", err)
		}
		if !allowed {
			klog.V(2).Infof("skipping signature from key id %x, not in requirement's allow-list", keyID)
			continue
		}

		sigField, err := sig.Bytes(tufpb.FieldSignatureSig)
		if err != nil {
			return fmt.Errorf("signature sig: %w", err)
		}
		if sigField.Len() != tufpb.SignatureSize {
			return fmt.Errorf("signature sig is %d bytes, want %d: %w", sigField.Len(), tufpb.SignatureSize, status.ErrInternal)
		}
		var sigBytes [tufpb.SignatureSize]byte
		if err := sigField.ReadFull(sigBytes[:]); err != nil {
			return fmt.Errorf("signature sig: %w", err)
		}

		keyInfo, err := keyMapping.MessageMapLookup(tufpb.FieldRootMetadataKeys, string(keyID[:]))
		if err != nil {
			if errors.Is(err, status.ErrNotFound) {
				return fmt.Errorf("key id %x allowed but absent from key mapping: %w", keyID, status.ErrInternal)
			}
			return fmt.Errorf("key mapping lookup: %w", err)
		}
		keyValField, err := keyInfo.Bytes(tufpb.FieldKeyval)
		if err != nil {
			return fmt.Errorf("key %x keyval: %w", keyID, err)
		}
		if keyValField.Len() != tufpb.PublicKeySize {
			return fmt.Errorf("key %x keyval is %d bytes, want %d: %w", keyID, keyValField.Len(), tufpb.PublicKeySize, status.ErrInternal)
		}
		var pub [tufpb.PublicKeySize]byte
		if err := keyValField.ReadFull(pub[:]); err != nil {
			return fmt.Errorf("key %x keyval: %w", keyID, err)
		}

		r, err := messageBytes.Reader()
		if err != nil {
			return fmt.Errorf("message bytes: %w", err)
		}
		digest, err := tufcrypto.SHA256Stream(r)
		if err != nil {
			return fmt.Errorf("hashing message: %w", err)
		}

		if err := tufcrypto.VerifyP256Signature(pub, digest, sigBytes); err != nil {
			klog.V(2).Infof("signature from key id %x did not verify: %v", keyID, err)
			continue
		}
		verified++
		if verified == threshold {
			return nil
		}
	}
	if err := sigs.Err(); err != nil {
		return fmt.Errorf("iterating signatures: %w", err)
	}

	if total == 0 {
		return fmt.Errorf("no signatures present: %w", status.ErrNotFound)
	}
	klog.V(1).Infof("signature threshold not met: need %d, verified %d of %d", threshold, verified, total)
	return fmt.Errorf("verified %d of %d, need %d: %w", verified, total, threshold, status.ErrUnauthenticated)
}

func keyIDAllowed(requirement wireview.View, candidate [tufpb.KeyIDSize]byte) (bool, error) {
	it := requirement.RepeatedBytes(tufpb.FieldSignatureRequirementKeyIDs)
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		if b.Len() != tufpb.KeyIDSize {
			continue
		}
		var buf [tufpb.KeyIDSize]byte
		if err := b.ReadFull(buf[:]); err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare(buf[:], candidate[:]) == 1 {
			return true, nil
		}
	}
	return false, it.Err()
}

func countKeyIDs(requirement wireview.View) (int, error) {
	it := requirement.RepeatedBytes(tufpb.FieldSignatureRequirementKeyIDs)
	n := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		n++
	}
	return n, it.Err()
}
