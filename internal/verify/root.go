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
	"fmt"
	"io"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
	"github.com/transparency-dev/armored-witness-bundle/internal/wireview"
	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

// Anchor builds the SignedRootMetadata view for a trust anchor read from r
// (a backend-supplied reader, seeked to 0 by the caller). It is exported
// for bundle.Accessor to call once before RootChain so that self-verifying
// mode, which anchors to the bundle's own incoming root view rather than a
// separate reader, can skip this step entirely.
func Anchor(r io.ReadSeeker) (wireview.View, error) {
	return wireview.NewFromSeeker(r)
}

// RootResult carries the outcome of RootChain beyond the trusted root
// itself: whether the bundle actually carried a new root, and whether that
// new root rotated the set of keys allowed to sign targets metadata.
type RootResult struct {
	// TrustedRoot is the root the rest of verification must anchor to. It
	// is always the anchor RootChain was called with: even when a new root
	// was verified and persisted, the root that was live at the start of
	// this call remains in force for the rest of this Verify.
	TrustedRoot wireview.View

	// Rotated is true when the bundle carried a new, successfully verified
	// root whose targets-signing key set differs from the anchor's. A
	// caller uses this to decide whether targets anti-rollback should be
	// skipped.
	Rotated bool

	// Upgraded is true when a new root was present, verified, and (in
	// non-self-verifying mode) persisted.
	Upgraded bool
}

// RootChain implements the root-rotation stage: it establishes the trust
// anchor, and if the bundle carries a new root, verifies it first under
// the anchor's root key set and then under its own (newly rotated) root
// key set, checks it for internal well-formedness and version rollback,
// and reports whether it rotated the targets key set.
//
// anchorSigned is the SignedRootMetadata view of the root currently
// trusted: built via Anchor from the on-device root in normal operation,
// or simply the bundle's own incoming root view in self-verification mode
// (the caller chooses which by what it passes here). signedNewRoot, if
// non-nil, is the bundle's incoming SignedRootMetadata view; persist, if
// non-nil, is called with signedNewRoot's raw bytes once it has verified,
// so the caller can durably replace the on-device root.
//
// RootChain never substitutes the new root for the anchor it returns: the
// rest of this Verify call keeps using the root that was trusted when the
// call began.
func RootChain(anchorSigned wireview.View, signedNewRoot *wireview.View, persist func(io.Reader) error) (RootResult, error) {
	anchor, err := anchorSigned.Message(tufpb.FieldSignedRootMetadataSerialized)
	if err != nil {
		return RootResult{}, fmt.Errorf("trusted root: %w", err)
	}

	result := RootResult{TrustedRoot: anchor}
	if signedNewRoot == nil {
		return result, nil
	}

	newRootBytes, err := signedNewRoot.Bytes(tufpb.FieldSignedRootMetadataSerialized)
	if err != nil {
		return RootResult{}, fmt.Errorf("new root serialized: %w", err)
	}
	newRoot, err := signedNewRoot.Message(tufpb.FieldSignedRootMetadataSerialized)
	if err != nil {
		return RootResult{}, fmt.Errorf("new root: %w", err)
	}

	anchorRootReq, err := anchor.Message(tufpb.FieldRootMetadataRootRequirement)
	if err != nil {
		return RootResult{}, fmt.Errorf("trusted root requirement: %w", err)
	}
	sigsUnderAnchor := signedNewRoot.RepeatedMessage(tufpb.FieldSignedRootMetadataSignatures)
	if err := Signatures(newRootBytes, sigsUnderAnchor, anchorRootReq, anchor); err != nil {
		return RootResult{}, fmt.Errorf("new root signed by trusted root: %w", err)
	}

	// The new root must also be self-consistent, satisfying its own root
	// signature requirement under its own key set: this is what lets it
	// replace the anchor going forward.
	newRootReq, err := newRoot.Message(tufpb.FieldRootMetadataRootRequirement)
	if err != nil {
		return RootResult{}, fmt.Errorf("new root requirement: %w", err)
	}
	sigsSelf := signedNewRoot.RepeatedMessage(tufpb.FieldSignedRootMetadataSignatures)
	if err := Signatures(newRootBytes, sigsSelf, newRootReq, newRoot); err != nil {
		return RootResult{}, fmt.Errorf("new root self-signed: %w", err)
	}

	if err := CheckRootContent(newRoot); err != nil {
		return RootResult{}, fmt.Errorf("new root content: %w", err)
	}

	anchorVersion, err := metadataVersion(anchor, tufpb.FieldRootMetadataCommon)
	if err != nil {
		return RootResult{}, fmt.Errorf("trusted root version: %w", err)
	}
	newVersion, err := metadataVersion(newRoot, tufpb.FieldRootMetadataCommon)
	if err != nil {
		return RootResult{}, fmt.Errorf("new root version: %w", err)
	}
	if newVersion < anchorVersion {
		return RootResult{}, fmt.Errorf("new root version %d older than trusted version %d: %w", newVersion, anchorVersion, status.ErrUnauthenticated)
	}

	anchorTargetsKeys, err := targetsKeyIDSet(anchor)
	if err != nil {
		return RootResult{}, fmt.Errorf("trusted root targets key set: %w", err)
	}
	newTargetsKeys, err := targetsKeyIDSet(newRoot)
	if err != nil {
		return RootResult{}, fmt.Errorf("new root targets key set: %w", err)
	}
	result.Rotated = !keySetsEqual(anchorTargetsKeys, newTargetsKeys)
	if result.Rotated {
		klog.V(1).Infof("root rotation changed targets signing keys: %d -> %d keys", len(anchorTargetsKeys), len(newTargetsKeys))
	}

	if persist != nil {
		raw, err := signedNewRoot.ToBytes().Reader()
		if err != nil {
			return RootResult{}, fmt.Errorf("new root bytes: %w", err)
		}
		if err := persist(raw); err != nil {
			return RootResult{}, fmt.Errorf("persisting new root: %w", err)
		}
	}
	result.Upgraded = true

	return result, nil
}
