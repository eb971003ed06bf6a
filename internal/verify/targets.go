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
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
	"github.com/transparency-dev/armored-witness-bundle/internal/wireview"
	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

// TargetsResult is the outcome of a successful Targets call.
type TargetsResult struct {
	// Metadata is the verified TargetsMetadata view. Zero valued when
	// Skipped is true.
	Metadata wireview.View
	// Version is Metadata's common_metadata.version. Zero valued when
	// Skipped is true.
	Version uint32
	// Skipped is true when self-verification mode had no trust anchor to
	// check against; the caller must treat this as "no manifest
	// available", not as an authenticated empty manifest.
	Skipped bool
}

// BundleTargets returns the bundle's own top-level TargetsMetadata view,
// independent of whether its signatures have been (or will be) checked.
// bundle.Accessor uses this both to walk payload descriptors and to build
// the manifest it exposes after a successful Verify: the manifest handed to
// callers is always read straight from the bundle, not cached from
// whatever view the signature stage happened to construct.
func BundleTargets(bundle wireview.View) (wireview.View, error) {
	signedTargets, err := bundle.MessageMapLookup(tufpb.FieldUpdateBundleTargetsMetadata, tufpb.TopLevelTargetsName)
	if err != nil {
		return wireview.View{}, fmt.Errorf("targets metadata %q: %w", tufpb.TopLevelTargetsName, err)
	}
	targets, err := signedTargets.Message(tufpb.FieldSignedTargetsMetadataSerialized)
	if err != nil {
		return wireview.View{}, fmt.Errorf("targets metadata: %w", err)
	}
	return targets, nil
}

// Targets implements the targets-verification stage: it locates the
// bundle's top-level targets metadata, checks its signatures against the
// trust anchor's targets signature requirement, and applies anti-rollback
// against the on-device manifest.
//
// hasAnchor/anchor describe the trust anchor RootChain produced.
// selfVerifying enables two downgrades: a missing anchor is a no-op rather
// than a failure, and zero signatures on targets metadata (ErrNotFound from
// Signatures) is tolerated rather than fatal.
// onDeviceManifest is the backend's previously accepted manifest; readErr is
// whatever error the caller's attempt to obtain it produced (wrapping
// status.ErrNotFound if none was ever persisted). skipRollback is set by the
// caller when root-key rotation invalidated the cached manifest version.
func Targets(bundle wireview.View, anchor wireview.View, hasAnchor bool, selfVerifying bool, onDeviceManifest wireview.View, readErr error, skipRollback bool) (TargetsResult, error) {
	if selfVerifying && !hasAnchor {
		return TargetsResult{Skipped: true}, nil
	}

	signedTargets, err := bundle.MessageMapLookup(tufpb.FieldUpdateBundleTargetsMetadata, tufpb.TopLevelTargetsName)
	if err != nil {
		return TargetsResult{}, fmt.Errorf("targets metadata %q: %w", tufpb.TopLevelTargetsName, err)
	}
	targetsBytes, err := signedTargets.Bytes(tufpb.FieldSignedTargetsMetadataSerialized)
	if err != nil {
		return TargetsResult{}, fmt.Errorf("targets serialized: %w", err)
	}
	targets, err := signedTargets.Message(tufpb.FieldSignedTargetsMetadataSerialized)
	if err != nil {
		return TargetsResult{}, fmt.Errorf("targets metadata: %w", err)
	}

	requirement, err := anchor.Message(tufpb.FieldRootMetadataTargetsRequirement)
	if err != nil {
		return TargetsResult{}, fmt.Errorf("targets signature requirement: %w", err)
	}
	sigs := signedTargets.RepeatedMessage(tufpb.FieldSignedTargetsMetadataSignatures)
	if err := Signatures(targetsBytes, sigs, requirement, anchor); err != nil {
		if selfVerifying && errors.Is(err, status.ErrNotFound) {
			klog.V(1).Info("self-verification mode: accepting unsigned targets metadata")
		} else {
			return TargetsResult{}, fmt.Errorf("targets signatures: %w", err)
		}
	}

	version, err := metadataVersion(targets, tufpb.FieldTargetsMetadataCommon)
	if err != nil {
		return TargetsResult{}, fmt.Errorf("targets version: %w", err)
	}

	if skipRollback {
		klog.V(1).Info("skipping targets anti-rollback: root rotation invalidated cached manifest")
	} else if readErr != nil {
		if !errors.Is(readErr, status.ErrNotFound) {
			return TargetsResult{}, fmt.Errorf("on-device manifest: %w", readErr)
		}
	} else {
		deviceVersion, err := metadataVersion(onDeviceManifest, tufpb.FieldTargetsMetadataCommon)
		if err != nil {
			return TargetsResult{}, fmt.Errorf("on-device manifest version: %w", err)
		}
		if deviceVersion > version {
			return TargetsResult{}, fmt.Errorf("targets version %d older than on-device version %d: %w", version, deviceVersion, status.ErrUnauthenticated)
		}
	}

	return TargetsResult{Metadata: targets, Version: version}, nil
}
