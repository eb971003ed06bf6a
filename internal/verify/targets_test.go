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
	"bytes"
	"errors"
	"testing"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
	"github.com/transparency-dev/armored-witness-bundle/internal/testbundle"
	"github.com/transparency-dev/armored-witness-bundle/internal/wireview"
	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

func buildBundleView(t *testing.T, signedRootMsg []byte, signedTargetsMsg []byte, payloads map[string][]byte) wireview.View {
	t.Helper()
	bundleMsg := testbundle.UpdateBundle(signedRootMsg, signedTargetsMsg, payloads)
	v, err := wireview.NewFromSeeker(bytes.NewReader(bundleMsg))
	if err != nil {
		t.Fatalf("NewFromSeeker: %v", err)
	}
	return v
}

func TestTargetsValidSignatureNoRollback(t *testing.T) {
	k1 := testbundle.NewKey()
	anchorRoot := signedRoot(1, []testbundle.Key{k1}, []testbundle.Key{k1})
	anchor, err := anchorRoot.Message(tufpb.FieldSignedRootMetadataSerialized)
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}

	targetsMsg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{{Name: "fw.bin", Payload: []byte("payload")}})
	signedTargets := testbundle.SignedTargets(targetsMsg, k1)
	bundle := buildBundleView(t, nil, signedTargets, map[string][]byte{"fw.bin": []byte("payload")})

	res, err := Targets(bundle, anchor, true, false, wireview.View{}, status.ErrNotFound, false)
	if err != nil {
		t.Fatalf("Targets() = %v, want nil", err)
	}
	if res.Skipped {
		t.Error("Targets() reported Skipped with a valid anchor present")
	}
	if res.Version != 1 {
		t.Errorf("Targets().Version = %d, want 1", res.Version)
	}
}

func TestTargetsRollbackRejected(t *testing.T) {
	k1 := testbundle.NewKey()
	anchorRoot := signedRoot(1, []testbundle.Key{k1}, []testbundle.Key{k1})
	anchor, _ := anchorRoot.Message(tufpb.FieldSignedRootMetadataSerialized)

	targetsMsg := testbundle.TargetsMetadata(1, nil)
	signedTargets := testbundle.SignedTargets(targetsMsg, k1)
	bundle := buildBundleView(t, nil, signedTargets, nil)

	onDeviceMsg := testbundle.TargetsMetadata(5, nil)
	onDevice, err := wireview.NewFromSeeker(bytes.NewReader(onDeviceMsg))
	if err != nil {
		t.Fatalf("on-device manifest: %v", err)
	}

	_, err = Targets(bundle, anchor, true, false, onDevice, nil, false)
	if !errors.Is(err, status.ErrUnauthenticated) {
		t.Fatalf("Targets() with an older incoming version = %v, want ErrUnauthenticated", err)
	}
}

func TestTargetsRollbackSkippedOnRotation(t *testing.T) {
	k1 := testbundle.NewKey()
	anchorRoot := signedRoot(1, []testbundle.Key{k1}, []testbundle.Key{k1})
	anchor, _ := anchorRoot.Message(tufpb.FieldSignedRootMetadataSerialized)

	targetsMsg := testbundle.TargetsMetadata(1, nil)
	signedTargets := testbundle.SignedTargets(targetsMsg, k1)
	bundle := buildBundleView(t, nil, signedTargets, nil)

	onDeviceMsg := testbundle.TargetsMetadata(5, nil)
	onDevice, err := wireview.NewFromSeeker(bytes.NewReader(onDeviceMsg))
	if err != nil {
		t.Fatalf("on-device manifest: %v", err)
	}

	// skipRollback=true mimics a root rotation having just occurred.
	res, err := Targets(bundle, anchor, true, false, onDevice, nil, true)
	if err != nil {
		t.Fatalf("Targets() with skipRollback = %v, want nil", err)
	}
	if res.Version != 1 {
		t.Errorf("Targets().Version = %d, want 1", res.Version)
	}
}

func TestTargetsSelfVerifyingNoAnchorSkips(t *testing.T) {
	res, err := Targets(wireview.View{}, wireview.View{}, false, true, wireview.View{}, status.ErrNotFound, false)
	if err != nil {
		t.Fatalf("Targets() self-verifying with no anchor = %v, want nil", err)
	}
	if !res.Skipped {
		t.Error("Targets() self-verifying with no anchor did not report Skipped")
	}
}

func TestTargetsSelfVerifyingUnsignedTolerated(t *testing.T) {
	k1 := testbundle.NewKey()
	// The incoming root acts as its own anchor in self-verification mode.
	anchorRoot := signedRoot(1, []testbundle.Key{k1}, []testbundle.Key{k1})
	anchor, _ := anchorRoot.Message(tufpb.FieldSignedRootMetadataSerialized)

	targetsMsg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{{Name: "fw.bin", Payload: []byte("x")}})
	unsignedTargets := testbundle.SignedTargets(targetsMsg) // no signers.
	bundle := buildBundleView(t, nil, unsignedTargets, map[string][]byte{"fw.bin": []byte("x")})

	res, err := Targets(bundle, anchor, true, true, wireview.View{}, status.ErrNotFound, false)
	if err != nil {
		t.Fatalf("Targets() self-verifying unsigned = %v, want nil", err)
	}
	if res.Version != 1 {
		t.Errorf("Targets().Version = %d, want 1", res.Version)
	}
}

func TestTargetsNonSelfVerifyingUnsignedRejected(t *testing.T) {
	k1 := testbundle.NewKey()
	anchorRoot := signedRoot(1, []testbundle.Key{k1}, []testbundle.Key{k1})
	anchor, _ := anchorRoot.Message(tufpb.FieldSignedRootMetadataSerialized)

	targetsMsg := testbundle.TargetsMetadata(1, nil)
	unsignedTargets := testbundle.SignedTargets(targetsMsg)
	bundle := buildBundleView(t, nil, unsignedTargets, nil)

	_, err := Targets(bundle, anchor, true, false, wireview.View{}, status.ErrNotFound, false)
	if !errors.Is(err, status.ErrNotFound) {
		t.Fatalf("Targets() non-self-verifying unsigned = %v, want wrapped ErrNotFound", err)
	}
}

func TestBundleTargetsReadsRawEntry(t *testing.T) {
	k1 := testbundle.NewKey()
	targetsMsg := testbundle.TargetsMetadata(3, nil)
	signedTargets := testbundle.SignedTargets(targetsMsg, k1)
	bundle := buildBundleView(t, nil, signedTargets, nil)

	got, err := BundleTargets(bundle)
	if err != nil {
		t.Fatalf("BundleTargets() = %v, want nil", err)
	}
	version, err := metadataVersion(got, tufpb.FieldTargetsMetadataCommon)
	if err != nil {
		t.Fatalf("metadataVersion: %v", err)
	}
	if version != 3 {
		t.Errorf("BundleTargets() version = %d, want 3", version)
	}
}
