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

func defaultLimits() PayloadLimits {
	return PayloadLimits{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20}
}

func targetsView(t *testing.T, msg []byte) wireview.View {
	t.Helper()
	v, err := wireview.NewFromSeeker(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("NewFromSeeker: %v", err)
	}
	return v
}

func TestTargetFilesExtractsDescriptors(t *testing.T) {
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{
		{Name: "a.bin", Payload: []byte("aaaa")},
		{Name: "b.bin", Payload: []byte("bb")},
	})
	files, err := TargetFiles(targetsView(t, msg), defaultLimits())
	if err != nil {
		t.Fatalf("TargetFiles() = %v, want nil", err)
	}
	if len(files) != 2 {
		t.Fatalf("TargetFiles() returned %d entries, want 2", len(files))
	}
	if files[0].Name != "a.bin" || files[0].Length != 4 || !files[0].HasSHA256 {
		t.Errorf("files[0] = %+v", files[0])
	}
	if files[1].Name != "b.bin" || files[1].Length != 2 || !files[1].HasSHA256 {
		t.Errorf("files[1] = %+v", files[1])
	}
}

func TestTargetFilesNameTooLong(t *testing.T) {
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{
		{Name: "this-name-is-too-long", Payload: []byte("x")},
	})
	_, err := TargetFiles(targetsView(t, msg), PayloadLimits{MaxTargetNameLength: 4, MaxTargetPayloadSize: 1 << 20})
	if !errors.Is(err, status.ErrOutOfRange) {
		t.Fatalf("TargetFiles() with an over-length name = %v, want ErrOutOfRange", err)
	}
}

func TestTargetFilesNameExactBoundary(t *testing.T) {
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{
		{Name: "abcd", Payload: []byte("x")},
	})
	_, err := TargetFiles(targetsView(t, msg), PayloadLimits{MaxTargetNameLength: 4, MaxTargetPayloadSize: 1 << 20})
	if err != nil {
		t.Fatalf("TargetFiles() with a name exactly at the limit = %v, want nil", err)
	}
}

func TestTargetFilesSizeTooLarge(t *testing.T) {
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{
		{Name: "f", Payload: make([]byte, 10)},
	})
	_, err := TargetFiles(targetsView(t, msg), PayloadLimits{MaxTargetNameLength: 256, MaxTargetPayloadSize: 9})
	if !errors.Is(err, status.ErrOutOfRange) {
		t.Fatalf("TargetFiles() with an over-size payload = %v, want ErrOutOfRange", err)
	}
}

func TestTargetFilesSizeExactBoundary(t *testing.T) {
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{
		{Name: "f", Payload: make([]byte, 10)},
	})
	_, err := TargetFiles(targetsView(t, msg), PayloadLimits{MaxTargetNameLength: 256, MaxTargetPayloadSize: 10})
	if err != nil {
		t.Fatalf("TargetFiles() with a payload exactly at the limit = %v, want nil", err)
	}
}

func TestPayloadInBundleValid(t *testing.T) {
	payload := []byte("firmware bytes")
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{{Name: "fw.bin", Payload: payload}})
	files, err := TargetFiles(targetsView(t, msg), defaultLimits())
	if err != nil {
		t.Fatalf("TargetFiles: %v", err)
	}
	tf := files[0]

	inBundle, err := inBundleReader(t, payload)
	if err != nil {
		t.Fatalf("inBundleReader: %v", err)
	}
	if err := Payload(tf, inBundle, true, false, TargetFileResult{}, false); err != nil {
		t.Fatalf("Payload() = %v, want nil", err)
	}
}

func TestPayloadInBundleCorrupted(t *testing.T) {
	payload := []byte("firmware bytes")
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{{Name: "fw.bin", Payload: payload}})
	files, err := TargetFiles(targetsView(t, msg), defaultLimits())
	if err != nil {
		t.Fatalf("TargetFiles: %v", err)
	}
	tf := files[0]

	// Same length as payload, so the hash comparison (not the length
	// check) is what rejects it.
	corrupted, err := inBundleReader(t, []byte("tampered bytes"))
	if err != nil {
		t.Fatalf("inBundleReader: %v", err)
	}
	err = Payload(tf, corrupted, true, false, TargetFileResult{}, false)
	if !errors.Is(err, status.ErrUnauthenticated) {
		t.Fatalf("Payload() with a hash mismatch = %v, want ErrUnauthenticated", err)
	}
}

func TestPayloadInBundleWrongLength(t *testing.T) {
	payload := []byte("firmware bytes")
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{{Name: "fw.bin", Payload: payload}})
	files, err := TargetFiles(targetsView(t, msg), defaultLimits())
	if err != nil {
		t.Fatalf("TargetFiles: %v", err)
	}
	tf := files[0]

	shorter, err := inBundleReader(t, payload[:len(payload)-1])
	if err != nil {
		t.Fatalf("inBundleReader: %v", err)
	}
	err = Payload(tf, shorter, true, false, TargetFileResult{}, false)
	if !errors.Is(err, status.ErrUnauthenticated) {
		t.Fatalf("Payload() with a mismatched length = %v, want ErrUnauthenticated", err)
	}
}

func TestPayloadMissingWithoutPersonalization(t *testing.T) {
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{{Name: "fw.bin", Payload: []byte("x")}})
	files, err := TargetFiles(targetsView(t, msg), defaultLimits())
	if err != nil {
		t.Fatalf("TargetFiles: %v", err)
	}
	tf := files[0]

	err = Payload(tf, wireview.IntervalReader{}, false, false, TargetFileResult{}, false)
	if !errors.Is(err, status.ErrUnauthenticated) {
		t.Fatalf("Payload() absent without personalization = %v, want ErrUnauthenticated", err)
	}
}

func TestPayloadPersonalizedMatchesOnDeviceRecord(t *testing.T) {
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{{Name: "cfg.bin", Payload: []byte("secret config")}})
	files, err := TargetFiles(targetsView(t, msg), defaultLimits())
	if err != nil {
		t.Fatalf("TargetFiles: %v", err)
	}
	tf := files[0]

	onDevice := tf // identical descriptor, as if personalized out-of-band.
	if err := Payload(tf, wireview.IntervalReader{}, false, true, onDevice, true); err != nil {
		t.Fatalf("Payload() personalized match = %v, want nil", err)
	}
}

func TestPayloadPersonalizedMismatchRejected(t *testing.T) {
	msg := testbundle.TargetsMetadata(1, []testbundle.TargetFileSpec{{Name: "cfg.bin", Payload: []byte("secret config")}})
	files, err := TargetFiles(targetsView(t, msg), defaultLimits())
	if err != nil {
		t.Fatalf("TargetFiles: %v", err)
	}
	tf := files[0]

	onDevice := tf
	onDevice.Length = tf.Length + 1
	err = Payload(tf, wireview.IntervalReader{}, false, true, onDevice, true)
	if !errors.Is(err, status.ErrUnauthenticated) {
		t.Fatalf("Payload() personalized mismatch = %v, want ErrUnauthenticated", err)
	}
}

// inBundleReader builds an IntervalReader over payload the way a bundle's
// target_payloads map entry would be read.
func inBundleReader(t *testing.T, payload []byte) (wireview.IntervalReader, error) {
	t.Helper()
	msg := tufpb.NewBuilder().Bytes(1, payload).Build()
	v, err := wireview.NewFromSeeker(bytes.NewReader(msg))
	if err != nil {
		return wireview.IntervalReader{}, err
	}
	return v.Bytes(1)
}
