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

// Package bundle implements the public facade over the verification
// pipeline: Accessor owns the open/verify/close lifecycle, sequencing the
// root, targets, and payload stages in internal/verify and exposing the
// resulting manifest.
package bundle

import (
	"fmt"
	"io"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-bundle/backend"
	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
	"github.com/transparency-dev/armored-witness-bundle/internal/verify"
	"github.com/transparency-dev/armored-witness-bundle/internal/wireview"
	"github.com/transparency-dev/armored-witness-bundle/manifest"
	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

type state int

const (
	stateClosed state = iota
	stateOpenUnverified
	stateOpenVerified
)

// Accessor is the public entry point: one instance owns one bundle stream
// between Open and Close. It is not safe for concurrent use.
type Accessor struct {
	cfg     Config
	backend backend.Backend

	state  state
	r      io.ReadSeeker
	bundle wireview.View
}

// New returns a closed Accessor bound to be, ready for Open.
func New(cfg Config, be backend.Backend) *Accessor {
	return &Accessor{cfg: cfg, backend: be, state: stateClosed}
}

// Open attaches the accessor to r, which must support seeking over the
// entire serialized UpdateBundle. It does not verify anything.
func (a *Accessor) Open(r io.ReadSeeker) error {
	if a.state != stateClosed {
		return fmt.Errorf("accessor already open: %w", status.ErrFailedPrecondition)
	}
	bundle, err := wireview.NewFromSeeker(r)
	if err != nil {
		return fmt.Errorf("opening bundle: %w", err)
	}
	a.r = r
	a.bundle = bundle
	a.state = stateOpenUnverified
	return nil
}

// OpenAndVerify opens r and immediately verifies it, closing the accessor
// again on any failure.
func (a *Accessor) OpenAndVerify(r io.ReadSeeker) error {
	if err := a.Open(r); err != nil {
		return err
	}
	if err := a.Verify(); err != nil {
		a.Close()
		return err
	}
	return nil
}

// Verify runs the root, targets, and payload verification stages in order
// against the currently open bundle. On any failure the accessor returns to
// Closed. Verify may only be called once per Open.
func (a *Accessor) Verify() error {
	if a.state != stateOpenUnverified {
		return fmt.Errorf("accessor not open-unverified: %w", status.ErrFailedPrecondition)
	}
	if err := a.doVerify(); err != nil {
		a.Close()
		return err
	}
	a.state = stateOpenVerified
	return nil
}

func (a *Accessor) doVerify() error {
	selfVerifying := a.cfg.DisableVerification

	var signedNewRoot *wireview.View
	if v, err := a.bundle.Message(tufpb.FieldUpdateBundleRootMetadata); err != nil {
		klog.Warningf("incoming root metadata not found or invalid, skipping root upgrade: %v", err)
	} else {
		signedNewRoot = &v
	}

	var (
		anchorSigned wireview.View
		persist      func(io.Reader) error
		hasAnchor    bool
	)
	switch {
	case selfVerifying && signedNewRoot == nil:
		hasAnchor = false
	case selfVerifying:
		// The incoming root is its own trust anchor: no separate read is
		// needed, the same view serves both roles.
		anchorSigned = *signedNewRoot
		hasAnchor = true
	default:
		r, err := a.backend.GetRootMetadataReader()
		if err != nil {
			return fmt.Errorf("on-device root metadata: %w", err)
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("on-device root metadata: %w", err)
		}
		v, err := verify.Anchor(r)
		if err != nil {
			return fmt.Errorf("on-device root metadata: %w", err)
		}
		anchorSigned = v
		persist = a.backend.SafelyPersistRootMetadata
		hasAnchor = true
	}

	var rootResult verify.RootResult
	if hasAnchor {
		res, err := verify.RootChain(anchorSigned, signedNewRoot, persist)
		if err != nil {
			return fmt.Errorf("root chain: %w", err)
		}
		rootResult = res
	}

	var (
		onDeviceManifest    wireview.View
		onDeviceManifestErr error
	)
	if err := a.backend.BeforeManifestRead(); err != nil {
		onDeviceManifestErr = err
	} else if r, err := a.backend.GetManifestReader(); err != nil {
		onDeviceManifestErr = err
	} else if _, err := r.Seek(0, io.SeekStart); err != nil {
		onDeviceManifestErr = err
	} else if v, err := wireview.NewFromSeeker(r); err != nil {
		onDeviceManifestErr = err
	} else {
		onDeviceManifest = v
	}

	// Self-verification mode has no prior manifest to roll back against;
	// a root rotation invalidates the cached version.
	skipRollback := selfVerifying || rootResult.Rotated
	if _, err := verify.Targets(a.bundle, rootResult.TrustedRoot, hasAnchor, selfVerifying, onDeviceManifest, onDeviceManifestErr, skipRollback); err != nil {
		return fmt.Errorf("targets: %w", err)
	}

	bundleTargets, err := verify.BundleTargets(a.bundle)
	if err != nil {
		return fmt.Errorf("bundle targets metadata: %w", err)
	}
	limits := verify.PayloadLimits{MaxTargetNameLength: a.cfg.MaxTargetNameLength, MaxTargetPayloadSize: a.cfg.MaxTargetPayloadSize}
	files, err := verify.TargetFiles(bundleTargets, limits)
	if err != nil {
		return fmt.Errorf("bundle target files: %w", err)
	}

	// Root rotation invalidates the cached manifest version: treat the
	// on-device manifest as absent for personalization lookups too, not
	// only for the anti-rollback comparison above.
	var onDeviceByName map[string]verify.TargetFileResult
	if onDeviceManifestErr == nil && !rootResult.Rotated {
		onDeviceFiles, err := verify.TargetFiles(onDeviceManifest, limits)
		if err != nil {
			klog.V(1).Infof("on-device manifest unreadable for personalization, treating as absent: %v", err)
		} else {
			onDeviceByName = make(map[string]verify.TargetFileResult, len(onDeviceFiles))
			for _, f := range onDeviceFiles {
				onDeviceByName[f.Name] = f
			}
		}
	}

	for _, tf := range files {
		payload, ok := a.bundlePayload(tf.Name)
		onDevice, onDeviceOK := onDeviceByName[tf.Name]
		if err := verify.Payload(tf, payload, ok, a.cfg.WithPersonalization, onDevice, onDeviceOK); err != nil {
			return fmt.Errorf("payload: %w", err)
		}
	}

	return nil
}

// bundlePayload looks up name in the bundle's own target_payloads map.
func (a *Accessor) bundlePayload(name string) (wireview.IntervalReader, bool) {
	ir, err := a.bundle.BytesMapLookup(tufpb.FieldUpdateBundleTargetPayloads, name)
	if err != nil {
		return wireview.IntervalReader{}, false
	}
	return ir, true
}

// GetManifest returns the authenticated targets manifest, read fresh from
// the bundle each call. It fails with a wrapped status.ErrFailedPrecondition
// unless Verify has already succeeded.
func (a *Accessor) GetManifest() (manifest.Manifest, error) {
	if a.state != stateOpenVerified {
		return manifest.Manifest{}, fmt.Errorf("bundle not verified: %w", status.ErrFailedPrecondition)
	}
	targets, err := verify.BundleTargets(a.bundle)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("targets metadata: %w", err)
	}
	common, err := targets.Message(tufpb.FieldTargetsMetadataCommon)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("targets common metadata: %w", err)
	}
	version, err := common.Uint32(tufpb.FieldCommonMetadataVersion)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("targets version: %w", err)
	}
	limits := verify.PayloadLimits{MaxTargetNameLength: a.cfg.MaxTargetNameLength, MaxTargetPayloadSize: a.cfg.MaxTargetPayloadSize}
	files, err := verify.TargetFiles(targets, limits)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("target files: %w", err)
	}
	return manifest.New(targets, version, files), nil
}

// GetTargetPayload returns a streaming reader over name's in-bundle
// payload. A name absent from the manifest, or present in the manifest but
// not in the bundle's own payload map (the personalized/out-of-bundle
// case), both surface as a wrapped status.ErrNotFound.
func (a *Accessor) GetTargetPayload(name string) (wireview.IntervalReader, error) {
	m, err := a.GetManifest()
	if err != nil {
		return wireview.IntervalReader{}, err
	}
	if _, ok := m.Lookup(name); !ok {
		return wireview.IntervalReader{}, fmt.Errorf("target %q: %w", name, status.ErrNotFound)
	}
	ir, ok := a.bundlePayload(name)
	if !ok {
		return wireview.IntervalReader{}, fmt.Errorf("target %q: %w", name, status.ErrNotFound)
	}
	return ir, nil
}

// GetTotalPayloadSize sums length over every manifest entry whose payload
// is present in the bundle (personalized entries are not counted: they are
// not shipped in this blob).
func (a *Accessor) GetTotalPayloadSize() (uint64, error) {
	m, err := a.GetManifest()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, f := range m.Files() {
		if _, ok := a.bundlePayload(f.Name); ok {
			total += f.Length
		}
	}
	return total, nil
}

// PersistManifest streams the verified manifest to the backend. It fails
// with a wrapped status.ErrFailedPrecondition unless Verify has already
// succeeded.
func (a *Accessor) PersistManifest() error {
	m, err := a.GetManifest()
	if err != nil {
		return err
	}
	if err := a.backend.BeforeManifestWrite(); err != nil {
		return fmt.Errorf("before manifest write: %w", err)
	}
	w, err := a.backend.GetManifestWriter()
	if err != nil {
		return fmt.Errorf("manifest writer: %w", err)
	}
	if err := m.Export(w); err != nil {
		return fmt.Errorf("exporting manifest: %w", err)
	}
	if err := a.backend.AfterManifestWrite(); err != nil {
		return fmt.Errorf("after manifest write: %w", err)
	}
	return nil
}

// Close releases the backing stream and clears any verified state. It is
// idempotent.
func (a *Accessor) Close() error {
	a.state = stateClosed
	a.bundle = wireview.View{}
	a.r = nil
	return nil
}
