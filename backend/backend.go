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

// Package backend declares the collaborator interface the bundle verifier
// calls out to for everything it does not itself define: durable storage of
// the trusted root and accepted manifest. Storage format is entirely up to
// the implementation; the core requires only the ordering contract
// documented on Backend.
package backend

import (
	"io"

	"github.com/transparency-dev/armored-witness-bundle/bundle/status"
)

// Backend groups the capabilities the verifier needs from the device:
// reading the currently trusted root, durably persisting a new one, and
// reading/writing the accepted manifest. Implementations own durability and
// atomicity; the verifier only requires the call ordering described below.
type Backend interface {
	// GetRootMetadataReader returns a reader over the on-device trusted
	// root metadata (a serialized SignedRootMetadata). The returned reader
	// must support seeking; the caller seeks it to 0 before use.
	GetRootMetadataReader() (io.ReadSeeker, error)

	// SafelyPersistRootMetadata durably and atomically replaces the
	// on-device trusted root with the bytes read from r. It is called at
	// most once per Verify, strictly before targets verification, so that
	// a root-only bundle can revoke a compromised targets key even if the
	// rest of verification never runs again.
	SafelyPersistRootMetadata(r io.Reader) error

	// BeforeManifestRead gives the backend a chance to validate or prepare
	// its on-device manifest storage before GetManifestReader is called.
	// It returns a wrapped status.ErrNotFound if no manifest has ever been
	// persisted; the caller treats that as "skip anti-rollback".
	BeforeManifestRead() error

	// GetManifestReader returns a reader over the on-device manifest (a
	// serialized TargetsMetadata). The returned reader must support
	// seeking; the caller seeks it to 0 before use.
	GetManifestReader() (io.ReadSeeker, error)

	// BeforeManifestWrite gives the backend a chance to prepare to receive
	// a new manifest.
	BeforeManifestWrite() error

	// GetManifestWriter returns a writer the verified manifest is streamed
	// to.
	GetManifestWriter() (io.Writer, error)

	// AfterManifestWrite tells the backend the manifest write is complete
	// and should be finalized (e.g. sealed, fsynced).
	AfterManifestWrite() error
}

// ErrNoManifest is the error BeforeManifestRead/GetManifestReader return
// when no manifest has ever been persisted. It wraps status.ErrNotFound so
// callers can use errors.Is against either.
var ErrNoManifest = wrapNotFound("no manifest persisted")

// ErrNoRoot is the error GetRootMetadataReader returns when no root has
// ever been persisted (only possible for a device that has never been
// provisioned; normal operation always has an on-device root).
var ErrNoRoot = wrapNotFound("no root metadata persisted")

func wrapNotFound(msg string) error {
	return &notFoundError{msg: msg}
}

type notFoundError struct{ msg string }

func (e *notFoundError) Error() string { return e.msg }
func (e *notFoundError) Unwrap() error { return status.ErrNotFound }
