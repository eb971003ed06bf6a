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

// Package manifest exposes the authenticated, read-only view of a bundle's
// targets metadata that bundle.Accessor hands back once verification has
// succeeded.
package manifest

import (
	"fmt"
	"io"

	"github.com/transparency-dev/armored-witness-bundle/internal/verify"
	"github.com/transparency-dev/armored-witness-bundle/internal/wireview"
)

// Manifest is the verified targets metadata plus the per-file descriptors
// callers need to locate and validate payloads.
type Manifest struct {
	view    wireview.View
	version uint32
	files   []verify.TargetFileResult
	byName  map[string]verify.TargetFileResult
}

// New builds a Manifest from a verified TargetsMetadata view and its
// already-extracted target file descriptors.
func New(view wireview.View, version uint32, files []verify.TargetFileResult) Manifest {
	byName := make(map[string]verify.TargetFileResult, len(files))
	for _, f := range files {
		if _, exists := byName[f.Name]; exists {
			continue // first occurrence wins for a duplicate name.
		}
		byName[f.Name] = f
	}
	return Manifest{view: view, version: version, files: files, byName: byName}
}

// Version returns the manifest's common_metadata.version.
func (m Manifest) Version() uint32 {
	return m.version
}

// Files returns every target file descriptor, in bundle order.
func (m Manifest) Files() []verify.TargetFileResult {
	return m.files
}

// Lookup returns the descriptor for name, and whether it was present.
func (m Manifest) Lookup(name string) (verify.TargetFileResult, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// Export streams the manifest's underlying serialized TargetsMetadata bytes
// to w, e.g. the writer returned by a backend's GetManifestWriter.
func (m Manifest) Export(w io.Writer) error {
	r, err := m.view.ToBytes().Reader()
	if err != nil {
		return fmt.Errorf("manifest bytes: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
