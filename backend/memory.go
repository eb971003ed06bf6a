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

package backend

import (
	"bytes"
	"io"
	"sync"
)

// Memory is a simple in-memory Backend: a minimal storage stand-in with
// hooks a caller can set to observe each persisted root or manifest (the
// demonstration CLI uses OnManifestPersisted to capture the manifest it
// writes out), rather than a production persistence layer with torn-write
// safety.
type Memory struct {
	mu sync.Mutex

	root        []byte
	hasRoot     bool
	manifest    []byte
	hasManifest bool

	manifestBuf *bytes.Buffer

	// OnRootPersisted, if set, is called just after a new root has been
	// durably stored.
	OnRootPersisted func(root []byte)
	// OnManifestPersisted, if set, is called just after a new manifest has
	// been durably stored.
	OnManifestPersisted func(manifest []byte)
}

// NewMemory returns an empty in-memory backend with no persisted root or
// manifest.
func NewMemory() *Memory {
	return &Memory{}
}

// SeedRoot pre-populates the on-device trusted root, as if a prior
// provisioning step had persisted it.
func (m *Memory) SeedRoot(root []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = append([]byte(nil), root...)
	m.hasRoot = true
}

// SeedManifest pre-populates the on-device manifest, as if a prior update
// had persisted it.
func (m *Memory) SeedManifest(manifest []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest = append([]byte(nil), manifest...)
	m.hasManifest = true
}

func (m *Memory) GetRootMetadataReader() (io.ReadSeeker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasRoot {
		return nil, ErrNoRoot
	}
	return bytes.NewReader(m.root), nil
}

func (m *Memory) SafelyPersistRootMetadata(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.root = b
	m.hasRoot = true
	cb := m.OnRootPersisted
	m.mu.Unlock()
	if cb != nil {
		cb(b)
	}
	return nil
}

func (m *Memory) BeforeManifestRead() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasManifest {
		return ErrNoManifest
	}
	return nil
}

func (m *Memory) GetManifestReader() (io.ReadSeeker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasManifest {
		return nil, ErrNoManifest
	}
	return bytes.NewReader(m.manifest), nil
}

func (m *Memory) BeforeManifestWrite() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifestBuf = &bytes.Buffer{}
	return nil
}

func (m *Memory) GetManifestWriter() (io.Writer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.manifestBuf == nil {
		m.manifestBuf = &bytes.Buffer{}
	}
	return m.manifestBuf, nil
}

func (m *Memory) AfterManifestWrite() error {
	m.mu.Lock()
	b := m.manifestBuf.Bytes()
	m.manifest = b
	m.hasManifest = true
	m.manifestBuf = nil
	cb := m.OnManifestPersisted
	m.mu.Unlock()
	if cb != nil {
		cb(b)
	}
	return nil
}
