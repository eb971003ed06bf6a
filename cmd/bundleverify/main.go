// Copyright 2024 The Armored Witness Bundle authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// The bundleverify tool opens and verifies an update bundle against an
// on-device root and manifest captured from files on disk, only useful for
// development work.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/coreos/go-semver/semver"
	"k8s.io/klog/v2"

	"github.com/transparency-dev/armored-witness-bundle/backend"
	"github.com/transparency-dev/armored-witness-bundle/bundle"
)

var (
	bundleFile   = flag.String("bundle_file", "", "Serialized UpdateBundle to verify.")
	rootFile     = flag.String("root_file", "", "On-device trusted root metadata (SignedRootMetadata).")
	manifestFile = flag.String("manifest_file", "", "On-device accepted manifest (TargetsMetadata), if any.")

	disableVerification  = flag.Bool("disable_verification", false, "Run in self-verification mode: the bundle's own root acts as its own anchor.")
	withPersonalization  = flag.Bool("with_personalization", false, "Allow out-of-bundle target payloads verified against the on-device manifest.")
	maxTargetPayloadSize = flag.Uint64("max_target_payload_size", bundle.DefaultConfig().MaxTargetPayloadSize, "Largest single target payload accepted.")
	maxTargetNameLength  = flag.Int("max_target_name_length", bundle.DefaultConfig().MaxTargetNameLength, "Longest target name accepted, in bytes.")

	persistManifestFile = flag.String("persist_manifest_file", "", "If set, write the verified manifest's bytes here after a successful verify.")
)

func main() {
	flag.Parse()

	be := backend.NewMemory()
	be.SeedRoot(readFileOrDie(*rootFile, "root"))
	if *manifestFile != "" {
		be.SeedManifest(readFileOrDie(*manifestFile, "manifest"))
	}

	cfg := bundle.Config{
		DisableVerification:  *disableVerification,
		WithPersonalization:  *withPersonalization,
		MaxTargetPayloadSize: *maxTargetPayloadSize,
		MaxTargetNameLength:  *maxTargetNameLength,
	}

	a := bundle.New(cfg, be)
	r := bytes.NewReader(readFileOrDie(*bundleFile, "bundle"))
	if err := a.OpenAndVerify(r); err != nil {
		klog.Exitf("OpenAndVerify(%q): %v", *bundleFile, err)
	}
	defer a.Close()

	m, err := a.GetManifest()
	if err != nil {
		klog.Exitf("GetManifest: %v", err)
	}
	klog.Infof("Bundle verified: targets version %s, %d file(s)", displayVersion(m.Version()), len(m.Files()))

	total, err := a.GetTotalPayloadSize()
	if err != nil {
		klog.Exitf("GetTotalPayloadSize: %v", err)
	}
	klog.Infof("Total in-bundle payload size: %d bytes", total)

	for _, f := range m.Files() {
		klog.V(1).Infof("  %s  %d bytes  sha256:%x", f.Name, f.Length, f.SHA256)
	}

	if *persistManifestFile != "" {
		var persisted []byte
		be.OnManifestPersisted = func(b []byte) { persisted = b }
		if err := a.PersistManifest(); err != nil {
			klog.Exitf("PersistManifest: %v", err)
		}
		if err := os.WriteFile(*persistManifestFile, persisted, 0o644); err != nil {
			klog.Exitf("writing manifest file %q: %v", *persistManifestFile, err)
		}
		klog.Infof("Persisted manifest to %q", *persistManifestFile)
	}
}

// displayVersion renders a TUF metadata version (a bare monotonic counter)
// as a semver string for operator-friendly logging.
func displayVersion(v uint32) string {
	return semver.New(fmt.Sprintf("%d.0.0", v)).String()
}

func readFileOrDie(path, thing string) []byte {
	if path == "" {
		klog.Exitf("missing required -%s_file flag", thing)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		klog.Exitf("reading %s file %q: %v", thing, path, err)
	}
	return b
}
