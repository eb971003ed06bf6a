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

package bundle

// Config holds the verifier's tunable limits and mode switches. A C
// implementation might bake these in as preprocessor constants; here they
// are fields of a value passed to New, so a single binary can host
// accessors with different limits.
type Config struct {
	// DisableVerification puts the accessor into self-verification mode:
	// the bundle's own incoming root (if any) acts as its own trust
	// anchor, an unsigned targets metadata is tolerated, and anti-rollback
	// against the on-device manifest is skipped. It does not disable the
	// verification pipeline itself; payload integrity is still checked.
	DisableVerification bool

	// WithPersonalization allows a target file absent from the bundle's
	// own payload map to be accepted if the on-device manifest already
	// records a matching length and SHA-256 for it.
	WithPersonalization bool

	// MaxTargetPayloadSize is the hard upper bound on any single target
	// file's declared length.
	MaxTargetPayloadSize uint64

	// MaxTargetNameLength is the hard upper bound on any target file's
	// name, in bytes.
	MaxTargetNameLength int
}

// DefaultConfig returns reasonable limits for a small embedded bundle: a
// 64 MiB largest single payload and 256-byte target names.
func DefaultConfig() Config {
	return Config{
		MaxTargetPayloadSize: 64 << 20,
		MaxTargetNameLength:  256,
	}
}
