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

// Package status defines the sentinel errors shared by the bundle
// verification pipeline. Stage functions wrap one of these with
// fmt.Errorf("...: %w", Err) so that callers can compare with errors.Is
// without depending on any particular stage's error message.
package status

import "errors"

var (
	// ErrUnauthenticated means a signature check failed, a rollback was
	// detected, or a payload failed its integrity check. The bundle is
	// rejected; the device keeps its current state.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound is the internal sentinel for "no signatures at all" (used
	// to let self-verification mode tolerate unsigned bundles) and is also
	// what a Backend returns when no on-device manifest or root exists.
	ErrNotFound = errors.New("not found")

	// ErrOutOfRange means a declared size exceeds a compile-time maximum.
	ErrOutOfRange = errors.New("out of range")

	// ErrResourceExhausted means a caller-provided buffer is too small to
	// hold a string being read.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInternal means the input is structurally malformed, e.g. a
	// wrong-size key id or an unreadable wire message.
	ErrInternal = errors.New("internal")

	// ErrFailedPrecondition means a public operation was invoked while the
	// accessor was in an invalid state, e.g. GetManifest before Verify.
	ErrFailedPrecondition = errors.New("failed precondition")
)
