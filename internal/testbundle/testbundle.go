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

// Package testbundle builds small, validly-signed UpdateBundle fixtures for
// tests across this module.
package testbundle

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/transparency-dev/armored-witness-bundle/tufpb"
)

// Key is a generated ECDSA-P256 signing key plus its derived key id and
// wire-encoded public key.
type Key struct {
	Priv   *ecdsa.PrivateKey
	Pub    [tufpb.PublicKeySize]byte
	KeyID  [tufpb.KeyIDSize]byte
	KeyMsg []byte
}

// NewKey generates a fresh signing key.
func NewKey() Key {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	var pub [tufpb.PublicKeySize]byte
	pub[0] = 0x04
	priv.X.FillBytes(pub[1:33])
	priv.Y.FillBytes(pub[33:65])
	keyID := tufpb.DeriveKeyID(tufpb.KeyTypeECDSAP256, tufpb.KeySchemeECDSASHA2NistP256, pub[:])
	keyMsg := tufpb.NewBuilder().
		Uint32(tufpb.FieldKeyType, uint32(tufpb.KeyTypeECDSAP256)).
		Uint32(tufpb.FieldKeyScheme, uint32(tufpb.KeySchemeECDSASHA2NistP256)).
		Bytes(tufpb.FieldKeyval, pub[:]).
		Build()
	return Key{Priv: priv, Pub: pub, KeyID: keyID, KeyMsg: keyMsg}
}

// Sign computes the signature of message under k, as the wire would carry
// it: raw R||S, 32 bytes each.
func (k Key) Sign(message []byte) [tufpb.SignatureSize]byte {
	digest := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, k.Priv, digest[:])
	if err != nil {
		panic(err)
	}
	var sig [tufpb.SignatureSize]byte
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig
}

// Requirement builds a SignatureRequirement message.
func Requirement(threshold uint32, keyIDs ...[tufpb.KeyIDSize]byte) []byte {
	b := tufpb.NewBuilder().Uint32(tufpb.FieldSignatureRequirementThreshold, threshold)
	for _, id := range keyIDs {
		b = b.Bytes(tufpb.FieldSignatureRequirementKeyIDs, id[:])
	}
	return b.Build()
}

// RootMetadata builds a RootMetadata message.
func RootMetadata(version uint32, keys []Key, rootReq, targetsReq []byte) []byte {
	b := tufpb.NewBuilder().
		Message(tufpb.FieldRootMetadataCommon, tufpb.NewBuilder().Uint32(tufpb.FieldCommonMetadataVersion, version).Build())
	for _, k := range keys {
		b = b.Message(tufpb.FieldRootMetadataKeys, tufpb.MapEntry(string(k.KeyID[:]), k.KeyMsg))
	}
	return b.
		Message(tufpb.FieldRootMetadataRootRequirement, rootReq).
		Message(tufpb.FieldRootMetadataTargetsRequirement, targetsReq).
		Build()
}

// SignedRoot wraps rootMetadata with signatures from signers.
func SignedRoot(rootMetadata []byte, signers ...Key) []byte {
	b := tufpb.NewBuilder().Bytes(tufpb.FieldSignedRootMetadataSerialized, rootMetadata)
	for _, k := range signers {
		sig := k.Sign(rootMetadata)
		b = b.Message(tufpb.FieldSignedRootMetadataSignatures, tufpb.NewBuilder().
			Bytes(tufpb.FieldSignatureKeyID, k.KeyID[:]).
			Bytes(tufpb.FieldSignatureSig, sig[:]).
			Build())
	}
	return b.Build()
}

// TargetFileSpec describes one target file to embed in a TargetsMetadata
// fixture.
type TargetFileSpec struct {
	Name    string
	Payload []byte
}

// TargetsMetadata builds a TargetsMetadata message listing files.
func TargetsMetadata(version uint32, files []TargetFileSpec) []byte {
	b := tufpb.NewBuilder().
		Message(tufpb.FieldTargetsMetadataCommon, tufpb.NewBuilder().Uint32(tufpb.FieldCommonMetadataVersion, version).Build())
	for _, f := range files {
		digest := sha256.Sum256(f.Payload)
		hash := tufpb.NewBuilder().
			Uint32(tufpb.FieldHashFunction, uint32(tufpb.HashFunctionSHA256)).
			Bytes(tufpb.FieldHashHash, digest[:]).
			Build()
		tf := tufpb.NewBuilder().
			String(tufpb.FieldTargetFileName, f.Name).
			Uint64(tufpb.FieldTargetFileLength, uint64(len(f.Payload))).
			Message(tufpb.FieldTargetFileHashes, hash).
			Build()
		b = b.Message(tufpb.FieldTargetsMetadataTargetFiles, tf)
	}
	return b.Build()
}

// SignedTargets wraps targetsMetadata with signatures from signers.
func SignedTargets(targetsMetadata []byte, signers ...Key) []byte {
	b := tufpb.NewBuilder().Bytes(tufpb.FieldSignedTargetsMetadataSerialized, targetsMetadata)
	for _, k := range signers {
		sig := k.Sign(targetsMetadata)
		b = b.Message(tufpb.FieldSignedTargetsMetadataSignatures, tufpb.NewBuilder().
			Bytes(tufpb.FieldSignatureKeyID, k.KeyID[:]).
			Bytes(tufpb.FieldSignatureSig, sig[:]).
			Build())
	}
	return b.Build()
}

// UpdateBundle builds a complete UpdateBundle message. signedRoot may be
// nil to omit the optional root upgrade.
func UpdateBundle(signedRoot []byte, signedTargets []byte, payloads map[string][]byte) []byte {
	b := tufpb.NewBuilder()
	if signedRoot != nil {
		b = b.Message(tufpb.FieldUpdateBundleRootMetadata, signedRoot)
	}
	b = b.Message(tufpb.FieldUpdateBundleTargetsMetadata, tufpb.MapEntry(tufpb.TopLevelTargetsName, signedTargets))
	for name, payload := range payloads {
		b = b.Message(tufpb.FieldUpdateBundleTargetPayloads, tufpb.MapEntry(name, payload))
	}
	return b.Build()
}

// KeyIDHex renders a key id the way a failing test assertion should, since
// the raw bytes are not printable.
func KeyIDHex(id [tufpb.KeyIDSize]byte) string {
	return fmt.Sprintf("%x", id[:])
}
