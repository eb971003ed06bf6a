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

// Package tufpb defines the wire schema of an UpdateBundle: field numbers
// for every message in the bundle, plus the small set of enums the core
// consults. There is no generated code here (no .proto definition exists
// for this bundle format); internal/wireview decodes against these field
// numbers directly.
package tufpb

// UpdateBundle fields.
const (
	FieldUpdateBundleRootMetadata    = 1 // SignedRootMetadata, optional
	FieldUpdateBundleTargetsMetadata = 2 // map<string, SignedTargetsMetadata>
	FieldUpdateBundleTargetPayloads  = 3 // map<string, bytes>
)

// TopLevelTargetsName is the well-known key under which the top-level
// targets metadata is stored in UpdateBundle.targets_metadata.
const TopLevelTargetsName = "targets"

// SignedRootMetadata fields.
const (
	FieldSignedRootMetadataSerialized = 1 // bytes: exact signed RootMetadata message
	FieldSignedRootMetadataSignatures = 2 // repeated Signature
)

// SignedTargetsMetadata fields.
const (
	FieldSignedTargetsMetadataSerialized = 1 // bytes: exact signed TargetsMetadata message
	FieldSignedTargetsMetadataSignatures = 2 // repeated Signature
)

// Signature fields.
const (
	FieldSignatureKeyID = 1 // bytes(32)
	FieldSignatureSig   = 2 // bytes(64)
)

// RootMetadata fields.
const (
	FieldRootMetadataCommon             = 1 // CommonMetadata
	FieldRootMetadataKeys                = 2 // map<string, Key>
	FieldRootMetadataRootRequirement     = 3 // SignatureRequirement
	FieldRootMetadataTargetsRequirement  = 4 // SignatureRequirement
)

// CommonMetadata fields.
const (
	FieldCommonMetadataVersion = 1 // uint32
)

// SignatureRequirement fields.
const (
	FieldSignatureRequirementThreshold = 1 // uint32
	FieldSignatureRequirementKeyIDs    = 2 // repeated bytes(32)
)

// Key fields.
const (
	FieldKeyType   = 1 // uint32 (KeyType)
	FieldKeyScheme = 2 // uint32 (KeyScheme)
	FieldKeyval    = 3 // bytes(65): uncompressed P-256 point
)

// TargetsMetadata fields.
const (
	FieldTargetsMetadataCommon      = 1 // CommonMetadata
	FieldTargetsMetadataTargetFiles = 2 // repeated TargetFile
)

// TargetFile fields.
const (
	FieldTargetFileName   = 1 // string
	FieldTargetFileLength = 2 // uint64
	FieldTargetFileHashes = 3 // repeated Hash
)

// Hash fields.
const (
	FieldHashFunction = 1 // uint32 (HashFunction)
	FieldHashHash     = 2 // bytes
)

// HashFunction enumerates the supported target-file digest algorithms.
// Only SHA256 is honored; any other value present on the wire is simply
// not matched by the payload verifier.
type HashFunction uint32

const (
	HashFunctionUnknown HashFunction = 0
	HashFunctionSHA256  HashFunction = 1
)

// KeyType enumerates supported key algorithms. Only ECDSA-P256 is
// supported.
type KeyType uint32

const (
	KeyTypeUnknown   KeyType = 0
	KeyTypeECDSAP256 KeyType = 1
)

// KeyScheme enumerates supported signature schemes for a Key.
type KeyScheme uint32

const (
	KeySchemeUnknown           KeyScheme = 0
	KeySchemeECDSASHA2NistP256 KeyScheme = 1
)

// Sizes of fixed-width cryptographic fields, in bytes.
const (
	KeyIDSize     = 32
	DigestSize    = 32
	SignatureSize = 64
	PublicKeySize = 65
)
