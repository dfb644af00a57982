// Package hasher implements the five-hash hierarchy described in
// spec.md §4.1: identityHash, fileHash, contentHash, metadataHash, and
// objectHash, all SHA-256 hex of a stable-stringified input.
//
// The structural pattern (read bytes, sha256, hex-encode) is grounded
// on the checkpoint snapshot hashing in the teacher's
// pkg/session/checkpoint.go; this package generalizes it into the full
// hierarchy spec.md requires.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
)

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// SourcedIdentity computes identityHash for a sourced (file) object:
// sha256(stableStringify({type, source})).
func SourcedIdentity(kind string, source any) string {
	return sum(StableStringify(map[string]any{
		"type":   kind,
		"source": source,
	}))
}

// UnsourcedIdentity computes identityHash for an unsourced object:
// sha256(stableStringify({type, "xt/id": assignedId})).
func UnsourcedIdentity(kind string, assignedID string) string {
	return sum(StableStringify(map[string]any{
		"type":  kind,
		"xt/id": assignedID,
	}))
}

// FileHash hashes raw source bytes (as UTF-8 text) for change
// detection against the external source. Callers pass nil content for
// unsourced objects and for discovery stubs.
func FileHash(content *string) *string {
	if content == nil {
		return nil
	}
	h := sum(*content)
	return &h
}

// ContentHash hashes the stored payload. Today it is computed over the
// same bytes as FileHash for plain text files, but is tracked
// separately because a future content transform (e.g. compression,
// redaction) would make the two diverge.
func ContentHash(content *string) *string {
	if content == nil {
		return nil
	}
	h := sum(*content)
	return &h
}

// MetadataHash hashes exactly the type-specific fields listed in
// spec.md §3 for an object's kind — callers must pass only those
// fields and must never include xt/id, type, source, content, or any
// of the other four hashes.
func MetadataHash(typeSpecificFields any) string {
	return sum(StableStringify(typeSpecificFields))
}

// ObjectHash is the composite version fingerprint.
func ObjectHash(fileHash, contentHash *string, metadataHash string) string {
	var fh, ch any
	if fileHash != nil {
		fh = *fileHash
	}
	if contentHash != nil {
		ch = *contentHash
	}
	return sum(StableStringify(map[string]any{
		"fileHash":     fh,
		"contentHash":  ch,
		"metadataHash": metadataHash,
	}))
}
