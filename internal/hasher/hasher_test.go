package hasher

import "testing"

func TestStableStringifyKeyOrder(t *testing.T) {
	a := StableStringify(map[string]any{"b": 1, "a": 2})
	b := StableStringify(map[string]any{"a": 2, "b": 1})
	if a != b {
		t.Fatalf("expected order-independent stringify, got %q vs %q", a, b)
	}
	if a != `{"a":2,"b":1}` {
		t.Fatalf("unexpected stringify output: %q", a)
	}
}

func TestStableStringifyArraysOrdered(t *testing.T) {
	a := StableStringify([]string{"x", "y"})
	b := StableStringify([]string{"y", "x"})
	if a == b {
		t.Fatalf("arrays should preserve order, got equal outputs %q", a)
	}
}

func TestSourcedIdentityStableAcrossCalls(t *testing.T) {
	src := map[string]any{"kind": "filesystem", "filesystemId": "H", "canonicalPath": "/a"}
	h1 := SourcedIdentity("file", src)
	h2 := SourcedIdentity("file", src)
	if h1 != h2 {
		t.Fatalf("identityHash not stable: %q vs %q", h1, h2)
	}
}

func TestSourcedIdentityDivergesOnPathOrFS(t *testing.T) {
	base := SourcedIdentity("file", map[string]any{"kind": "filesystem", "filesystemId": "H", "canonicalPath": "/a"})
	diffPath := SourcedIdentity("file", map[string]any{"kind": "filesystem", "filesystemId": "H", "canonicalPath": "/b"})
	diffFS := SourcedIdentity("file", map[string]any{"kind": "filesystem", "filesystemId": "G", "canonicalPath": "/a"})
	if base == diffPath || base == diffFS {
		t.Fatalf("expected identity to diverge on path or filesystem id")
	}
}

func TestFileHashContentHashNilIff(t *testing.T) {
	if FileHash(nil) != nil || ContentHash(nil) != nil {
		t.Fatalf("expected nil hashes for nil content")
	}
	text := "hello"
	fh := FileHash(&text)
	ch := ContentHash(&text)
	if fh == nil || ch == nil || *fh != *ch {
		t.Fatalf("expected fileHash == contentHash for identical text input")
	}
}

func TestObjectHashChangesWithConstituents(t *testing.T) {
	fh := "f1"
	ch := "c1"
	base := ObjectHash(&fh, &ch, "m1")
	sameAgain := ObjectHash(&fh, &ch, "m1")
	if base != sameAgain {
		t.Fatalf("objectHash must be stable when constituents unchanged")
	}
	changedMeta := ObjectHash(&fh, &ch, "m2")
	if base == changedMeta {
		t.Fatalf("objectHash must change when metadataHash changes")
	}
}

func TestMetadataHashIndependentOfEnvelopeFields(t *testing.T) {
	// MetadataHash only ever sees the caller-supplied type-specific
	// fields; envelope fields (type, source, xt/id, content, hashes)
	// are not among its inputs, so they cannot affect it. This test
	// checks that two separately built, identical "file" metadata
	// shapes hash to the same value.
	h1 := MetadataHash(map[string]any{"fileType": "go", "charCount": 10})
	h2 := MetadataHash(map[string]any{"fileType": "go", "charCount": 10})
	if h1 != h2 {
		t.Fatalf("metadataHash must be a pure function of its input")
	}
}
