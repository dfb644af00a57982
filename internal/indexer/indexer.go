// Package indexer implements the indexing protocol of spec.md §4.3:
// full indexing (content known), discovery indexing (path only), and
// deletion, each producing a created/unchanged/updated decision.
//
// Grounded on the teacher's pkg/session/checkpoint.go CreateCheckpoint
// (hash the current bytes, compare against what is recorded, write
// only on divergence), generalized into the decision tree spec.md
// requires plus discovery's strictly-additive rule.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jg-phare/ctxcore/internal/fsresolver"
	"github.com/jg-phare/ctxcore/internal/hasher"
	"github.com/jg-phare/ctxcore/internal/object"
	"github.com/jg-phare/ctxcore/internal/store"
)

// Outcome reports what Index did.
type Outcome string

const (
	Created   Outcome = "created"
	Unchanged Outcome = "unchanged"
	Updated   Outcome = "updated"
)

// Indexer ties a FilesystemResolver to a Store to implement the
// full/discovery/deletion entry points.
type Indexer struct {
	resolver *fsresolver.Resolver
	store    store.Store
}

// New builds an Indexer.
func New(resolver *fsresolver.Resolver, s store.Store) *Indexer {
	return &Indexer{resolver: resolver, store: s}
}

// Result carries the outcome plus the resulting object (after the
// decision has been applied).
type Result struct {
	Outcome Outcome
	Object  object.Object
}

func fileSource(resolved fsresolver.Resolved) *object.Source {
	return &object.Source{
		Kind:          object.FilesystemSource,
		FilesystemID:  resolved.FilesystemID,
		CanonicalPath: resolved.CanonicalPath,
	}
}

func fileMetadataFields(fileType string, charCount int) map[string]any {
	return map[string]any{"fileType": fileType, "charCount": charCount}
}

func fileTypeFromPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimPrefix(ext, ".")
}

// Full implements full indexing: content is known (agent read, watcher
// upsert, or resume reconcile).
func (ix *Indexer) Full(ctx context.Context, agentPath string, content string) (Result, error) {
	resolved := ix.resolver.Resolve(agentPath)
	src := fileSource(resolved)
	objID := hasher.SourcedIdentity(string(object.KindFile), src)

	fh := hasher.FileHash(&content)

	existing, found, err := ix.store.Get(ctx, objID)
	if err != nil {
		return Result{}, fmt.Errorf("indexer: fetch current version: %w", err)
	}

	fileType := fileTypeFromPath(resolved.CanonicalPath)
	charCount := len([]rune(content))

	switch {
	case !found:
		return ix.write(ctx, objID, src, &content, fh, fileType, charCount, Created)

	case existing.FileHash == nil:
		// stub → upgrade
		return ix.write(ctx, objID, src, &content, fh, fileType, charCount, Updated)

	case *existing.FileHash == *fh:
		return Result{Outcome: Unchanged, Object: existing}, nil

	default:
		return ix.write(ctx, objID, src, &content, fh, fileType, charCount, Updated)
	}
}

// Discovery implements discovery indexing: only a path is known (ls,
// find, grep output). Discovery never overwrites an existing object,
// full or stub.
func (ix *Indexer) Discovery(ctx context.Context, agentPath string) (Result, error) {
	resolved := ix.resolver.Resolve(agentPath)
	src := fileSource(resolved)
	objID := hasher.SourcedIdentity(string(object.KindFile), src)

	existing, found, err := ix.store.Get(ctx, objID)
	if err != nil {
		return Result{}, fmt.Errorf("indexer: fetch current version: %w", err)
	}
	if found {
		return Result{Outcome: Unchanged, Object: existing}, nil
	}

	fileType := fileTypeFromPath(resolved.CanonicalPath)
	return ix.write(ctx, objID, src, nil, nil, fileType, 0, Created)
}

// Delete writes a tombstone version for a sourced object: same
// envelope and object ID, content/fileHash/contentHash nil.
func (ix *Indexer) Delete(ctx context.Context, agentPath string) (Result, error) {
	resolved := ix.resolver.Resolve(agentPath)
	src := fileSource(resolved)
	objID := hasher.SourcedIdentity(string(object.KindFile), src)

	fileType := fileTypeFromPath(resolved.CanonicalPath)
	return ix.write(ctx, objID, src, nil, nil, fileType, 0, Updated)
}

func (ix *Indexer) write(ctx context.Context, id string, src *object.Source, content *string, fh *string, fileType string, charCount int, outcome Outcome) (Result, error) {
	ch := hasher.ContentHash(content)
	mh := hasher.MetadataHash(fileMetadataFields(fileType, charCount))
	oh := hasher.ObjectHash(fh, ch, mh)

	doc := object.Object{
		Envelope: object.Envelope{
			ID:           id,
			Kind:         object.KindFile,
			Source:       src,
			IdentityHash: hasher.SourcedIdentity(string(object.KindFile), src),
		},
		Version: object.Version{
			Content:      content,
			FileHash:     fh,
			ContentHash:  ch,
			MetadataHash: mh,
			ObjectHash:   oh,
			File:         &object.FilePayload{FileType: fileType, CharCount: charCount},
		},
	}

	if err := ix.store.PutAndWait(ctx, doc, time.Time{}); err != nil {
		return Result{}, fmt.Errorf("indexer: write version: %w", err)
	}
	return Result{Outcome: outcome, Object: doc}, nil
}
