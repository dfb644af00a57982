// Package resume implements the seven-step session rehydration
// protocol of spec.md §4.7: fetch-or-initialize the session wrapper,
// rehydrate the four sets and metadata cache, reconcile sourced
// objects against the live filesystem, and re-establish trackers for
// watchable sources.
//
// Grounded on the teacher's pkg/session/store.go Load/LoadLatest
// (fetch-or-ErrSessionNotFound, then construct fresh state) and
// cleanup.go (stat-based reconciliation of on-disk state against
// recorded state), generalized here to the bi-temporal object store
// and SessionCore's four sets.
package resume

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jg-phare/ctxcore/internal/fsresolver"
	"github.com/jg-phare/ctxcore/internal/hasher"
	"github.com/jg-phare/ctxcore/internal/indexer"
	"github.com/jg-phare/ctxcore/internal/object"
	"github.com/jg-phare/ctxcore/internal/sessioncore"
	"github.com/jg-phare/ctxcore/internal/store"
	"github.com/jg-phare/ctxcore/internal/tracker"
)

// Config bundles the construction-time parameters Resume needs beyond
// what's already persisted in the session wrapper.
type Config struct {
	SessionID    string
	SystemPrompt string // stored by Resume only when initializing a fresh session; facade.Load also renders it on every load
	Window       sessioncore.WindowConfig
	Logger       sessioncore.Logger
	Reader       sessioncore.SourceReader
	TrackerLog   tracker.Logger
}

// Result is everything Resume produces: a ready-to-use Core plus the
// trackers it re-established, so the caller can manage their
// lifecycle (Close on session end).
type Result struct {
	Core     *sessioncore.Core
	Trackers []*tracker.Tracker
}

// Resume runs the full seven-step protocol and returns a Core ready
// for TransformContext calls.
func Resume(ctx context.Context, cfg Config, resolver *fsresolver.Resolver, ix *indexer.Indexer, s store.Store) (*Result, error) {
	sessionObjID := hasher.UnsourcedIdentity(string(object.KindSession), cfg.SessionID)

	// Step 1: fetch, or initialize fresh.
	existing, found, err := s.Get(ctx, sessionObjID)
	if err != nil {
		return nil, fmt.Errorf("resume: fetch session wrapper: %w", err)
	}

	var payload object.SessionPayload
	var chatPayload object.ChatPayload

	if !found {
		payload, chatPayload, err = initializeFresh(ctx, cfg, s, sessionObjID)
		if err != nil {
			return nil, err
		}
	} else {
		if existing.Session == nil {
			return nil, fmt.Errorf("resume: session object %s carries no session payload", sessionObjID)
		}
		payload = *existing.Session
		chatDoc, chatFound, err := s.Get(ctx, payload.ChatRef)
		if err != nil {
			return nil, fmt.Errorf("resume: fetch chat object: %w", err)
		}
		if chatFound && chatDoc.Chat != nil {
			chatPayload = *chatDoc.Chat
		}
	}

	core := sessioncore.New(sessioncore.Config{
		SessionID:       cfg.SessionID,
		ChatRef:         payload.ChatRef,
		SystemPromptRef: payload.SystemPromptRef,
		SessionObjID:    sessionObjID,
		Window:          cfg.Window,
		Logger:          cfg.Logger,
		Reader:          cfg.Reader,
	}, resolver, ix, s)

	// Step 3: batch-fetch every object named by sessionIndex.
	objects, err := s.Query(ctx, payload.SessionIndex)
	if err != nil {
		return nil, fmt.Errorf("resume: batch fetch session index: %w", err)
	}

	// Step 2 + 4: rehydrate sets and rebuild the metadata cache.
	core.RehydrateChat(chatPayload)
	core.Rehydrate(payload, objects)

	// Step 5: reconcile each sourced (file) object against the live
	// filesystem. Unsourced content objects (step 6) need nothing.
	var trackers []*tracker.Tracker
	for _, doc := range objects {
		if doc.Kind != object.KindFile || doc.Source == nil {
			continue
		}
		if err := reconcileSource(ctx, core, resolver, ix, doc); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Errorf("resume: reconcile %s: %v", doc.ID, err)
			}
			continue
		}

		// Step 7: re-establish a tracker for watchable sources.
		agentPath := resolver.ReverseResolve(doc.Source.CanonicalPath, doc.Source.FilesystemID)
		if !resolver.IsWatchable(agentPath) {
			continue
		}
		tLogger := cfg.TrackerLog
		t := tracker.New(agentPath, doc.ID, ix, tLogger)
		if err := t.Start(ctx); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Errorf("resume: start tracker for %s: %v", agentPath, err)
			}
			continue
		}
		trackers = append(trackers, t)
	}

	return &Result{Core: core, Trackers: trackers}, nil
}

func initializeFresh(ctx context.Context, cfg Config, s store.Store, sessionObjID string) (object.SessionPayload, object.ChatPayload, error) {
	chatRef := hasher.UnsourcedIdentity(string(object.KindChat), uuid.NewString())
	systemPromptRef := hasher.UnsourcedIdentity(string(object.KindSystemPrompt), uuid.NewString())

	chatPayload := object.ChatPayload{SessionRef: cfg.SessionID}
	chatMH := hasher.MetadataHash(chatPayload)
	chatDoc := object.Object{
		Envelope: object.Envelope{ID: chatRef, Kind: object.KindChat, IdentityHash: chatRef},
		Version:  object.Version{MetadataHash: chatMH, ObjectHash: hasher.ObjectHash(nil, nil, chatMH), Chat: &chatPayload},
	}
	if err := s.Put(ctx, chatDoc, time.Time{}); err != nil {
		return object.SessionPayload{}, object.ChatPayload{}, fmt.Errorf("resume: init chat object: %w", err)
	}

	spMH := hasher.MetadataHash(struct{}{})
	spContentHash := hasher.ContentHash(&cfg.SystemPrompt)
	spDoc := object.Object{
		Envelope: object.Envelope{ID: systemPromptRef, Kind: object.KindSystemPrompt, IdentityHash: systemPromptRef},
		Version: object.Version{
			Content:      &cfg.SystemPrompt,
			ContentHash:  spContentHash,
			MetadataHash: spMH,
			ObjectHash:   hasher.ObjectHash(nil, spContentHash, spMH),
			SystemPrompt: &cfg.SystemPrompt,
		},
	}
	if err := s.Put(ctx, spDoc, time.Time{}); err != nil {
		return object.SessionPayload{}, object.ChatPayload{}, fmt.Errorf("resume: init system prompt object: %w", err)
	}

	payload := object.SessionPayload{
		SessionID:       cfg.SessionID,
		ChatRef:         chatRef,
		SystemPromptRef: systemPromptRef,
	}
	sessMH := hasher.MetadataHash(payload)
	sessDoc := object.Object{
		Envelope: object.Envelope{ID: sessionObjID, Kind: object.KindSession, IdentityHash: sessionObjID},
		Version:  object.Version{MetadataHash: sessMH, ObjectHash: hasher.ObjectHash(nil, nil, sessMH), Session: &payload},
	}
	if err := s.Put(ctx, sessDoc, time.Time{}); err != nil {
		return object.SessionPayload{}, object.ChatPayload{}, fmt.Errorf("resume: init session wrapper: %w", err)
	}

	return payload, chatPayload, nil
}

// reconcileSource classifies a sourced object's accessibility and
// either full-indexes it, writes a tombstone, or leaves it untouched
// (spec.md §4.7 step 5).
func reconcileSource(ctx context.Context, core *sessioncore.Core, resolver *fsresolver.Resolver, ix *indexer.Indexer, doc object.Object) error {
	agentPath := resolver.ReverseResolve(doc.Source.CanonicalPath, doc.Source.FilesystemID)

	info, err := os.Stat(doc.Source.CanonicalPath)
	switch {
	case err == nil && !info.IsDir():
		content, readErr := os.ReadFile(doc.Source.CanonicalPath)
		if readErr != nil {
			return nil // not accessible: leave as-is, orphaned
		}
		res, indexErr := ix.Full(ctx, agentPath, string(content))
		if indexErr != nil {
			return indexErr
		}
		core.RecordWatcherUpdate(res.Object)
		return nil

	case os.IsNotExist(err):
		res, tombErr := ix.Delete(ctx, agentPath)
		if tombErr != nil {
			return tombErr
		}
		core.RecordWatcherUpdate(res.Object)
		return nil

	default:
		// Stat failed for another reason (e.g. the mount itself is
		// gone) — leave the object exactly as persisted.
		return nil
	}
}
