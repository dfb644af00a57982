package sessioncore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jg-phare/ctxcore/internal/fsresolver"
	"github.com/jg-phare/ctxcore/internal/hasher"
	"github.com/jg-phare/ctxcore/internal/indexer"
	"github.com/jg-phare/ctxcore/internal/object"
	"github.com/jg-phare/ctxcore/internal/store"
)

// WindowConfig configures the auto-collapse sliding window (spec.md
// §4.4). Defaults observed but not mandated by the source spec; kept
// as configuration per SPEC_FULL.md's open-question resolution.
type WindowConfig struct {
	KeepLastPerTurn int // N, default 5
	KeepLastTurns   int // W, default 3
}

// DefaultWindowConfig returns the observed (not mandated) defaults.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{KeepLastPerTurn: 5, KeepLastTurns: 3}
}

// Logger is the minimal sink for background errors. Core logs
// discovery-indexing failures from ObserveToolExecutionEnd; errors from
// the persistence chains are not logged (see persistenceChain.LastErr).
type Logger interface {
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Errorf(string, ...any) {}

// SourceReader reads the current bytes of a sourced object's
// canonical path. Activating a stub needs this to perform the full
// index spec.md §4.4 requires; the facade supplies the real
// filesystem-backed implementation so SessionCore itself stays free
// of direct OS access.
type SourceReader interface {
	ReadSource(canonicalPath string) (string, error)
}

// Core owns the four session sets, the metadata cache, the chat log,
// and the harness-message cursor for one session.
type Core struct {
	sessionID       string
	chatRef         string
	systemPromptRef string
	sessionObjID    string

	resolver *fsresolver.Resolver
	indexer  *indexer.Indexer
	store    store.Store
	// sessionChain and chatChain are separate queues: persistenceChain
	// coalesces to the latest enqueued write per drain cycle, which is
	// only correct when every op in the queue targets the same
	// document. The session wrapper and the chat object are different
	// documents, so each gets its own chain.
	sessionChain *persistenceChain
	chatChain    *persistenceChain
	logger       Logger
	reader       SourceReader

	window WindowConfig

	sets  *sets
	cache map[string]CacheEntry

	chatTurns    []object.ChatTurn
	toolcallRefs []string
	turnNumber   int
	toolcallTurn map[string]int   // toolcall object ID -> turn it was created in
	turnOrder    map[int][]string // turn -> toolcall IDs in creation order
	timeline     []ChatEvent      // interleaved turn/toolcall-ref log, original order

	cur cursor
}

// Config bundles construction-time parameters (spec.md §6).
type Config struct {
	SessionID       string
	ChatRef         string
	SystemPromptRef string
	SessionObjID    string
	Window          WindowConfig
	Logger          Logger
	Reader          SourceReader
}

// New constructs a fresh, empty Core. Callers that are resuming a
// session should instead build one via the resume package and call
// Rehydrate.
func New(cfg Config, resolver *fsresolver.Resolver, ix *indexer.Indexer, s store.Store) *Core {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	window := cfg.Window
	if window.KeepLastPerTurn == 0 && window.KeepLastTurns == 0 {
		window = DefaultWindowConfig()
	}
	return &Core{
		sessionID:       cfg.SessionID,
		chatRef:         cfg.ChatRef,
		systemPromptRef: cfg.SystemPromptRef,
		sessionObjID:    cfg.SessionObjID,
		resolver:        resolver,
		indexer:         ix,
		store:           s,
		sessionChain:    newPersistenceChain(),
		chatChain:       newPersistenceChain(),
		logger:          logger,
		reader:          cfg.Reader,
		window:          window,
		sets:            newSets(),
		cache:           make(map[string]CacheEntry),
		toolcallTurn:    make(map[string]int),
		turnOrder:       make(map[int][]string),
	}
}

// Close drains both persistence chains.
func (c *Core) Close() {
	c.sessionChain.Close()
	c.chatChain.Close()
}

// --- accessors used by the ContextAssembler ---

func (c *Core) SessionIndex() []string { return c.sets.sessionIndex.Items() }
func (c *Core) MetadataPool() []string { return c.sets.metadataPool.Items() }
func (c *Core) ActiveSet() []string    { return c.sets.activeSet.Items() }
func (c *Core) PinnedSet() []string    { return c.sets.pinnedSet.Items() }
func (c *Core) ChatTurns() []object.ChatTurn {
	out := make([]object.ChatTurn, len(c.chatTurns))
	copy(out, c.chatTurns)
	return out
}
func (c *Core) CacheEntry(id string) (CacheEntry, bool) {
	e, ok := c.cache[id]
	return e, ok
}

// ChatEvent is one entry in the interleaved chat-history timeline: a
// user/assistant turn or a tool-result reference, in the exact order
// the harness emitted them (spec.md §4.6: "Chat history ... in
// original order").
type ChatEvent struct {
	Kind       string // "turn" | "toolcall_ref"
	Role       string // set when Kind == "turn"
	Text       string // set when Kind == "turn"
	ToolcallID string // set when Kind == "toolcall_ref"
}

// Timeline returns the ordered chat-history event log.
func (c *Core) Timeline() []ChatEvent {
	out := make([]ChatEvent, len(c.timeline))
	copy(out, c.timeline)
	return out
}

// --- set-invariant preserving mutations ---

func (c *Core) schedulePersist() {
	snapshot := object.SessionPayload{
		SessionID:       c.sessionID,
		ChatRef:         c.chatRef,
		SystemPromptRef: c.systemPromptRef,
		SessionIndex:    c.sets.sessionIndex.Items(),
		MetadataPool:    c.sets.metadataPool.Items(),
		ActiveSet:       c.sets.activeSet.Items(),
		PinnedSet:       c.sets.pinnedSet.Items(),
	}
	id := c.sessionObjID
	store := c.store
	c.sessionChain.Enqueue(func(ctx context.Context) error {
		mh := hasher.MetadataHash(snapshot)
		oh := hasher.ObjectHash(nil, nil, mh)
		doc := object.Object{
			// id is already hasher.UnsourcedIdentity(KindSession, ...),
			// computed once at creation (resume.initializeFresh) — reuse
			// it verbatim so identityHash stays stable across versions
			// instead of being rehashed on every write.
			Envelope: object.Envelope{ID: id, Kind: object.KindSession, IdentityHash: id},
			Version:  object.Version{MetadataHash: mh, ObjectHash: oh, Session: &snapshot},
		}
		return store.Put(ctx, doc, time.Time{})
	})
}

// Activate implements spec.md §4.4 activate(id).
func (c *Core) Activate(ctx context.Context, id string) (ok bool, msg string) {
	entry, known := c.cache[id]
	if !known {
		return false, ErrNotFound.Error()
	}
	if entry.File == nil && entry.Toolcall == nil {
		return false, ErrNotContentObject.Error()
	}
	if entry.File != nil && entry.File.IsStub {
		if err := c.upgradeStub(ctx, id); err != nil {
			if errors.Is(err, ErrContentUnavailable) {
				return false, ErrContentUnavailable.Error()
			}
			return false, ErrSourceInaccessible.Error()
		}
	}
	c.sets.activate(id)
	c.schedulePersist()
	return true, "activated"
}

// upgradeStub re-reads a stub's external source and performs a full
// index, updating the metadata cache with the result. A discovery
// stub (never yet fully indexed) and a tombstone (fully indexed, then
// confirmed deleted) share the same fileHash==nil shape, so they are
// told apart by history length: a tombstone always has at least one
// earlier full version behind it. Re-reading a tombstone's source is
// pointless — the deletion was already confirmed — so it fails
// immediately as ContentUnavailable rather than attempting a read
// that would otherwise surface as a misleading SourceInaccessible.
func (c *Core) upgradeStub(ctx context.Context, id string) error {
	existing, found, err := c.store.Get(ctx, id)
	if err != nil || !found || existing.Source == nil {
		return fmt.Errorf("%w: %s", ErrSourceInaccessible, id)
	}
	if history, err := c.store.History(ctx, id); err == nil && len(history) > 1 {
		return fmt.Errorf("%w: %s", ErrContentUnavailable, id)
	}
	if c.reader == nil {
		return fmt.Errorf("%w: no source reader configured", ErrSourceInaccessible)
	}
	content, err := c.reader.ReadSource(existing.Source.CanonicalPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceInaccessible, id, err)
	}
	// Re-derive the agent-visible path so the indexer resolves back to
	// the same (filesystemId, canonicalPath) pair — resolving the
	// canonical path directly would bypass the mount mapping and mint
	// a different identity.
	agentPath := existing.Source.CanonicalPath
	if c.resolver != nil {
		agentPath = c.resolver.ReverseResolve(existing.Source.CanonicalPath, existing.Source.FilesystemID)
	}
	if _, err := c.IndexFileAndActivate(ctx, agentPath, content); err != nil {
		return err
	}
	return nil
}

// Deactivate implements spec.md §4.4 deactivate(id).
func (c *Core) Deactivate(id string) (ok bool, msg string) {
	entry, known := c.cache[id]
	if !known {
		return false, ErrNotFound.Error()
	}
	if entry.File == nil && entry.Toolcall == nil {
		return false, ErrNotContentObject.Error()
	}
	if !c.sets.activeSet.Contains(id) {
		return false, ErrNotActive.Error()
	}
	c.sets.deactivate(id)
	c.schedulePersist()
	return true, "deactivated"
}

// Pin implements spec.md §4.4 pin(id): content-only, requires
// membership in metadataPool.
func (c *Core) Pin(id string) (ok bool, msg string) {
	entry, known := c.cache[id]
	if !known {
		return false, ErrNotFound.Error()
	}
	if entry.File == nil && entry.Toolcall == nil {
		return false, ErrNotContentObject.Error()
	}
	if !c.sets.pin(id) {
		return false, ErrNotInMetadataPool.Error()
	}
	c.schedulePersist()
	return true, "pinned"
}

// Unpin implements spec.md §4.4 unpin(id).
func (c *Core) Unpin(id string) (ok bool, msg string) {
	if !c.sets.unpin(id) {
		return false, ErrNotFound.Error()
	}
	c.schedulePersist()
	return true, "unpinned"
}

// IndexFileAndActivate performs the index+set-update steps shared by
// Read/WrappedWrite/WrappedEdit: full-index via the indexer, add to
// index+pool+active, update the cache.
func (c *Core) IndexFileAndActivate(ctx context.Context, agentPath, content string) (object.Object, error) {
	res, err := c.indexer.Full(ctx, agentPath, content)
	if err != nil {
		return object.Object{}, err
	}
	c.updateFileCache(res.Object)
	c.sets.activate(res.Object.ID)
	c.schedulePersist()
	return res.Object, nil
}

// IndexDiscoveryOnly performs the discovery-index step shared by
// WrappedLs/WrappedFind/WrappedGrep: add to index+pool (not active).
func (c *Core) IndexDiscoveryOnly(ctx context.Context, agentPath string) (object.Object, error) {
	res, err := c.indexer.Discovery(ctx, agentPath)
	if err != nil {
		return object.Object{}, err
	}
	c.updateFileCache(res.Object)
	c.sets.promoteToPool(res.Object.ID)
	c.schedulePersist()
	return res.Object, nil
}

func (c *Core) updateFileCache(doc object.Object) {
	if doc.Kind != object.KindFile {
		return
	}
	displayPath := doc.Source.CanonicalPath
	fsID := ""
	if doc.Source != nil {
		fsID = doc.Source.FilesystemID
		if c.resolver != nil {
			displayPath = c.resolver.ReverseResolve(doc.Source.CanonicalPath, fsID)
		}
	}
	fileType := ""
	charCount := 0
	if doc.File != nil {
		fileType = doc.File.FileType
		charCount = doc.File.CharCount
	}
	c.cache[doc.ID] = CacheEntry{
		File: &FileMeta{
			DisplayPath: displayPath,
			FileType:    fileType,
			CharCount:   charCount,
			IsStub:      doc.FileHash == nil,
		},
	}
}

// RecordWatcherUpdate refreshes the metadata cache from an object
// version the indexer has already written; it writes nothing itself and
// never changes set membership — a deactivated object that changes on
// disk does not get reactivated (spec.md §4.4).
func (c *Core) RecordWatcherUpdate(doc object.Object) {
	c.updateFileCache(doc)
}

// NewToolcall creates a toolcall object (auto-activated: added to
// index + pool + active) and returns it. Grounded on the teacher's
// convention of assigning a fresh uuid to unsourced entities.
func (c *Core) NewToolcall(ctx context.Context, tool string, args any, argsDisplay string, status string, fileRefs []string) (object.Object, error) {
	assigned := uuid.NewString()
	id := hasher.UnsourcedIdentity(string(object.KindToolcall), assigned)

	payload := object.ToolcallPayload{
		Tool:        tool,
		Args:        args,
		ArgsDisplay: argsDisplay,
		Status:      status,
		ChatRef:     c.chatRef,
		FileRefs:    fileRefs,
	}
	mh := hasher.MetadataHash(payload)
	oh := hasher.ObjectHash(nil, nil, mh)
	doc := object.Object{
		Envelope: object.Envelope{ID: id, Kind: object.KindToolcall, IdentityHash: id},
		Version:  object.Version{MetadataHash: mh, ObjectHash: oh, Toolcall: &payload},
	}
	if err := c.store.PutAndWait(ctx, doc, time.Time{}); err != nil {
		return object.Object{}, fmt.Errorf("sessioncore: write toolcall: %w", err)
	}

	c.cache[id] = CacheEntry{Toolcall: &ToolcallMeta{Tool: tool, Status: status}}
	c.sets.activate(id)

	c.toolcallTurn[id] = c.turnNumber
	c.turnOrder[c.turnNumber] = append(c.turnOrder[c.turnNumber], id)
	c.toolcallRefs = append(c.toolcallRefs, id)
	c.timeline = append(c.timeline, ChatEvent{Kind: "toolcall_ref", ToolcallID: id})

	c.applyAutoCollapse()
	c.schedulePersist()
	return doc, nil
}

// applyAutoCollapse implements the sliding-window policy of spec.md
// §4.4: keep the last N tool calls of each of the last W turns (plus
// any pinned ID) active; everything else transitions out of
// activeSet but stays in metadataPool. File objects are untouched.
func (c *Core) applyAutoCollapse() {
	cutoffTurn := c.turnNumber - c.window.KeepLastTurns + 1
	keep := make(map[string]bool)

	for turn, ids := range c.turnOrder {
		if turn < cutoffTurn {
			continue // entirely outside the recent-turns window
		}
		start := len(ids) - c.window.KeepLastPerTurn
		if start < 0 {
			start = 0
		}
		for _, id := range ids[start:] {
			keep[id] = true
		}
	}

	for _, id := range c.sets.activeSet.Items() {
		entry, ok := c.cache[id]
		if !ok || entry.Toolcall == nil {
			continue // files are never auto-collapsed
		}
		if keep[id] || c.sets.pinnedSet.Contains(id) {
			continue
		}
		c.sets.deactivate(id)
	}
}

// advanceTurn marks the start of a new turn; called when a user
// message is appended to the chat log.
func (c *Core) advanceTurn() {
	c.turnNumber++
}

// AppendChatTurn appends a user/assistant turn to the in-memory chat
// log and schedules persistence.
func (c *Core) AppendChatTurn(role string, text string, timestamp int64) {
	if role == string(RoleUser) {
		c.advanceTurn()
	}
	c.chatTurns = append(c.chatTurns, object.ChatTurn{Role: role, Text: text, Timestamp: timestamp})
	c.timeline = append(c.timeline, ChatEvent{Kind: "turn", Role: role, Text: text})
	c.scheduleChatPersist()
}

func (c *Core) scheduleChatPersist() {
	turns := make([]object.ChatTurn, len(c.chatTurns))
	copy(turns, c.chatTurns)
	refs := make([]string, len(c.toolcallRefs))
	copy(refs, c.toolcallRefs)
	payload := object.ChatPayload{
		Turns:        turns,
		SessionRef:   c.sessionID,
		TurnCount:    c.turnNumber,
		ToolcallRefs: refs,
	}
	id := c.chatRef
	s := c.store
	c.chatChain.Enqueue(func(ctx context.Context) error {
		mh := hasher.MetadataHash(payload)
		oh := hasher.ObjectHash(nil, nil, mh)
		doc := object.Object{
			// id is already hasher.UnsourcedIdentity(KindChat, ...),
			// computed once at creation — reuse it verbatim, same
			// reasoning as schedulePersist.
			Envelope: object.Envelope{ID: id, Kind: object.KindChat, IdentityHash: id},
			Version:  object.Version{MetadataHash: mh, ObjectHash: oh, Chat: &payload},
		}
		return s.Put(ctx, doc, time.Time{})
	})
}

// TransformContext advances the cursor over the harness-provided
// message stream and processes newly visible messages (spec.md §4.4).
func (c *Core) TransformContext(ctx context.Context, messages []Message) error {
	start, end := c.cur.advance(messages)
	for i := start; i < end; i++ {
		m := messages[i]
		switch m.Role {
		case RoleToolResult:
			status := m.Status
			if status == "" {
				status = "ok"
			}
			if _, err := c.NewToolcall(ctx, m.Tool, m.Args, m.ArgsDisplay, status, m.FileRefs); err != nil {
				return err
			}
		case RoleUser, RoleAssistant:
			c.AppendChatTurn(string(m.Role), m.Text, m.Timestamp)
		}
	}
	return nil
}

// ObserveToolExecutionEnd heuristically discovery-indexes path-like
// tokens from bash command/output; every other tool is a no-op
// (spec.md §4.4).
func (c *Core) ObserveToolExecutionEnd(ctx context.Context, tool string, commandOrOutput string) {
	if tool != "bash" {
		return
	}
	for _, tok := range extractPathLikeTokens(commandOrOutput) {
		if _, err := c.IndexDiscoveryOnly(ctx, tok); err != nil {
			c.logger.Errorf("sessioncore: discovery index %q: %v", tok, err)
		}
	}
}

func extractPathLikeTokens(s string) []string {
	var out []string
	fields := splitFields(s)
	for _, f := range fields {
		if looksPathLike(f) {
			out = append(out, f)
		}
	}
	return out
}

func splitFields(s string) []string {
	var fields []string
	var cur []byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == ' ' || ch == '\t' || ch == '\n' {
			if len(cur) > 0 {
				fields = append(fields, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, ch)
	}
	if len(cur) > 0 {
		fields = append(fields, string(cur))
	}
	return fields
}

// Rehydrate restores a Core's sets and metadata cache from a persisted
// session wrapper and the batch-fetched objects named by its
// sessionIndex (spec.md §4.7 steps 2-4). Set membership — including
// deactivations and pins — is preserved exactly as persisted; this
// bypasses the normal activate/pin helpers, which exist to enforce
// invariants on new mutations, not to replay an already-consistent
// snapshot.
func (c *Core) Rehydrate(payload object.SessionPayload, objects []object.Object) {
	for _, id := range payload.SessionIndex {
		c.sets.addToIndex(id)
	}
	for _, id := range payload.MetadataPool {
		c.sets.metadataPool.Add(id)
	}
	for _, id := range payload.ActiveSet {
		c.sets.activeSet.Add(id)
	}
	for _, id := range payload.PinnedSet {
		c.sets.pinnedSet.Add(id)
	}

	for _, doc := range objects {
		switch {
		case doc.Kind == object.KindFile:
			c.updateFileCache(doc)
		case doc.Kind == object.KindToolcall && doc.Toolcall != nil:
			c.cache[doc.ID] = CacheEntry{Toolcall: &ToolcallMeta{Tool: doc.Toolcall.Tool, Status: doc.Toolcall.Status}}
			c.toolcallRefs = append(c.toolcallRefs, doc.ID)
			c.timeline = append(c.timeline, ChatEvent{Kind: "toolcall_ref", ToolcallID: doc.ID})
		}
	}
}

// RehydrateChat restores the in-memory chat log and turn counter from
// a persisted chat object. The exact original interleaving of turns
// and toolcall references is not itself persisted (only the separate
// Turns and ToolcallRefs lists are), so the post-resume timeline
// replays all turns before Rehydrate appends toolcall_ref entries —
// an accepted approximation for sessions that resume mid-stream; new
// turns and toolcalls appended after resume interleave exactly as
// before.
func (c *Core) RehydrateChat(payload object.ChatPayload) {
	c.chatTurns = append(c.chatTurns, payload.Turns...)
	c.turnNumber = payload.TurnCount
	for _, turn := range payload.Turns {
		c.timeline = append(c.timeline, ChatEvent{Kind: "turn", Role: turn.Role, Text: turn.Text})
	}
}

func looksPathLike(tok string) bool {
	hasSlash := false
	hasDot := false
	for i := 0; i < len(tok); i++ {
		switch tok[i] {
		case '/':
			hasSlash = true
		case '.':
			hasDot = true
		}
	}
	return hasSlash || hasDot
}
