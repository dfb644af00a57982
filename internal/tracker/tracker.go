// Package tracker subscribes to external filesystem changes via
// fsnotify and pushes upsert/unlink events through the Indexer,
// implementing the per-source attached/orphaned/resumed/deleted
// lifecycle of spec.md §4.5.
//
// Grounded directly on the teacher's pkg/subagent/watch.go: the same
// fsnotify watcher and context-cancellation shutdown pattern (events
// are handled as they arrive, without a debounce timer), generalized from "reload agent definitions on .md change"
// to "reindex a tracked source object on upsert, tombstone on
// confirmed unlink."
//
// One fsnotify.Watcher is shared by every Tracker whose agentPath
// lives under the same parent directory (a dirGroup), rather than one
// watcher per file: a rename shows up to fsnotify as an unlink at the
// old name and a create at the new one, and only a watcher that sees
// both can correlate them. Per spec.md §4.5, an unlink is held as a
// rename candidate for renameWindow; a create elsewhere in the same
// directory within that window is treated as the matching rename
// instead of a fresh, unrelated file.
package tracker

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jg-phare/ctxcore/internal/indexer"
)

// State is a tracker's lifecycle stage.
type State string

const (
	Attached State = "attached"
	Orphaned State = "orphaned"
	Resumed  State = "resumed"
	Deleted  State = "deleted"
)

// Logger is the minimal injectable sink for background tracker errors.
// The zero value (NoopLogger) discards everything, so the core never
// forces a logging dependency on callers that don't want one.
type Logger interface {
	Errorf(format string, args ...any)
}

// NoopLogger discards all log output.
type NoopLogger struct{}

func (NoopLogger) Errorf(string, ...any) {}

// renameWindow is how long an unlink is held as a rename candidate
// before being committed as a tombstone.
const renameWindow = 2 * time.Second

// Tracker watches one agent-visible path and reindexes its target
// object on external change. Its agentPath can move: when the shared
// dirGroup correlates an unlink of this tracker's path with a create
// elsewhere in the same directory within renameWindow, the tracker
// follows the file to its new path instead of tombstoning.
type Tracker struct {
	indexer *indexer.Indexer
	logger  Logger

	mu        sync.Mutex
	agentPath string
	objectID  string // object ID this tracker was first bound to; informational after a rename
	state     State
	group     *dirGroup
}

// New creates a Tracker for agentPath, bound to objectID (the ID the
// Indexer assigned when this source was first indexed).
func New(agentPath, objectID string, ix *indexer.Indexer, logger Logger) *Tracker {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Tracker{agentPath: agentPath, objectID: objectID, indexer: ix, logger: logger, state: Orphaned}
}

// State returns the tracker's current lifecycle stage.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Path returns the agent-visible path this tracker currently watches.
// It can change over the tracker's lifetime if a rename was correlated.
func (t *Tracker) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agentPath
}

// Start joins (or creates) the shared watcher for this path's parent
// directory and begins emitting upsert/unlink events into the indexer.
// Safe to call again after Close to re-establish a tracker on resume
// (transitions Orphaned -> Resumed).
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	path := t.agentPath
	t.mu.Unlock()

	g, err := acquireGroup(parentDir(path), t.logger)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.group = g
	wasOrphaned := t.state == Orphaned
	if wasOrphaned {
		t.state = Resumed
	} else {
		t.state = Attached
	}
	t.mu.Unlock()

	g.register(path, t)
	return nil
}

// handleUpsert reindexes the tracker's current path. Called by the
// owning dirGroup on a Create/Write event, including the first create
// observed after a correlated rename (at that point t.agentPath has
// already been updated to the new name).
func (t *Tracker) handleUpsert(ctx context.Context) {
	path := t.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		t.logger.Errorf("tracker: read %s: %v", path, err)
		return
	}
	if _, err := t.indexer.Full(ctx, path, string(data)); err != nil {
		t.logger.Errorf("tracker: index %s: %v", path, err)
	}
}

// handleConfirmedUnlink tombstones the tracker's source once its
// renameWindow has elapsed with no matching create observed anywhere
// in the directory.
func (t *Tracker) handleConfirmedUnlink(ctx context.Context) {
	path := t.Path()
	if _, err := t.indexer.Delete(ctx, path); err != nil {
		t.logger.Errorf("tracker: tombstone %s: %v", path, err)
	}
}

// rename moves the tracker onto a new agent-visible path, following a
// correlated rename within the same directory.
func (t *Tracker) rename(newPath string) {
	t.mu.Lock()
	t.agentPath = newPath
	t.mu.Unlock()
}

// Close shuts the tracker down cooperatively: leaves its shared
// dirGroup and releases the group's OS-level watch handle once no
// tracker still needs it. The tracker transitions to Orphaned (not
// Deleted) — orphaning is the normal "no tracker active" state, not an
// error.
func (t *Tracker) Close() error {
	t.mu.Lock()
	g := t.group
	path := t.agentPath
	t.group = nil
	t.state = Orphaned
	t.mu.Unlock()

	if g == nil {
		return nil
	}
	g.unregister(path)
	g.release()
	return nil
}

// MarkDeleted transitions the tracker to its terminal Deleted state
// once the source has been confirmed gone for good (e.g. the whole
// mount was torn down). A deleted tracker is never restarted.
func (t *Tracker) MarkDeleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Deleted
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i <= 0 {
		return "/"
	}
	return path[:i]
}
