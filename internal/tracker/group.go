package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// registry is the process-wide set of active dirGroups, keyed by the
// canonical parent directory they watch. Scoping one fsnotify.Watcher
// per directory (instead of per file) is what makes cross-path rename
// correlation possible: fsnotify delivers a rename event at the old
// name (handled like an unlink) and a create at the new name as two
// independent events, and only a
// watcher that sees both within the same directory can line them up.
var (
	registryMu sync.Mutex
	registry   = make(map[string]*dirGroup)
)

// renameCandidate is an unlink waiting to see whether a matching
// create shows up elsewhere in the directory before renameWindow
// elapses.
type renameCandidate struct {
	tracker *Tracker
	timer   *time.Timer
}

// dirGroup is one shared fsnotify watch over a directory, fanning
// upsert/unlink events out to whichever Tracker currently owns each
// path and correlating unlink/create pairs into renames.
type dirGroup struct {
	dir     string
	watcher *fsnotify.Watcher
	logger  Logger
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	refCount int
	byPath   map[string]*Tracker
	pending  map[string]*renameCandidate // keyed by the path that was unlinked
}

// acquireGroup returns the dirGroup for dir, creating and starting its
// watcher if this is the first tracker to join it.
func acquireGroup(dir string, logger Logger) (*dirGroup, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if g, ok := registry[dir]; ok {
		g.refCount++
		return g, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &dirGroup{
		dir:      dir,
		watcher:  watcher,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
		refCount: 1,
		byPath:   make(map[string]*Tracker),
		pending:  make(map[string]*renameCandidate),
	}
	registry[dir] = g
	go g.run(ctx)
	return g, nil
}

// release drops one reference to the group, tearing down the OS-level
// watch once the last tracker using it has gone.
func (g *dirGroup) release() {
	registryMu.Lock()
	g.refCount--
	drain := g.refCount <= 0
	if drain {
		delete(registry, g.dir)
	}
	registryMu.Unlock()

	if !drain {
		return
	}
	g.cancel()
	<-g.done
	g.watcher.Close()
}

func (g *dirGroup) register(path string, t *Tracker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byPath[path] = t
}

func (g *dirGroup) unregister(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cand, ok := g.pending[path]; ok {
		cand.timer.Stop()
		delete(g.pending, path)
	}
	delete(g.byPath, path)
}

func (g *dirGroup) run(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				g.handleUpsertPath(ctx, event.Name)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				g.handleUnlinkPath(ctx, event.Name)
			}

		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			g.logger.Errorf("tracker: watch error for %s: %v", g.dir, err)
		}
	}
}

// handleUpsertPath dispatches a Create/Write event. If path already
// belongs to a tracker, it's a plain upsert. Otherwise, if there is a
// pending rename candidate anywhere in this directory, this create is
// taken as the other half of that rename: the candidate's tracker is
// moved onto path instead of being tombstoned later.
func (g *dirGroup) handleUpsertPath(ctx context.Context, path string) {
	g.mu.Lock()
	t, tracked := g.byPath[path]
	var rename *renameCandidate
	if !tracked {
		for oldPath, cand := range g.pending {
			rename = cand
			delete(g.pending, oldPath)
			break
		}
	}
	if rename != nil {
		t = rename.tracker
		g.byPath[path] = t
	}
	g.mu.Unlock()

	if rename != nil {
		rename.timer.Stop()
		t.rename(path)
		t.handleUpsert(ctx)
		return
	}
	if tracked {
		t.handleUpsert(ctx)
	}
	// An untracked path with no pending rename candidate is a file
	// nothing in this session is watching; discovery of brand-new
	// paths is handled elsewhere, not by the tracker.
}

// handleUnlinkPath handles a Remove or Rename event at path: it
// records path's tracker (if any) as a rename
// candidate and arms its tombstone timer. If no matching create shows
// up elsewhere in the directory within renameWindow, the timer fires
// and the source is tombstoned as a genuine delete.
func (g *dirGroup) handleUnlinkPath(ctx context.Context, path string) {
	g.mu.Lock()
	t, tracked := g.byPath[path]
	if !tracked {
		g.mu.Unlock()
		return
	}
	delete(g.byPath, path)
	if prev, ok := g.pending[path]; ok {
		prev.timer.Stop()
	}
	cand := &renameCandidate{tracker: t}
	g.pending[path] = cand
	g.mu.Unlock()

	cand.timer = time.AfterFunc(renameWindow, func() {
		g.mu.Lock()
		_, stillPending := g.pending[path]
		if stillPending {
			delete(g.pending, path)
		}
		g.mu.Unlock()
		if stillPending {
			t.handleConfirmedUnlink(ctx)
		}
	})
}
