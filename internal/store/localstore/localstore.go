// Package localstore is a JSONL-file Store implementation used for
// development and tests in place of the real bi-temporal HTTP store.
// It keeps every version ever written (never truncates), satisfying
// spec.md's "no object is ever hard-deleted" invariant the same way
// the real store would.
//
// Grounded on the teacher's pkg/session/store.go (baseDir-rooted
// file layout, StoreOption functional options) and writer.go (async
// writer + flock), generalized from "append a message" to "append a
// bi-temporal object version and support Get/GetAsOf/History/Query
// over it."
package localstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jg-phare/ctxcore/internal/object"
	"github.com/jg-phare/ctxcore/internal/store"
)

var ErrLockTimeout = errors.New("localstore: lock acquisition timeout")

// record is one committed version as persisted on disk.
type record struct {
	ValidTime int64         `json:"validTime"`
	Doc       object.Object `json:"doc"`
}

// Store persists object versions as one JSONL file per object ID
// under baseDir.
type Store struct {
	baseDir        string
	writer         *asyncWriter
	persistEnabled bool

	mu    sync.RWMutex
	cache map[string][]record // in-memory mirror, rebuilt lazily on read
}

// Option configures a Store.
type Option func(*Store)

// WithPersistEnabled controls whether writes reach disk (false keeps
// every write in the in-memory mirror only, useful in tests that only
// exercise in-memory behavior).
func WithPersistEnabled(enabled bool) Option {
	return func(s *Store) { s.persistEnabled = enabled }
}

// New creates a localstore rooted at baseDir.
func New(baseDir string, opts ...Option) *Store {
	s := &Store{
		baseDir:        baseDir,
		writer:         newAsyncWriter(),
		persistEnabled: true,
		cache:          make(map[string][]record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(id string) string {
	return filepath.Join(s.baseDir, id+".jsonl")
}

func (s *Store) Put(ctx context.Context, doc store.Doc, validTime time.Time) error {
	vt := validTime
	if vt.IsZero() {
		vt = time.Now()
	}
	rec := record{ValidTime: vt.UnixMilli(), Doc: doc}

	// Load any on-disk history first so the in-memory mirror is appended
	// to, not replaced, when this instance has not read id yet.
	if _, err := s.records(doc.ID); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[doc.ID] = append(s.cache[doc.ID], rec)
	s.mu.Unlock()

	if !s.persistEnabled {
		return nil
	}
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("localstore: create base dir: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("localstore: marshal record: %w", err)
	}
	data = append(data, '\n')

	errCh := make(chan error, 1)
	s.writer.Write(s.path(doc.ID), data, errCh)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Store) PutAndWait(ctx context.Context, doc store.Doc, validTime time.Time) error {
	// The async writer's errCh already blocks until the append lands,
	// so PutAndWait and Put share the same implementation here; the
	// distinction matters for httpstore, where Put alone does not wait
	// for store-side visibility.
	return s.Put(ctx, doc, validTime)
}

func (s *Store) records(id string) ([]record, error) {
	s.mu.RLock()
	if recs, ok := s.cache[id]; ok {
		out := make([]record, len(recs))
		copy(out, recs)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	recs, err := s.loadFromDisk(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = recs
	s.mu.Unlock()
	return recs, nil
}

func (s *Store) loadFromDisk(id string) ([]record, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("localstore: open %s: %w", id, err)
	}
	defer f.Close()

	var recs []record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("localstore: decode record for %s: %w", id, err)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("localstore: scan %s: %w", id, err)
	}
	return recs, nil
}

func (s *Store) Get(ctx context.Context, id string) (store.Doc, bool, error) {
	recs, err := s.records(id)
	if err != nil {
		return store.Doc{}, false, err
	}
	if len(recs) == 0 {
		return store.Doc{}, false, nil
	}
	return recs[len(recs)-1].Doc, true, nil
}

func (s *Store) GetAsOf(ctx context.Context, id string, validTime time.Time) (store.Doc, bool, error) {
	recs, err := s.records(id)
	if err != nil {
		return store.Doc{}, false, err
	}
	target := validTime.UnixMilli()
	var best *record
	for i := range recs {
		if recs[i].ValidTime <= target {
			best = &recs[i]
		}
	}
	if best == nil {
		return store.Doc{}, false, nil
	}
	return best.Doc, true, nil
}

func (s *Store) History(ctx context.Context, id string) ([]store.Doc, error) {
	recs, err := s.records(id)
	if err != nil {
		return nil, err
	}
	docs := make([]store.Doc, len(recs))
	for i, r := range recs {
		docs[i] = r.Doc
	}
	return docs, nil
}

func (s *Store) Query(ctx context.Context, ids []string) ([]store.Doc, error) {
	docs := make([]store.Doc, 0, len(ids))
	for _, id := range ids {
		doc, found, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Close flushes the async writer.
func (s *Store) Close() error {
	return s.writer.Close()
}

var _ store.Store = (*Store)(nil)
