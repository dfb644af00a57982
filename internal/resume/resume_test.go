package resume

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jg-phare/ctxcore/internal/fsresolver"
	"github.com/jg-phare/ctxcore/internal/indexer"
	"github.com/jg-phare/ctxcore/internal/store/localstore"
)

// testReader is a minimal sessioncore.SourceReader for tests that
// don't exercise stub-upgrade reads; resume itself never calls it.
type testReader struct{}

func (testReader) ReadSource(canonicalPath string) (string, error) {
	data, err := os.ReadFile(canonicalPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func newTestEnv(t *testing.T) (*fsresolver.Resolver, *indexer.Indexer, *localstore.Store, string) {
	t.Helper()
	root := t.TempDir()
	r := fsresolver.New("fs1", []fsresolver.Mapping{
		{AgentPrefix: "/ws", CanonicalPrefix: root, FilesystemID: "fs1", Writable: true},
	})
	s := localstore.New(t.TempDir())
	t.Cleanup(func() { _ = s.Close() })
	ix := indexer.New(r, s)
	return r, ix, s, root
}

func TestResumeInitializesFreshSession(t *testing.T) {
	r, ix, s, _ := newTestEnv(t)
	ctx := context.Background()

	result, err := Resume(ctx, Config{
		SessionID:    "sess-fresh",
		SystemPrompt: "you are a helpful assistant",
		Reader:       testReader{},
	}, r, ix, s)
	if err != nil {
		t.Fatal(err)
	}
	if result.Core == nil {
		t.Fatal("expected a Core")
	}
	if len(result.Core.SessionIndex()) != 0 {
		t.Fatalf("expected empty session index for a fresh session, got %v", result.Core.SessionIndex())
	}
	if len(result.Trackers) != 0 {
		t.Fatalf("expected no trackers for a fresh session, got %d", len(result.Trackers))
	}
}

func TestResumeRehydratesExistingSession(t *testing.T) {
	r, ix, s, root := newTestEnv(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Resume(ctx, Config{
		SessionID:    "sess-existing",
		SystemPrompt: "you are a helpful assistant",
		Reader:       testReader{},
	}, r, ix, s)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Core.IndexFileAndActivate(ctx, "/ws/a.md", "hello"); err != nil {
		t.Fatal(err)
	}
	first.Core.AppendChatTurn("user", "hi there", 1)
	first.Core.Close()
	for _, tr := range first.Trackers {
		tr.Close()
	}

	second, err := Resume(ctx, Config{
		SessionID:    "sess-existing",
		SystemPrompt: "you are a helpful assistant",
		Reader:       testReader{},
	}, r, ix, s)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		second.Core.Close()
		for _, tr := range second.Trackers {
			tr.Close()
		}
	}()

	if len(second.Core.SessionIndex()) != 1 {
		t.Fatalf("expected one indexed object after rehydrate, got %v", second.Core.SessionIndex())
	}
	if len(second.Core.ActiveSet()) != 1 {
		t.Fatalf("expected the file to still be active after rehydrate, got %v", second.Core.ActiveSet())
	}
	if len(second.Core.ChatTurns()) != 1 {
		t.Fatalf("expected one chat turn restored, got %v", second.Core.ChatTurns())
	}
	if len(second.Trackers) != 1 {
		t.Fatalf("expected one tracker re-established for the watchable mounted file, got %d", len(second.Trackers))
	}
}

func TestResumeReconcilesDeletedSourceAsTombstone(t *testing.T) {
	r, ix, s, root := newTestEnv(t)
	ctx := context.Background()

	path := filepath.Join(root, "gone.md")
	if err := os.WriteFile(path, []byte("bye"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Resume(ctx, Config{SessionID: "sess-deleted", Reader: testReader{}}, r, ix, s)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := first.Core.IndexFileAndActivate(ctx, "/ws/gone.md", "bye")
	if err != nil {
		t.Fatal(err)
	}
	first.Core.Close()
	for _, tr := range first.Trackers {
		tr.Close()
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	second, err := Resume(ctx, Config{SessionID: "sess-deleted", Reader: testReader{}}, r, ix, s)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		second.Core.Close()
		for _, tr := range second.Trackers {
			tr.Close()
		}
	}()

	latest, found, err := s.Get(ctx, doc.ID)
	if err != nil || !found {
		t.Fatalf("expected the deleted source's object to exist: found=%v err=%v", found, err)
	}
	if latest.Content != nil || latest.FileHash != nil {
		t.Fatalf("expected a tombstone version after resume, got content=%v fileHash=%v", latest.Content, latest.FileHash)
	}
	if len(second.Trackers) != 0 {
		t.Fatalf("expected no tracker for a confirmed-deleted source, got %d", len(second.Trackers))
	}
}
