package assembler

import (
	"context"
	"strings"
	"testing"

	"github.com/jg-phare/ctxcore/internal/fsresolver"
	"github.com/jg-phare/ctxcore/internal/indexer"
	"github.com/jg-phare/ctxcore/internal/object"
	"github.com/jg-phare/ctxcore/internal/sessioncore"
	"github.com/jg-phare/ctxcore/internal/store/localstore"
)

type fakeReader struct{ content map[string]string }

func (f *fakeReader) ReadSource(path string) (string, error) { return f.content[path], nil }

type storeFetcher struct {
	s *localstore.Store
}

func (f storeFetcher) Get(id string) (object.Object, bool) {
	doc, found, err := f.s.Get(context.Background(), id)
	if err != nil || !found {
		return object.Object{}, false
	}
	return doc, true
}

func newTestCore(t *testing.T) (*sessioncore.Core, *localstore.Store) {
	t.Helper()
	r := fsresolver.New("fs1", nil)
	s := localstore.New(t.TempDir())
	t.Cleanup(func() { _ = s.Close() })
	ix := indexer.New(r, s)
	reader := &fakeReader{content: map[string]string{"/a.md": "file body"}}
	core := sessioncore.New(sessioncore.Config{
		SessionID: "sess1", ChatRef: "chat1", SystemPromptRef: "sp1", SessionObjID: "sessobj1", Reader: reader,
	}, r, ix, s)
	t.Cleanup(core.Close)
	return core, s
}

func TestAssembleOrdersChatHistoryInterleaved(t *testing.T) {
	core, s := newTestCore(t)
	ctx := context.Background()

	core.AppendChatTurn("user", "please read the file", 1)
	if _, err := core.IndexFileAndActivate(ctx, "/a.md", "file body"); err != nil {
		t.Fatal(err)
	}
	if _, err := core.NewToolcall(ctx, "read", nil, "read(/a.md)", "ok", []string{"/a.md"}); err != nil {
		t.Fatal(err)
	}
	core.AppendChatTurn("assistant", "the file says hello", 2)

	asm := New("you are an assistant", core, storeFetcher{s})
	msgs := asm.Assemble()

	var chat []Message
	for _, m := range msgs {
		if m.Section == SectionChatHistory {
			chat = append(chat, m)
		}
	}
	if len(chat) != 3 {
		t.Fatalf("expected 3 chat-history messages, got %d", len(chat))
	}
	if chat[0].Text != "please read the file" {
		t.Fatalf("expected first turn verbatim, got %q", chat[0].Text)
	}
	if !strings.HasPrefix(chat[1].Text, "toolcall_ref id=") || !strings.Contains(chat[1].Text, "tool=read status=ok") {
		t.Fatalf("expected toolcall_ref between the two turns, got %q", chat[1].Text)
	}
	if chat[2].Text != "the file says hello" {
		t.Fatalf("expected second turn verbatim, got %q", chat[2].Text)
	}
}

func TestAssembleIsDeterministicAcrossRuns(t *testing.T) {
	core, s := newTestCore(t)
	ctx := context.Background()
	core.AppendChatTurn("user", "hi", 1)
	if _, err := core.IndexFileAndActivate(ctx, "/a.md", "file body"); err != nil {
		t.Fatal(err)
	}

	asm := New("system prompt", core, storeFetcher{s})
	first := asm.Assemble()
	second := asm.Assemble()

	if len(first) != len(second) {
		t.Fatalf("expected identical message count across runs, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("message %d diverged across runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestMetadataPoolNeverLeaksFullContent(t *testing.T) {
	core, s := newTestCore(t)
	ctx := context.Background()
	const secret = "THIS-IS-THE-FULL-FILE-BODY-SECRET"
	if _, err := core.IndexFileAndActivate(ctx, "/a.md", secret); err != nil {
		t.Fatal(err)
	}
	if ok, _ := core.Deactivate(core.ActiveSet()[0]); !ok {
		t.Fatalf("expected deactivate to succeed")
	}

	asm := New("sp", core, storeFetcher{s})
	msgs := asm.Assemble()
	for _, m := range msgs {
		if m.Section == SectionMetadataPool && strings.Contains(m.Text, secret) {
			t.Fatalf("metadata pool section leaked full file content: %q", m.Text)
		}
	}
}

func TestActiveContentTemplateIsByteExact(t *testing.T) {
	core, s := newTestCore(t)
	ctx := context.Background()
	doc, err := core.IndexFileAndActivate(ctx, "/a.md", "file body")
	if err != nil {
		t.Fatal(err)
	}

	asm := New("sp", core, storeFetcher{s})
	msgs := asm.Assemble()

	want := "ACTIVE_CONTENT id=" + doc.ID + "\nfile body"
	found := false
	for _, m := range msgs {
		if m.Section == SectionActiveContent {
			found = true
			if m.Text != want {
				t.Fatalf("active content template mismatch:\n got: %q\nwant: %q", m.Text, want)
			}
		}
	}
	if !found {
		t.Fatalf("expected an active content message")
	}
}

func TestMetadataPoolTemplateStartsWithHeader(t *testing.T) {
	core, s := newTestCore(t)
	asm := New("sp", core, storeFetcher{s})
	msgs := asm.Assemble()

	for _, m := range msgs {
		if m.Section == SectionMetadataPool {
			if !strings.HasPrefix(m.Text, "METADATA_POOL\n") {
				t.Fatalf("expected METADATA_POOL header, got %q", m.Text)
			}
			return
		}
	}
	t.Fatalf("expected a metadata pool message even when empty")
}

func TestBudgetKnownModelUsesTableLimit(t *testing.T) {
	core, s := newTestCore(t)
	asm := New("system prompt", core, storeFetcher{s})

	b := asm.Budget("claude-sonnet-4-5-20250929", nil)
	if b.ContextLimit != 200_000 {
		t.Fatalf("expected table limit 200000, got %d", b.ContextLimit)
	}
	if b.MaxOutputTkns != DefaultMaxOutputTkns {
		t.Fatalf("expected default max output tokens, got %d", b.MaxOutputTkns)
	}
	if b.SystemPromptTkns != len("system prompt")/4 {
		t.Fatalf("unexpected system prompt token estimate: %d", b.SystemPromptTkns)
	}
}

func TestBudgetUnknownModelFallsBackToDefault(t *testing.T) {
	core, s := newTestCore(t)
	asm := New("sp", core, storeFetcher{s})

	b := asm.Budget("gpt-4", nil)
	if b.ContextLimit != DefaultContextLimit {
		t.Fatalf("expected default context limit, got %d", b.ContextLimit)
	}
}

func TestBudget1MBetaOnlyAppliesToSonnet(t *testing.T) {
	core, s := newTestCore(t)
	asm := New("sp", core, storeFetcher{s})

	sonnet := asm.Budget("claude-sonnet-4-5-20250929", []string{Beta1MFlag})
	if sonnet.ContextLimit != 1_000_000 {
		t.Fatalf("expected 1M context limit for sonnet with beta flag, got %d", sonnet.ContextLimit)
	}

	opus := asm.Budget("claude-opus-4-5-20250514", []string{Beta1MFlag})
	if opus.ContextLimit != 200_000 {
		t.Fatalf("expected opus to ignore the 1M beta flag, got %d", opus.ContextLimit)
	}
}

func TestBudgetIsOverflowAndAvailable(t *testing.T) {
	b := TokenBudget{ContextLimit: 200_000, SystemPromptTkns: 100_000, MessageTkns: 100_000, MaxOutputTkns: 16384}
	if !b.IsOverflow() {
		t.Fatalf("expected overflow")
	}
	if b.Available() != 0 {
		t.Fatalf("expected no tokens available once overflowing, got %d", b.Available())
	}

	room := TokenBudget{ContextLimit: 200_000, SystemPromptTkns: 10_000, MessageTkns: 50_000, MaxOutputTkns: 16384}
	if room.IsOverflow() {
		t.Fatalf("expected no overflow")
	}
	if room.Available() != 123_616 {
		t.Fatalf("unexpected available tokens: %d", room.Available())
	}
}

func TestBudgetMessageTknsExcludesSystemPromptSection(t *testing.T) {
	core, s := newTestCore(t)
	ctx := context.Background()
	if _, err := core.IndexFileAndActivate(ctx, "/a.md", "file body"); err != nil {
		t.Fatal(err)
	}

	asm := New(strings.Repeat("x", 4000), core, storeFetcher{s})
	b := asm.Budget("claude-sonnet-4-5-20250929", nil)

	if b.SystemPromptTkns != 1000 {
		t.Fatalf("expected system prompt tokens estimated separately, got %d", b.SystemPromptTkns)
	}
	if b.MessageTkns == 0 {
		t.Fatalf("expected non-zero message tokens from metadata pool/active content")
	}
}
