// Package assembler produces the deterministic, four-section message
// sequence described in spec.md §4.6 / §6: system prompt, metadata
// pool summary, chat history with tool references, and active
// content. Section ordering and wire templates are byte-exact per
// spec.md §6 and must never be improvised.
//
// Grounded on the teacher's pkg/context package (budget.go,
// estimator.go, summary.go): that package already renders a bounded,
// ordered message sequence from session state for an LLM call; this
// generalizes its string-building conventions (fmt.Sprintf templates,
// strings.Builder) into the fixed four-section render.
package assembler

import (
	"fmt"
	"strings"

	"github.com/jg-phare/ctxcore/internal/object"
	"github.com/jg-phare/ctxcore/internal/sessioncore"
)

// Section tags one rendered message with its position in the
// four-section layout, for callers that want to inspect structure
// rather than just the flattened sequence.
type Section int

const (
	SectionSystemPrompt Section = iota
	SectionMetadataPool
	SectionChatHistory
	SectionActiveContent
)

// Message is one rendered entry in the assembled sequence.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Section Section
	Text    string
}

// Core is the subset of sessioncore.Core the assembler reads from.
type Core interface {
	MetadataPool() []string
	ActiveSet() []string
	Timeline() []sessioncore.ChatEvent
	CacheEntry(id string) (sessioncore.CacheEntry, bool)
}

// ObjectFetcher resolves active-content IDs to their current version
// (the assembler needs full content only for active IDs; metadata
// pool and chat history are served entirely from the in-memory cache).
type ObjectFetcher interface {
	Get(id string) (object.Object, bool)
}

// Assembler renders a session's four sections.
type Assembler struct {
	systemPrompt string
	core         Core
	objects      ObjectFetcher
}

// New builds an Assembler.
func New(systemPrompt string, core Core, objects ObjectFetcher) *Assembler {
	return &Assembler{systemPrompt: systemPrompt, core: core, objects: objects}
}

// Assemble renders the full four-section message sequence.
func (a *Assembler) Assemble() []Message {
	var out []Message
	out = append(out, Message{Role: "system", Section: SectionSystemPrompt, Text: a.systemPrompt})
	out = append(out, a.renderMetadataPool())
	out = append(out, a.renderChatHistory()...)
	out = append(out, a.renderActiveContent()...)
	return out
}

// renderMetadataPool renders §4.6 section 2: one line per metadata
// pool ID, as a single user-role message beginning with
// "METADATA_POOL\n".
func (a *Assembler) renderMetadataPool() Message {
	var sb strings.Builder
	sb.WriteString("METADATA_POOL\n")
	for _, id := range a.core.MetadataPool() {
		entry, ok := a.core.CacheEntry(id)
		if !ok {
			continue
		}
		sb.WriteString(metadataLine(id, entry))
		sb.WriteString("\n")
	}
	return Message{Role: "user", Section: SectionMetadataPool, Text: sb.String()}
}

func metadataLine(id string, entry sessioncore.CacheEntry) string {
	switch {
	case entry.File != nil && entry.File.IsStub:
		return fmt.Sprintf("id=%s type=file path=%s file_type=%s [unread]", id, entry.File.DisplayPath, entry.File.FileType)
	case entry.File != nil:
		return fmt.Sprintf("id=%s type=file path=%s file_type=%s char_count=%d", id, entry.File.DisplayPath, entry.File.FileType, entry.File.CharCount)
	case entry.Toolcall != nil:
		return fmt.Sprintf("id=%s type=toolcall tool=%s status=%s", id, entry.Toolcall.Tool, entry.Toolcall.Status)
	default:
		return fmt.Sprintf("id=%s type=unknown", id)
	}
}

// renderChatHistory renders §4.6 section 3: user/assistant messages
// verbatim, tool-result messages replaced with a toolcall_ref line, in
// the exact order they originally occurred. Grounded on
// sessioncore.Timeline, which records turns and toolcall references as
// a single interleaved log at append time rather than reconstructing
// order after the fact.
func (a *Assembler) renderChatHistory() []Message {
	var out []Message
	for _, event := range a.core.Timeline() {
		switch event.Kind {
		case "turn":
			out = append(out, Message{Role: event.Role, Section: SectionChatHistory, Text: event.Text})
		case "toolcall_ref":
			entry, ok := a.core.CacheEntry(event.ToolcallID)
			if !ok || entry.Toolcall == nil {
				continue
			}
			out = append(out, Message{
				Role:    "user",
				Section: SectionChatHistory,
				Text:    toolcallRefLine(event.ToolcallID, entry.Toolcall),
			})
		}
	}
	return out
}

func toolcallRefLine(id string, tc *sessioncore.ToolcallMeta) string {
	return fmt.Sprintf("toolcall_ref id=%s tool=%s status=%s", id, tc.Tool, tc.Status)
}

// renderActiveContent renders §4.6 section 4: one ACTIVE_CONTENT block
// per activeSet ID, in insertion order.
func (a *Assembler) renderActiveContent() []Message {
	var out []Message
	for _, id := range a.core.ActiveSet() {
		doc, found := a.objects.Get(id)
		if !found || doc.Content == nil {
			continue
		}
		out = append(out, Message{
			Role:    "user",
			Section: SectionActiveContent,
			Text:    fmt.Sprintf("ACTIVE_CONTENT id=%s\n%s", id, *doc.Content),
		})
	}
	return out
}
