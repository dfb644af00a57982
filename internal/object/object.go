// Package object defines the versioned entity model shared by every
// other package in ctxcore: the tagged union of content and
// infrastructure object kinds, their immutable envelopes, and their
// per-version payloads.
package object

// Kind is the type tag of an Object's envelope. It never changes after
// creation.
type Kind string

const (
	KindFile         Kind = "file"
	KindToolcall     Kind = "toolcall"
	KindChat         Kind = "chat"
	KindSystemPrompt Kind = "system_prompt"
	KindSession      Kind = "session"
)

// IsContent reports whether objects of this kind participate in the
// session's four sets (index, metadata pool, active, pinned). Only
// file and toolcall objects do; chat, system_prompt, and session are
// infrastructure and are rendered in fixed positions instead.
func (k Kind) IsContent() bool {
	return k == KindFile || k == KindToolcall
}

// IsSourced reports whether objects of this kind are bound to an
// external source and derive their identity from it.
func (k Kind) IsSourced() bool {
	return k == KindFile
}

// SourceKind tags the external-source union. Today only filesystem
// sources exist; the union leaves room for more without touching
// callers that only care whether Source is nil.
type SourceKind string

const FilesystemSource SourceKind = "filesystem"

// Source describes the external origin of a sourced object. Nil for
// unsourced objects.
type Source struct {
	Kind          SourceKind `json:"kind"`
	FilesystemID  string     `json:"filesystemId"`
	CanonicalPath string     `json:"canonicalPath"`
}

// Envelope is the immutable part of an object: it is computed once at
// creation and never rewritten by later versions.
type Envelope struct {
	ID           string  `json:"id"`
	Kind         Kind    `json:"type"`
	Source       *Source `json:"source,omitempty"`
	IdentityHash string  `json:"identityHash"`
}

// FilePayload holds the type-specific fields for a KindFile object.
type FilePayload struct {
	FileType  string `json:"fileType"`
	CharCount int    `json:"charCount"`
}

// ToolcallPayload holds the type-specific fields for a KindToolcall
// object. Toolcall objects are created once and never updated.
type ToolcallPayload struct {
	Tool        string   `json:"tool"`
	Args        any      `json:"args"`
	ArgsDisplay string   `json:"argsDisplay,omitempty"`
	Status      string   `json:"status"` // "ok" | "fail"
	ChatRef     string   `json:"chatRef"`
	FileRefs    []string `json:"fileRefs,omitempty"`
}

// ChatTurn is one entry in a chat object's turn log.
type ChatTurn struct {
	Role      string `json:"role"` // "user" | "assistant"
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// ChatPayload holds the type-specific fields for a KindChat object. A
// new version is written per turn.
type ChatPayload struct {
	Turns        []ChatTurn `json:"turns"`
	SessionRef   string     `json:"sessionRef"`
	TurnCount    int        `json:"turnCount"`
	ToolcallRefs []string   `json:"toolcallRefs"`
}

// SessionPayload holds the type-specific fields for a KindSession
// object: the wrapper that anchors a session's four sets.
type SessionPayload struct {
	SessionID       string   `json:"sessionId"`
	ChatRef         string   `json:"chatRef"`
	SystemPromptRef string   `json:"systemPromptRef"`
	SessionIndex    []string `json:"sessionIndex"`
	MetadataPool    []string `json:"metadataPool"`
	ActiveSet       []string `json:"activeSet"`
	PinnedSet       []string `json:"pinnedSet"`
}

// Version is one mutable payload revision of an object, carrying the
// hashes computed for it and the type-specific fields. Content is nil
// for tombstones, stub files, and binary content.
type Version struct {
	Content      *string `json:"content"`
	FileHash     *string `json:"fileHash"`
	ContentHash  *string `json:"contentHash"`
	MetadataHash string  `json:"metadataHash"`
	ObjectHash   string  `json:"objectHash"`

	File         *FilePayload     `json:"file,omitempty"`
	Toolcall     *ToolcallPayload `json:"toolcall,omitempty"`
	Chat         *ChatPayload     `json:"chat,omitempty"`
	SystemPrompt *string          `json:"systemPrompt,omitempty"` // content duplicated here for clarity of intent; Content is authoritative
	Session      *SessionPayload  `json:"session,omitempty"`
}

// Object is the full current (or historical) state of a versioned
// entity: its immutable envelope plus one payload version.
type Object struct {
	Envelope
	Version
}

// IsStub reports whether a file object is an unread discovery stub:
// content and fileHash are both absent.
func (o *Object) IsStub() bool {
	return o.Kind == KindFile && o.FileHash == nil && o.Content == nil
}

// IsTombstone reports whether a file object's latest version records a
// confirmed deletion: fileHash absent on an object that was previously
// indexed (same shape as a stub, distinguished by caller context).
func (o *Object) IsTombstone() bool {
	return o.Kind == KindFile && o.FileHash == nil
}
