package sessioncore

// CacheEntry is the in-memory rendering metadata kept for every
// content object this session has ever encountered, per spec.md §4.4.
// Exactly one of File / Toolcall is set.
type CacheEntry struct {
	File     *FileMeta
	Toolcall *ToolcallMeta
}

// FileMeta mirrors the fields §4.6 needs to render a metadata-pool
// summary line for a file object.
type FileMeta struct {
	DisplayPath string
	FileType    string
	CharCount   int
	IsStub      bool
}

// ToolcallMeta mirrors the fields needed to render a toolcall summary
// line and a chat-history tool reference.
type ToolcallMeta struct {
	Tool   string
	Status string // "ok" | "fail"
}
