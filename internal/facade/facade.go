// Package facade implements the ExtensionFacade of spec.md §4.4/§6:
// the tool surface a harness plugs in (read, wrapped{Write,Edit,Ls,
// Find,Grep}, activate/deactivate/pin/unpin, transformContext,
// observeToolExecutionEnd, load, close). It is the only package that
// touches the real filesystem for mutations — SessionCore itself stays
// free of direct OS access (besides the SourceReader it's handed).
//
// Grounded on the teacher's pkg/tools package: FileReadTool,
// FileWriteTool, FileEditTool, GlobTool, and GrepTool each parse a
// narrow input shape and return ToolOutput; this generalizes their
// path handling into operations that also drive SessionCore's index,
// pool, and active-set updates per spec.md §4.4.
package facade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jg-phare/ctxcore/internal/assembler"
	"github.com/jg-phare/ctxcore/internal/fsresolver"
	"github.com/jg-phare/ctxcore/internal/indexer"
	"github.com/jg-phare/ctxcore/internal/object"
	"github.com/jg-phare/ctxcore/internal/resume"
	"github.com/jg-phare/ctxcore/internal/sessioncore"
	"github.com/jg-phare/ctxcore/internal/store"
	"github.com/jg-phare/ctxcore/internal/tracker"
)

// Facade is the harness-facing surface over one resumed session.
type Facade struct {
	core         *sessioncore.Core
	resolver     *fsresolver.Resolver
	store        store.Store
	systemPrompt string
	trackers     []*tracker.Tracker
}

// storeFetcher adapts store.Store to assembler.ObjectFetcher.
type storeFetcher struct{ s store.Store }

func (f storeFetcher) Get(id string) (object.Object, bool) {
	doc, found, err := f.s.Get(context.Background(), id)
	if err != nil || !found {
		return object.Object{}, false
	}
	return doc, true
}

// New wraps an already-resumed Core (and the trackers resume.Resume
// established for it) in a Facade.
func New(systemPrompt string, result *resume.Result, resolver *fsresolver.Resolver, s store.Store) *Facade {
	return &Facade{
		core:         result.Core,
		resolver:     resolver,
		store:        s,
		systemPrompt: systemPrompt,
		trackers:     result.Trackers,
	}
}

// Load implements spec.md §4.4/§6's load(): run the full resume
// protocol (spec.md §4.7) for a session and wrap the result in a
// ready-to-use Facade.
func Load(ctx context.Context, cfg resume.Config, resolver *fsresolver.Resolver, ix *indexer.Indexer, s store.Store) (*Facade, error) {
	result, err := resume.Resume(ctx, cfg, resolver, ix, s)
	if err != nil {
		return nil, err
	}
	return New(cfg.SystemPrompt, result, resolver, s), nil
}

// Close drains the Core's persistence chain and stops every tracker
// this session established.
func (f *Facade) Close() {
	for _, t := range f.trackers {
		t.Close()
	}
	f.core.Close()
}

// Read implements spec.md §4.4 read(agentPath): resolve, full-index,
// add to all three sets, return the file's current content.
func (f *Facade) Read(ctx context.Context, agentPath string) (string, error) {
	resolved := f.resolver.Resolve(agentPath)
	data, err := os.ReadFile(resolved.CanonicalPath)
	if err != nil {
		return "", fmt.Errorf("facade: read %s: %w", agentPath, err)
	}
	content := string(data)
	if _, err := f.core.IndexFileAndActivate(ctx, agentPath, content); err != nil {
		return "", fmt.Errorf("facade: index %s: %w", agentPath, err)
	}
	return content, nil
}

// WrappedWrite implements spec.md §4.4 wrappedWrite(path, content):
// write the external source then full-index with the same set updates
// as read.
func (f *Facade) WrappedWrite(ctx context.Context, agentPath, content string) error {
	resolved := f.resolver.Resolve(agentPath)
	if !resolved.IsMounted {
		return fmt.Errorf("facade: write %s: not writable, no mount mapping", agentPath)
	}
	if err := os.MkdirAll(filepath.Dir(resolved.CanonicalPath), 0o755); err != nil {
		return fmt.Errorf("facade: write %s: %w", agentPath, err)
	}
	if err := os.WriteFile(resolved.CanonicalPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("facade: write %s: %w", agentPath, err)
	}
	if _, err := f.core.IndexFileAndActivate(ctx, agentPath, content); err != nil {
		return fmt.Errorf("facade: index %s: %w", agentPath, err)
	}
	return nil
}

// WrappedEdit implements spec.md §4.4 wrappedEdit(path): exact
// find-and-replace against the external source, then full-index with
// the same set updates as read. Grounded on the teacher's
// FileEditTool: fails if oldString is not unique unless replaceAll.
func (f *Facade) WrappedEdit(ctx context.Context, agentPath, oldString, newString string, replaceAll bool) error {
	resolved := f.resolver.Resolve(agentPath)
	data, err := os.ReadFile(resolved.CanonicalPath)
	if err != nil {
		return fmt.Errorf("facade: edit %s: %w", agentPath, err)
	}
	content := string(data)

	count := strings.Count(content, oldString)
	if count == 0 {
		return fmt.Errorf("facade: edit %s: old_string not found", agentPath)
	}
	if !replaceAll && count > 1 {
		return fmt.Errorf("facade: edit %s: old_string found %d times, not unique", agentPath, count)
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(content, oldString, newString)
	} else {
		updated = strings.Replace(content, oldString, newString, 1)
	}

	if err := os.WriteFile(resolved.CanonicalPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("facade: edit %s: %w", agentPath, err)
	}
	if _, err := f.core.IndexFileAndActivate(ctx, agentPath, updated); err != nil {
		return fmt.Errorf("facade: index %s: %w", agentPath, err)
	}
	return nil
}

// WrappedLs implements spec.md §4.4 wrappedLs(output): parse one
// absolute-or-relative path per line, discovery-index each (added to
// index + pool, never active).
func (f *Facade) WrappedLs(ctx context.Context, output string) error {
	return f.discoveryIndexLines(ctx, splitNonEmptyLines(output))
}

// WrappedFind is identical to WrappedLs: one path per line.
func (f *Facade) WrappedFind(ctx context.Context, output string) error {
	return f.discoveryIndexLines(ctx, splitNonEmptyLines(output))
}

// WrappedGrep implements spec.md §4.4 wrappedGrep(output): each line
// is "path:line:text"; extract the path prefix before discovery
// indexing.
func (f *Facade) WrappedGrep(ctx context.Context, output string) error {
	var paths []string
	for _, line := range splitNonEmptyLines(output) {
		if p := grepPathPrefix(line); p != "" {
			paths = append(paths, p)
		}
	}
	return f.discoveryIndexLines(ctx, paths)
}

func (f *Facade) discoveryIndexLines(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if _, err := f.core.IndexDiscoveryOnly(ctx, p); err != nil {
			return fmt.Errorf("facade: discovery index %s: %w", p, err)
		}
	}
	return nil
}

// grepPathPrefix extracts the path component from a ripgrep-style
// "path:line:text" output line. Paths containing ':' (rare, but
// possible on some filesystems) are not supported — the first two
// colons are assumed to be the line-number delimiters.
func grepPathPrefix(line string) string {
	first := strings.Index(line, ":")
	if first < 0 {
		return ""
	}
	second := strings.Index(line[first+1:], ":")
	if second < 0 {
		return ""
	}
	return line[:first]
}

// Find globs directly against the live filesystem under agentDir and
// discovery-indexes every match, returning the matched agent-visible
// paths. This supplements wrappedFind (which only parses harness-
// supplied ls/find output) with a ctxcore-driven glob for harnesses
// that would rather delegate the search itself. Grounded on the
// teacher's GlobTool (doublestar.FilepathGlob over a resolved root,
// sorted output).
func (f *Facade) Find(ctx context.Context, agentDir, pattern string) ([]string, error) {
	resolved := f.resolver.Resolve(agentDir)
	fullPattern := filepath.Join(resolved.CanonicalPath, pattern)

	matches, err := doublestar.FilepathGlob(fullPattern)
	if err != nil {
		return nil, fmt.Errorf("facade: glob %s: %w", fullPattern, err)
	}
	sort.Strings(matches)

	agentPaths := make([]string, 0, len(matches))
	for _, m := range matches {
		agentPaths = append(agentPaths, f.resolver.ReverseResolve(m, resolved.FilesystemID))
	}
	if err := f.discoveryIndexLines(ctx, agentPaths); err != nil {
		return nil, err
	}
	return agentPaths, nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Activate implements spec.md §4.4 activate(id).
func (f *Facade) Activate(ctx context.Context, id string) (ok bool, msg string) {
	return f.core.Activate(ctx, id)
}

// Deactivate implements spec.md §4.4 deactivate(id).
func (f *Facade) Deactivate(id string) (ok bool, msg string) {
	return f.core.Deactivate(id)
}

// Pin implements spec.md §4.4 pin(id).
func (f *Facade) Pin(id string) (ok bool, msg string) {
	return f.core.Pin(id)
}

// Unpin implements spec.md §4.4 unpin(id).
func (f *Facade) Unpin(id string) (ok bool, msg string) {
	return f.core.Unpin(id)
}

// TransformContext implements spec.md §4.4 transformContext(messages).
func (f *Facade) TransformContext(ctx context.Context, messages []sessioncore.Message) error {
	return f.core.TransformContext(ctx, messages)
}

// ObserveToolExecutionEnd implements spec.md §4.4
// observeToolExecutionEnd(tool, commandOrOutput).
func (f *Facade) ObserveToolExecutionEnd(ctx context.Context, tool string, commandOrOutput string) {
	f.core.ObserveToolExecutionEnd(ctx, tool, commandOrOutput)
}

// Assemble renders the four-section message sequence for the current
// session state (spec.md §4.6).
func (f *Facade) Assemble() []assembler.Message {
	asm := assembler.New(f.systemPrompt, f.core, storeFetcher{f.store})
	return asm.Assemble()
}

// Budget reports whether the current session state would overflow
// model's context window (SPEC_FULL.md §7), so a harness can decide
// when to trigger its own compaction upstream of context assembly.
func (f *Facade) Budget(model string, betas []string) assembler.TokenBudget {
	asm := assembler.New(f.systemPrompt, f.core, storeFetcher{f.store})
	return asm.Budget(model, betas)
}
