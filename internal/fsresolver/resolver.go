// Package fsresolver translates agent-visible paths to canonical host
// paths (and back), tagging each with a filesystem identifier and
// deciding whether the underlying path is watchable.
//
// Grounded on the teacher's pkg/session/pathutil.go (path
// sanitization / default-dir resolution), generalized here into a
// full longest-prefix mount-mapping table per spec.md §4.2.
package fsresolver

import (
	"sort"
	"strings"
)

// Mapping is one configured bind mount between an agent-visible prefix
// and its canonical host-side prefix.
type Mapping struct {
	AgentPrefix     string
	CanonicalPrefix string
	FilesystemID    string
	Writable        bool
}

// Resolver holds the default filesystem identifier and two orderings
// of the same mount mappings: one for forward resolution (longest
// AgentPrefix first), one for reverse resolution (longest
// CanonicalPrefix first). The two lengths are independent of each
// other, so a single ordering cannot serve both directions correctly.
type Resolver struct {
	defaultFilesystemID string
	byAgentPrefix       []Mapping // sorted by AgentPrefix length descending, insertion order preserved for ties
	byCanonicalPrefix   []Mapping // sorted by CanonicalPrefix length descending, insertion order preserved for ties
}

// New builds a Resolver. Mappings are copied and sorted so longest
// prefixes are tried first in each direction; ties keep the caller's
// insertion order (stable sort).
func New(defaultFilesystemID string, mappings []Mapping) *Resolver {
	byAgent := make([]Mapping, len(mappings))
	copy(byAgent, mappings)
	sort.SliceStable(byAgent, func(i, j int) bool {
		return len(byAgent[i].AgentPrefix) > len(byAgent[j].AgentPrefix)
	})

	byCanonical := make([]Mapping, len(mappings))
	copy(byCanonical, mappings)
	sort.SliceStable(byCanonical, func(i, j int) bool {
		return len(byCanonical[i].CanonicalPrefix) > len(byCanonical[j].CanonicalPrefix)
	})

	return &Resolver{defaultFilesystemID: defaultFilesystemID, byAgentPrefix: byAgent, byCanonicalPrefix: byCanonical}
}

// Resolved is the result of translating an agent-visible path.
type Resolved struct {
	FilesystemID  string
	CanonicalPath string
	IsMounted     bool
}

// Resolve translates an agent-visible path into its canonical form and
// filesystem id via longest-prefix match. No match: the path is
// returned unchanged, tagged with the default filesystem id, and
// IsMounted is false.
func (r *Resolver) Resolve(agentPath string) Resolved {
	for _, m := range r.byAgentPrefix {
		if hasPathPrefix(agentPath, m.AgentPrefix) {
			rest := strings.TrimPrefix(agentPath, m.AgentPrefix)
			return Resolved{
				FilesystemID:  m.FilesystemID,
				CanonicalPath: m.CanonicalPrefix + rest,
				IsMounted:     true,
			}
		}
	}
	return Resolved{FilesystemID: r.defaultFilesystemID, CanonicalPath: agentPath, IsMounted: false}
}

// ReverseResolve translates a canonical host path back into the
// agent-visible display path, matching against mappings whose
// FilesystemID equals filesystemID. No match: canonicalPath is
// returned verbatim.
func (r *Resolver) ReverseResolve(canonicalPath, filesystemID string) string {
	for _, m := range r.byCanonicalPrefix {
		if m.FilesystemID != filesystemID {
			continue
		}
		if hasPathPrefix(canonicalPath, m.CanonicalPrefix) {
			rest := strings.TrimPrefix(canonicalPath, m.CanonicalPrefix)
			return m.AgentPrefix + rest
		}
	}
	return canonicalPath
}

// IsWatchable reports whether agentPath resolves to a bind-mounted
// (host-visible) location. Only those paths get a tracker — overlay
// or container-internal paths are not watchable.
func (r *Resolver) IsWatchable(agentPath string) bool {
	return r.Resolve(agentPath).IsMounted
}

// hasPathPrefix reports whether path starts with prefix at a path
// boundary (exact match, or followed by a separator) so that
// "/workspace2" does not spuriously match the mapping "/workspace".
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}
