// Package sessioncore owns the four session sets (index, metadata
// pool, active, pinned), the in-memory metadata cache, and the
// harness-message cursor described in spec.md §4.4. It enforces every
// set invariant and implements the agent-facing operations the
// ExtensionFacade exposes.
//
// Grounded on the teacher's pkg/agent/state.go (in-memory mutable
// session state) and pkg/context/prune.go's sliding-window retention
// policy, generalized here into the N-tool-calls / W-turns auto-collapse
// window of spec.md §4.4.
package sessioncore

import "errors"

var (
	ErrNotFound           = errors.New("sessioncore: object not found")
	ErrNotContentObject   = errors.New("sessioncore: not a content object")
	ErrSourceInaccessible = errors.New("sessioncore: source inaccessible")
	ErrContentUnavailable = errors.New("sessioncore: content unavailable")
	ErrNotActive          = errors.New("sessioncore: not active")
	ErrNotInMetadataPool  = errors.New("sessioncore: not in metadata pool")
)

// orderedSet is an insertion-ordered set of string IDs. Order matters
// for §4.6's "stable ordering (e.g. insertion order)" rendering rule.
type orderedSet struct {
	order []string
	has   map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{has: make(map[string]bool)}
}

func (s *orderedSet) Add(id string) bool {
	if s.has[id] {
		return false
	}
	s.has[id] = true
	s.order = append(s.order, id)
	return true
}

func (s *orderedSet) Remove(id string) bool {
	if !s.has[id] {
		return false
	}
	delete(s.has, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *orderedSet) Contains(id string) bool {
	return s.has[id]
}

func (s *orderedSet) Items() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *orderedSet) Len() int {
	return len(s.order)
}

// sets bundles the four session sets. sessionIndex is append-only:
// nothing ever calls Remove on it.
type sets struct {
	sessionIndex *orderedSet
	metadataPool *orderedSet
	activeSet    *orderedSet
	pinnedSet    *orderedSet
}

func newSets() *sets {
	return &sets{
		sessionIndex: newOrderedSet(),
		metadataPool: newOrderedSet(),
		activeSet:    newOrderedSet(),
		pinnedSet:    newOrderedSet(),
	}
}

// addToIndex appends id to sessionIndex if not already present. Never
// removed afterward, even if the underlying source is later deleted.
func (s *sets) addToIndex(id string) {
	s.sessionIndex.Add(id)
}

// promoteToPool adds id to metadataPool, auto-promoting from
// sessionIndex first if necessary (activeSet ⊆ metadataPool ⊆
// sessionIndex must hold after this call).
func (s *sets) promoteToPool(id string) {
	s.addToIndex(id)
	s.metadataPool.Add(id)
}

// activate adds id to activeSet, promoting to metadataPool first if
// needed so the subset invariant never breaks.
func (s *sets) activate(id string) {
	s.promoteToPool(id)
	s.activeSet.Add(id)
}

func (s *sets) deactivate(id string) bool {
	return s.activeSet.Remove(id)
}

func (s *sets) pin(id string) bool {
	if !s.metadataPool.Contains(id) {
		return false
	}
	return s.pinnedSet.Add(id)
}

func (s *sets) unpin(id string) bool {
	return s.pinnedSet.Remove(id)
}
