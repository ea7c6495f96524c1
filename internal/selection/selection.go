// Package selection tracks which agents the commander has selected, the
// drag rectangle, the hovered agent and the nine control groups.
package selection

import (
	"sync"

	"github.com/paulmach/orb"
)

// MaxGroup is the highest control group number
const MaxGroup = 9

// Projector maps an agent to its screen position. ok is false when the
// agent is not on screen.
type Projector interface {
	Project(agentID string) (p orb.Point, ok bool)
}

// ProjectorFunc adapts a function to Projector
type ProjectorFunc func(agentID string) (orb.Point, bool)

// Project calls f
func (f ProjectorFunc) Project(agentID string) (orb.Point, bool) { return f(agentID) }

// Selection is safe for concurrent use
type Selection struct {
	mu sync.Mutex

	selected []string
	hovered  string

	dragging  bool
	dragStart orb.Point
	dragEnd   orb.Point

	groups [MaxGroup + 1][]string
}

// New returns an empty selection
func New() *Selection {
	return &Selection{}
}

// Selected returns the selected ids in selection order
func (s *Selection) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

// IsSelected reports whether id is selected
func (s *Selection) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.selected, id) >= 0
}

// Len returns the number of selected agents
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// SelectOne makes id the only selection, or toggles it when additive
func (s *Selection) SelectOne(id string, additive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !additive {
		s.selected = []string{id}
		return
	}
	if i := indexOf(s.selected, id); i >= 0 {
		s.selected = append(s.selected[:i], s.selected[i+1:]...)
		return
	}
	s.selected = append(s.selected, id)
}

// SelectMany replaces the selection. Duplicates collapse and the first
// occurrence keeps its place.
func (s *Selection) SelectMany(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = dedupe(ids)
}

// Clear empties the selection
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}

// Remove drops id from the live selection. Control groups keep it.
func (s *Selection) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.selected, id); i >= 0 {
		s.selected = append(s.selected[:i], s.selected[i+1:]...)
	}
}

// SetHovered tracks the agent under the pointer. An empty id clears it.
func (s *Selection) SetHovered(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hovered = id
}

// Hovered returns the hovered agent or ""
func (s *Selection) Hovered() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hovered
}

// SaveGroup stores a copy of ids as group n. It returns false for a group
// number outside 1..9.
func (s *Selection) SaveGroup(n int, ids []string) bool {
	if n < 1 || n > MaxGroup {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[n] = dedupe(ids)
	return true
}

// Group returns a copy of group n
func (s *Selection) Group(n int) []string {
	if n < 1 || n > MaxGroup {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.groups[n]...)
}

// RecallGroup selects the members of group n that still exist. An unset,
// empty or fully stale group leaves the selection unchanged and returns
// false. exists may be nil.
func (s *Selection) RecallGroup(n int, exists func(id string) bool) bool {
	if n < 1 || n > MaxGroup {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var alive []string
	for _, id := range s.groups[n] {
		if exists == nil || exists(id) {
			alive = append(alive, id)
		}
	}
	if len(alive) == 0 {
		return false
	}
	s.selected = alive
	return true
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
