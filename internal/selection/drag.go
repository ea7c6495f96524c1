package selection

import "github.com/paulmach/orb"

// BeginDrag starts a box selection at a screen point
func (s *Selection) BeginDrag(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = true
	s.dragStart = orb.Point{x, y}
	s.dragEnd = s.dragStart
}

// UpdateDrag moves the free corner of the box
func (s *Selection) UpdateDrag(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dragging {
		return
	}
	s.dragEnd = orb.Point{x, y}
}

// Dragging reports whether a box selection is in progress
func (s *Selection) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// DragBounds returns the normalized drag rectangle
func (s *Selection) DragBounds() (orb.Bound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dragging {
		return orb.Bound{}, false
	}
	return s.bounds(), true
}

// EndDrag replaces the selection with the candidates whose projection falls
// inside the rectangle, edges included, and stops dragging. It returns
// false if no drag was in progress.
func (s *Selection) EndDrag(candidates []string, p Projector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dragging {
		return false
	}

	box := s.bounds()
	var hit []string
	for _, id := range candidates {
		pt, ok := p.Project(id)
		if ok && box.Contains(pt) {
			hit = append(hit, id)
		}
	}

	s.selected = dedupe(hit)
	s.dragging = false
	s.dragStart = orb.Point{}
	s.dragEnd = orb.Point{}
	return true
}

func (s *Selection) bounds() orb.Bound {
	return orb.MultiPoint{s.dragStart, s.dragEnd}.Bound()
}
