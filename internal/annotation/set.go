package annotation

// Set is the resident collection of annotations for one open document.
// Iteration order is insertion order. A Set is confined to the event-loop
// goroutine that drives editing; it carries no locking of its own.
type Set struct {
	order []string
	byID  map[string]*Annotation
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{byID: make(map[string]*Annotation)}
}

// Len returns the number of annotations.
func (s *Set) Len() int {
	return len(s.order)
}

// Get returns the annotation with the given ID, or nil.
func (s *Set) Get(id string) *Annotation {
	return s.byID[id]
}

// Add appends an annotation. Adding an ID that is already present
// replaces the stored annotation but keeps its original position.
func (s *Set) Add(a *Annotation) {
	if _, ok := s.byID[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.byID[a.ID] = a
}

// Remove deletes the annotation with the given ID and reports whether it
// was present.
func (s *Set) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns the annotations in insertion order. The returned slice is
// freshly allocated; the annotations themselves are shared.
func (s *Set) All() []*Annotation {
	out := make([]*Annotation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// ByEngineRef returns the annotation holding the given engine handle, or
// nil. Empty refs never match.
func (s *Set) ByEngineRef(ref string) *Annotation {
	if ref == "" {
		return nil
	}
	for _, id := range s.order {
		if a := s.byID[id]; a.EngineRef == ref {
			return a
		}
	}
	return nil
}

// Clear removes all annotations.
func (s *Set) Clear() {
	s.order = nil
	s.byID = make(map[string]*Annotation)
}
