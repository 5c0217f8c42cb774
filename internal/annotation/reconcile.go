package annotation

import (
	"log/slog"
	"math"

	"github.com/pagemark/pagemark/backend-go/internal/geom"
)

// Endpoint tolerances for duplicate detection on two-point objects, in
// document units. Matching against the resident set is loose because
// saved geometry may have been rounded by the engine; matching within a
// single parsed batch is tight and only guards against the parser itself
// emitting the same object twice.
const (
	CrossBatchTolerance = 10.0
	IntraBatchTolerance = 1.0
)

// Reconcile merges a freshly parsed batch of annotations into the
// resident set for a document, without duplicating objects that are
// already held in memory.
//
// For each parsed annotation, in order:
//  1. an exact engine-ref match against a resident annotation means the
//     object is already resident; it is skipped;
//  2. a two-point object whose endpoints match a resident two-point
//     object on the same page within CrossBatchTolerance (same or swapped
//     order) updates that resident object's engine ref and geometry — the
//     parsed geometry is authoritative, resident style attributes are
//     kept unless the parsed object supplies its own;
//  3. a two-point object matching an annotation accepted earlier in this
//     same batch within IntraBatchTolerance is a parser duplicate and is
//     skipped;
//  4. anything else is new and is appended to the resident set.
//
// A resident object claimed by one parsed object is not matched again in
// the same batch: first match wins, later candidates are treated as new.
// Reconciling the same batch twice is idempotent because updates and adds
// carry their engine refs into the resident set.
func Reconcile(resident *Set, parsed []*Annotation) {
	claimed := make(map[string]bool)
	var batch []*Annotation

	for _, p := range parsed {
		if existing := resident.ByEngineRef(p.EngineRef); existing != nil {
			claimed[existing.ID] = true
			continue
		}

		if p.IsTwoPoint() {
			if match := findEndpointMatch(resident.All(), p, CrossBatchTolerance, claimed); match != nil {
				claimed[match.ID] = true
				adoptParsedGeometry(match, p)
				batch = append(batch, match)
				continue
			}
			if findEndpointMatch(batch, p, IntraBatchTolerance, nil) != nil {
				slog.Debug("dropping parser duplicate", "page", p.PageIndex, "type", p.Type)
				continue
			}
		}

		p.Normalize()
		resident.Add(p)
		batch = append(batch, p)
	}
}

// findEndpointMatch scans candidates for a two-point object on the same
// page whose endpoints correspond to p's within tol, accepting same-order
// or swapped-order correspondence. Candidates whose IDs appear in skip
// are ignored.
func findEndpointMatch(candidates []*Annotation, p *Annotation, tol float64, skip map[string]bool) *Annotation {
	if len(p.Points) != 2 {
		return nil
	}
	for _, c := range candidates {
		if skip[c.ID] {
			continue
		}
		if c.PageIndex != p.PageIndex || !c.IsTwoPoint() || len(c.Points) != 2 {
			continue
		}
		sameOrder := withinTol(c.Points[0], p.Points[0], tol) && withinTol(c.Points[1], p.Points[1], tol)
		swapped := withinTol(c.Points[0], p.Points[1], tol) && withinTol(c.Points[1], p.Points[0], tol)
		if sameOrder || swapped {
			return c
		}
	}
	return nil
}

// adoptParsedGeometry overwrites the resident annotation's engine ref and
// geometry from the parsed one. Style attributes survive unless the
// parsed object supplies its own.
func adoptParsedGeometry(resident, parsed *Annotation) {
	resident.EngineRef = parsed.EngineRef
	resident.Points = append([]geom.Point(nil), parsed.Points...)
	resident.Rotation = parsed.Rotation
	resident.SyncEnvelope()
	resident.Normalize()
	if parsed.Shape == nil {
		return
	}
	if resident.Shape == nil {
		s := *parsed.Shape
		resident.Shape = &s
		return
	}
	// Previously-edited style fields survive unless the parsed object
	// supplies its own.
	if parsed.Shape.Stroke != "" {
		resident.Shape.Stroke = parsed.Shape.Stroke
	}
	if parsed.Shape.Fill != "" {
		resident.Shape.Fill = parsed.Shape.Fill
	}
	if parsed.Shape.StrokeWidth != 0 {
		resident.Shape.StrokeWidth = parsed.Shape.StrokeWidth
	}
}

func withinTol(a, b geom.Point, tol float64) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) <= tol
}
