package manipulate

import (
	"math"

	"github.com/pagemark/pagemark/backend-go/internal/geom"
)

const (
	// handleRadius is the half-size of a grabbable handle region, in
	// screen pixels.
	handleRadius = 6.0
	// rotateHandleOffset is how far above the object's top edge the
	// rotate handle sits, in screen pixels.
	rotateHandleOffset = 24.0
)

// HandleAt returns the handle under a viewport point for the given
// object geometry, or ("", false) when the point hits nothing. Handles
// are tested front to back: endpoints and the rotate handle first, then
// corners, edges, and finally the object body.
func HandleAt(g Geometry, view geom.View, p geom.Point) (Handle, bool) {
	if len(g.Points) == 2 {
		if near(p, view.DocumentToViewport(g.Points[0]), handleRadius) {
			return HandleStart, true
		}
		if near(p, view.DocumentToViewport(g.Points[1]), handleRadius) {
			return HandleEnd, true
		}
	}

	bounds := geom.Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
	screen := view.Matrix().TransformRect(bounds)
	topCenter := geom.Point{X: screen.X + screen.Width/2, Y: screen.Y}

	if near(p, geom.Point{X: topCenter.X, Y: topCenter.Y - rotateHandleOffset}, handleRadius) {
		return HandleRotate, true
	}

	corners := []struct {
		h  Handle
		pt geom.Point
	}{
		{HandleNW, geom.Point{X: screen.X, Y: screen.Y}},
		{HandleNE, geom.Point{X: screen.X + screen.Width, Y: screen.Y}},
		{HandleSW, geom.Point{X: screen.X, Y: screen.Y + screen.Height}},
		{HandleSE, geom.Point{X: screen.X + screen.Width, Y: screen.Y + screen.Height}},
		{HandleN, topCenter},
		{HandleS, geom.Point{X: topCenter.X, Y: screen.Y + screen.Height}},
		{HandleW, geom.Point{X: screen.X, Y: screen.Y + screen.Height/2}},
		{HandleE, geom.Point{X: screen.X + screen.Width, Y: screen.Y + screen.Height/2}},
	}
	for _, c := range corners {
		if near(p, c.pt, handleRadius) {
			return c.h, true
		}
	}

	if screen.Contains(p) {
		return HandleBody, true
	}
	return "", false
}

func near(p, q geom.Point, r float64) bool {
	return math.Hypot(p.X-q.X, p.Y-q.Y) <= r
}
