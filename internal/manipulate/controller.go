// Package manipulate turns pointer-drag deltas into geometry updates for
// move, resize, rotate and endpoint editing of overlay objects. One drag
// is active at a time; a new pointer-down is rejected until the previous
// drag ends or is cancelled.
package manipulate

import (
	"errors"
	"math"

	"github.com/pagemark/pagemark/backend-go/internal/geom"
)

var ErrDragActive = errors.New("a drag is already active")

// Handle names the region a drag started on. Edge and corner names follow
// the on-screen orientation (N = top of the viewport).
type Handle string

const (
	HandleBody Handle = "body"

	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
	HandleNW Handle = "nw"

	HandleRotate Handle = "rotate"

	// Endpoint handles of two-point objects (lines, arrows).
	HandleStart Handle = "start"
	HandleEnd   Handle = "end"
)

const (
	// MinSize is the smallest width/height a resize may produce, in
	// document units.
	MinSize = 4.0
	// MinCompactSize applies to compact field types such as checkboxes.
	MinCompactSize = 2.0

	// clickThreshold separates clicks from drags: a pointer-up with net
	// movement below this many pixels emits no geometry update.
	clickThreshold = 3.0
)

// Geometry is the manipulable slice of an overlay object's state, in
// document space.
type Geometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation,omitempty"`
	// Points holds the endpoints of two-point objects; nil otherwise.
	Points []geom.Point `json:"points,omitempty"`
}

func (g Geometry) clone() Geometry {
	if g.Points != nil {
		g.Points = append([]geom.Point(nil), g.Points...)
	}
	return g
}

// Options tunes a drag.
type Options struct {
	// Compact lowers the minimum size, for checkbox-like field types.
	Compact bool
}

type drag struct {
	handle      Handle
	view        geom.View
	startScreen geom.Point
	lastScreen  geom.Point
	start       Geometry
	current     Geometry
	// centerScreen is the object's midpoint at drag start, in viewport
	// space. Captured once so the rotation pivot never drifts as the
	// geometry changes.
	centerScreen geom.Point
	minSize      float64
}

// Controller is the per-view manipulation state machine: idle until
// Begin, dragging until End or Cancel.
type Controller struct {
	drag *drag
}

// NewController returns an idle controller.
func NewController() *Controller {
	return &Controller{}
}

// Active reports whether a drag is in progress.
func (c *Controller) Active() bool {
	return c.drag != nil
}

// Begin starts a drag on the given handle. It snapshots the pointer's
// screen position and the object's geometry; all later updates derive
// from these snapshots. Returns ErrDragActive if a drag is already in
// progress.
func (c *Controller) Begin(h Handle, screen geom.Point, g Geometry, view geom.View, opts Options) error {
	if c.drag != nil {
		return ErrDragActive
	}

	minSize := MinSize
	if opts.Compact {
		minSize = MinCompactSize
	}

	bounds := geom.Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
	c.drag = &drag{
		handle:       h,
		view:         view,
		startScreen:  screen,
		lastScreen:   screen,
		start:        g.clone(),
		current:      g.clone(),
		centerScreen: view.DocumentToViewport(bounds.Center()),
		minSize:      minSize,
	}
	return nil
}

// Update recomputes the geometry for the current pointer position.
// It returns the proposed geometry and whether an update should be
// emitted; a move/resize that would violate the minimum size or produce
// non-finite coordinates is rejected rather than clamped, leaving the
// last accepted geometry in place.
func (c *Controller) Update(screen geom.Point) (Geometry, bool) {
	d := c.drag
	if d == nil || !screen.IsFinite() {
		return Geometry{}, false
	}

	var (
		next Geometry
		ok   bool
	)
	switch d.handle {
	case HandleBody:
		next, ok = d.move(screen)
	case HandleRotate:
		next, ok = d.rotate(screen)
	case HandleStart, HandleEnd:
		next, ok = d.moveEndpoint(screen)
	default:
		next, ok = d.resize(screen)
	}
	if !ok {
		return d.current.clone(), false
	}

	d.current = next
	d.lastScreen = screen
	return next.clone(), true
}

// End finishes the drag and returns the finalized geometry. A pointer-up
// whose net movement stayed below the click threshold cancels the drag
// instead: the second return is false and no update should be emitted.
func (c *Controller) End(screen geom.Point) (Geometry, bool) {
	d := c.drag
	if d == nil {
		return Geometry{}, false
	}
	c.Update(screen)
	c.drag = nil

	net := screen.Sub(d.startScreen)
	if math.Hypot(net.X, net.Y) < clickThreshold {
		return Geometry{}, false
	}
	return d.current.clone(), true
}

// Cancel abandons the drag without emitting a final update.
func (c *Controller) Cancel() {
	c.drag = nil
}

// move translates the whole object. The anchor is re-based to the latest
// pointer position every frame so tracking stays 1:1 with the pointer.
func (d *drag) move(screen geom.Point) (Geometry, bool) {
	dx, dy := d.view.ScreenDeltaToDocumentDelta(screen.X-d.lastScreen.X, screen.Y-d.lastScreen.Y)

	next := d.current.clone()
	next.X += dx
	next.Y += dy
	for i := range next.Points {
		next.Points[i].X += dx
		next.Points[i].Y += dy
	}
	if !finite(next) {
		return Geometry{}, false
	}
	return next, true
}

// resize adjusts only the dimensions adjacent to the grabbed handle,
// computing from the original snapshot plus the cumulative delta to avoid
// drift. For rotated objects the screen delta is first expressed in the
// object's local unrotated frame.
func (d *drag) resize(screen geom.Point) (Geometry, bool) {
	sdx := screen.X - d.startScreen.X
	sdy := screen.Y - d.startScreen.Y
	if d.start.Rotation != 0 {
		sdx, sdy = geom.RotateDeltaIntoLocal(sdx, sdy, d.start.Rotation)
	}

	scale := d.view.Scale()
	dx := sdx / scale
	dy := -sdy / scale // document Y runs upward

	next := d.start.clone()
	switch d.handle {
	case HandleE, HandleNE, HandleSE:
		next.Width = d.start.Width + dx
	case HandleW, HandleNW, HandleSW:
		next.X = d.start.X + dx
		next.Width = d.start.Width - dx
	}
	switch d.handle {
	case HandleN, HandleNE, HandleNW: // screen top = document top
		next.Height = d.start.Height + dy
	case HandleS, HandleSE, HandleSW:
		next.Y = d.start.Y + dy
		next.Height = d.start.Height - dy
	}

	if next.Width < d.minSize || next.Height < d.minSize || !finite(next) {
		return Geometry{}, false
	}
	return next, true
}

// rotate derives the new rotation from the angle swept between the
// initial and current pointer positions around the object's midpoint.
func (d *drag) rotate(screen geom.Point) (Geometry, bool) {
	from := d.startScreen.Sub(d.centerScreen)
	to := screen.Sub(d.centerScreen)
	// Viewport space is Y-down, so atan2 here grows clockwise, matching
	// the visual rotation convention.
	swept := math.Atan2(to.Y, to.X) - math.Atan2(from.Y, from.X)

	next := d.start.clone()
	next.Rotation = geom.NormalizeDegrees(d.start.Rotation + swept*180/math.Pi)
	if !finite(next) {
		return Geometry{}, false
	}
	return next, true
}

// moveEndpoint drags one endpoint of a two-point object and recomputes
// the bounding box as the min/max envelope of both points.
func (d *drag) moveEndpoint(screen geom.Point) (Geometry, bool) {
	if len(d.start.Points) != 2 {
		return Geometry{}, false
	}
	idx := 0
	if d.handle == HandleEnd {
		idx = 1
	}

	dx, dy := d.view.ScreenDeltaToDocumentDelta(screen.X-d.startScreen.X, screen.Y-d.startScreen.Y)

	next := d.start.clone()
	next.Points[idx].X += dx
	next.Points[idx].Y += dy

	env := geom.RectFromPoints(next.Points[0], next.Points[1])
	next.X, next.Y, next.Width, next.Height = env.X, env.Y, env.Width, env.Height
	if !finite(next) {
		return Geometry{}, false
	}
	return next, true
}

func finite(g Geometry) bool {
	vals := []float64{g.X, g.Y, g.Width, g.Height, g.Rotation}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, p := range g.Points {
		if !p.IsFinite() {
			return false
		}
	}
	return true
}
