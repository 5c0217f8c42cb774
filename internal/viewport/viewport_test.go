package viewport

import (
	"math"
	"testing"

	"github.com/pagemark/pagemark/backend-go/internal/geom"
)

func newTestController() *Controller {
	c := NewController()
	c.SetContainerSize(800, 600)
	c.SetPageMetadata(612, 792, 0, 10)
	return c
}

func TestZoomAnchoredAtCenterClampsToZero(t *testing.T) {
	c := NewController()
	c.SetContainerSize(800, 600)
	c.SetPageMetadata(800, 600, 0, 1)
	// Keep the base fit at 1 so the scenario numbers are exact.
	c.SetFit(ModePaged, FitCustom)

	s := c.ZoomTo(2.0, nil)

	// (0+300)*1.0/2.0 - 300 = -150, clamped to 0.
	if s.Scroll.Y != 0 {
		t.Errorf("scroll.Y = %v, want 0", s.Scroll.Y)
	}
	if s.Scroll.X != 0 {
		t.Errorf("scroll.X = %v, want 0", s.Scroll.X)
	}
	if s.Zoom != 2.0 {
		t.Errorf("zoom = %v, want 2", s.Zoom)
	}
}

func TestZoomRoundTripRestoresScroll(t *testing.T) {
	c := newTestController()
	c.SetMode(ModeContinuous)

	// Start scrolled into the middle of the content so neither zoom
	// level hits the clamp.
	start := c.Scroll(geom.Point{X: 40, Y: 2000})
	anchor := &geom.Point{X: 123, Y: 456}

	c.ZoomTo(1.5, anchor)
	end := c.ZoomTo(start.Zoom, anchor)

	if math.Abs(end.Scroll.X-start.Scroll.X) > 1e-9 || math.Abs(end.Scroll.Y-start.Scroll.Y) > 1e-9 {
		t.Errorf("scroll after round trip = %+v, want %+v", end.Scroll, start.Scroll)
	}
}

func TestIncrementalZoomMatchesDirectZoom(t *testing.T) {
	anchor := &geom.Point{X: 200, Y: 150}

	a := newTestController()
	a.SetMode(ModeContinuous)
	a.Scroll(geom.Point{X: 10, Y: 1500})
	for _, z := range []float64{1.1, 1.2, 1.3, 1.4, 1.5} {
		a.ZoomTo(z, anchor)
	}

	b := newTestController()
	b.SetMode(ModeContinuous)
	b.Scroll(geom.Point{X: 10, Y: 1500})
	b.ZoomTo(1.1, anchor)
	// Jumping straight from 1.1 to 1.5 must land on the same scroll as
	// stepping through: each call recomputes from the current scroll,
	// so intermediate steps cancel out.
	b.ZoomTo(1.5, anchor)

	sa, sb := a.State(ModeContinuous), b.State(ModeContinuous)
	if math.Abs(sa.Scroll.X-sb.Scroll.X) > 1e-9 || math.Abs(sa.Scroll.Y-sb.Scroll.Y) > 1e-9 {
		t.Errorf("incremental %+v vs direct %+v", sa.Scroll, sb.Scroll)
	}
}

func TestModesKeepIndependentZoom(t *testing.T) {
	c := newTestController()

	c.SetMode(ModePaged)
	c.ZoomTo(3.0, nil)
	c.SetMode(ModeContinuous)
	c.ZoomTo(0.5, nil)

	if got := c.State(ModePaged).Zoom; got != 3.0 {
		t.Errorf("paged zoom = %v, want 3.0", got)
	}
	if got := c.State(ModeContinuous).Zoom; got != 0.5 {
		t.Errorf("continuous zoom = %v, want 0.5", got)
	}

	// Switching back restores the paged zoom untouched.
	c.SetMode(ModePaged)
	if got := c.State(ModePaged).Zoom; got != 3.0 {
		t.Errorf("paged zoom after toggle = %v, want 3.0", got)
	}
}

func TestZoomClampedToRange(t *testing.T) {
	c := newTestController()
	if s := c.ZoomTo(0.0001, nil); s.Zoom != MinZoom {
		t.Errorf("zoom = %v, want MinZoom", s.Zoom)
	}
	if s := c.ZoomTo(1000, nil); s.Zoom != MaxZoom {
		t.Errorf("zoom = %v, want MaxZoom", s.Zoom)
	}
}

func TestBaseFitScale(t *testing.T) {
	c := NewController()
	c.SetContainerSize(612, 396)
	c.SetPageMetadata(612, 792, 0, 1)

	c.SetFit(ModePaged, FitWidth)
	if got := c.State(ModePaged).BaseFitScale; got != 1.0 {
		t.Errorf("fit-width base scale = %v, want 1", got)
	}

	c.SetFit(ModePaged, FitPage)
	if got := c.State(ModePaged).BaseFitScale; got != 0.5 {
		t.Errorf("fit-page base scale = %v, want 0.5", got)
	}

	// Rotating the page by 90 swaps the extent used for fitting.
	c.SetPageMetadata(612, 792, 90, 1)
	if got := c.State(ModePaged).BaseFitScale; math.Abs(got-396.0/612.0) > 1e-12 {
		t.Errorf("rotated fit-page base scale = %v, want %v", got, 396.0/612.0)
	}
}

func TestScrollClampedToContent(t *testing.T) {
	c := NewController()
	c.SetContainerSize(800, 600)
	c.SetPageMetadata(400, 300, 0, 1)
	c.SetFit(ModePaged, FitCustom)

	// Content smaller than the viewport: scroll pinned at origin.
	s := c.Scroll(geom.Point{X: 50, Y: 50})
	if s.Scroll != (geom.Point{}) {
		t.Errorf("scroll = %+v, want origin", s.Scroll)
	}

	c.ZoomTo(4, nil) // content now 1600x1200
	s = c.Scroll(geom.Point{X: 9999, Y: 9999})
	if s.Scroll.X != 800 || s.Scroll.Y != 600 {
		t.Errorf("scroll = %+v, want (800, 600)", s.Scroll)
	}
}
