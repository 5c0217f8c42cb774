// Package viewport tracks zoom, fit mode and scroll state per view mode
// and implements anchor-preserving zoom: changing the zoom level keeps the
// document point under a chosen anchor visually stationary by solving for
// a new scroll offset.
package viewport

import (
	"sync"
	"time"

	"github.com/pagemark/pagemark/backend-go/internal/geom"
)

// Mode selects which view's state a call addresses. Each mode keeps its
// own zoom and scroll so toggling modes never clobbers the other's state.
type Mode string

const (
	// ModePaged shows a single page at a time.
	ModePaged Mode = "paged"
	// ModeContinuous is the scrollable read mode showing all pages.
	ModeContinuous Mode = "continuous"
)

// FitMode describes how the base fit scale is derived.
type FitMode string

const (
	FitPage   FitMode = "fit-page"
	FitWidth  FitMode = "fit-width"
	FitCustom FitMode = "custom"
)

const (
	MinZoom = 0.1
	MaxZoom = 10.0

	// correctionDelay defers the post-zoom scroll clamp until layout has
	// settled.
	correctionDelay = 120 * time.Millisecond
)

// State is the per-mode viewport state.
type State struct {
	Zoom         float64    `json:"zoom"`
	Fit          FitMode    `json:"fit"`
	Scroll       geom.Point `json:"scroll"`
	BaseFitScale float64    `json:"baseFitScale"`
}

// EffectiveScale is the document-to-screen factor the state produces.
func (s State) EffectiveScale() float64 {
	base := s.BaseFitScale
	if base == 0 {
		base = 1
	}
	return s.Zoom * base
}

// Controller owns the viewport state for both view modes. It is driven
// from the editing event loop; the mutex only guards the deferred
// correction timer's callback against that loop.
type Controller struct {
	mu     sync.Mutex
	states map[Mode]*State
	mode   Mode

	containerW, containerH float64
	pageW, pageH           float64
	pageRotation           float64
	pageCount              int

	correction *time.Timer
}

// NewController returns a controller with both modes at zoom 1, fit-page.
func NewController() *Controller {
	return &Controller{
		states: map[Mode]*State{
			ModePaged:      {Zoom: 1, Fit: FitPage, BaseFitScale: 1},
			ModeContinuous: {Zoom: 1, Fit: FitPage, BaseFitScale: 1},
		},
		mode:      ModePaged,
		pageCount: 1,
	}
}

// Mode returns the active view mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches the active view mode. Each mode's zoom and scroll are
// restored as they were left.
func (c *Controller) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[mode]; ok {
		c.mode = mode
	}
}

// State returns a copy of the given mode's state.
func (c *Controller) State(mode Mode) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.states[mode]
}

// EffectiveZoom returns the effective document-to-screen scale of a mode.
func (c *Controller) EffectiveZoom(mode Mode) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[mode].EffectiveScale()
}

// SetContainerSize records the visible viewport extent in pixels and
// recomputes the cached base fit scales.
func (c *Controller) SetContainerSize(w, h float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.containerW, c.containerH = w, h
	c.refitLocked()
}

// SetPageMetadata records the active document's page geometry and
// recomputes the cached base fit scales.
func (c *Controller) SetPageMetadata(pageW, pageH, rotation float64, pageCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageW, c.pageH, c.pageRotation = pageW, pageH, rotation
	if pageCount > 0 {
		c.pageCount = pageCount
	}
	c.refitLocked()
}

// SetFit changes how a mode's base fit scale is derived and recomputes it.
func (c *Controller) SetFit(mode Mode, fit FitMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[mode].Fit = fit
	c.refitLocked()
}

// refitLocked recomputes each mode's base fit scale: the scale at which
// the page exactly fits the container at zoom 1.0.
func (c *Controller) refitLocked() {
	w, h := c.rotatedPageSizeLocked()
	if w <= 0 || h <= 0 || c.containerW <= 0 || c.containerH <= 0 {
		return
	}
	for _, s := range c.states {
		switch s.Fit {
		case FitWidth:
			s.BaseFitScale = c.containerW / w
		case FitPage:
			s.BaseFitScale = min(c.containerW/w, c.containerH/h)
		}
	}
}

func (c *Controller) rotatedPageSizeLocked() (float64, float64) {
	switch geom.NormalizeDegrees(c.pageRotation) {
	case 90, 270:
		return c.pageH, c.pageW
	default:
		return c.pageW, c.pageH
	}
}

// ZoomTo changes the active mode's zoom level so that the document point
// under anchor (viewport coordinates, nil means viewport center) stays at
// the same screen position. Each call recomputes from the current scroll
// position, so repeated incremental calls never accumulate drift.
func (c *Controller) ZoomTo(level float64, anchor *geom.Point) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.states[c.mode]
	level = clamp(level, MinZoom, MaxZoom)

	oldScale := s.EffectiveScale()
	s.Zoom = level
	s.Fit = FitCustom
	newScale := s.EffectiveScale()

	a := geom.Point{X: c.containerW / 2, Y: c.containerH / 2}
	if anchor != nil {
		a = *anchor
	}

	s.Scroll.X = (s.Scroll.X+a.X)*oldScale/newScale - a.X
	s.Scroll.Y = (s.Scroll.Y+a.Y)*oldScale/newScale - a.Y
	c.clampScrollLocked(s)

	c.scheduleCorrectionLocked()
	return *s
}

// Scroll sets the active mode's scroll offset, clamped to the content.
func (c *Controller) Scroll(offset geom.Point) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.states[c.mode]
	s.Scroll = offset
	c.clampScrollLocked(s)
	return *s
}

// contentExtentLocked is the scaled content size for the active mode.
func (c *Controller) contentExtentLocked(s *State) (float64, float64) {
	w, h := c.rotatedPageSizeLocked()
	scale := s.EffectiveScale()
	if c.mode == ModeContinuous {
		return w * scale, h * scale * float64(c.pageCount)
	}
	return w * scale, h * scale
}

// clampScrollLocked clamps the scroll offset to [0, maxScroll] where
// maxScroll = max(0, contentExtent - viewportExtent).
func (c *Controller) clampScrollLocked(s *State) {
	cw, ch := c.contentExtentLocked(s)
	s.Scroll.X = clamp(s.Scroll.X, 0, max(0, cw-c.containerW))
	s.Scroll.Y = clamp(s.Scroll.Y, 0, max(0, ch-c.containerH))
}

// scheduleCorrectionLocked defers a scroll clamp until layout settles.
// A newer zoom request cancels and replaces the pending correction so a
// stale one never fires after a more recent zoom.
func (c *Controller) scheduleCorrectionLocked() {
	if c.correction != nil {
		c.correction.Stop()
	}
	c.correction = time.AfterFunc(correctionDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.clampScrollLocked(c.states[c.mode])
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
