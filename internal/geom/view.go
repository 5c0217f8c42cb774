package geom

import "math"

// View captures the parameters that map a page's document space (origin
// bottom-left, Y up, units = document points) onto viewport space (origin
// top-left, Y down, units = screen pixels). A View is a value; conversions
// never mutate shared state.
type View struct {
	// Zoom is the user-facing zoom level (1.0 = base fit).
	Zoom float64 `json:"zoom"`
	// BaseFitScale is the scale at which the page exactly fits the
	// viewport at Zoom = 1.0. Zero means the base scale is applied
	// structurally elsewhere and only Zoom contributes.
	BaseFitScale float64 `json:"baseFitScale,omitempty"`
	// Pan is the scroll offset of the viewport, in screen pixels.
	Pan Point `json:"pan"`
	// PageWidth and PageHeight are the page extent in document units,
	// before page rotation.
	PageWidth  float64 `json:"pageWidth"`
	PageHeight float64 `json:"pageHeight"`
	// PageRotation is the page's display rotation in degrees, a multiple
	// of 90, applied clockwise on screen.
	PageRotation float64 `json:"pageRotation,omitempty"`
}

// Scale returns the effective document-to-screen scale factor.
func (v View) Scale() float64 {
	if v.BaseFitScale == 0 {
		return v.Zoom
	}
	return v.Zoom * v.BaseFitScale
}

// RotatedPageSize returns the on-screen page extent in document units,
// after page rotation (width/height swap for 90 and 270).
func (v View) RotatedPageSize() (w, h float64) {
	switch NormalizeDegrees(v.PageRotation) {
	case 90, 270:
		return v.PageHeight, v.PageWidth
	default:
		return v.PageWidth, v.PageHeight
	}
}

// Matrix returns the full document-to-viewport transform.
// Pipeline: flip Y (document Y-up to page Y-down), rotate the page
// clockwise, scale by the effective zoom, then offset by the pan.
func (v View) Matrix() Matrix2D {
	s := v.Scale()
	return Translate(-v.Pan.X, -v.Pan.Y).
		Multiply(Scale(s, s)).
		Multiply(pageRotation(v.PageRotation, v.PageWidth, v.PageHeight)).
		Multiply(FlipY(v.PageHeight))
}

// DocumentToViewport converts a document-space point to viewport space.
func (v View) DocumentToViewport(p Point) Point {
	return v.Matrix().TransformPoint(p)
}

// ViewportToDocument converts a viewport-space point back to document
// space. It is the exact inverse of DocumentToViewport to floating-point
// precision.
func (v View) ViewportToDocument(p Point) Point {
	return v.Matrix().Invert().TransformPoint(p)
}

// ScreenDeltaToDocumentDelta converts a screen-pixel drag delta into a
// document-space delta: divide by the effective scale, negate Y.
func (v View) ScreenDeltaToDocumentDelta(dx, dy float64) (float64, float64) {
	s := v.Scale()
	return dx / s, -dy / s
}

// pageRotation maps page-local Y-down coordinates into the rotated page's
// Y-down coordinates. Rotation is clockwise on screen; 90 and 270 swap the
// page extent.
func pageRotation(degrees, w, h float64) Matrix2D {
	switch NormalizeDegrees(degrees) {
	case 90:
		return Matrix2D{0, 1, -1, 0, h, 0}
	case 180:
		return Matrix2D{-1, 0, 0, -1, w, h}
	case 270:
		return Matrix2D{0, -1, 1, 0, 0, w}
	default:
		return Identity()
	}
}

// RotateDeltaIntoLocal expresses a screen-space delta in the unrotated
// local frame of an object rotated by the given degrees. Object rotation
// is visually clockwise, so the inverse transform rotates by -degrees.
// Resize handles computed from the result behave intuitively regardless
// of how far the object has been rotated.
func RotateDeltaIntoLocal(dx, dy, degrees float64) (float64, float64) {
	rad := -degrees * math.Pi / 180.0
	cos := math.Cos(rad)
	sin := math.Sin(rad)
	return dx*cos - dy*sin, dx*sin + dy*cos
}

// NormalizeDegrees normalizes an angle into [0, 360).
func NormalizeDegrees(degrees float64) float64 {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	return d
}
