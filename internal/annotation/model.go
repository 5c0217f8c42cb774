package annotation

import (
	"github.com/pagemark/pagemark/backend-go/internal/geom"
)

// Type tags the kind of overlay object.
type Type string

const (
	TypeText      Type = "text"
	TypeHighlight Type = "highlight"
	TypeShape     Type = "shape"
	TypeField     Type = "field"
	TypeInk       Type = "ink"
	TypeStamp     Type = "stamp"
)

// ShapeKind distinguishes the geometric shapes. Line and arrow are
// two-point objects: their geometry is defined by Points, and the
// bounding box is derived.
type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeEllipse   ShapeKind = "ellipse"
	ShapeLine      ShapeKind = "line"
	ShapeArrow     ShapeKind = "arrow"
)

// FieldKind distinguishes form field types.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldCheckbox FieldKind = "checkbox"
	FieldRadio    FieldKind = "radio"
	FieldDropdown FieldKind = "dropdown"
)

// TextStyle is the payload for text annotations.
type TextStyle struct {
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	Color      string  `json:"color,omitempty"`
}

// ShapeStyle is the payload for shape annotations.
type ShapeStyle struct {
	Kind        ShapeKind `json:"kind"`
	Stroke      string    `json:"stroke,omitempty"`
	Fill        string    `json:"fill,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
}

// FieldInfo is the payload for form field annotations.
type FieldInfo struct {
	Kind  FieldKind `json:"kind"`
	Name  string    `json:"name,omitempty"`
	Value string    `json:"value,omitempty"`
}

// StampInfo is the payload for stamp annotations. AssetID references an
// ingested stamp image; Thumbnail is a small preview data URL.
type StampInfo struct {
	AssetID   string `json:"assetId"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Annotation is a single overlay object placed on a document page.
// Position and size are in document space (origin bottom-left, Y up).
type Annotation struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	PageIndex int    `json:"pageIndex"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	// Rotation in degrees, normalized into [0, 360), relative to the page.
	Rotation float64 `json:"rotation,omitempty"`

	// Points holds the two endpoints of line/arrow shapes, in document
	// space. For those objects X/Y/Width/Height are the derived envelope.
	Points []geom.Point `json:"points,omitempty"`

	// Type-specific payloads; only the one matching Type is set.
	Text   *TextStyle  `json:"text,omitempty"`
	Shape  *ShapeStyle `json:"shape,omitempty"`
	Field  *FieldInfo  `json:"field,omitempty"`
	Stamp  *StampInfo  `json:"stamp,omitempty"`
	Stroke []geom.Point `json:"stroke,omitempty"`

	// EngineRef is the handle of the corresponding object inside the
	// document engine. Used only for write-back; never an identity
	// across reloads.
	EngineRef string `json:"engineRef,omitempty"`
}

// IsTwoPoint reports whether the annotation's geometry is defined by two
// endpoints rather than a rectangle.
func (a *Annotation) IsTwoPoint() bool {
	if a.Type != TypeShape || a.Shape == nil {
		return false
	}
	return a.Shape.Kind == ShapeLine || a.Shape.Kind == ShapeArrow
}

// Bounds returns the annotation's bounding box in document space.
func (a *Annotation) Bounds() geom.Rect {
	return geom.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
}

// SetBounds updates position and size from a rect.
func (a *Annotation) SetBounds(r geom.Rect) {
	a.X, a.Y, a.Width, a.Height = r.X, r.Y, r.Width, r.Height
}

// SyncEnvelope recomputes X/Y/Width/Height as the min/max envelope of the
// two endpoints. No-op for annotations without points.
func (a *Annotation) SyncEnvelope() {
	if len(a.Points) != 2 {
		return
	}
	a.SetBounds(geom.RectFromPoints(a.Points[0], a.Points[1]))
}

// Normalize enforces the model invariants: non-negative width/height and
// rotation in [0, 360).
func (a *Annotation) Normalize() {
	if a.Width < 0 {
		a.Width = 0
	}
	if a.Height < 0 {
		a.Height = 0
	}
	a.Rotation = geom.NormalizeDegrees(a.Rotation)
}

// Clone returns a deep copy. History records hold owned copies so that
// later edits never mutate what a record captured.
func (a *Annotation) Clone() *Annotation {
	if a == nil {
		return nil
	}
	c := *a
	if a.Points != nil {
		c.Points = append([]geom.Point(nil), a.Points...)
	}
	if a.Stroke != nil {
		c.Stroke = append([]geom.Point(nil), a.Stroke...)
	}
	if a.Text != nil {
		t := *a.Text
		c.Text = &t
	}
	if a.Shape != nil {
		s := *a.Shape
		c.Shape = &s
	}
	if a.Field != nil {
		f := *a.Field
		c.Field = &f
	}
	if a.Stamp != nil {
		st := *a.Stamp
		c.Stamp = &st
	}
	return &c
}
