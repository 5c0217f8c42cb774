package editor

import (
	"context"
	"fmt"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/geom"
	"github.com/pagemark/pagemark/backend-go/internal/history"
	"github.com/pagemark/pagemark/backend-go/internal/typeid"
)

// Update is a partial annotation update; nil fields are left untouched.
type Update struct {
	X        *float64                `json:"x,omitempty"`
	Y        *float64                `json:"y,omitempty"`
	Width    *float64                `json:"width,omitempty"`
	Height   *float64                `json:"height,omitempty"`
	Rotation *float64                `json:"rotation,omitempty"`
	Points   []geom.Point            `json:"points,omitempty"`
	Text     *annotation.TextStyle   `json:"text,omitempty"`
	Shape    *annotation.ShapeStyle  `json:"shape,omitempty"`
	Field    *annotation.FieldInfo   `json:"field,omitempty"`
	Stamp    *annotation.StampInfo   `json:"stamp,omitempty"`
	Stroke   []geom.Point            `json:"stroke,omitempty"`
}

// AddAnnotation writes a new overlay object to the engine, adds it to the
// resident set, and pushes one history record.
func (e *Editor) AddAnnotation(ctx context.Context, docID string, a *annotation.Annotation) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	if a.ID == "" {
		a.ID = typeid.NewAnnotationID()
	}
	a.Normalize()

	ref, err := od.engine.WriteOverlayObject(ctx, a)
	if err != nil {
		return fmt.Errorf("write overlay object: %w", err)
	}
	a.EngineRef = ref
	od.doc.Annotations.Add(a)

	e.log.Push(history.NewRecord(history.KindAnnotationAdd, docID, &existenceCmd{
		set:    od.doc.Annotations,
		engine: od.engine,
		annot:  a.Clone(),
		added:  true,
	}))
	return nil
}

// RemoveAnnotation deletes an overlay object from the engine and the
// resident set, and pushes one history record.
func (e *Editor) RemoveAnnotation(ctx context.Context, docID, annotID string) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	a := od.doc.Annotations.Get(annotID)
	if a == nil {
		return ErrAnnotationNotFound
	}

	if a.EngineRef != "" {
		if err := od.engine.DeleteOverlayObject(ctx, a.EngineRef); err != nil {
			return fmt.Errorf("delete overlay object: %w", err)
		}
	}
	od.doc.Annotations.Remove(annotID)

	e.log.Push(history.NewRecord(history.KindAnnotationRemove, docID, &existenceCmd{
		set:    od.doc.Annotations,
		engine: od.engine,
		annot:  a.Clone(),
		added:  false,
	}))
	return nil
}

// ApplyAnnotationUpdate applies a partial update to a resident
// annotation, writes it back to the engine, and pushes one history
// record holding owned before/after copies.
func (e *Editor) ApplyAnnotationUpdate(ctx context.Context, docID, annotID string, u Update) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	a := od.doc.Annotations.Get(annotID)
	if a == nil {
		return ErrAnnotationNotFound
	}

	before := a.Clone()
	applyUpdate(a, u)
	a.Normalize()

	if _, err := od.engine.WriteOverlayObject(ctx, a); err != nil {
		// Put the resident state back so it matches the engine.
		*a = *before.Clone()
		return fmt.Errorf("write overlay object: %w", err)
	}

	e.log.Push(history.NewRecord(history.KindAnnotationUpdate, docID, &updateCmd{
		set:    od.doc.Annotations,
		engine: od.engine,
		before: before,
		after:  a.Clone(),
	}))
	return nil
}

func applyUpdate(a *annotation.Annotation, u Update) {
	if u.X != nil {
		a.X = *u.X
	}
	if u.Y != nil {
		a.Y = *u.Y
	}
	if u.Width != nil {
		a.Width = *u.Width
	}
	if u.Height != nil {
		a.Height = *u.Height
	}
	if u.Rotation != nil {
		a.Rotation = *u.Rotation
	}
	if u.Points != nil {
		a.Points = append([]geom.Point(nil), u.Points...)
		a.SyncEnvelope()
	}
	if u.Text != nil {
		t := *u.Text
		a.Text = &t
	}
	if u.Shape != nil {
		s := *u.Shape
		a.Shape = &s
	}
	if u.Field != nil {
		f := *u.Field
		a.Field = &f
	}
	if u.Stamp != nil {
		st := *u.Stamp
		a.Stamp = &st
	}
	if u.Stroke != nil {
		a.Stroke = append([]geom.Point(nil), u.Stroke...)
	}
}
