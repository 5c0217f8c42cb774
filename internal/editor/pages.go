package editor

import (
	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
	"github.com/pagemark/pagemark/backend-go/internal/geom"
	"github.com/pagemark/pagemark/backend-go/internal/history"
	"github.com/pagemark/pagemark/backend-go/internal/typeid"
)

// InsertPage inserts a blank page at index, shifting the page indices of
// annotations on later pages.
func (e *Editor) InsertPage(docID string, index int, page document.Page) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	cmd := &pageExistenceCmd{doc: od.doc, index: index, page: page, inserted: true}
	if err := cmd.insertPage(); err != nil {
		return err
	}
	e.log.Push(history.NewRecord(history.KindPageInsert, docID, cmd))
	return nil
}

// DeletePage removes the page at index together with its annotations;
// undo restores both.
func (e *Editor) DeletePage(docID string, index int) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	if index < 0 || index >= len(od.doc.Pages) {
		return ErrPageOutOfRange
	}

	var owned []*annotation.Annotation
	for _, a := range od.doc.Annotations.All() {
		if a.PageIndex == index {
			owned = append(owned, a.Clone())
		}
	}

	cmd := &pageExistenceCmd{
		doc:      od.doc,
		index:    index,
		page:     od.doc.Pages[index],
		annots:   owned,
		inserted: false,
	}
	if err := cmd.deletePage(); err != nil {
		return err
	}
	e.log.Push(history.NewRecord(history.KindPageDelete, docID, cmd))
	return nil
}

// PastePage inserts a copied page together with copies of its
// annotations at index.
func (e *Editor) PastePage(docID string, index int, page document.Page, annots []*annotation.Annotation) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}

	owned := make([]*annotation.Annotation, 0, len(annots))
	for _, a := range annots {
		c := a.Clone()
		c.ID = typeid.NewAnnotationID()
		c.EngineRef = "" // pasted copies are new objects, not aliases
		owned = append(owned, c)
	}

	cmd := &pageExistenceCmd{doc: od.doc, index: index, page: page, annots: owned, inserted: true}
	if err := cmd.insertPage(); err != nil {
		return err
	}
	e.log.Push(history.NewRecord(history.KindPagePaste, docID, cmd))
	return nil
}

// RotatePage turns the page at index by the given degrees (normalized
// into [0, 360)).
func (e *Editor) RotatePage(docID string, index int, byDegrees float64) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	if index < 0 || index >= len(od.doc.Pages) {
		return ErrPageOutOfRange
	}

	before := od.doc.Pages[index].Rotation
	cmd := &rotatePageCmd{
		doc:    od.doc,
		index:  index,
		before: before,
		after:  geom.NormalizeDegrees(before + byDegrees),
	}
	if err := cmd.Redo(); err != nil {
		return err
	}
	e.log.Push(history.NewRecord(history.KindPageRotate, docID, cmd))
	return nil
}
