// Package editor owns the resident editing state: the set of open
// documents, their annotations, and the shared undo/redo log. Every
// mutation goes through exactly one history record. All methods are
// driven from a single event-loop goroutine.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
	"github.com/pagemark/pagemark/backend-go/internal/geom"
	"github.com/pagemark/pagemark/backend-go/internal/history"
	"github.com/pagemark/pagemark/backend-go/internal/typeid"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrPageOutOfRange     = errors.New("page index out of range")
)

// EngineFactory produces a fresh document engine for each opened
// document; an engine instance is bound to the bytes it loaded.
type EngineFactory func() document.Engine

type openDocument struct {
	doc    *document.Document
	engine document.Engine
}

// Editor is instantiated once per application session and injected into
// the layers that need it; there is no ambient global instance.
type Editor struct {
	newEngine EngineFactory
	files     document.FileStore
	log       *history.Log
	docs      map[string]*openDocument
}

// New creates an editor around the injected collaborators.
func New(newEngine EngineFactory, files document.FileStore, log *history.Log) *Editor {
	return &Editor{
		newEngine: newEngine,
		files:     files,
		log:       log,
		docs:      make(map[string]*openDocument),
	}
}

// Open loads a document from file contents: parses page metadata, then
// runs every page's freshly parsed overlay objects through reconciliation
// into a new resident set.
func (e *Editor) Open(ctx context.Context, file document.File) (*document.Document, error) {
	eng := e.newEngine()
	pageCount, err := eng.Load(ctx, file.Data)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	doc := &document.Document{
		ID:          typeid.NewDocumentID(),
		Name:        file.Name,
		Path:        file.Path,
		Annotations: annotation.NewSet(),
	}
	for i := 0; i < pageCount; i++ {
		page, err := eng.ParsePage(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("parse page %d: %w", i, err)
		}
		doc.Pages = append(doc.Pages, page)
	}

	e.docs[doc.ID] = &openDocument{doc: doc, engine: eng}
	if err := e.ReloadAnnotations(ctx, doc.ID); err != nil {
		delete(e.docs, doc.ID)
		return nil, err
	}

	slog.Info("document opened", "document", doc.ID, "name", doc.Name, "pages", pageCount)
	return doc, nil
}

// ReloadAnnotations parses every page's overlay objects again and merges
// them into the resident set without duplicating objects already held in
// memory. Freshly assigned IDs go to objects the reconciler accepts as
// new.
func (e *Editor) ReloadAnnotations(ctx context.Context, docID string) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}

	var batch []*annotation.Annotation
	for i := range od.doc.Pages {
		parsed, err := od.engine.LoadOverlayObjects(ctx, i)
		if err != nil {
			return fmt.Errorf("load overlay objects of page %d: %w", i, err)
		}
		for _, a := range parsed {
			if a.ID == "" {
				a.ID = typeid.NewAnnotationID()
			}
			a.PageIndex = i
		}
		batch = append(batch, parsed...)
	}

	before := od.doc.Annotations.Len()
	annotation.Reconcile(od.doc.Annotations, batch)
	slog.Debug("annotations reconciled",
		"document", docID, "parsed", len(batch), "added", od.doc.Annotations.Len()-before)
	return nil
}

// Save serializes the document with all overlay objects merged in and
// hands the bytes to the file store.
func (e *Editor) Save(ctx context.Context, docID string) error {
	od, ok := e.docs[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	data, err := od.engine.Serialize(ctx)
	if err != nil {
		return fmt.Errorf("serialize document: %w", err)
	}
	if err := e.files.Save(ctx, od.doc.Name, data); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	slog.Info("document saved", "document", docID, "name", od.doc.Name, "bytes", len(data))
	return nil
}

// Serialize returns the document bytes with all overlay objects merged
// in, without touching the file store.
func (e *Editor) Serialize(ctx context.Context, docID string) ([]byte, error) {
	od, ok := e.docs[docID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	data, err := od.engine.Serialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	return data, nil
}

// Close drops a document, its annotations, and its history records.
// Engines holding external resources (worker processes) are shut down.
func (e *Editor) Close(docID string) {
	od, ok := e.docs[docID]
	if !ok {
		return
	}
	if closer, ok := od.engine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("close engine", "document", docID, "error", err)
		}
	}
	delete(e.docs, docID)
	e.log.DropDocument(docID)
	slog.Info("document closed", "document", docID)
}

// Document returns an open document.
func (e *Editor) Document(docID string) (*document.Document, error) {
	od, ok := e.docs[docID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return od.doc, nil
}

// Annotations returns a document's resident annotations in insertion
// order.
func (e *Editor) Annotations(docID string) ([]*annotation.Annotation, error) {
	od, ok := e.docs[docID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return od.doc.Annotations.All(), nil
}

// AnnotationAt returns the topmost annotation on a page containing the
// given document-space point, or nil. Later insertions are on top.
func (e *Editor) AnnotationAt(docID string, pageIndex int, x, y float64) (*annotation.Annotation, error) {
	od, ok := e.docs[docID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	all := od.doc.Annotations.All()
	for i := len(all) - 1; i >= 0; i-- {
		a := all[i]
		if a.PageIndex != pageIndex {
			continue
		}
		if a.Bounds().Contains(geom.Point{X: x, Y: y}) {
			return a, nil
		}
	}
	return nil, nil
}

// Search delegates to the engine's page search.
func (e *Editor) Search(ctx context.Context, docID string, pageIndex int, query string) ([]document.Match, error) {
	od, ok := e.docs[docID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return od.engine.Search(ctx, pageIndex, query)
}

// Undo rolls back the most recent record on the shared log.
func (e *Editor) Undo() error { return e.log.Undo() }

// Redo reapplies the most recently undone record.
func (e *Editor) Redo() error { return e.log.Redo() }

// CanUndo reports whether the shared log has a record to undo.
func (e *Editor) CanUndo() bool { return e.log.CanUndo() }

// CanRedo reports whether the shared log has a record to redo.
func (e *Editor) CanRedo() bool { return e.log.CanRedo() }
