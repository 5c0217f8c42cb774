// Package document defines the resident document model and the abstract
// collaborators the editing core drives: the external document-processing
// engine and the file storage boundary.
package document

import (
	"context"
	"image"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/geom"
)

// Page is the parsed metadata of one document page. Width and height are
// in document points; Rotation is the page's display rotation in degrees.
type Page struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Document is one open document and its resident annotation state.
// Annotations are owned by the document and destroyed when it closes.
type Document struct {
	ID          string
	Name        string
	Path        string // empty for documents opened from raw bytes
	Pages       []Page
	Annotations *annotation.Set
}

// Match is one search hit region on a page, in document space.
type Match struct {
	PageIndex int       `json:"pageIndex"`
	Bounds    geom.Rect `json:"bounds"`
}

// Engine is the external document-processing engine, consumed as a black
// box. Implementations parse, render and mutate the underlying file
// format; the editing core never looks inside. Long-running calls take a
// context so the caller's event loop can abandon them.
type Engine interface {
	// Load hands the engine the raw document bytes and returns the page
	// count.
	Load(ctx context.Context, data []byte) (pageCount int, err error)
	// ParsePage returns the metadata of one page.
	ParsePage(ctx context.Context, index int) (Page, error)
	// RenderPage rasterizes one page at the given scale.
	RenderPage(ctx context.Context, index int, scale float64) (image.Image, error)
	// Search returns the match regions for a query on one page.
	Search(ctx context.Context, index int, query string) ([]Match, error)
	// WriteOverlayObject writes or updates the object in the file and
	// returns its engine handle.
	WriteOverlayObject(ctx context.Context, a *annotation.Annotation) (ref string, err error)
	// DeleteOverlayObject removes the object behind the handle.
	DeleteOverlayObject(ctx context.Context, ref string) error
	// LoadOverlayObjects parses the overlay objects of one page, with
	// engine handles attached.
	LoadOverlayObjects(ctx context.Context, index int) ([]*annotation.Annotation, error)
	// Serialize returns the current document bytes with all written
	// overlay objects merged in.
	Serialize(ctx context.Context) ([]byte, error)
}

// File is an opened file's contents and identity.
type File struct {
	Name string
	Path string // optional
	Data []byte
}

// FileStore is the storage/IO collaborator, consumed only at the
// document open/save boundaries. The shell's native dialogs pick the
// paths; this side only reads and writes them.
type FileStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}
