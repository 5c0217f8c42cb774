package session

import (
	"encoding/json"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
	"github.com/pagemark/pagemark/backend-go/internal/editor"
)

// Message is the envelope of every frame on a session socket. Payload is
// type-specific and stays raw until the type is dispatched.
type Message struct {
	Type       string          `json:"type"`
	DocumentID string          `json:"documentId,omitempty"`
	ClientID   string          `json:"clientId,omitempty"`
	Seq        int64           `json:"seq,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

const (
	// Connection
	TypeWelcome = "welcome"
	TypeError   = "error"

	// Document sync
	TypeDocSync  = "doc.sync"
	TypeDocState = "doc.state"
	TypeDocBusy  = "doc.busy"

	// Annotation mutations
	TypeAnnotAdd    = "annot.add"
	TypeAnnotUpdate = "annot.update"
	TypeAnnotRemove = "annot.remove"

	// Page mutations
	TypePageInsert = "page.insert"
	TypePageDelete = "page.delete"
	TypePagePaste  = "page.paste"
	TypePageRotate = "page.rotate"

	// History
	TypeHistoryUndo = "history.undo"
	TypeHistoryRedo = "history.redo"

	// Search
	TypeSearch       = "search"
	TypeSearchResult = "search.result"
)

// WelcomePayload acknowledges a new connection.
type WelcomePayload struct {
	ClientID   string `json:"clientId"`
	DocumentID string `json:"documentId"`
}

// ErrorPayload reports a rejected request back to its sender.
type ErrorPayload struct {
	RequestType string `json:"requestType"`
	Reason      string `json:"reason"`
}

// DocStatePayload is the full resident state of one document, sent in
// reply to doc.sync and after any mutation whose effects the client
// cannot compute locally (undo, redo, page operations).
type DocStatePayload struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Pages       []document.Page          `json:"pages"`
	Annotations []*annotation.Annotation `json:"annotations"`
	CanUndo     bool                     `json:"canUndo"`
	CanRedo     bool                     `json:"canRedo"`
}

// BusyPayload brackets engine-bound requests so the frontend can show a
// working indicator while the document engine is occupied.
type BusyPayload struct {
	Busy bool `json:"busy"`
}

// AnnotAddPayload carries the new annotation; the applied form (with
// assigned ID and engine handle) is broadcast back.
type AnnotAddPayload struct {
	Annotation *annotation.Annotation `json:"annotation"`
}

// AnnotUpdatePayload is a partial update of one annotation.
type AnnotUpdatePayload struct {
	ID     string        `json:"id"`
	Update editor.Update `json:"update"`
}

// AnnotRemovePayload names the annotation to remove.
type AnnotRemovePayload struct {
	ID string `json:"id"`
}

// PageInsertPayload inserts a blank page at Index.
type PageInsertPayload struct {
	Index int           `json:"index"`
	Page  document.Page `json:"page"`
}

// PageDeletePayload removes the page at Index.
type PageDeletePayload struct {
	Index int `json:"index"`
}

// PagePastePayload inserts a copied page with copies of its annotations.
type PagePastePayload struct {
	Index       int                      `json:"index"`
	Page        document.Page            `json:"page"`
	Annotations []*annotation.Annotation `json:"annotations"`
}

// PageRotatePayload turns the page at Index by ByDegrees.
type PageRotatePayload struct {
	Index     int     `json:"index"`
	ByDegrees float64 `json:"byDegrees"`
}

// SearchPayload is a text search request for one page.
type SearchPayload struct {
	PageIndex int    `json:"pageIndex"`
	Query     string `json:"query"`
}

// SearchResultPayload carries the match regions back to the requester.
type SearchResultPayload struct {
	PageIndex int              `json:"pageIndex"`
	Query     string           `json:"query"`
	Matches   []document.Match `json:"matches"`
}
