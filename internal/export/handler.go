// Package export streams a document, with all written overlay objects
// merged in, back to the caller as a file download.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pagemark/pagemark/backend-go/internal/editor"
)

// Dispatcher runs a closure on the editing event loop; exports must not
// race concurrent socket mutations.
type Dispatcher interface {
	Do(fn func() error) error
}

type Handler struct {
	editor   *editor.Editor
	dispatch Dispatcher
}

func NewHandler(ed *editor.Editor, dispatch Dispatcher) *Handler {
	return &Handler{editor: ed, dispatch: dispatch}
}

type exportRequest struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
}

// ExportDocument handles POST /export/document.
func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocumentID == "" {
		http.Error(w, "documentId is required", http.StatusBadRequest)
		return
	}

	name := req.Name
	if name == "" {
		name = "document"
	}
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.TrimSuffix(name, ".pdf"))

	var data []byte
	err := h.dispatch.Do(func() error {
		var err error
		data, err = h.editor.Serialize(r.Context(), req.DocumentID)
		return err
	})
	if err != nil {
		if errors.Is(err, editor.ErrDocumentNotFound) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		slog.Error("export failed", "document", req.DocumentID, "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)

	slog.Info("export complete", "document", req.DocumentID, "bytes", len(data))
}
