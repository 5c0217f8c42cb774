package library

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pagemark/pagemark/backend-go/internal/document"
	"github.com/pagemark/pagemark/backend-go/internal/settings"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type openRequest struct {
	Path string `json:"path"`
}

type documentInfo struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Path  string          `json:"path"`
	Pages []document.Page `json:"pages"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}

	doc, err := h.service.Open(r.Context(), req.Path)
	if err != nil {
		if errors.Is(err, ErrFileMissing) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "file no longer exists"})
			return
		}
		slog.Error("open document failed", "path", req.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, documentInfo{
		ID:    doc.ID,
		Name:  doc.Name,
		Path:  doc.Path,
		Pages: doc.Pages,
	})
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docId"]

	if err := h.service.Save(r.Context(), docID); err != nil {
		slog.Error("save document failed", "document", docID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "save failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docId"]

	if err := h.service.Close(docID); err != nil {
		slog.Error("close document failed", "document", docID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "close failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	files, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("list recent files failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if files == nil {
		files = []settings.RecentFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

type preferenceBody struct {
	Value string `json:"value"`
}

func (h *Handler) GetPreference(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, err := h.service.Preference(r.Context(), key)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "preference not set"})
			return
		}
		slog.Error("get preference failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, preferenceBody{Value: value})
}

func (h *Handler) SetPreference(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var body preferenceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.service.SetPreference(r.Context(), key, body.Value); err != nil {
		slog.Error("set preference failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
