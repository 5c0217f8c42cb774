// Package asset stores the images used by stamp annotations. Files are
// content-addressed, so re-uploading the same stamp image never grows
// the store.
package asset

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/image/draw"

	"github.com/pagemark/pagemark/backend-go/internal/typeid"
)

const (
	maxUploadSize = 10 << 20 // 10MB
	thumbMaxEdge  = 128
)

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Name     string `json:"name"`
}

// Handler serves stamp image upload and retrieval endpoints.
type Handler struct {
	dir string
}

// NewHandler creates an asset handler that stores files in dir.
func NewHandler(dir string) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/png") && !strings.HasPrefix(contentType, "image/jpeg") {
		http.Error(w, "only PNG and JPEG images are supported", http.StatusBadRequest)
		return
	}

	img, _, err := image.Decode(file)
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}
	bounds := img.Bounds()

	// Normalize to PNG and hash the canonical bytes; the hash is the
	// file name, so identical images land on the same file.
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("encode png", "error", err)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}
	sum := blake2b.Sum256(buf.Bytes())
	name := hex.EncodeToString(sum[:16])

	if err := h.writeIfAbsent(name+".png", buf.Bytes()); err != nil {
		slog.Error("store asset", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	if err := h.writeThumb(name, img); err != nil {
		slog.Error("store thumbnail", "error", err)
		http.Error(w, "failed to save thumbnail", http.StatusInternalServerError)
		return
	}

	resp := UploadResponse{
		ID:       typeid.NewAssetID(),
		URL:      fmt.Sprintf("/assets/%s.png", name),
		ThumbURL: fmt.Sprintf("/assets/%s_thumb.png", name),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Name:     header.Filename,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeIfAbsent(filename string, data []byte) error {
	path := filepath.Join(h.dir, filename)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, data, 0644)
}

func (h *Handler) writeThumb(name string, img image.Image) error {
	path := filepath.Join(h.dir, name+"_thumb.png")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Thumbnail(img, thumbMaxEdge)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Thumbnail scales img down so its longer edge is at most maxEdge,
// preserving aspect ratio. Images already small enough come back as-is.
func Thumbnail(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	var tw, th int
	if w >= h {
		tw = maxEdge
		th = h * maxEdge / w
	} else {
		th = maxEdge
		tw = w * maxEdge / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// Serve returns an http.Handler that serves stored asset files with
// caching headers. Content-addressed files are immutable.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Remove handles DELETE /assets/{name}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || strings.ContainsAny(name, "/\\.") {
		http.Error(w, "invalid asset name", http.StatusBadRequest)
		return
	}
	if err := h.delete(name); err != nil {
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// delete removes an asset file and its thumbnail from disk.
func (h *Handler) delete(name string) error {
	removed := false
	for _, suffix := range []string{".png", "_thumb.png"} {
		if err := os.Remove(filepath.Join(h.dir, name+suffix)); err == nil {
			removed = true
		}
	}
	if !removed {
		return fmt.Errorf("asset not found: %s", name)
	}
	return nil
}
