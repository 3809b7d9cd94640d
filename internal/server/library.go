package server

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/textilegen/internal/library"
)

// Library is the read side of a texture library.
type Library interface {
	List(limit int) ([]library.Record, error)
	PNG(id string) ([]byte, error)
	Thumbnail(id string) ([]byte, error)
}

// LibraryHandler serves stored textures.
type LibraryHandler struct {
	lib          Library
	logger       *slog.Logger
	cacheControl string
}

func NewLibraryHandler(lib Library, cacheControl string, logger *slog.Logger) *LibraryHandler {
	if cacheControl == "" {
		cacheControl = "public, max-age=3600"
	}
	return &LibraryHandler{lib: lib, logger: logger, cacheControl: cacheControl}
}

func (h *LibraryHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func (h *LibraryHandler) serveList(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := h.lib.List(limit)
	if err != nil {
		h.log().Error("failed to list textures", "error", err)
		http.Error(w, "failed to list textures", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []library.Record{}
	}
	writeJSON(w, h.log(), recs)
}

// serveTexture answers /api/library/{id}.png; ?thumb=1 selects the thumbnail.
func (h *LibraryHandler) serveTexture(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	name := r.PathValue("file")
	if path.Ext(name) != ".png" {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimSuffix(name, ".png")

	read := h.lib.PNG
	if thumb, _ := strconv.ParseBool(r.URL.Query().Get("thumb")); thumb {
		read = h.lib.Thumbnail
	}
	data, err := read(id)
	if errors.Is(err, library.ErrNotFound) {
		http.Error(w, "texture not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("failed to read texture", "id", id, "error", err)
		http.Error(w, "failed to read texture", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", h.cacheControl)
	if _, err := w.Write(data); err != nil {
		h.log().Error("failed to write response", "error", err)
	}
}
