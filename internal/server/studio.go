package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/MeKo-Tech/textilegen/internal/studio"
)

// Saver persists studio results.
type Saver interface {
	Add(tex *studio.Texture) error
	Flush() error
}

// StudioHandler drives a shared Studio over HTTP.
type StudioHandler struct {
	studio  *studio.Studio
	preview *Preview
	saver   Saver
	logger  *slog.Logger
}

// StudioState is the studio part of the status document.
type StudioState struct {
	Busy    bool `json:"busy"`
	History int  `json:"history"`
}

func (h *StudioHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func (h *StudioHandler) state() *StudioState {
	return &StudioState{Busy: h.studio.Busy(), History: len(h.studio.History())}
}

// serveGenerate runs POST /api/studio/{pattern} and answers with the
// texture metadata. The composed canvas is at /api/studio/canvas.png.
func (h *StudioHandler) serveGenerate(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	id := r.PathValue("pattern")
	s, ns, err := h.preview.settingsFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tex, err := h.studio.Generate(r.Context(), id, s, ns)
	switch {
	case errors.Is(err, studio.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, pattern.ErrUnknownPattern):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.saver != nil {
		if err := h.saver.Add(tex); err == nil {
			err = h.saver.Flush()
		}
		if err != nil {
			h.log().Error("failed to save texture", "id", tex.ID, "error", err)
		}
	}
	writeJSON(w, h.log(), tex)
}

// serveStudioGet answers canvas.png, puff.png and history.
func (h *StudioHandler) serveStudioGet(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("layer") {
	case "canvas.png":
		h.serveHandoff(w, r, studio.HandoffCanvas)
	case "puff.png":
		h.serveHandoff(w, r, studio.HandoffPuff)
	case "history":
		h.serveHistory(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *StudioHandler) serveHandoff(w http.ResponseWriter, r *http.Request, name string) {
	if !allowCORS(w, r) {
		return
	}
	img, ok := h.studio.Handoff().Get(name)
	if !ok {
		http.Error(w, "nothing generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := export.Encode(w, img, export.PNG, 0); err != nil {
		h.log().Error("failed to encode canvas", "error", err)
	}
}

func (h *StudioHandler) serveHistory(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	items := h.studio.History()
	if items == nil {
		items = []*studio.Texture{}
	}
	writeJSON(w, h.log(), items)
}

func (h *StudioHandler) serveReset(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	h.studio.ResetCanvas()
	w.WriteHeader(http.StatusNoContent)
}
