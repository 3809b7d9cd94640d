package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/studio"
)

type Options struct {
	Preview PreviewConfig
	// Library enables /api/library when set.
	Library             Library
	LibraryCacheControl string
	// Studio enables /api/studio when set; Saver additionally stores results.
	Studio *studio.Studio
	Saver  Saver
}

// Server wires the preview, library and studio handlers onto one mux.
type Server struct {
	preview *Preview
	library *LibraryHandler
	studio  *StudioHandler
	logger  *slog.Logger
	mux     *http.ServeMux
}

func New(opts Options, logger *slog.Logger) *Server {
	s := &Server{
		preview: NewPreview(opts.Preview, logger),
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/patterns", s.preview.servePatterns)
	s.mux.HandleFunc("GET /api/render/{file}", s.preview.serveRender)
	s.mux.HandleFunc("POST /api/embroidery/plan", s.preview.servePointsPlan)
	s.mux.HandleFunc("GET /api/embroidery/{file}", s.preview.servePatternPlan)
	s.mux.HandleFunc("POST /api/upscale", s.preview.serveUpscale)
	s.mux.Handle("GET /api/status", s.StatusHandler())
	s.mux.Handle("GET /api/status/stream", s.StatusStreamHandler())

	if opts.Library != nil {
		s.library = NewLibraryHandler(opts.Library, opts.LibraryCacheControl, logger)
		s.mux.HandleFunc("GET /api/library", s.library.serveList)
		s.mux.HandleFunc("GET /api/library/{file}", s.library.serveTexture)
	}
	if opts.Studio != nil {
		s.studio = &StudioHandler{studio: opts.Studio, preview: s.preview, saver: opts.Saver, logger: logger}
		s.mux.HandleFunc("POST /api/studio/{pattern}", s.studio.serveGenerate)
		s.mux.HandleFunc("GET /api/studio/{layer}", s.studio.serveStudioGet)
		s.mux.HandleFunc("DELETE /api/studio/canvas", s.studio.serveReset)
	}
	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if allowCORS(w, r) {
			http.NotFound(w, r)
		}
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) Status() Status {
	st := Status{Render: s.preview.Status()}
	if s.studio != nil {
		st.Studio = s.studio.state()
	}
	return st
}

// StatusHandler serves Status as JSON.
func (s *Server) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		writeJSON(w, s.log(), s.Status())
	})
}

// StatusStreamHandler pushes Status as server-sent events every 250ms.
func (s *Server) StatusStreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		s.sendStatusEvent(w, flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				s.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (s *Server) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(s.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
