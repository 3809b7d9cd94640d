// Package server exposes pattern rendering and the texture library over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
)

type PreviewConfig struct {
	// Defaults are the settings every request starts from.
	Defaults pattern.Settings
	Noise    noise.Settings
	// Presets are selectable with ?preset=name and replace Defaults and Noise.
	Presets map[string]Preset

	CacheControl      string
	Quality           int
	MaxDimension      int
	MaxConcurrent     int
	GenerationTimeout time.Duration
}

// Preset is a named starting point for render requests.
type Preset struct {
	Settings pattern.Settings
	Noise    noise.Settings
}

// errRenderPanic marks a renderer that panicked instead of returning.
var errRenderPanic = errors.New("render panicked")

// Preview renders patterns on request.
type Preview struct {
	logger *slog.Logger
	sem    chan struct{}
	cfg    PreviewConfig
	render func(id string, s pattern.Settings, ns noise.Settings) (*image.NRGBA, error)

	activeRenders  atomic.Int32
	totalRendered  atomic.Int64
	totalFailed    atomic.Int64
	currentRenders sync.Map // render key -> start time
	queuedRenders  atomic.Int32
}

// Status is the JSON document served by the status endpoint.
type Status struct {
	Render RenderStatus `json:"render"`
	Studio *StudioState `json:"studio,omitempty"`
}

type RenderStatus struct {
	ActiveRenders  int      `json:"active_renders"`
	TotalRendered  int64    `json:"total_rendered"`
	TotalFailed    int64    `json:"total_failed"`
	CurrentRenders []string `json:"current_renders"`
	MaxConcurrent  int      `json:"max_concurrent"`
	QueuedRenders  int      `json:"queued_renders"`
}

func NewPreview(cfg PreviewConfig, logger *slog.Logger) *Preview {
	if cfg.Defaults.Width == 0 && cfg.Defaults.Height == 0 {
		cfg.Defaults = pattern.DefaultSettings(256, 256)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 2048
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	return &Preview{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		render: pattern.Render,
	}
}

func (p *Preview) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

func (p *Preview) Status() RenderStatus {
	var current []string
	p.currentRenders.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})
	sort.Strings(current)

	return RenderStatus{
		ActiveRenders:  int(p.activeRenders.Load()),
		TotalRendered:  p.totalRendered.Load(),
		TotalFailed:    p.totalFailed.Load(),
		CurrentRenders: current,
		MaxConcurrent:  p.cfg.MaxConcurrent,
		QueuedRenders:  int(p.queuedRenders.Load()),
	}
}

func allowCORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (p *Preview) servePatterns(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	writeJSON(w, p.log(), pattern.Catalog())
}

// settingsFor resolves preset, defaults and query overrides for a request.
func (p *Preview) settingsFor(r *http.Request) (pattern.Settings, noise.Settings, error) {
	base, baseNoise := p.cfg.Defaults, p.cfg.Noise
	if name := r.URL.Query().Get("preset"); name != "" {
		preset, ok := p.cfg.Presets[name]
		if !ok {
			return base, baseNoise, fmt.Errorf("unknown preset %q", name)
		}
		base, baseNoise = preset.Settings, preset.Noise
	}
	s, ns, err := applyQuery(r.URL.Query(), base, baseNoise)
	if err != nil {
		return s, ns, err
	}
	if s.Width > p.cfg.MaxDimension || s.Height > p.cfg.MaxDimension {
		return s, ns, fmt.Errorf("width and height must not exceed %d", p.cfg.MaxDimension)
	}
	return s, ns, s.Validate()
}

type renderResult struct {
	img *image.NRGBA
	err error
}

func (p *Preview) serveRender(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}

	id, format, ok := parseRenderFile(r.PathValue("file"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, _, ok := pattern.Lookup(id); !ok {
		http.Error(w, fmt.Sprintf("unknown pattern: %s", id), http.StatusNotFound)
		return
	}
	s, ns, err := p.settingsFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := fmt.Sprintf("%s_%dx%d_s%d", id, s.Width, s.Height, s.Seed)
	start := time.Now()
	img, ok := p.run(w, r, key, func() (*image.NRGBA, error) {
		return p.render(id, s, ns)
	})
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, img, format, p.cfg.Quality); err != nil {
		p.totalFailed.Add(1)
		p.log().Error("failed to encode render", "pattern", id, "format", format, "error", err)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}
	p.totalRendered.Add(1)
	p.log().Info("pattern rendered", "pattern", id, "format", format, "ms", time.Since(start).Milliseconds())

	w.Header().Set("Content-Type", format.MIME())
	w.Header().Set("Cache-Control", p.cfg.CacheControl)
	if _, err := w.Write(buf.Bytes()); err != nil {
		p.log().Error("failed to write response", "error", err)
	}
}

// run executes job under the render semaphore and timeout. It writes the
// error response itself and reports false when job produced no image.
func (p *Preview) run(w http.ResponseWriter, r *http.Request, key string, job func() (*image.NRGBA, error)) (*image.NRGBA, bool) {
	p.queuedRenders.Add(1)
	select {
	case p.sem <- struct{}{}:
		p.queuedRenders.Add(-1)
	case <-r.Context().Done():
		p.queuedRenders.Add(-1)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return nil, false
	}

	p.activeRenders.Add(1)
	p.currentRenders.Store(key, time.Now())

	// Jobs cannot be interrupted; a timed-out job keeps its semaphore slot
	// until it finishes.
	done := make(chan renderResult, 1)
	go func() {
		defer func() {
			p.activeRenders.Add(-1)
			p.currentRenders.Delete(key)
			<-p.sem
		}()
		defer func() {
			if rec := recover(); rec != nil {
				p.log().Error("renderer panicked", "job", key, "panic", rec)
				done <- renderResult{err: fmt.Errorf("%w: %v", errRenderPanic, rec)}
			}
		}()
		img, err := job()
		done <- renderResult{img: img, err: err}
	}()

	timer := time.NewTimer(p.cfg.GenerationTimeout)
	defer timer.Stop()

	var res renderResult
	select {
	case res = <-done:
	case <-timer.C:
		p.totalFailed.Add(1)
		p.log().Warn("render timed out", "job", key, "timeout", p.cfg.GenerationTimeout)
		http.Error(w, "render timed out", http.StatusGatewayTimeout)
		return nil, false
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return nil, false
	}
	if errors.Is(res.err, errRenderPanic) {
		p.totalFailed.Add(1)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return nil, false
	}
	if res.err != nil {
		p.totalFailed.Add(1)
		p.log().Error("render failed", "job", key, "error", res.err)
		http.Error(w, res.err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return res.img, true
}
