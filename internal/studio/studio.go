// Package studio runs the generation pipeline: render a pattern, draw it
// onto the shared canvas, record the result in history and hand the
// canvas to other consumers.
package studio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/composite"
	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/history"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/google/uuid"
)

// ErrBusy is returned when Generate is called while a generation is running.
var ErrBusy = errors.New("generation already in progress")

// Texture is one generated result. Data is a snapshot of the canvas and
// must not be modified.
type Texture struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Pattern   string           `json:"pattern"`
	Settings  pattern.Settings `json:"settings"`
	Noise     noise.Settings   `json:"noise"`
	CreatedAt time.Time        `json:"createdAt"`
	Data      *image.NRGBA     `json:"-"`
}

type Config struct {
	HistorySize int
	// Puff, when set, derives a puff map from every canvas and publishes
	// it under HandoffPuff.
	Puff *effects.PuffParams
	// KeepCanvas draws each result over the previous canvas instead of
	// starting from a blank one.
	KeepCanvas bool
}

type Studio struct {
	cfg     Config
	logger  *slog.Logger
	busy    atomic.Bool
	history *history.History[*Texture]
	handoff *Handoff
	now     func() time.Time

	mu     sync.Mutex
	canvas *image.NRGBA
}

func New(cfg Config, logger *slog.Logger) *Studio {
	return &Studio{
		cfg:     cfg,
		logger:  logger,
		history: history.New[*Texture](cfg.HistorySize),
		handoff: NewHandoff(),
		now:     time.Now,
	}
}

func (s *Studio) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Handoff returns the studio's shared image registry.
func (s *Studio) Handoff() *Handoff { return s.handoff }

// History returns past results, newest first.
func (s *Studio) History() []*Texture { return s.history.Items() }

// Busy reports whether a generation is running.
func (s *Studio) Busy() bool { return s.busy.Load() }

// CompositeOptions extracts the canvas drawing options from settings.
func CompositeOptions(st pattern.Settings) composite.Options {
	return composite.Options{
		BlendMode: st.BlendMode,
		Opacity:   st.Alpha(),
		Rotation:  st.Rotation,
		OffsetX:   st.OffsetX,
		OffsetY:   st.OffsetY,
	}
}

// Generate renders pattern id and draws it onto the canvas. It fails fast
// with ErrBusy if another call is running. ctx is only checked before
// rendering starts; a started render always runs to completion.
func (s *Studio) Generate(ctx context.Context, id string, st pattern.Settings, ns noise.Settings) (*Texture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	desc, _, ok := pattern.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", pattern.ErrUnknownPattern, id)
	}

	start := s.now()
	buf, err := pattern.Render(id, st, ns)
	if err != nil {
		return nil, err
	}

	canvas, err := s.draw(buf, st)
	if err != nil {
		return nil, err
	}

	tex := &Texture{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s %s", desc.Name, start.Format("15:04:05")),
		Pattern:   id,
		Settings:  st,
		Noise:     ns,
		CreatedAt: start,
		Data:      canvas,
	}
	s.history.Push(tex)

	s.handoff.Publish(HandoffCanvas, canvas)
	if s.cfg.Puff != nil {
		s.handoff.Publish(HandoffPuff, effects.PuffMap(canvas, *s.cfg.Puff))
	}

	s.log().Debug("texture generated", "pattern", id, "id", tex.ID,
		"width", st.Width, "height", st.Height, "ms", time.Since(start).Milliseconds())
	return tex, nil
}

// draw composites buf onto the canvas and returns a snapshot of it.
func (s *Studio) draw(buf *image.NRGBA, st pattern.Settings) (*image.NRGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.KeepCanvas || s.canvas == nil || s.canvas.Bounds() != buf.Bounds() {
		s.canvas = image.NewNRGBA(buf.Bounds())
	}
	if err := composite.Composite(s.canvas, buf, CompositeOptions(st)); err != nil {
		return nil, err
	}

	snap := image.NewNRGBA(s.canvas.Bounds())
	copy(snap.Pix, s.canvas.Pix)
	return snap, nil
}

// ResetCanvas discards the accumulated canvas.
func (s *Studio) ResetCanvas() {
	s.mu.Lock()
	s.canvas = nil
	s.mu.Unlock()
}
