package studio

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRecordsHistory(t *testing.T) {
	s := New(Config{}, nil)
	ctx := context.Background()

	var last *Texture
	for i := 0; i < 15; i++ {
		st := pattern.DefaultSettings(16, 16)
		st.Seed = int64(i)
		tex, err := s.Generate(ctx, "perlin_noise", st, noise.DefaultSettings())
		require.NoError(t, err)
		last = tex
	}

	h := s.History()
	require.Len(t, h, 10)
	assert.Same(t, last, h[0])
	for i, tex := range h {
		assert.Equal(t, int64(14-i), tex.Settings.Seed)
	}

	_, err := uuid.Parse(last.ID)
	require.NoError(t, err)
	assert.Equal(t, "perlin_noise", last.Pattern)
	assert.Contains(t, last.Name, "Perlin Noise")
	assert.Equal(t, image.Rect(0, 0, 16, 16), last.Data.Bounds())
}

func TestGenerateMatchesRenderer(t *testing.T) {
	s := New(Config{}, nil)
	st := pattern.DefaultSettings(20, 10)
	tex, err := s.Generate(context.Background(), "checkerboard", st, noise.DefaultSettings())
	require.NoError(t, err)

	want, err := pattern.Render("checkerboard", st, noise.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, want.Pix, tex.Data.Pix)
}

func TestGenerateWithoutOpacityIsOpaque(t *testing.T) {
	s := New(Config{}, nil)
	st := pattern.Settings{Width: 16, Height: 16, GridSize: 4}
	tex, err := s.Generate(context.Background(), "checkerboard", st, noise.Settings{})
	require.NoError(t, err)

	want, err := pattern.Render("checkerboard", st, noise.Settings{})
	require.NoError(t, err)
	assert.Equal(t, want.Pix, tex.Data.Pix)

	latest, ok := s.Handoff().Get(HandoffCanvas)
	require.True(t, ok)
	assert.Equal(t, want.Pix, latest.(*image.NRGBA).Pix)
}

func TestGenerateHonoursExplicitOpacity(t *testing.T) {
	s := New(Config{}, nil)
	st := pattern.DefaultSettings(8, 8)
	half := 0.5
	st.Opacity = &half
	tex, err := s.Generate(context.Background(), "checkerboard", st, noise.DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 128, int(tex.Data.NRGBAAt(0, 0).A), 1)
}

func TestGenerateBusy(t *testing.T) {
	s := New(Config{}, nil)
	s.busy.Store(true)
	_, err := s.Generate(context.Background(), "stripes", pattern.DefaultSettings(4, 4), noise.DefaultSettings())
	require.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, s.History())

	s.busy.Store(false)
	_, err = s.Generate(context.Background(), "stripes", pattern.DefaultSettings(4, 4), noise.DefaultSettings())
	require.NoError(t, err)
	assert.False(t, s.Busy())
}

func TestGenerateChecksContextBeforeStart(t *testing.T) {
	s := New(Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Generate(ctx, "stripes", pattern.DefaultSettings(4, 4), noise.DefaultSettings())
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateErrors(t *testing.T) {
	s := New(Config{}, nil)
	ctx := context.Background()

	_, err := s.Generate(ctx, "nope", pattern.DefaultSettings(4, 4), noise.DefaultSettings())
	require.ErrorIs(t, err, pattern.ErrUnknownPattern)

	_, err = s.Generate(ctx, "stripes", pattern.DefaultSettings(0, 4), noise.DefaultSettings())
	require.ErrorIs(t, err, pattern.ErrInvalidSize)

	assert.Empty(t, s.History())
	assert.False(t, s.Busy())
}

func TestKeepCanvasLayersResults(t *testing.T) {
	s := New(Config{KeepCanvas: true}, nil)
	ctx := context.Background()

	st := pattern.DefaultSettings(20, 20)
	st.GridSize = 10
	_, err := s.Generate(ctx, "checkerboard", st, noise.DefaultSettings())
	require.NoError(t, err)

	st.BlendMode = "destination-over"
	tex, err := s.Generate(ctx, "stripes", st, noise.DefaultSettings())
	require.NoError(t, err)

	// The opaque checkerboard stays on top of everything drawn beneath it.
	assert.Equal(t, color.NRGBA{A: 255}, tex.Data.NRGBAAt(15, 5))

	s.ResetCanvas()
	tex, err = s.Generate(ctx, "stripes", st, noise.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, tex.Data.NRGBAAt(5, 15))
}

func TestHistoryBuffersAreSnapshots(t *testing.T) {
	s := New(Config{KeepCanvas: true}, nil)
	ctx := context.Background()
	st := pattern.DefaultSettings(8, 8)

	first, err := s.Generate(ctx, "stripes", st, noise.DefaultSettings())
	require.NoError(t, err)
	before := append([]uint8(nil), first.Data.Pix...)

	st.BlendMode = "difference"
	_, err = s.Generate(ctx, "checkerboard", st, noise.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, before, first.Data.Pix)
}

func TestGeneratePublishesHandoff(t *testing.T) {
	puff := effects.DefaultPuffParams()
	s := New(Config{Puff: &puff}, nil)
	ch, cancel := s.Handoff().Subscribe(HandoffCanvas)
	defer cancel()

	tex, err := s.Generate(context.Background(), "geometric_grid", pattern.DefaultSettings(32, 32), noise.DefaultSettings())
	require.NoError(t, err)

	select {
	case img := <-ch:
		assert.Same(t, tex.Data, img)
	case <-time.After(time.Second):
		t.Fatal("no canvas notification")
	}

	img, ok := s.Handoff().Get(HandoffPuff)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())
}

func TestHandoffKeepsNewest(t *testing.T) {
	h := NewHandoff()
	ch, cancel := h.Subscribe("x")

	a := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	b := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	h.Publish("x", a)
	h.Publish("x", b)

	got := <-ch
	assert.Equal(t, b.Bounds(), got.Bounds())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	h.Publish("x", a)
	img, ok := h.Get("x")
	require.True(t, ok)
	assert.Equal(t, a.Bounds(), img.Bounds())

	_, ok = h.Get("missing")
	assert.False(t, ok)
}
