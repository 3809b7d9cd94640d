package library

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/MeKo-Tech/textilegen/internal/studio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texture(t *testing.T, id string, w, h int, created time.Time) *studio.Texture {
	t.Helper()
	st := pattern.DefaultSettings(w, h)
	st.GridSize = 8
	img, err := pattern.Render("checkerboard", st, noise.DefaultSettings())
	require.NoError(t, err)
	return &studio.Texture{
		ID:        id,
		Name:      "Checkerboard " + id,
		Pattern:   "checkerboard",
		Settings:  st,
		Noise:     noise.DefaultSettings(),
		CreatedAt: created,
		Data:      img,
	}
}

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")
	s, err := Open(path, Metadata{Name: "Test Library", Version: "1"})
	require.NoError(t, err)
	return s, path
}

func TestAddFlushGet(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tex := texture(t, "a", 40, 20, created)
	require.NoError(t, s.Add(tex))

	_, err := s.Get("a")
	require.ErrorIs(t, err, ErrNotFound, "unflushed textures are invisible")

	require.NoError(t, s.Flush())
	rec, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "checkerboard", rec.Pattern)
	assert.Equal(t, 40, rec.Width)
	assert.Equal(t, 20, rec.Height)
	assert.Equal(t, tex.Settings, rec.Settings)
	assert.Equal(t, tex.Noise, rec.Noise)
	assert.True(t, created.Equal(rec.CreatedAt))

	img, err := s.Image("a")
	require.NoError(t, err)
	assert.Equal(t, tex.Data.Pix, img.Pix)
}

func TestThumbnail(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()

	require.NoError(t, s.Add(texture(t, "big", 512, 256, time.Now())))
	require.NoError(t, s.Flush())

	data, err := s.Thumbnail("big")
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ThumbnailSize, cfg.Width)
	assert.Equal(t, ThumbnailSize/2, cfg.Height)
}

func TestBatchFlushesWhenFull(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < DefaultBatchSize; i++ {
		id := string(rune('a' + i))
		require.NoError(t, s.Add(texture(t, id, 8, 8, base.Add(time.Duration(i)*time.Minute))))
	}

	recs, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, recs, DefaultBatchSize)
	assert.Equal(t, string(rune('a'+DefaultBatchSize-1)), recs[0].ID, "newest first")

	recs, err = s.List(3)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestDelete(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()

	require.NoError(t, s.Add(texture(t, "gone", 8, 8, time.Now())))
	require.NoError(t, s.Delete("gone"))
	_, err := s.Get("gone")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Delete("gone"), ErrNotFound)
}

func TestReaderSeesClosedStore(t *testing.T) {
	s, path := openStore(t)
	require.NoError(t, s.Add(texture(t, "kept", 16, 16, time.Now())))
	require.NoError(t, s.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	meta, err := r.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Test Library", meta.Name)
	assert.Equal(t, "1", meta.Version)

	data, err := r.PNG("kept")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	_, err = r.PNG("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddRejectsEmptyTexture(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()
	require.Error(t, s.Add(nil))
	require.Error(t, s.Add(&studio.Texture{ID: "x"}))
}

func TestImageConvertsToNRGBA(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()

	tex := texture(t, "alpha", 4, 4, time.Now())
	tex.Data.SetNRGBA(1, 1, color.NRGBA{R: 200, A: 100})
	require.NoError(t, s.Add(tex))
	require.NoError(t, s.Flush())

	img, err := s.Image("alpha")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 200, A: 100}, img.NRGBAAt(1, 1))
}
