package pattern

import (
	"image"
	"math"
	"testing"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/palette"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gray(img *image.NRGBA, x, y int) uint8 {
	return img.NRGBAAt(x, y).R
}

func TestCatalogListsEveryPattern(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, 21)

	seen := map[string]bool{}
	for i, d := range cat {
		assert.NotEmpty(t, d.Name, d.ID)
		assert.False(t, seen[d.ID], "duplicate %s", d.ID)
		seen[d.ID] = true
		if i > 0 {
			prev := cat[i-1]
			assert.True(t, prev.Category < d.Category || (prev.Category == d.Category && prev.ID < d.ID))
		}
	}
	for _, id := range []string{"perlin_noise", "geometric_grid", "mandelbrot", "voronoi", "plaid"} {
		assert.True(t, seen[id], id)
	}
}

func TestRenderRejectsInvalidSettings(t *testing.T) {
	ns := noise.DefaultSettings()

	_, err := Render("perlin_noise", DefaultSettings(0, 10), ns)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = Render("perlin_noise", DefaultSettings(MaxDimension+1, 10), ns)
	require.ErrorIs(t, err, ErrTooLarge)

	s := DefaultSettings(8, 8)
	s.ColorMode = palette.RGB
	s.Palette = nil
	_, err = Render("perlin_noise", s, ns)
	require.ErrorIs(t, err, ErrEmptyPalette)

	_, err = Render("no_such_pattern", DefaultSettings(8, 8), ns)
	require.ErrorIs(t, err, ErrUnknownPattern)
}

func TestValidateBoundsPatternKnobs(t *testing.T) {
	tests := []struct {
		name  string
		apply func(s *Settings)
		ok    bool
	}{
		{"defaults", func(s *Settings) {}, true},
		{"zero knobs use defaults", func(s *Settings) { s.GridSize, s.LineWidth, s.CellCount = 0, 0, 0 }, true},
		{"max cell count", func(s *Settings) { s.CellCount = MaxCellCount }, true},
		{"huge cell count", func(s *Settings) { s.CellCount = 1 << 62 }, false},
		{"negative cell count", func(s *Settings) { s.CellCount = -1 }, false},
		{"tiny grid", func(s *Settings) { s.GridSize = 1e-9 }, false},
		{"negative grid", func(s *Settings) { s.GridSize = -4 }, false},
		{"nan grid", func(s *Settings) { s.GridSize = math.NaN() }, false},
		{"wide line", func(s *Settings) { s.LineWidth = MaxLineWidth + 1 }, false},
		{"negative line", func(s *Settings) { s.LineWidth = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings(64, 64)
			tt.apply(&s)
			err := s.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidKnob)
		})
	}
}

func TestValidateRejectsDenseGridForLargeBuffers(t *testing.T) {
	s := DefaultSettings(64, 64)
	s.GridSize = 1
	require.NoError(t, s.Validate())

	s = DefaultSettings(MaxDimension, MaxDimension)
	s.GridSize = 1
	require.ErrorIs(t, s.Validate(), ErrInvalidKnob)

	s.GridSize = 20
	require.NoError(t, s.Validate())
}

func TestRenderRejectsHugeCellCount(t *testing.T) {
	s := DefaultSettings(8, 8)
	s.CellCount = 4611686018427387904
	_, err := Render("voronoi", s, noise.DefaultSettings())
	require.ErrorIs(t, err, ErrInvalidKnob)
}

func TestRenderIntoChecksSize(t *testing.T) {
	buf := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	err := RenderInto(buf, "stripes", DefaultSettings(12, 10), noise.DefaultSettings())
	require.Error(t, err)

	require.NoError(t, RenderInto(buf, "stripes", DefaultSettings(10, 10), noise.DefaultSettings()))
}

func TestEveryPatternFillsBuffer(t *testing.T) {
	ns := noise.DefaultSettings()
	for _, d := range Catalog() {
		t.Run(d.ID, func(t *testing.T) {
			for _, mode := range []palette.Mode{palette.Grayscale, palette.RGB} {
				s := DefaultSettings(48, 32)
				s.ColorMode = mode
				img, err := Render(d.ID, s, ns)
				require.NoError(t, err)
				require.Equal(t, image.Rect(0, 0, 48, 32), img.Bounds())
				for i := 3; i < len(img.Pix); i += 4 {
					require.Equal(t, uint8(255), img.Pix[i], "pixel %d not opaque", i/4)
				}
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	ns := noise.DefaultSettings()
	for _, d := range Catalog() {
		s := DefaultSettings(40, 40)
		s.ColorMode = palette.HSV
		a, err := Render(d.ID, s, ns)
		require.NoError(t, err)
		b, err := Render(d.ID, s, ns)
		require.NoError(t, err)
		assert.Equal(t, a.Pix, b.Pix, d.ID)
	}
}

func TestSeedChangesOutput(t *testing.T) {
	ns := noise.DefaultSettings()
	for _, id := range []string{"voronoi", "organic_flow", "simplex_noise", "delaunay"} {
		s := DefaultSettings(40, 40)
		a, err := Render(id, s, ns)
		require.NoError(t, err)
		s.Seed++
		b, err := Render(id, s, ns)
		require.NoError(t, err)
		assert.NotEqual(t, a.Pix, b.Pix, id)
	}
}

func TestPerlinNoiseSamplesEvaluator(t *testing.T) {
	s := DefaultSettings(24, 16)
	img, err := Render("perlin_noise", s, noise.DefaultSettings())
	require.NoError(t, err)

	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			raw := noise.Evaluate(float64(x)/s.Scale, float64(y)/s.Scale, s.Octaves, s.Persistence, s.Lacunarity, float64(s.Seed))
			want := palette.MapToColor(noise.Normalize(raw, s.Octaves, s.Persistence), palette.Grayscale, nil)
			require.Equal(t, want, img.NRGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}

	ridged := noise.DefaultSettings()
	ridged.Ridged = true
	shaped, err := Render("perlin_noise", s, ridged)
	require.NoError(t, err)
	assert.NotEqual(t, img.Pix, shaped.Pix)
}

func TestGeometricGridLines(t *testing.T) {
	s := DefaultSettings(64, 64)
	s.GridSize = 20
	s.LineWidth = 2
	img, err := Render("geometric_grid", s, noise.DefaultSettings())
	require.NoError(t, err)

	assert.Equal(t, uint8(255), gray(img, 20, 20))
	assert.Equal(t, uint8(255), gray(img, 40, 7))
	assert.Equal(t, uint8(255), gray(img, 0, 33))
	assert.Equal(t, uint8(0), gray(img, 10, 10))
	assert.Equal(t, uint8(0), gray(img, 30, 50))
}

func TestMandelbrotCenterDarkerThanCorner(t *testing.T) {
	img, err := Render("mandelbrot", DefaultSettings(100, 100), noise.DefaultSettings())
	require.NoError(t, err)
	assert.Less(t, gray(img, 50, 50), gray(img, 0, 0))
	assert.Equal(t, uint8(0), gray(img, 50, 50))
}

func TestJuliaUsesConstant(t *testing.T) {
	ns := noise.DefaultSettings()
	s := DefaultSettings(60, 60)
	a, err := Render("julia", s, ns)
	require.NoError(t, err)

	s.JuliaReal, s.JuliaImag = 0.285, 0.01
	b, err := Render("julia", s, ns)
	require.NoError(t, err)
	assert.NotEqual(t, a.Pix, b.Pix)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, 50, escape(0, 0, 0, 0, 50))
	assert.Equal(t, 1, escape(0, 0, 2, 2, 50))
	assert.InDelta(t, 0.0, escapeValue(50, 50), 1e-12)
	assert.InDelta(t, 1.0, escapeValue(0, 50), 1e-12)
}

func TestDragonTurns(t *testing.T) {
	assert.Empty(t, dragonTurns(0))
	assert.Equal(t, []int8{1}, dragonTurns(1))
	assert.Equal(t, []int8{1, 1, -1}, dragonTurns(2))
	assert.Equal(t, []int8{1, 1, -1, 1, 1, -1, -1}, dragonTurns(3))
	assert.Len(t, dragonTurns(10), 1023)
}

func TestFitPathStaysInside(t *testing.T) {
	ls := fitPath(dragonPath(dragonTurns(8)), 100, 50, 5)
	b := ls.Bound()
	assert.GreaterOrEqual(t, b.Min[0], 4.999)
	assert.GreaterOrEqual(t, b.Min[1], 4.999)
	assert.LessOrEqual(t, b.Max[0], 95.001)
	assert.LessOrEqual(t, b.Max[1], 45.001)
}

func TestPointGridMatchesBruteForce(t *testing.T) {
	pts := scatter("test", 7, 37, 120, 80)
	g := newPointGrid(pts, 120, 80)

	for y := 0.5; y < 80; y += 7 {
		for x := 0.5; x < 120; x += 5 {
			d1, d2, idx := g.nearest(x, y)

			b1, b2 := math.Inf(1), math.Inf(1)
			for _, p := range pts {
				d := math.Hypot(p[0]-x, p[1]-y)
				if d < b1 {
					b1, b2 = d, b1
				} else if d < b2 {
					b2 = d
				}
			}
			require.InDelta(t, b1, d1, 1e-9)
			require.InDelta(t, b2, d2, 1e-9)
			require.InDelta(t, b1, math.Hypot(pts[idx][0]-x, pts[idx][1]-y), 1e-9)
		}
	}
}

func TestScatterStaysInBounds(t *testing.T) {
	for _, p := range scatter("bounds", 3, 200, 30, 10) {
		assert.True(t, p[0] >= 0 && p[0] < 30 && p[1] >= 0 && p[1] < 10, "%v", p)
	}
}

func TestCheckerboardAlternates(t *testing.T) {
	s := DefaultSettings(40, 40)
	s.GridSize = 10
	img, err := Render("checkerboard", s, noise.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, uint8(255), gray(img, 5, 5))
	assert.Equal(t, uint8(0), gray(img, 15, 5))
	assert.Equal(t, uint8(0), gray(img, 5, 15))
	assert.Equal(t, uint8(255), gray(img, 15, 15))
}

func TestStripesUsePalette(t *testing.T) {
	s := DefaultSettings(30, 4)
	s.GridSize = 10
	s.ColorMode = palette.RGB
	s.Palette = []string{"#ff0000", "#00ff00", "#0000ff"}
	img, err := Render("stripes", s, noise.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, palette.ParseHex("#ff0000"), img.NRGBAAt(2, 1))
	assert.Equal(t, palette.ParseHex("#00ff00"), img.NRGBAAt(12, 1))
	assert.Equal(t, palette.ParseHex("#0000ff"), img.NRGBAAt(25, 1))
}

func TestSettAt(t *testing.T) {
	st := sett{widths: []int{2, 3}, period: 5}
	assert.Equal(t, 0, st.at(0))
	assert.Equal(t, 0, st.at(1))
	assert.Equal(t, 1, st.at(2))
	assert.Equal(t, 1, st.at(4))
	assert.Equal(t, 0, st.at(5))
}

func TestSeamlessSimplexWraps(t *testing.T) {
	s := DefaultSettings(64, 64)
	s.Seamless = true
	s.Scale = 16
	img, err := Render("simplex_noise", s, noise.DefaultSettings())
	require.NoError(t, err)

	// Opposite edges should be as close as neighbouring columns.
	edge, inner := 0, 0
	for y := 0; y < 64; y++ {
		edge += absDiff(gray(img, 0, y), gray(img, 63, y))
		inner += absDiff(gray(img, 31, y), gray(img, 32, y))
	}
	assert.Less(t, float64(edge), float64(inner)*3+64)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestDelaunayDrawsOnCanvas(t *testing.T) {
	s := DefaultSettings(50, 50)
	img, err := Render("delaunay", s, noise.DefaultSettings())
	require.NoError(t, err)

	levels := map[uint8]bool{}
	for y := 0; y < 50; y += 3 {
		for x := 0; x < 50; x += 3 {
			levels[gray(img, x, y)] = true
		}
	}
	assert.Greater(t, len(levels), 3)
}

func BenchmarkRenderPerlin(b *testing.B) {
	s := DefaultSettings(256, 256)
	ns := noise.DefaultSettings()
	for i := 0; i < b.N; i++ {
		if _, err := Render("perlin_noise", s, ns); err != nil {
			b.Fatal(err)
		}
	}
}

func TestDecodeRequestKeepsDefaults(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"pattern":"plaid","settings":{"width":64,"seed":9},"noise":{"ridged":true}}`), 512, 512)
	require.NoError(t, err)

	want := DefaultSettings(512, 512)
	want.Width = 64
	want.Seed = 9
	assert.Equal(t, "plaid", req.Pattern)
	assert.Equal(t, want, req.Settings)
	assert.True(t, req.Noise.Ridged)
	assert.InDelta(t, 1.0, req.Noise.Frequency, 1e-12)

	req, err = DecodeRequest([]byte(`{"pattern":"stripes"}`), 32, 16)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(32, 16), req.Settings)
	assert.Equal(t, noise.DefaultSettings(), req.Noise)

	_, err = DecodeRequest([]byte(`{`), 8, 8)
	require.Error(t, err)
}

func TestPathsFollowStrokedPatterns(t *testing.T) {
	s := DefaultSettings(128, 96)
	ns := noise.DefaultSettings()

	flow, err := Paths("organic_flow", s, ns)
	require.NoError(t, err)
	require.Len(t, flow, walkCount)
	for _, ls := range flow {
		assert.Len(t, ls, walkSteps+1)
	}

	again, err := Paths("organic_flow", s, ns)
	require.NoError(t, err)
	assert.Equal(t, flow, again)

	veins, err := Paths("veins", s, ns)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(veins), walkCount)

	dragon, err := Paths("dragon_curve", s, ns)
	require.NoError(t, err)
	require.NotEmpty(t, dragon)
	for _, ls := range dragon {
		b := ls.Bound()
		assert.GreaterOrEqual(t, b.Min[0], 0.0)
		assert.GreaterOrEqual(t, b.Min[1], 0.0)
		assert.LessOrEqual(t, b.Max[0], 128.0)
		assert.LessOrEqual(t, b.Max[1], 96.0)
	}

	assert.Equal(t, []string{"dragon_curve", "organic_flow", "veins"}, PathPatterns())
}

func TestPathsRejectsFilledPatterns(t *testing.T) {
	s := DefaultSettings(32, 32)
	_, err := Paths("voronoi", s, noise.DefaultSettings())
	require.ErrorIs(t, err, ErrNoPaths)

	_, err = Paths("nope", s, noise.DefaultSettings())
	require.ErrorIs(t, err, ErrUnknownPattern)

	s.Width = 0
	_, err = Paths("veins", s, noise.DefaultSettings())
	require.ErrorIs(t, err, ErrInvalidSize)
}
