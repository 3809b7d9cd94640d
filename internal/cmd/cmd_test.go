package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/embroidery"
	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/palette"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
presets:
  autumn:
    width: 64
    height: 32
    color_mode: rgb
    palette: ["#8c2d04", "#cc4c02", "#fe9929"]
    grid_size: 8
    noise:
      ridged: true
  tiny:
    width: 16
    height: 16
batch:
  tasks:
    - pattern: plaid
      preset: autumn
      format: webp
    - pattern: julia
      name: julia-wide
      seed: 7
`

func newTestViper(t *testing.T, config string) (*viper.Viper, *cobra.Command) {
	t.Helper()
	v := viper.New()
	if config != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(config)))
	}
	c := &cobra.Command{Use: "test"}
	addSettingsFlags(v, c, "generate")
	return v, c
}

func TestResolveSettingsDefaults(t *testing.T) {
	v, _ := newTestViper(t, "")
	s, ns, err := resolveSettings(v, "generate")
	require.NoError(t, err)
	assert.Equal(t, pattern.DefaultSettings(defaultWidth, defaultHeight), s)
	assert.Equal(t, noise.DefaultSettings(), ns)
}

func TestResolveSettingsFlagsOverrideDefaults(t *testing.T) {
	v, c := newTestViper(t, "")
	require.NoError(t, c.Flags().Set("width", "64"))
	require.NoError(t, c.Flags().Set("scale", "12.5"))
	require.NoError(t, c.Flags().Set("palette", "#000000,#ffffff"))
	require.NoError(t, c.Flags().Set("seamless", "true"))
	require.NoError(t, c.Flags().Set("billowy", "true"))

	s, ns, err := resolveSettings(v, "generate")
	require.NoError(t, err)
	assert.Equal(t, 64, s.Width)
	assert.Equal(t, defaultHeight, s.Height)
	assert.InDelta(t, 12.5, s.Scale, 1e-9)
	assert.Equal(t, []string{"#000000", "#ffffff"}, s.Palette)
	assert.True(t, s.Seamless)
	assert.True(t, ns.Billowy)
	assert.InDelta(t, 1.0, ns.Frequency, 1e-9)
}

func TestResolveSettingsPreset(t *testing.T) {
	v, c := newTestViper(t, testConfig)
	require.NoError(t, c.Flags().Set("preset", "autumn"))
	require.NoError(t, c.Flags().Set("height", "48"))

	s, ns, err := resolveSettings(v, "generate")
	require.NoError(t, err)
	assert.Equal(t, 64, s.Width, "from preset")
	assert.Equal(t, 48, s.Height, "explicit flag wins")
	assert.Equal(t, palette.RGB, s.ColorMode)
	assert.Equal(t, []string{"#8c2d04", "#cc4c02", "#fe9929"}, s.Palette)
	assert.InDelta(t, 8.0, s.GridSize, 1e-9)
	assert.InDelta(t, 50.0, s.Scale, 1e-9, "unset preset keys keep defaults")
	assert.True(t, ns.Ridged)
}

func TestResolveSettingsErrors(t *testing.T) {
	v, c := newTestViper(t, testConfig)
	require.NoError(t, c.Flags().Set("preset", "missing"))
	_, _, err := resolveSettings(v, "generate")
	assert.ErrorContains(t, err, `unknown preset "missing"`)

	v, c = newTestViper(t, "")
	require.NoError(t, c.Flags().Set("width", "0"))
	_, _, err = resolveSettings(v, "generate")
	assert.ErrorIs(t, err, pattern.ErrInvalidSize)

	v, c = newTestViper(t, "")
	require.NoError(t, c.Flags().Set("color-mode", "cmyk"))
	_, _, err = resolveSettings(v, "generate")
	assert.ErrorContains(t, err, "unknown color mode")
}

func TestLoadPresets(t *testing.T) {
	v, _ := newTestViper(t, testConfig)
	presets, err := loadPresets(v)
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, 16, presets["tiny"].Width)
	assert.Equal(t, pattern.DefaultSettings(defaultWidth, defaultHeight).Palette, presets["tiny"].Palette)
}

func TestBuildTasksFromConfig(t *testing.T) {
	v, _ := newTestViper(t, testConfig)
	v.Set("batch.format", "png")
	base := pattern.DefaultSettings(32, 32)

	tasks, err := buildTasks(v, base, noise.DefaultSettings())
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "plaid", tasks[0].Pattern)
	assert.Equal(t, export.WebP, tasks[0].Format)
	assert.Equal(t, 64, tasks[0].Settings.Width)
	assert.True(t, tasks[0].Noise.Ridged)

	assert.Equal(t, "julia-wide", tasks[1].Name)
	assert.Equal(t, export.PNG, tasks[1].Format)
	assert.Equal(t, int64(7), tasks[1].Settings.Seed)
	assert.Equal(t, 32, tasks[1].Settings.Width)
}

func TestBuildTasksGrid(t *testing.T) {
	v := viper.New()
	v.Set("batch.format", "jpeg")
	v.Set("batch.patterns", []string{"stripes", "voronoi"})
	v.Set("batch.count", 3)
	base := pattern.DefaultSettings(32, 32)
	base.Seed = 10

	tasks, err := buildTasks(v, base, noise.DefaultSettings())
	require.NoError(t, err)
	require.Len(t, tasks, 6)
	assert.Equal(t, "stripes_10", tasks[0].Name)
	assert.Equal(t, "stripes_12", tasks[2].Name)
	assert.Equal(t, "voronoi_11", tasks[4].Name)
	assert.Equal(t, export.JPEG, tasks[5].Format)
	assert.Equal(t, int64(10), base.Seed)
}

func TestBuildTasksEveryPattern(t *testing.T) {
	v := viper.New()
	v.Set("batch.format", "png")
	tasks, err := buildTasks(v, pattern.DefaultSettings(8, 8), noise.DefaultSettings())
	require.NoError(t, err)
	assert.Len(t, tasks, len(pattern.Catalog()))
}

func TestBuildTasksErrors(t *testing.T) {
	v := viper.New()
	v.Set("batch.format", "pdf")
	_, err := buildTasks(v, pattern.DefaultSettings(8, 8), noise.DefaultSettings())
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)

	v.Set("batch.format", "png")
	v.Set("batch.patterns", []string{"nope"})
	_, err = buildTasks(v, pattern.DefaultSettings(8, 8), noise.DefaultSettings())
	assert.ErrorIs(t, err, pattern.ErrUnknownPattern)
}

func TestPostProcess(t *testing.T) {
	img, err := pattern.Render("checkerboard", pattern.DefaultSettings(16, 8), noise.DefaultSettings())
	require.NoError(t, err)

	assert.Same(t, img, postProcess(img, postOptions{}, noise.DefaultSettings()))

	out := postProcess(img, postOptions{RepeatX: 3, RepeatY: 2}, noise.DefaultSettings())
	assert.Equal(t, image.Rect(0, 0, 48, 16), out.Bounds())
	assert.Equal(t, img.NRGBAAt(3, 5), out.NRGBAAt(16+3, 8+5))

	graded := postProcess(img, postOptions{Grade: effects.Grade{Brightness: 30}}, noise.DefaultSettings())
	assert.Equal(t, img.Bounds(), graded.Bounds())
	assert.NotEqual(t, img.Pix, graded.Pix)

	dyed := postProcess(img, postOptions{Tint: "#ff0000", TintStrength: 1}, noise.DefaultSettings())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, dyed.NRGBAAt(4, 4))
	assert.Same(t, img, postProcess(img, postOptions{Tint: "#ff0000"}, noise.DefaultSettings()))
}

func TestPuffPathFor(t *testing.T) {
	assert.Equal(t, "out/plaid_puff.png", puffPathFor("out/plaid.jpg"))
	assert.Equal(t, "plaid_puff.png", puffPathFor("plaid"))
}

func TestCatalogOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCatalog(&buf))
	out := buf.String()
	assert.Contains(t, out, "perlin_noise")
	assert.Contains(t, out, "multiply")
	assert.Contains(t, out, "webp")

	buf.Reset()
	require.NoError(t, writeCatalogJSON(&buf))
	var c catalog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &c))
	assert.Len(t, c.Patterns, len(pattern.Catalog()))
	assert.Contains(t, c.BlendModes, "source-over")
}

func TestParseLayerFlag(t *testing.T) {
	l, err := parseLayerFlag("veins:multiply:0.25")
	require.NoError(t, err)
	assert.Equal(t, "veins", l.Source)
	assert.Equal(t, "multiply", l.BlendMode)
	require.NotNil(t, l.Opacity)
	assert.InDelta(t, 0.25, *l.Opacity, 1e-9)

	l, err = parseLayerFlag("paper.png")
	require.NoError(t, err)
	assert.Empty(t, l.BlendMode)
	assert.Nil(t, l.Opacity)

	for _, bad := range []string{"", "a:b:c:d", "plaid:screen:2", "plaid:screen:x"} {
		_, err := parseLayerFlag(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildStack(t *testing.T) {
	dir := t.TempDir()
	paper := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range paper.Pix {
		paper.Pix[i] = 200
	}
	paperPath := dir + "/paper.png"
	require.NoError(t, export.WriteFile(paperPath, paper, 0))

	v := viper.New()
	v.Set("compose.background", "#ffffff")
	half := 0.5
	layers := []composeLayer{
		{Source: "checkerboard"},
		{Source: paperPath, BlendMode: "multiply", Opacity: &half},
		{Source: "stripes", Hidden: true},
	}
	base := pattern.DefaultSettings(16, 16)
	stack, err := buildStack(v, layers, base, noise.DefaultSettings())
	require.NoError(t, err)
	require.Len(t, stack.Layers, 3)

	assert.Equal(t, "source-over", stack.Layers[0].Options.BlendMode)
	assert.Equal(t, "paper.png", stack.Layers[1].Name)
	assert.Equal(t, "multiply", stack.Layers[1].Options.BlendMode)
	assert.InDelta(t, 0.5, stack.Layers[1].Options.Opacity, 1e-9)
	assert.False(t, stack.Layers[2].Visible)

	img, err := stack.Flatten(16, 16)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), img.NRGBAAt(12, 12).A)

	_, err = buildStack(v, []composeLayer{{Source: "missing.png"}}, base, noise.DefaultSettings())
	assert.Error(t, err)
}

func TestBuildStackAppliesMask(t *testing.T) {
	base := pattern.DefaultSettings(16, 16)
	base.GridSize = 4
	layers := []composeLayer{{Source: "stripes", Mask: "checkerboard"}}

	stack, err := buildStack(viper.New(), layers, base, noise.DefaultSettings())
	require.NoError(t, err)
	require.Len(t, stack.Layers, 1)

	img := stack.Layers[0].Image
	assert.Equal(t, uint8(255), img.NRGBAAt(1, 1).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(5, 1).A)
	assert.Equal(t, uint8(255), img.NRGBAAt(5, 5).A)

	_, err = buildStack(viper.New(), []composeLayer{{Source: "stripes", Mask: "missing.png"}}, base, noise.DefaultSettings())
	assert.Error(t, err)
}

func TestStitchParamsFromFlagsAndConfig(t *testing.T) {
	v := viper.New()
	c := &cobra.Command{Use: "test"}
	addStitchFlags(v, c, "stitch")

	p, err := stitchParams(v, "stitch")
	require.NoError(t, err)
	assert.Equal(t, embroidery.DefaultParams(), p)

	require.NoError(t, c.Flags().Set("strategy", "satin"))
	require.NoError(t, c.Flags().Set("passes", "3"))
	v.Set("stitch.embroidery.mm_per_px", 0.5)
	p, err = stitchParams(v, "stitch")
	require.NoError(t, err)
	assert.Equal(t, embroidery.Satin, p.Strategy)
	assert.Equal(t, 3, p.Passes)
	assert.InDelta(t, 0.5, p.MMPerPx, 1e-12)

	require.NoError(t, c.Flags().Set("strategy", "cross"))
	_, err = stitchParams(v, "stitch")
	require.ErrorIs(t, err, embroidery.ErrUnknownStrategy)
}

func TestPlanPatternWritesDSTAndJSON(t *testing.T) {
	dir := t.TempDir()
	s := pattern.DefaultSettings(128, 128)
	p := embroidery.DefaultParams()

	plan, err := planPattern("veins", s, noise.DefaultSettings(), p)
	require.NoError(t, err)
	require.NotZero(t, plan.Info.StitchCount)
	assert.GreaterOrEqual(t, plan.Info.Paths, 10)

	dst := filepath.Join(dir, "out", "veins.dst")
	require.NoError(t, writePlan(dst, "veins", plan, p))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("LA:veins")))

	got, err := embroidery.ReadDST(bytes.NewReader(data), p.MMPerPx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(got), plan.Info.StitchCount)

	js := filepath.Join(dir, "veins.json")
	require.NoError(t, writePlan(js, "veins", plan, p))
	data, err = os.ReadFile(js)
	require.NoError(t, err)
	var decoded embroidery.Plan
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, plan.Info, decoded.Info)

	bad := filepath.Join(dir, "veins.txt")
	require.Error(t, writePlan(bad, "veins", plan, p))
	assert.NoFileExists(t, bad)

	_, err = planPattern("plaid", s, noise.DefaultSettings(), p)
	require.ErrorIs(t, err, pattern.ErrNoPaths)
	assert.Contains(t, err.Error(), "dragon_curve")
}

func TestUpscaleFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tile.png")
	src := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for i := range src.Pix {
		src.Pix[i] = 180
	}
	require.NoError(t, export.WriteFile(in, src, 0))

	assert.Equal(t, filepath.Join(dir, "tile_x3.png"), upscaledPath(in, 3))

	out := upscaledPath(in, 3)
	require.NoError(t, upscaleFile(in, out, 3, export.DefaultQuality))
	big, err := export.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 24, 18), big.Bounds())

	require.ErrorIs(t, upscaleFile(in, out, 8, 0), effects.ErrInvalidScale)
	require.ErrorIs(t, upscaleFile(in, filepath.Join(dir, "x.bmp"), 2, 0), export.ErrUnsupportedFormat)
}
