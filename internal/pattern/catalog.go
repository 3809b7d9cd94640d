// Package pattern renders procedural textile patterns into pixel buffers.
//
// Every renderer is a pure function of its settings: it fills the buffer it
// is given, keeps no state between calls, and clips anything that falls
// outside the buffer.
package pattern

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/palette"
)

// Category groups patterns in the catalog.
type Category string

const (
	CategoryNoise     Category = "noise"
	CategoryGeometric Category = "geometric"
	CategoryOrganic   Category = "organic"
	CategoryFractal   Category = "fractal"
	CategoryCellular  Category = "cellular"
	CategoryTextile   Category = "textile"
)

// Descriptor is a static catalog entry.
type Descriptor struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// Renderer fills buf in place. buf dimensions match s.Width×s.Height.
type Renderer func(buf *image.NRGBA, s Settings, ns noise.Settings)

type entry struct {
	desc   Descriptor
	render Renderer
}

var registry = map[string]entry{}

func register(id, name string, cat Category, r Renderer) {
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("pattern %q registered twice", id))
	}
	registry[id] = entry{desc: Descriptor{ID: id, Name: name, Category: cat}, render: r}
}

func init() {
	register("perlin_noise", "Perlin Noise", CategoryNoise, renderPerlin)
	register("simplex_noise", "Simplex Noise", CategoryNoise, renderSimplex)
	register("gradient_noise", "Gradient Noise", CategoryNoise, renderGradient)
	register("fbm_ridged", "Ridged Fractal", CategoryNoise, renderRidged)
	register("worley_noise", "Worley Noise", CategoryNoise, renderWorley)
	register("cells", "Cells", CategoryNoise, renderCells)

	register("geometric_grid", "Geometric Grid", CategoryGeometric, renderGrid)
	register("hexagonal", "Hexagonal", CategoryGeometric, renderHexagonal)
	register("triangular", "Triangular", CategoryGeometric, renderTriangular)
	register("circular", "Circular", CategoryGeometric, renderCircular)

	register("organic_flow", "Organic Flow", CategoryOrganic, renderFlow)
	register("veins", "Veins", CategoryOrganic, renderVeins)

	register("mandelbrot", "Mandelbrot", CategoryFractal, renderMandelbrot)
	register("julia", "Julia Set", CategoryFractal, renderJulia)
	register("dragon_curve", "Dragon Curve", CategoryFractal, renderDragon)

	register("voronoi", "Voronoi", CategoryCellular, renderVoronoi)
	register("delaunay", "Delaunay", CategoryCellular, renderDelaunay)

	register("stripes", "Stripes", CategoryTextile, renderStripes)
	register("checkerboard", "Checkerboard", CategoryTextile, renderCheckerboard)
	register("plaid", "Plaid", CategoryTextile, renderPlaid)
	register("watercolor", "Watercolor Wash", CategoryTextile, renderWatercolor)
}

// Catalog lists every pattern ordered by category then id.
func Catalog() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, e := range registry {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Lookup returns the descriptor and renderer registered under id.
func Lookup(id string) (Descriptor, Renderer, bool) {
	e, ok := registry[id]
	if !ok {
		return Descriptor{}, nil, false
	}
	return e.desc, e.render, true
}

// Render validates the settings, allocates a fresh buffer and fills it.
// Ownership of the returned buffer passes to the caller.
func Render(id string, s Settings, ns noise.Settings) (*image.NRGBA, error) {
	_, render, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, id)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	buf := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	render(buf, s, ns)
	return buf, nil
}

// RenderInto fills an existing buffer, which must match the settings' size.
func RenderInto(buf *image.NRGBA, id string, s Settings, ns noise.Settings) error {
	if buf == nil {
		return ErrInvalidSize
	}
	if b := buf.Bounds(); b.Dx() != s.Width || b.Dy() != s.Height {
		return fmt.Errorf("buffer %dx%d does not match settings %dx%d", b.Dx(), b.Dy(), s.Width, s.Height)
	}
	_, render, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, id)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	render(buf, s, ns)
	return nil
}

// fill writes fn(x, y) into every pixel, in buffer-local coordinates.
func fill(buf *image.NRGBA, fn func(x, y int) color.NRGBA) {
	b := buf.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := buf.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < b.Dx(); x++ {
			c := fn(x, y)
			i := row + x*4
			buf.Pix[i+0] = c.R
			buf.Pix[i+1] = c.G
			buf.Pix[i+2] = c.B
			buf.Pix[i+3] = c.A
		}
	}
}

// ink is the stroke color of the i-th element: white in grayscale mode,
// otherwise the palette entry.
func ink(s Settings, i int) color.NRGBA {
	if !s.mode().NeedsPalette() || len(s.Palette) == 0 {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return palette.At(s.Palette, i)
}

var paper = color.NRGBA{A: 255}

func mapColor(s Settings, v float64) color.NRGBA {
	return palette.MapToColor(v, s.mode(), s.Palette)
}
