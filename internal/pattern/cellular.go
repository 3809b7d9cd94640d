package pattern

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/palette"
	"github.com/MeKo-Tech/textilegen/internal/prng"
	"github.com/paulmach/orb"
)

// cellColors returns one color per seed. Grayscale cells get a random
// level; palette modes cycle through the palette.
func cellColors(s Settings, stream string, n int) []color.NRGBA {
	out := make([]color.NRGBA, n)
	if !s.mode().NeedsPalette() {
		levels := prng.Floats(n, stream, s.Seed, "levels")
		for i := range out {
			out[i] = palette.Gray(levels[i])
		}
		return out
	}
	for i := range out {
		out[i] = palette.At(s.Palette, i)
	}
	return out
}

func renderVoronoi(buf *image.NRGBA, s Settings, _ noise.Settings) {
	b := buf.Bounds()
	w, h := b.Dx(), b.Dy()
	n := s.cellCount(20)
	grid := newPointGrid(scatter("voronoi", s.Seed, n, w, h), w, h)
	colors := cellColors(s, "voronoi", n)

	fill(buf, func(x, y int) color.NRGBA {
		_, _, idx := grid.nearest(float64(x)+0.5, float64(y)+0.5)
		return colors[idx]
	})
}

// renderDelaunay triangulates a jittered lattice. Each lattice quad is split
// along an alternating diagonal and the two triangles are filled.
func renderDelaunay(buf *image.NRGBA, s Settings, _ noise.Settings) {
	c, w, h := newCanvas(buf)
	g := s.gridSize() * 2
	cols := int(w/g) + 2
	rows := int(h/g) + 2

	rs := prng.NewStream("delaunay", s.Seed)
	pts := make([]orb.Point, cols*rows)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			jx, jy := 0.0, 0.0
			if i > 0 && i < cols-1 {
				jx = rs.Range(-0.35, 0.35) * g
			}
			if j > 0 && j < rows-1 {
				jy = rs.Range(-0.35, 0.35) * g
			}
			pts[j*cols+i] = orb.Point{float64(i)*g + jx, float64(j)*g + jy}
		}
	}

	for j := 0; j < rows-1; j++ {
		for i := 0; i < cols-1; i++ {
			a := pts[j*cols+i]
			b := pts[j*cols+i+1]
			cc := pts[(j+1)*cols+i+1]
			d := pts[(j+1)*cols+i]

			var t1, t2 orb.Ring
			if (i+j)%2 == 0 {
				t1 = orb.Ring{a, b, cc, a}
				t2 = orb.Ring{a, cc, d, a}
			} else {
				t1 = orb.Ring{a, b, d, a}
				t2 = orb.Ring{b, cc, d, b}
			}
			for _, t := range []orb.Ring{t1, t2} {
				c.FillPolygon(orb.Polygon{t}, mapColor(s, rs.Float64()))
				c.StrokeRing(t, 1, paper)
			}
		}
	}
}
