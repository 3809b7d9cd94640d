// Package raster draws stroked and filled geometry onto pixel buffers.
package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
)

// Canvas draws into an NRGBA buffer in pixel coordinates.
// Geometry falling outside the buffer is clipped.
type Canvas struct {
	dst *image.NRGBA
	w   int
	h   int
}

// NewCanvas wraps dst. The buffer is drawn into in place.
func NewCanvas(dst *image.NRGBA) *Canvas {
	b := dst.Bounds()
	return &Canvas{dst: dst, w: b.Dx(), h: b.Dy()}
}

// Image returns the underlying buffer.
func (c *Canvas) Image() *image.NRGBA { return c.dst }

// Bound returns the drawable area as an orb.Bound.
func (c *Canvas) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(c.w), float64(c.h)}}
}

// Fill paints every pixel with col.
func (c *Canvas) Fill(col color.NRGBA) {
	b := c.dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c.dst.SetNRGBA(x, y, col)
		}
	}
}

// Set writes a single pixel, ignoring coordinates outside the buffer.
func (c *Canvas) Set(x, y int, col color.NRGBA) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	b := c.dst.Bounds()
	c.dst.SetNRGBA(b.Min.X+x, b.Min.Y+y, col)
}

// FillPolygon fills the polygon with the nonzero winding rule.
func (c *Canvas) FillPolygon(poly orb.Polygon, col color.NRGBA) {
	if len(poly) == 0 || c.w == 0 || c.h == 0 {
		return
	}

	ras := vector.NewRasterizer(c.w, c.h)
	drawn := false
	for _, ring := range poly {
		if len(ring) < 3 {
			continue
		}
		ras.MoveTo(float32(ring[0][0]), float32(ring[0][1]))
		for _, pt := range ring[1:] {
			ras.LineTo(float32(pt[0]), float32(pt[1]))
		}
		ras.ClosePath()
		drawn = true
	}
	if !drawn {
		return
	}

	ras.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{})
}

// StrokeLineString strokes the polyline with round joins of the given width.
func (c *Canvas) StrokeLineString(ls orb.LineString, width float64, col color.NRGBA) {
	if len(ls) == 0 {
		return
	}
	if width <= 0 {
		width = 1
	}
	radius := width / 2.0
	step := 0.5
	if width >= 5 {
		step = 0.9
	}

	if len(ls) == 1 {
		c.DrawDisc(ls[0][0], ls[0][1], radius, col)
		return
	}

	for i := 0; i < len(ls)-1; i++ {
		x0, y0 := ls[i][0], ls[i][1]
		x1, y1 := ls[i+1][0], ls[i+1][1]

		dx := x1 - x0
		dy := y1 - y0
		segLen := math.Hypot(dx, dy)
		if segLen == 0 {
			c.DrawDisc(x0, y0, radius, col)
			continue
		}
		if !c.segmentVisible(x0, y0, x1, y1, radius) {
			continue
		}

		steps := int(math.Ceil(segLen / step))
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			c.DrawDisc(x0+dx*t, y0+dy*t, radius, col)
		}
	}
}

// StrokeRing strokes a closed ring.
func (c *Canvas) StrokeRing(r orb.Ring, width float64, col color.NRGBA) {
	if len(r) == 0 {
		return
	}
	ls := orb.LineString(r)
	if !r.Closed() {
		ls = append(append(orb.LineString{}, r...), r[0])
	}
	c.StrokeLineString(ls, width, col)
}

// StrokeCircle strokes a circle approximated by a closed polyline.
func (c *Canvas) StrokeCircle(cx, cy, radius, width float64, col color.NRGBA) {
	if radius <= 0 {
		return
	}
	segments := int(math.Max(12, math.Ceil(2*math.Pi*radius/2)))
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i <= segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, orb.Point{cx + radius*math.Cos(a), cy + radius*math.Sin(a)})
	}
	c.StrokeRing(ring, width, col)
}

// DrawDisc fills all pixels whose centres lie within radius of (cx, cy).
func (c *Canvas) DrawDisc(cx, cy float64, radius float64, col color.NRGBA) {
	minX := int(math.Floor(cx - radius))
	maxX := int(math.Ceil(cx + radius))
	minY := int(math.Floor(cy - radius))
	maxY := int(math.Ceil(cy + radius))

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX >= c.w {
		maxX = c.w - 1
	}
	if maxY >= c.h {
		maxY = c.h - 1
	}

	b := c.dst.Bounds()
	r2 := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := (float64(x) + 0.5) - cx
			dy := (float64(y) + 0.5) - cy
			if dx*dx+dy*dy <= r2 {
				c.dst.SetNRGBA(b.Min.X+x, b.Min.Y+y, col)
			}
		}
	}
}

// segmentVisible rejects segments whose padded bounding box misses the canvas.
func (c *Canvas) segmentVisible(x0, y0, x1, y1, pad float64) bool {
	seg := orb.LineString{{x0, y0}, {x1, y1}}.Bound().Pad(pad + 1)
	return seg.Intersects(c.Bound())
}
