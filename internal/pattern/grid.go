package pattern

import (
	"math"

	"github.com/paulmach/orb"
)

// pointGrid buckets points into square cells so nearest-neighbour queries
// only scan the rings of cells around the query point.
type pointGrid struct {
	pts     []orb.Point
	buckets [][]int
	cell    float64
	cols    int
	rows    int
}

func newPointGrid(pts []orb.Point, w, h int) *pointGrid {
	cell := cellSize(len(pts), w, h)
	cols := int(math.Ceil(float64(w)/cell)) + 1
	rows := int(math.Ceil(float64(h)/cell)) + 1

	g := &pointGrid{
		pts:     pts,
		buckets: make([][]int, cols*rows),
		cell:    cell,
		cols:    cols,
		rows:    rows,
	}
	for i, p := range pts {
		cx, cy := g.cellOf(p[0], p[1])
		g.buckets[cy*cols+cx] = append(g.buckets[cy*cols+cx], i)
	}
	return g
}

func (g *pointGrid) cellOf(x, y float64) (int, int) {
	cx := clampInt(int(math.Floor(x/g.cell)), 0, g.cols-1)
	cy := clampInt(int(math.Floor(y/g.cell)), 0, g.rows-1)
	return cx, cy
}

// nearest returns the distances to the closest and second closest points and
// the index of the closest. With no points it returns +Inf distances and -1.
func (g *pointGrid) nearest(x, y float64) (d1, d2 float64, idx int) {
	d1, d2, idx = math.Inf(1), math.Inf(1), -1
	if len(g.pts) == 0 {
		return
	}

	cx, cy := g.cellOf(x, y)
	maxRing := g.cols
	if g.rows > maxRing {
		maxRing = g.rows
	}

	for r := 0; r <= maxRing; r++ {
		for yy := cy - r; yy <= cy+r; yy++ {
			if yy < 0 || yy >= g.rows {
				continue
			}
			for xx := cx - r; xx <= cx+r; xx++ {
				if xx < 0 || xx >= g.cols {
					continue
				}
				// Only the ring's perimeter is new at radius r.
				if r > 0 && yy != cy-r && yy != cy+r && xx != cx-r && xx != cx+r {
					continue
				}
				for _, i := range g.buckets[yy*g.cols+xx] {
					p := g.pts[i]
					d := math.Hypot(p[0]-x, p[1]-y)
					switch {
					case d < d1:
						d2 = d1
						d1, idx = d, i
					case d < d2:
						d2 = d
					}
				}
			}
		}
		// Points in ring r+1 are at least r cells away.
		if d2 <= float64(r)*g.cell {
			break
		}
	}
	return
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
