// Package embroidery turns pixel-space polylines into machine stitch plans
// and writes them as Tajima DST files.
package embroidery

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Kind is the machine command of a plan point.
type Kind string

const (
	Stitch      Kind = "stitch"
	Jump        Kind = "jump"
	ColorChange Kind = "color_change"
	End         Kind = "end"
)

// Strategy selects how stitches are laid around the path.
type Strategy string

const (
	Outline     Strategy = "outline"
	Satin       Strategy = "satin"
	Zigzag      Strategy = "zigzag"
	DoubleSatin Strategy = "double_satin"
	Meander     Strategy = "meander"
	Contour     Strategy = "contour"
	Ripple      Strategy = "ripple"
	Fill        Strategy = "fill"
)

const (
	// MaxPasses bounds satin passes per point.
	MaxPasses = 16
	// MaxStitches bounds the size of one plan.
	MaxStitches = 1_000_000
)

var (
	ErrUnknownStrategy = errors.New("unknown stitch strategy")
	ErrInvalidParams   = errors.New("invalid stitch parameters")
	ErrTooManyStitches = fmt.Errorf("stitch plan exceeds %d stitches", MaxStitches)
)

// Strategies lists every strategy in display order.
func Strategies() []Strategy {
	return []Strategy{Outline, Satin, Zigzag, DoubleSatin, Meander, Contour, Ripple, Fill}
}

// ParseStrategy accepts a strategy name; the empty string means Outline.
func ParseStrategy(s string) (Strategy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Outline, nil
	}
	for _, st := range Strategies() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Point is one machine command at a pixel-space position.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Kind  Kind    `json:"type"`
	Color string  `json:"color,omitempty"`
}

// Params control stitch spacing and width. Lengths are in millimetres and
// MMPerPx maps them onto the pixel grid of the input paths.
type Params struct {
	Strategy    Strategy `json:"strategy" mapstructure:"strategy"`
	Density     float64  `json:"density" mapstructure:"density"`
	WidthMM     float64  `json:"width_mm" mapstructure:"width_mm"`
	Passes      int      `json:"passes" mapstructure:"passes"`
	StitchLenMM float64  `json:"stitch_len_mm" mapstructure:"stitch_len_mm"`
	MMPerPx     float64  `json:"mm_per_px" mapstructure:"mm_per_px"`
	// Color tags the leading color change.
	Color string `json:"color,omitempty" mapstructure:"color"`
}

// DefaultParams returns a 2.5 mm running stitch at roughly 96 dpi.
func DefaultParams() Params {
	return Params{
		Strategy:    Outline,
		Density:     1,
		WidthMM:     2,
		Passes:      1,
		StitchLenMM: 2.5,
		MMPerPx:     0.26,
		Color:       "#000000",
	}
}

// Validate rejects parameters the planner cannot lay out.
func (p Params) Validate() error {
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	switch {
	case !(p.MMPerPx > 0) || math.IsInf(p.MMPerPx, 0):
		return fmt.Errorf("%w: mm_per_px must be positive, got %g", ErrInvalidParams, p.MMPerPx)
	case !(p.StitchLenMM >= 0) || math.IsInf(p.StitchLenMM, 0):
		return fmt.Errorf("%w: stitch_len_mm must not be negative, got %g", ErrInvalidParams, p.StitchLenMM)
	case !(p.WidthMM >= 0) || math.IsInf(p.WidthMM, 0):
		return fmt.Errorf("%w: width_mm must not be negative, got %g", ErrInvalidParams, p.WidthMM)
	case math.IsNaN(p.Density) || math.IsInf(p.Density, 0):
		return fmt.Errorf("%w: density must be finite", ErrInvalidParams)
	case p.Passes > MaxPasses:
		return fmt.Errorf("%w: passes must not exceed %d, got %d", ErrInvalidParams, MaxPasses, p.Passes)
	}
	return nil
}

// stitchLenPx is the spacing along the path in pixels. Density divides it,
// clamped below at 0.25.
func (p Params) stitchLenPx() float64 {
	l := p.StitchLenMM / p.MMPerPx
	if p.Density > 0 {
		l /= math.Max(0.25, p.Density)
	}
	return l
}

func (p Params) widthPx() float64 { return p.WidthMM / p.MMPerPx }

func (p Params) passes() int {
	if p.Passes < 1 {
		return 1
	}
	return p.Passes
}

// bands is the number of fill rows on each side of the centerline.
func (p Params) bands() int {
	return max(1, int(math.Floor(math.Max(2, p.widthPx())/math.Max(1, p.stitchLenPx()))))
}

// perPoint is how many stitches a strategy lays per resampled point.
func (p Params) perPoint() int {
	switch p.Strategy {
	case Satin:
		return p.passes()
	case DoubleSatin:
		return 2
	case Contour:
		return p.bands() + 1
	case Fill:
		return 2*p.bands() + 1
	}
	return 1
}

// Info summarizes a plan.
type Info struct {
	StitchCount int      `json:"stitch_count"`
	JumpCount   int      `json:"jump_count"`
	Paths       int      `json:"paths"`
	Strategy    Strategy `json:"strategy"`
	MMPerPx     float64  `json:"mm_per_px"`
	StitchLenMM float64  `json:"stitch_len_mm"`
	WidthMM     float64  `json:"width_mm"`
	Passes      int      `json:"passes"`
}

// Plan is an ordered list of machine commands.
type Plan struct {
	Points []Point `json:"points"`
	Info   Info    `json:"info"`
}

// Generate lays stitches along every path in order. The plan opens with a
// color change at the first point and jumps between paths. Paths with
// fewer than two points are skipped.
func Generate(paths []orb.LineString, p Params) (Plan, error) {
	st, err := ParseStrategy(string(p.Strategy))
	if err != nil {
		return Plan{}, err
	}
	p.Strategy = st
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}

	spacing := math.Max(1, p.stitchLenPx())
	estimate := 0.0
	for _, ls := range paths {
		estimate += planar.Length(ls)/spacing + 2
	}
	if estimate*float64(p.perPoint()) > MaxStitches {
		return Plan{}, ErrTooManyStitches
	}

	plan := Plan{Info: Info{
		Strategy:    st,
		MMPerPx:     p.MMPerPx,
		StitchLenMM: p.StitchLenMM,
		WidthMM:     p.WidthMM,
		Passes:      p.passes(),
	}}
	color := p.Color
	if color == "" {
		color = "#000000"
	}

	for _, ls := range paths {
		if len(ls) < 2 {
			continue
		}
		base := Resample(ls, spacing)
		if len(plan.Points) == 0 {
			plan.Points = append(plan.Points, Point{X: base[0][0], Y: base[0][1], Kind: ColorChange, Color: color})
		} else {
			plan.Points = append(plan.Points, Point{X: base[0][0], Y: base[0][1], Kind: Jump})
			plan.Info.JumpCount++
		}
		stitches := layStitches(base, p)
		plan.Points = append(plan.Points, stitches...)
		plan.Info.StitchCount += len(stitches)
		plan.Info.Paths++
	}
	return plan, nil
}

func layStitches(base orb.LineString, p Params) []Point {
	w := p.widthPx()
	out := make([]Point, 0, len(base)*p.perPoint())
	at := func(i int, off float64) {
		n := normalAt(base, i)
		out = append(out, Point{X: base[i][0] + off*n[0], Y: base[i][1] + off*n[1], Kind: Stitch})
	}

	switch p.Strategy {
	case Outline:
		for i := range base {
			at(i, 0)
		}
	case Satin:
		passes := p.passes()
		side := 1.0
		for i := range base {
			for pp := 0; pp < passes; pp++ {
				at(i, side*w*(1-float64(pp)/float64(passes))*0.5)
			}
			side = -side
		}
	case Zigzag:
		side := 1.0
		for i := range base {
			at(i, side*w*0.5)
			side = -side
		}
	case DoubleSatin:
		for i := range base {
			at(i, w*0.25)
			at(i, -w*0.5)
		}
	case Meander:
		freq := math.Max(0.2, 2/math.Max(1, p.stitchLenPx()))
		phase := 0.0
		for i := range base {
			phase += freq
			at(i, math.Sin(phase)*w*0.5)
		}
	case Contour:
		bands := p.bands()
		for i := range base {
			for bi := -bands; bi <= bands; bi += 2 {
				at(i, float64(bi)/float64(bands)*w*0.5)
			}
		}
	case Ripple:
		phase := 0.0
		for i := range base {
			phase += 0.5
			at(i, (0.5+0.5*math.Sin(phase))*w*0.5)
		}
	case Fill:
		bands := p.bands()
		for i := range base {
			for bi := -bands; bi <= bands; bi++ {
				at(i, float64(bi)/float64(bands)*w*0.5)
			}
		}
	}
	return out
}

// Resample walks ls and emits a point every spacing units of arc length,
// carrying the remainder across segments. The last input point is always
// kept.
func Resample(ls orb.LineString, spacing float64) orb.LineString {
	if len(ls) < 2 || !(spacing > 0) {
		return ls.Clone()
	}

	out := orb.LineString{ls[0]}
	since := 0.0
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		seg := planar.Distance(a, b)
		if seg <= 1e-9 {
			continue
		}
		ux, uy := (b[0]-a[0])/seg, (b[1]-a[1])/seg
		pos := spacing - since
		for ; pos <= seg; pos += spacing {
			out = append(out, orb.Point{a[0] + ux*pos, a[1] + uy*pos})
		}
		since = seg - (pos - spacing)
	}
	if last := ls[len(ls)-1]; !out[len(out)-1].Equal(last) {
		out = append(out, last)
	}
	return out
}

// normalAt is the unit left normal of the central-difference tangent at i.
func normalAt(ls orb.LineString, i int) orb.Point {
	lo, hi := i-1, i+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(ls)-1 {
		hi = len(ls) - 1
	}
	dx, dy := ls[hi][0]-ls[lo][0], ls[hi][1]-ls[lo][1]
	mag := math.Hypot(dx, dy)
	if mag == 0 {
		return orb.Point{0, 1}
	}
	return orb.Point{-dy / mag, dx / mag}
}
