// Package composite draws pattern buffers onto a shared canvas using the
// HTML canvas compositing operators and blend modes.
package composite

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var ErrUnknownBlendMode = errors.New("unknown blend mode")

// Options control how a source buffer is drawn. Opacity scales the source
// alpha, so the zero value draws nothing. Rotation is in degrees,
// clockwise about the source centre. Offsets move the source's top-left
// corner; without rotation they are rounded to whole pixels.
type Options struct {
	BlendMode string
	Opacity   float64
	Rotation  float64
	OffsetX   float64
	OffsetY   float64
}

// DefaultOptions draws the source unchanged with source-over.
func DefaultOptions() Options {
	return Options{BlendMode: "source-over", Opacity: 1}
}

func lookupMode(name string) (mode, error) {
	if name == "" {
		name = "source-over"
	}
	m, ok := modes[name]
	if !ok {
		return mode{}, fmt.Errorf("%w: %q", ErrUnknownBlendMode, name)
	}
	return m, nil
}

// Composite draws src onto dst in place.
func Composite(dst, src *image.NRGBA, o Options) error {
	if dst == nil || src == nil {
		return fmt.Errorf("composite: nil buffer")
	}
	m, err := lookupMode(o.BlendMode)
	if err != nil {
		return err
	}
	opacity := clamp01(o.Opacity)

	rot := math.Mod(o.Rotation, 360)
	if rot == 0 {
		off := image.Pt(int(math.Round(o.OffsetX)), int(math.Round(o.OffsetY)))
		compositeAt(dst, src, off, m, opacity)
		return nil
	}

	placed := image.NewNRGBA(dst.Bounds())
	draw.BiLinear.Transform(placed, placement(src.Bounds(), dst.Bounds().Min, rot, o.OffsetX, o.OffsetY), src, src.Bounds(), draw.Src, nil)
	compositeAt(dst, placed, dst.Bounds().Min, m, opacity)
	return nil
}

// placement maps source coordinates to destination coordinates: rotate by
// deg about the source centre, then translate the source origin to
// (dst origin + offset).
func placement(sb image.Rectangle, origin image.Point, deg, offX, offY float64) f64.Aff3 {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx := float64(sb.Min.X) + float64(sb.Dx())/2
	cy := float64(sb.Min.Y) + float64(sb.Dy())/2
	tx := float64(origin.X) + float64(sb.Dx())/2 + offX
	ty := float64(origin.Y) + float64(sb.Dy())/2 + offY
	return f64.Aff3{
		cos, -sin, tx - (cos*cx - sin*cy),
		sin, cos, ty - (sin*cx + cos*cy),
	}
}

// compositeAt draws src with its top-left corner at off (relative to the
// dst origin). dst pixels outside src see a transparent source, so
// operators like source-in clear them.
func compositeAt(dst, src *image.NRGBA, off image.Point, m mode, opacity float64) {
	db := dst.Bounds()
	sb := src.Bounds()
	area := sb.Sub(sb.Min).Add(db.Min).Add(off)

	_, fb := m.op(0, 1)
	touchOutside := fb != 1

	for y := db.Min.Y; y < db.Max.Y; y++ {
		for x := db.Min.X; x < db.Max.X; x++ {
			var s color.NRGBA
			p := image.Pt(x, y)
			if p.In(area) {
				q := p.Sub(area.Min).Add(sb.Min)
				s = src.NRGBAAt(q.X, q.Y)
			} else if !touchOutside {
				continue
			}
			dst.SetNRGBA(x, y, blendPixel(m, s, dst.NRGBAAt(x, y), opacity))
		}
	}
}

func blendPixel(m mode, s, d color.NRGBA, opacity float64) color.NRGBA {
	as := float64(s.A) / 255 * opacity
	ab := float64(d.A) / 255
	cs := [3]float64{float64(s.R) / 255, float64(s.G) / 255, float64(s.B) / 255}
	cb := [3]float64{float64(d.R) / 255, float64(d.G) / 255, float64(d.B) / 255}

	if m.blend != nil && ab > 0 {
		mixed := m.blend(cb, cs)
		for i := range cs {
			cs[i] = (1-ab)*cs[i] + ab*clamp01(mixed[i])
		}
	}

	fa, fb := m.op(as, ab)
	ao := as*fa + ab*fb
	if m.additive {
		ao = math.Min(ao, 1)
	}
	if ao <= 0 {
		return color.NRGBA{}
	}

	var out [3]uint8
	for i := range out {
		co := as*fa*cs[i] + ab*fb*cb[i]
		if m.additive {
			co = math.Min(co, ao)
		}
		out[i] = toU8(co / ao)
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: toU8(ao)}
}

func toU8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
