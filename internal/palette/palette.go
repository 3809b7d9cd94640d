// Package palette maps scalar field values and palette indices to colors.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Mode selects how a scalar is turned into a color.
type Mode string

const (
	Grayscale Mode = "grayscale"
	RGB       Mode = "rgb"
	HSV       Mode = "hsv"
	// Gradient interpolates between neighbouring palette stops in HCL space.
	Gradient Mode = "gradient"
)

// ErrEmptyPalette is returned when a palette-based mode has no colors.
var ErrEmptyPalette = errors.New("palette must contain at least one color")

var black = color.NRGBA{A: 255}

// ParseMode validates a mode name. An empty name selects Grayscale.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Grayscale, nil
	case Grayscale, RGB, HSV, Gradient:
		return m, nil
	default:
		return "", fmt.Errorf("unknown color mode %q", s)
	}
}

// NeedsPalette reports whether the mode reads palette entries.
func (m Mode) NeedsPalette() bool {
	return m != Grayscale && m != ""
}

// ParseHex decodes "#RRGGBB" from its fixed-width channel substrings.
// Any other input, including the short "#RGB" form, yields opaque black
// instead of an error.
func ParseHex(s string) color.NRGBA {
	if len(s) != 7 || s[0] != '#' {
		return black
	}
	var rgb [3]uint8
	for i := range rgb {
		hi, ok1 := hexNibble(s[1+2*i])
		lo, ok2 := hexNibble(s[2+2*i])
		if !ok1 || !ok2 {
			return black
		}
		rgb[i] = hi<<4 | lo
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Hex formats a color as "#rrggbb".
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Index maps a scalar to a palette slot: abs(floor(scalar*k)) mod k.
// The result is always within [0,k) for k >= 1; k <= 0 yields 0.
func Index(scalar float64, k int) int {
	if k <= 0 || math.IsNaN(scalar) || math.IsInf(scalar, 0) {
		return 0
	}
	f := math.Floor(scalar * float64(k))
	i := int(math.Mod(math.Abs(f), float64(k)))
	if i < 0 || i >= k {
		return 0
	}
	return i
}

// At returns palette[abs(i) % len(palette)] decoded, or black for an empty palette.
func At(colors []string, i int) color.NRGBA {
	if len(colors) == 0 {
		return black
	}
	if i < 0 {
		i = -i
	}
	return ParseHex(colors[i%len(colors)])
}

// Gray returns an opaque gray for v in [0,1]; v is clamped.
func Gray(v float64) color.NRGBA {
	g := ClampU8(v * 255)
	return color.NRGBA{R: g, G: g, B: g, A: 255}
}

// MapToColor converts a scalar in [0,1] to a color using the given mode.
// Palette modes fall back to grayscale when the palette is empty.
func MapToColor(v float64, mode Mode, colors []string) color.NRGBA {
	if !mode.NeedsPalette() || len(colors) == 0 {
		return Gray(v)
	}
	if mode == Gradient {
		return gradient(v, colors)
	}
	return At(colors, Index(v, len(colors)))
}

func gradient(v float64, colors []string) color.NRGBA {
	if len(colors) == 1 {
		return ParseHex(colors[0])
	}
	v = clamp01(v)
	pos := v * float64(len(colors)-1)
	i := int(math.Floor(pos))
	if i >= len(colors)-1 {
		i = len(colors) - 2
	}
	t := pos - float64(i)

	a := toColorful(ParseHex(colors[i]))
	b := toColorful(ParseHex(colors[i+1]))
	return fromColorful(a.BlendHcl(b, t).Clamped())
}

// FromHSV converts hue in degrees and saturation/value in [0,1]. Hue wraps
// in both directions; saturation and value are clamped.
func FromHSV(h, s, v float64) color.NRGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return fromColorful(colorful.Hsv(h, clamp01(s), clamp01(v)))
}

// ToHSV returns hue in degrees and saturation/value in [0,1].
func ToHSV(c color.NRGBA) (h, s, v float64) {
	return toColorful(c).Hsv()
}

func toColorful(c color.NRGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func fromColorful(c colorful.Color) color.NRGBA {
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// ClampU8 rounds and clamps a channel value into [0,255].
func ClampU8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
