package cmd

import (
	"image"

	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/palette"
)

// postOptions are the effects applied to a rendered texture before export.
type postOptions struct {
	Warp  effects.WarpParams
	Grade effects.Grade
	// Tint is a "#rrggbb" dye mixed in by TintStrength.
	Tint         string
	TintStrength float64
	RepeatX      int
	RepeatY      int
	Relief       float64
}

// postProcess runs warp, grade, tint, relief shading and repeat in that order.
// It returns img itself when nothing is enabled.
func postProcess(img *image.NRGBA, o postOptions, ns noise.Settings) *image.NRGBA {
	if o.Warp.Strength > 0 {
		img = effects.Warp(img, o.Warp, ns)
	}
	if !o.Grade.IsZero() {
		img = o.Grade.Apply(img)
	}
	if o.Tint != "" && o.TintStrength > 0 {
		img = effects.Tint(img, palette.ParseHex(o.Tint), o.TintStrength)
	}
	if o.Relief > 0 {
		height := effects.DisplacementMap(effects.PuffMap(img, effects.DefaultPuffParams()), 6, 1)
		img = effects.Shade(img, height, 135, o.Relief)
	}
	if o.RepeatX > 1 || o.RepeatY > 1 {
		rx, ry := max(o.RepeatX, 1), max(o.RepeatY, 1)
		b := img.Bounds()
		img = effects.Tile(img, b.Dx()*rx, b.Dy()*ry, 0, 0)
	}
	return img
}
