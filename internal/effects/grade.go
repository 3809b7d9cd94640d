package effects

import (
	"image"

	"github.com/disintegration/gift"
)

// Grade is a color-grading stack. Brightness, Contrast and Saturation are
// percentages in [-100,100]; Hue shifts in degrees; Gamma 0 means 1.
type Grade struct {
	Brightness float32 `json:"brightness" mapstructure:"brightness"`
	Contrast   float32 `json:"contrast" mapstructure:"contrast"`
	Saturation float32 `json:"saturation" mapstructure:"saturation"`
	Hue        float32 `json:"hue" mapstructure:"hue"`
	Gamma      float32 `json:"gamma" mapstructure:"gamma"`
}

// IsZero reports whether the grade leaves images unchanged.
func (g Grade) IsZero() bool {
	return g.Brightness == 0 && g.Contrast == 0 && g.Saturation == 0 && g.Hue == 0 && (g.Gamma == 0 || g.Gamma == 1)
}

func (g Grade) filters() *gift.GIFT {
	f := gift.New()
	if g.Gamma != 0 && g.Gamma != 1 {
		f.Add(gift.Gamma(g.Gamma))
	}
	if g.Brightness != 0 {
		f.Add(gift.Brightness(g.Brightness))
	}
	if g.Contrast != 0 {
		f.Add(gift.Contrast(g.Contrast))
	}
	if g.Saturation != 0 {
		f.Add(gift.Saturation(g.Saturation))
	}
	if g.Hue != 0 {
		f.Add(gift.Hue(g.Hue))
	}
	return f
}

// Apply returns a graded copy of img.
func (g Grade) Apply(img image.Image) *image.NRGBA {
	f := g.filters()
	dst := image.NewNRGBA(f.Bounds(img.Bounds()))
	f.Draw(dst, img)
	return dst
}
