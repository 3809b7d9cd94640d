package composite

import (
	"fmt"
	"image"
	"image/color"
)

// Layer is one named buffer in a Stack.
type Layer struct {
	Name    string
	Image   *image.NRGBA
	Options Options
	Visible bool
}

// Stack holds layers drawn bottom to top over an optional background.
type Stack struct {
	Background color.NRGBA
	Layers     []Layer
}

// Add appends a visible layer on top.
func (s *Stack) Add(name string, img *image.NRGBA, o Options) {
	s.Layers = append(s.Layers, Layer{Name: name, Image: img, Options: o, Visible: true})
}

// Layer returns the topmost layer with the given name.
func (s *Stack) Layer(name string) (*Layer, bool) {
	for i := len(s.Layers) - 1; i >= 0; i-- {
		if s.Layers[i].Name == name {
			return &s.Layers[i], true
		}
	}
	return nil, false
}

// Flatten composites every visible layer onto a fresh w×h canvas.
func (s *Stack) Flatten(w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("canvas size must be positive")
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if s.Background.A > 0 {
		for i := 0; i < len(dst.Pix); i += 4 {
			dst.Pix[i+0] = s.Background.R
			dst.Pix[i+1] = s.Background.G
			dst.Pix[i+2] = s.Background.B
			dst.Pix[i+3] = s.Background.A
		}
	}

	for _, l := range s.Layers {
		if !l.Visible || l.Image == nil {
			continue
		}
		if err := Composite(dst, l.Image, l.Options); err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.Name, err)
		}
	}
	return dst, nil
}
