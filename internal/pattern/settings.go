package pattern

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/textilegen/internal/palette"
)

// MaxDimension bounds the width and height of a single generated buffer.
const MaxDimension = 8192

// Limits on the pattern knobs that drive loop counts in the renderers.
const (
	MaxCellCount = 10000
	MaxLineWidth = 256
	MinGridSize  = 1

	// maxGridCells caps the number of lattice cells a grid-based pattern
	// strokes for a given buffer.
	maxGridCells = 1 << 18
)

var (
	ErrInvalidSize    = errors.New("width and height must be positive")
	ErrTooLarge       = fmt.Errorf("width and height must not exceed %d", MaxDimension)
	ErrEmptyPalette   = palette.ErrEmptyPalette
	ErrUnknownPattern = errors.New("unknown pattern")
	ErrInvalidKnob    = errors.New("invalid pattern setting")
)

// Settings parameterize a single generation call. Zero values of the
// optional knobs select per-pattern defaults.
type Settings struct {
	Width       int          `json:"width" mapstructure:"width"`
	Height      int          `json:"height" mapstructure:"height"`
	Scale       float64      `json:"scale" mapstructure:"scale"`
	Octaves     int          `json:"octaves" mapstructure:"octaves"`
	Persistence float64      `json:"persistence" mapstructure:"persistence"`
	Lacunarity  float64      `json:"lacunarity" mapstructure:"lacunarity"`
	Seed        int64        `json:"seed" mapstructure:"seed"`
	ColorMode   palette.Mode `json:"colorMode" mapstructure:"color_mode"`
	Palette     []string     `json:"colorPalette" mapstructure:"palette"`

	// Compositing parameters, consumed when the result is drawn onto a canvas.
	BlendMode string `json:"blendMode" mapstructure:"blend_mode"`
	// Opacity is nil when unset, which draws fully opaque.
	Opacity   *float64 `json:"opacity,omitempty" mapstructure:"opacity"`
	Rotation  float64  `json:"rotation" mapstructure:"rotation"`
	OffsetX   float64  `json:"offsetX" mapstructure:"offset_x"`
	OffsetY   float64  `json:"offsetY" mapstructure:"offset_y"`

	// Pattern-specific knobs.
	GridSize   float64 `json:"gridSize" mapstructure:"grid_size"`
	LineWidth  float64 `json:"lineWidth" mapstructure:"line_width"`
	CellCount  int     `json:"cellCount" mapstructure:"cell_count"`
	Iterations int     `json:"iterations" mapstructure:"iterations"`
	Zoom       float64 `json:"zoom" mapstructure:"zoom"`
	CenterX    float64 `json:"centerX" mapstructure:"center_x"`
	CenterY    float64 `json:"centerY" mapstructure:"center_y"`
	JuliaReal  float64 `json:"juliaReal" mapstructure:"julia_real"`
	JuliaImag  float64 `json:"juliaImag" mapstructure:"julia_imag"`
	Seamless   bool    `json:"seamless" mapstructure:"seamless"`
}

// DefaultSettings returns the studio defaults for a w×h buffer.
func DefaultSettings(w, h int) Settings {
	return Settings{
		Width:       w,
		Height:      h,
		Scale:       50,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2.0,
		Seed:        1337,
		ColorMode:   palette.Grayscale,
		Palette:     []string{"#1d3557", "#457b9d", "#a8dadc", "#f1faee", "#e63946"},
		BlendMode:   "source-over",
		GridSize:    20,
		LineWidth:   2,
		Zoom:        1,
	}
}

// Validate rejects settings the renderers cannot handle.
func (s Settings) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return ErrInvalidSize
	}
	if s.Width > MaxDimension || s.Height > MaxDimension {
		return ErrTooLarge
	}
	mode, err := palette.ParseMode(string(s.ColorMode))
	if err != nil {
		return err
	}
	if mode.NeedsPalette() && len(s.Palette) == 0 {
		return ErrEmptyPalette
	}
	if s.Opacity != nil && !(*s.Opacity >= 0 && *s.Opacity <= 1) {
		return fmt.Errorf("%w: opacity must be in [0,1], got %g", ErrInvalidKnob, *s.Opacity)
	}
	return s.validateKnobs()
}

// Alpha is the opacity used when compositing, 1 when Opacity is unset.
func (s Settings) Alpha() float64 {
	if s.Opacity == nil {
		return 1
	}
	return *s.Opacity
}

// validateKnobs bounds the pattern-specific knobs. Zero keeps the
// per-pattern default.
func (s Settings) validateKnobs() error {
	if s.CellCount < 0 || s.CellCount > MaxCellCount {
		return fmt.Errorf("%w: cell_count must be in [0,%d], got %d", ErrInvalidKnob, MaxCellCount, s.CellCount)
	}
	if s.LineWidth < 0 || s.LineWidth > MaxLineWidth || math.IsNaN(s.LineWidth) {
		return fmt.Errorf("%w: line_width must be in [0,%d], got %g", ErrInvalidKnob, MaxLineWidth, s.LineWidth)
	}
	if s.GridSize == 0 {
		return nil
	}
	if !(s.GridSize >= MinGridSize) || math.IsInf(s.GridSize, 1) {
		return fmt.Errorf("%w: grid_size must be at least %d, got %g", ErrInvalidKnob, MinGridSize, s.GridSize)
	}
	cells := (float64(s.Width)/s.GridSize + 1) * (float64(s.Height)/s.GridSize + 1)
	if cells > maxGridCells {
		return fmt.Errorf("%w: grid_size %g is too fine for %dx%d", ErrInvalidKnob, s.GridSize, s.Width, s.Height)
	}
	return nil
}

func (s Settings) mode() palette.Mode {
	m, err := palette.ParseMode(string(s.ColorMode))
	if err != nil {
		return palette.Grayscale
	}
	return m
}

func (s Settings) scale() float64 {
	if s.Scale <= 0 {
		return 50
	}
	return s.Scale
}

func (s Settings) octaves() int {
	if s.Octaves <= 0 {
		return 1
	}
	return s.Octaves
}

func (s Settings) gridSize() float64 {
	if s.GridSize <= 0 {
		return 20
	}
	return s.GridSize
}

func (s Settings) lineWidth() float64 {
	if s.LineWidth <= 0 {
		return 2
	}
	return s.LineWidth
}

func (s Settings) cellCount(def int) int {
	if s.CellCount <= 0 {
		return def
	}
	return s.CellCount
}

func (s Settings) iterations(def, max int) int {
	n := s.Iterations
	if n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}

func (s Settings) zoom() float64 {
	if s.Zoom <= 0 {
		return 1
	}
	return s.Zoom
}
