package cmd

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultWidth  = 512
	defaultHeight = 512
)

// preset is a named settings bundle under presets.<name> in the config file.
type preset struct {
	pattern.Settings `mapstructure:",squash"`
	Noise            noise.Settings `mapstructure:"noise"`
}

// settingsFlags maps flag names to config keys below a command prefix.
// The keys match the mapstructure tags of pattern.Settings.
var settingsFlags = map[string]string{
	"width":       "width",
	"height":      "height",
	"seed":        "seed",
	"scale":       "scale",
	"octaves":     "octaves",
	"persistence": "persistence",
	"lacunarity":  "lacunarity",
	"color-mode":  "color_mode",
	"palette":     "palette",
	"blend-mode":  "blend_mode",
	"opacity":     "opacity",
	"rotation":    "rotation",
	"offset-x":    "offset_x",
	"offset-y":    "offset_y",
	"grid-size":   "grid_size",
	"line-width":  "line_width",
	"cell-count":  "cell_count",
	"iterations":  "iterations",
	"zoom":        "zoom",
	"center-x":    "center_x",
	"center-y":    "center_y",
	"julia-real":  "julia_real",
	"julia-imag":  "julia_imag",
	"seamless":    "seamless",
}

var noiseFlags = map[string]string{
	"frequency": "frequency",
	"amplitude": "amplitude",
	"roughness": "roughness",
	"ridged":    "ridged",
	"billowy":   "billowy",
	"iq":        "iq",
}

// addSettingsFlags registers the pattern and noise flags on cmd and binds
// them to prefix.<key> and prefix.noise.<key>.
func addSettingsFlags(v *viper.Viper, cmd *cobra.Command, prefix string) {
	d := pattern.DefaultSettings(defaultWidth, defaultHeight)
	f := cmd.Flags()

	f.String("preset", "", "Named preset from the config file (presets.<name>)")
	f.Int("width", d.Width, "Texture width in pixels")
	f.Int("height", d.Height, "Texture height in pixels")
	f.Int64("seed", d.Seed, "Deterministic seed")
	f.Float64("scale", d.Scale, "Noise feature size in pixels")
	f.Int("octaves", d.Octaves, "Noise octaves")
	f.Float64("persistence", d.Persistence, "Amplitude falloff per octave")
	f.Float64("lacunarity", d.Lacunarity, "Frequency growth per octave")
	f.String("color-mode", string(d.ColorMode), "Color mode (grayscale, rgb, hsv, gradient)")
	f.StringSlice("palette", d.Palette, "Palette colors as hex (#rrggbb)")
	f.String("blend-mode", d.BlendMode, "Blend mode used when compositing onto the canvas")
	f.Float64("opacity", 1, "Layer opacity (0..1)")
	f.Float64("rotation", 0, "Layer rotation in degrees")
	f.Float64("offset-x", 0, "Layer offset in pixels")
	f.Float64("offset-y", 0, "Layer offset in pixels")
	f.Float64("grid-size", d.GridSize, "Cell size for lattice and textile patterns")
	f.Float64("line-width", d.LineWidth, "Stroke width in pixels")
	f.Int("cell-count", 0, "Cell count for voronoi (0 = default)")
	f.Int("iterations", 0, "Iterations for fractal patterns (0 = default)")
	f.Float64("zoom", d.Zoom, "Fractal zoom")
	f.Float64("center-x", 0, "Fractal view center offset")
	f.Float64("center-y", 0, "Fractal view center offset")
	f.Float64("julia-real", 0, "Julia constant, real part")
	f.Float64("julia-imag", 0, "Julia constant, imaginary part")
	f.Bool("seamless", false, "Render tileable noise where supported")

	f.Float64("frequency", 1, "Noise base frequency multiplier")
	f.Float64("amplitude", 1, "Noise amplitude multiplier")
	f.Float64("roughness", 0, "Octave persistence override (0 = use --persistence)")
	f.Bool("ridged", false, "Ridged noise")
	f.Bool("billowy", false, "Billowy noise")
	f.Bool("iq", false, "Gradient-damped (IQ) noise")

	bind := func(key, flag string) {
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
	bind(prefix+".preset", "preset")
	for flag, key := range settingsFlags {
		bind(prefix+"."+key, flag)
	}
	for flag, key := range noiseFlags {
		bind(prefix+".noise."+key, flag)
	}
}

// loadPreset decodes presets.<name> on top of the defaults.
func loadPreset(v *viper.Viper, name string) (preset, error) {
	p := preset{
		Settings: pattern.DefaultSettings(defaultWidth, defaultHeight),
		Noise:    noise.DefaultSettings(),
	}
	key := "presets." + name
	if !v.IsSet(key) {
		return p, fmt.Errorf("unknown preset %q", name)
	}
	if err := v.UnmarshalKey(key, &p); err != nil {
		return p, fmt.Errorf("failed to decode preset %q: %w", name, err)
	}
	return p, nil
}

// loadPresets decodes every preset in the config file.
func loadPresets(v *viper.Viper) (map[string]preset, error) {
	names := make([]string, 0)
	for name := range v.GetStringMap("presets") {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]preset, len(names))
	for _, name := range names {
		p, err := loadPreset(v, name)
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

// resolveSettings layers defaults, the selected preset and every explicitly
// set flag, environment variable or config key below prefix.
func resolveSettings(v *viper.Viper, prefix string) (pattern.Settings, noise.Settings, error) {
	p := preset{
		Settings: pattern.DefaultSettings(defaultWidth, defaultHeight),
		Noise:    noise.DefaultSettings(),
	}
	if name := v.GetString(prefix + ".preset"); name != "" {
		var err error
		if p, err = loadPreset(v, name); err != nil {
			return p.Settings, p.Noise, err
		}
	}

	s, ns := p.Settings, p.Noise
	if err := overlay(v, prefix, settingsFlags, &s); err != nil {
		return s, ns, err
	}
	if err := overlay(v, prefix+".noise", noiseFlags, &ns); err != nil {
		return s, ns, err
	}
	return s, ns, s.Validate()
}

// overlay decodes the keys that are set below prefix onto dst. Unset keys
// leave dst untouched so flag defaults never override a preset.
func overlay(v *viper.Viper, prefix string, keys map[string]string, dst any) error {
	tmp := viper.New()
	n := 0
	for _, key := range keys {
		full := prefix + "." + key
		if v.IsSet(full) {
			tmp.Set(key, v.Get(full))
			n++
		}
	}
	if n == 0 {
		return nil
	}
	if err := tmp.Unmarshal(dst); err != nil {
		return fmt.Errorf("invalid %s settings: %w", prefix, err)
	}
	return nil
}
