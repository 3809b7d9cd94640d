package cmd

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/textilegen/internal/composite"
	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/palette"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/MeKo-Tech/textilegen/internal/studio"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Layer patterns and images into one texture",
	Long: `Composite a stack of layers bottom to top. A layer source is either a
pattern id or an image file (png, jpg, webp, tga).

  textilegen compose --layer plaid --layer veins:multiply:0.6 -o out.png

Layers can also be listed under compose.layers in the config file:

  compose:
    layers:
      - source: watercolor
        preset: autumn
      - source: paper.png
        blend_mode: soft-light
        opacity: 0.4
      - source: plaid
        mask: veins

A mask is a pattern id or image file whose luminance becomes the layer's
alpha channel.`,
	RunE: runCompose,
}

// composeLayer is one entry of compose.layers.
type composeLayer struct {
	Source    string   `mapstructure:"source"`
	Preset    string   `mapstructure:"preset"`
	BlendMode string   `mapstructure:"blend_mode"`
	Opacity   *float64 `mapstructure:"opacity"`
	Rotation  float64  `mapstructure:"rotation"`
	OffsetX   float64  `mapstructure:"offset_x"`
	OffsetY   float64  `mapstructure:"offset_y"`
	Hidden    bool     `mapstructure:"hidden"`
	Mask      string   `mapstructure:"mask"`
}

func init() {
	rootCmd.AddCommand(composeCmd)

	addSettingsFlags(viper.GetViper(), composeCmd, "compose")

	composeCmd.Flags().StringArray("layer", nil, "Layer as source[:blend-mode[:opacity]] (repeatable)")
	composeCmd.Flags().String("background", "", "Background color as hex (default transparent)")
	composeCmd.Flags().StringP("output", "o", "", "Output file (default: <output-dir>/composition.png)")
	composeCmd.Flags().Int("quality", export.DefaultQuality, "JPEG quality (1-100)")

	mustBind("compose.layer_flags", composeCmd, "layer")
	mustBind("compose.background", composeCmd, "background")
	mustBind("compose.output", composeCmd, "output")
	mustBind("compose.quality", composeCmd, "quality")
}

// parseLayerFlag decodes "source[:blend-mode[:opacity]]".
func parseLayerFlag(s string) (composeLayer, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 || parts[0] == "" {
		return composeLayer{}, fmt.Errorf("invalid layer %q: want source[:blend-mode[:opacity]]", s)
	}
	l := composeLayer{Source: parts[0]}
	if len(parts) > 1 {
		l.BlendMode = parts[1]
	}
	if len(parts) > 2 {
		op, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || op < 0 || op > 1 {
			return composeLayer{}, fmt.Errorf("invalid layer %q: opacity must be in [0,1]", s)
		}
		l.Opacity = &op
	}
	return l, nil
}

func composeLayers(v *viper.Viper) ([]composeLayer, error) {
	if flags := v.GetStringSlice("compose.layer_flags"); len(flags) > 0 {
		layers := make([]composeLayer, 0, len(flags))
		for _, f := range flags {
			l, err := parseLayerFlag(f)
			if err != nil {
				return nil, err
			}
			layers = append(layers, l)
		}
		return layers, nil
	}
	var layers []composeLayer
	if err := v.UnmarshalKey("compose.layers", &layers); err != nil {
		return nil, fmt.Errorf("invalid compose.layers: %w", err)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers given (use --layer or compose.layers)")
	}
	return layers, nil
}

// buildStack renders or loads every layer. Pattern layers use base (or
// their preset) and keep its compositing settings unless the layer
// overrides them.
func buildStack(v *viper.Viper, layers []composeLayer, base pattern.Settings, ns noise.Settings) (*composite.Stack, error) {
	stack := &composite.Stack{}
	if bg := v.GetString("compose.background"); bg != "" {
		stack.Background = palette.ParseHex(bg)
	}

	for i, l := range layers {
		s, lns := base, ns
		if l.Preset != "" {
			p, err := loadPreset(v, l.Preset)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			s, lns = p.Settings, p.Noise
		}

		img, opts, err := loadSource(l.Source, s, lns)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if l.Mask != "" {
			m, _, err := loadSource(l.Mask, s, lns)
			if err != nil {
				return nil, fmt.Errorf("layer %d mask: %w", i, err)
			}
			img = effects.ApplyMask(img, effects.LuminanceMask(m))
		}
		layer := composite.Layer{Name: filepath.Base(l.Source), Image: img, Options: opts}

		if l.BlendMode != "" {
			layer.Options.BlendMode = l.BlendMode
		}
		if l.Opacity != nil {
			layer.Options.Opacity = *l.Opacity
		}
		if l.Rotation != 0 {
			layer.Options.Rotation = l.Rotation
		}
		if l.OffsetX != 0 || l.OffsetY != 0 {
			layer.Options.OffsetX, layer.Options.OffsetY = l.OffsetX, l.OffsetY
		}
		layer.Visible = !l.Hidden
		stack.Layers = append(stack.Layers, layer)
	}
	return stack, nil
}

// loadSource renders src when it names a pattern and reads it as an image
// file otherwise. Pattern sources keep the compositing settings of s.
func loadSource(src string, s pattern.Settings, ns noise.Settings) (*image.NRGBA, composite.Options, error) {
	if _, _, ok := pattern.Lookup(src); ok {
		img, err := pattern.Render(src, s, ns)
		return img, studio.CompositeOptions(s), err
	}
	img, err := export.ReadFile(src)
	return img, composite.DefaultOptions(), err
}

func runCompose(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	base, ns, err := resolveSettings(v, "compose")
	if err != nil {
		return err
	}
	layers, err := composeLayers(v)
	if err != nil {
		return err
	}
	stack, err := buildStack(v, layers, base, ns)
	if err != nil {
		return err
	}

	img, err := stack.Flatten(base.Width, base.Height)
	if err != nil {
		return err
	}

	out := v.GetString("compose.output")
	if out == "" {
		out = filepath.Join(v.GetString("output-dir"), "composition.png")
	}
	if err := export.WriteFile(out, img, v.GetInt("compose.quality")); err != nil {
		return err
	}
	logger.Info("Composition written", "path", out, "layers", len(stack.Layers))
	return nil
}
