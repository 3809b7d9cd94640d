package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/MeKo-Tech/textilegen/internal/studio"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var generateCmd = &cobra.Command{
	Use:   "generate <pattern>",
	Short: "Render a single texture",
	Long: `Render one pattern to an image file. The format follows the output
extension (png, jpg, webp, tga, svg). Run "textilegen patterns" for the list
of pattern ids.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	addSettingsFlags(viper.GetViper(), generateCmd, "generate")

	generateCmd.Flags().StringP("output", "o", "", "Output file (default: <output-dir>/<pattern>_<seed>.png)")
	generateCmd.Flags().Int("quality", export.DefaultQuality, "JPEG quality (1-100)")
	generateCmd.Flags().Bool("puff", false, "Also write the puff map next to the texture (<name>_puff.png)")

	generateCmd.Flags().Float64("warp-strength", 0, "Mesh warp displacement in pixels (0 disables)")
	generateCmd.Flags().Float64("warp-scale", 64, "Mesh warp feature size in pixels")
	generateCmd.Flags().Float32("brightness", 0, "Brightness adjustment (-100..100)")
	generateCmd.Flags().Float32("contrast", 0, "Contrast adjustment (-100..100)")
	generateCmd.Flags().Float32("saturation", 0, "Saturation adjustment (-100..500)")
	generateCmd.Flags().Float32("hue", 0, "Hue rotation in degrees")
	generateCmd.Flags().Float32("gamma", 1, "Gamma correction")
	generateCmd.Flags().String("tint", "", "Dye the texture toward a #rrggbb color")
	generateCmd.Flags().Float64("tint-strength", 0.25, "Tint mix amount (0..1)")
	generateCmd.Flags().Float64("relief", 0, "Emboss the texture with its puff height map (0..1)")
	generateCmd.Flags().Int("repeat-x", 1, "Repeat the texture horizontally")
	generateCmd.Flags().Int("repeat-y", 1, "Repeat the texture vertically")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"generate.output", "output"},
		{"generate.quality", "quality"},
		{"generate.puff", "puff"},
		{"generate.warp.strength", "warp-strength"},
		{"generate.warp.scale", "warp-scale"},
		{"generate.grade.brightness", "brightness"},
		{"generate.grade.contrast", "contrast"},
		{"generate.grade.saturation", "saturation"},
		{"generate.grade.hue", "hue"},
		{"generate.grade.gamma", "gamma"},
		{"generate.tint.color", "tint"},
		{"generate.tint.strength", "tint-strength"},
		{"generate.relief", "relief"},
		{"generate.repeat_x", "repeat-x"},
		{"generate.repeat_y", "repeat-y"},
	}
	for _, bf := range bindFlags {
		mustBind(bf.key, generateCmd, bf.flag)
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	id := args[0]
	if _, _, ok := pattern.Lookup(id); !ok {
		return fmt.Errorf("%w: %q (run \"textilegen patterns\" for the list)", pattern.ErrUnknownPattern, id)
	}

	s, ns, err := resolveSettings(v, "generate")
	if err != nil {
		return err
	}

	out := v.GetString("generate.output")
	if out == "" {
		out = filepath.Join(v.GetString("output-dir"), fmt.Sprintf("%s_%d.png", id, s.Seed))
	}
	if _, err := export.FormatFromPath(out); err != nil {
		return err
	}
	quality := v.GetInt("generate.quality")

	cfg := studio.Config{HistorySize: 1}
	if v.GetBool("generate.puff") {
		p := effects.DefaultPuffParams()
		p.Seed = s.Seed
		cfg.Puff = &p
	}
	st := studio.New(cfg, logger)

	tex, err := st.Generate(cmd.Context(), id, s, ns)
	if err != nil {
		return err
	}

	img := postProcess(tex.Data, postOptions{
		Warp: effects.WarpParams{
			Strength: v.GetFloat64("generate.warp.strength"),
			Scale:    v.GetFloat64("generate.warp.scale"),
			Octaves:  s.Octaves,
			Seed:     s.Seed,
		},
		Grade: effects.Grade{
			Brightness: float32(v.GetFloat64("generate.grade.brightness")),
			Contrast:   float32(v.GetFloat64("generate.grade.contrast")),
			Saturation: float32(v.GetFloat64("generate.grade.saturation")),
			Hue:        float32(v.GetFloat64("generate.grade.hue")),
			Gamma:      float32(v.GetFloat64("generate.grade.gamma")),
		},
		Tint:         v.GetString("generate.tint.color"),
		TintStrength: v.GetFloat64("generate.tint.strength"),
		Relief:       v.GetFloat64("generate.relief"),
		RepeatX:      v.GetInt("generate.repeat_x"),
		RepeatY:      v.GetInt("generate.repeat_y"),
	}, ns)

	if err := export.WriteFile(out, img, quality); err != nil {
		return err
	}
	logger.Info("Texture written", "pattern", id, "path", out,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	if cfg.Puff != nil {
		if puff, ok := st.Handoff().Get(studio.HandoffPuff); ok {
			puffPath := puffPathFor(out)
			if err := export.WriteFile(puffPath, puff, quality); err != nil {
				return err
			}
			logger.Info("Puff map written", "path", puffPath)
		}
	}

	if path := v.GetString("library"); path != "" {
		store, err := openLibrary(path)
		if err != nil {
			return err
		}
		tex.Data = img
		if err := store.Add(tex); err != nil {
			store.Close()
			return err
		}
		if err := store.Close(); err != nil {
			return err
		}
		logger.Info("Texture stored in library", "id", tex.ID, "library", path)
	}
	return nil
}

// puffPathFor turns "out/plaid.jpg" into "out/plaid_puff.png".
func puffPathFor(out string) string {
	return strings.TrimSuffix(out, filepath.Ext(out)) + "_puff.png"
}
