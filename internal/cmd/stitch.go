package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/textilegen/internal/embroidery"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var stitchCmd = &cobra.Command{
	Use:   "stitch <pattern>",
	Short: "Plan embroidery stitches along a path pattern",
	Long: `Lay machine stitches along the strokes of a path-based pattern
(organic_flow, veins, dragon_curve) and write them as a Tajima DST file or
as a JSON stitch plan, chosen by the output extension.

Strategies: outline, satin, zigzag, double_satin, meander, contour, ripple,
fill.`,
	Args: cobra.ExactArgs(1),
	RunE: runStitch,
}

func init() {
	rootCmd.AddCommand(stitchCmd)

	addSettingsFlags(viper.GetViper(), stitchCmd, "stitch")
	addStitchFlags(viper.GetViper(), stitchCmd, "stitch")
	stitchCmd.Flags().StringP("output", "o", "", "Output file, .dst or .json (default: <output-dir>/<pattern>_<seed>.dst)")
	mustBind("stitch.output", stitchCmd, "output")
}

// addStitchFlags registers the stitch planner flags and binds them to
// prefix.embroidery.<key>.
func addStitchFlags(v *viper.Viper, cmd *cobra.Command, prefix string) {
	d := embroidery.DefaultParams()
	f := cmd.Flags()
	f.String("strategy", string(d.Strategy), "Stitch strategy")
	f.Float64("density", d.Density, "Stitch density; divides the stitch length")
	f.Float64("width-mm", d.WidthMM, "Column width in millimetres")
	f.Int("passes", d.Passes, "Satin passes per point")
	f.Float64("stitch-len-mm", d.StitchLenMM, "Stitch length in millimetres")
	f.Float64("mm-per-px", d.MMPerPx, "Millimetres per pattern pixel")
	f.String("thread", d.Color, "Thread color of the opening color change")

	for flag, key := range map[string]string{
		"strategy":      "strategy",
		"density":       "density",
		"width-mm":      "width_mm",
		"passes":        "passes",
		"stitch-len-mm": "stitch_len_mm",
		"mm-per-px":     "mm_per_px",
		"thread":        "color",
	} {
		if err := v.BindPFlag(prefix+".embroidery."+key, f.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}

// stitchParams reads prefix.embroidery.* from flags or the config file.
func stitchParams(v *viper.Viper, prefix string) (embroidery.Params, error) {
	key := func(k string) string { return prefix + ".embroidery." + k }
	st, err := embroidery.ParseStrategy(v.GetString(key("strategy")))
	if err != nil {
		return embroidery.Params{}, err
	}
	p := embroidery.Params{
		Strategy:    st,
		Density:     v.GetFloat64(key("density")),
		WidthMM:     v.GetFloat64(key("width_mm")),
		Passes:      v.GetInt(key("passes")),
		StitchLenMM: v.GetFloat64(key("stitch_len_mm")),
		MMPerPx:     v.GetFloat64(key("mm_per_px")),
		Color:       v.GetString(key("color")),
	}
	return p, p.Validate()
}

// planPattern stitches the strokes of a path pattern.
func planPattern(id string, s pattern.Settings, ns noise.Settings, p embroidery.Params) (embroidery.Plan, error) {
	paths, err := pattern.Paths(id, s, ns)
	if err != nil {
		if errors.Is(err, pattern.ErrNoPaths) {
			return embroidery.Plan{}, fmt.Errorf("%w (stitchable: %s)", err, strings.Join(pattern.PathPatterns(), ", "))
		}
		return embroidery.Plan{}, err
	}
	return embroidery.Generate(paths, p)
}

// writePlan writes plan as DST or JSON depending on the extension of out.
func writePlan(out, name string, plan embroidery.Plan, p embroidery.Params) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}

	switch strings.ToLower(filepath.Ext(out)) {
	case ".dst":
		err = embroidery.WriteDST(f, name, plan.Points, p.MMPerPx)
	case ".json":
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(plan)
	default:
		err = fmt.Errorf("unsupported stitch output %q (use .dst or .json)", filepath.Ext(out))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return err
	}
	return nil
}

func runStitch(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	id := args[0]

	s, ns, err := resolveSettings(v, "stitch")
	if err != nil {
		return err
	}
	p, err := stitchParams(v, "stitch")
	if err != nil {
		return err
	}

	plan, err := planPattern(id, s, ns, p)
	if err != nil {
		return err
	}

	out := v.GetString("stitch.output")
	if out == "" {
		out = filepath.Join(v.GetString("output-dir"), fmt.Sprintf("%s_%d.dst", id, s.Seed))
	}
	if err := writePlan(out, id, plan, p); err != nil {
		return err
	}
	logger.Info("Stitch plan written", "pattern", id, "path", out,
		"strategy", plan.Info.Strategy, "stitches", plan.Info.StitchCount, "jumps", plan.Info.JumpCount)
	return nil
}
