package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var upscaleCmd = &cobra.Command{
	Use:   "upscale <input> [output]",
	Short: "Enlarge a texture with Lanczos resampling",
	Long: `Enlarge an image file by an integer factor between 2 and 4. The output
defaults to <input>_x<scale> with the input's extension.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpscale,
}

func init() {
	rootCmd.AddCommand(upscaleCmd)

	upscaleCmd.Flags().Int("scale", effects.MinUpscale, "Scale factor (2-4)")
	upscaleCmd.Flags().Int("quality", export.DefaultQuality, "JPEG quality (1-100)")
	mustBind("upscale.scale", upscaleCmd, "scale")
	mustBind("upscale.quality", upscaleCmd, "quality")
}

// upscaledPath turns "out/plaid.png" into "out/plaid_x2.png".
func upscaledPath(in string, scale int) string {
	ext := filepath.Ext(in)
	return fmt.Sprintf("%s_x%d%s", strings.TrimSuffix(in, ext), scale, ext)
}

func upscaleFile(in, out string, scale, quality int) error {
	if _, err := export.FormatFromPath(out); err != nil {
		return err
	}
	img, err := export.ReadFile(in)
	if err != nil {
		return err
	}
	big, err := effects.Upscale(img, scale)
	if err != nil {
		return err
	}
	return export.WriteFile(out, big, quality)
}

func runUpscale(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	scale := v.GetInt("upscale.scale")
	in := args[0]
	out := upscaledPath(in, scale)
	if len(args) == 2 {
		out = args[1]
	}

	if err := upscaleFile(in, out, scale, v.GetInt("upscale.quality")); err != nil {
		return err
	}
	logger.Info("Texture upscaled", "input", in, "path", out, "scale", scale)
	return nil
}
