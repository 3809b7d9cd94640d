package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/MeKo-Tech/textilegen/internal/composite"
	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List available patterns, blend modes and export formats",
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("patterns.json") {
			return writeCatalogJSON(cmd.OutOrStdout())
		}
		return writeCatalog(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(patternsCmd)
	patternsCmd.Flags().Bool("json", false, "Print the catalog as JSON")
	mustBind("patterns.json", patternsCmd, "json")
}

type catalog struct {
	Patterns   []pattern.Descriptor `json:"patterns"`
	BlendModes []string             `json:"blendModes"`
	Formats    []export.Format      `json:"formats"`
}

func currentCatalog() catalog {
	modes := composite.Modes()
	sort.Strings(modes)
	return catalog{
		Patterns:   pattern.Catalog(),
		BlendModes: modes,
		Formats:    export.Formats(),
	}
}

func writeCatalogJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(currentCatalog())
}

func writeCatalog(w io.Writer) error {
	c := currentCatalog()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY")
	for _, d := range c.Patterns {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Name, d.Category)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nBlend modes: %v\nFormats: %v\n", c.BlendModes, c.Formats)
	return nil
}
