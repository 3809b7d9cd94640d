package cmd

import (
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/MeKo-Tech/textilegen/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Export many textures in parallel",
	Long: `Export textures in parallel. Tasks come from batch.tasks in the config
file, or from --patterns combined with --count consecutive seeds.

  batch:
    tasks:
      - pattern: plaid
        preset: autumn
        format: webp
      - pattern: julia
        name: julia-wide
        seed: 7`,
	RunE: runBatch,
}

// batchEntry is one item of batch.tasks.
type batchEntry struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
	Preset  string `mapstructure:"preset"`
	Format  string `mapstructure:"format"`
	Seed    int64  `mapstructure:"seed"`
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addSettingsFlags(viper.GetViper(), batchCmd, "batch")

	batchCmd.Flags().StringSlice("patterns", nil, "Pattern ids to export (default: every pattern)")
	batchCmd.Flags().Int("count", 1, "Consecutive seeds per pattern, starting at --seed")
	batchCmd.Flags().String("format", string(export.PNG), "Output format (png, jpeg, webp, tga, svg)")
	batchCmd.Flags().Int("quality", export.DefaultQuality, "JPEG quality (1-100)")
	batchCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	batchCmd.Flags().Bool("progress", true, "Show progress bar")
	batchCmd.Flags().Bool("overwrite", false, "Replace files that already exist")
	batchCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some textures fail")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"batch.patterns", "patterns"},
		{"batch.count", "count"},
		{"batch.format", "format"},
		{"batch.quality", "quality"},
		{"batch.workers", "workers"},
		{"batch.progress", "progress"},
		{"batch.overwrite", "overwrite"},
		{"batch.allow_failures", "allow-failures"},
	}
	for _, bf := range bindFlags {
		mustBind(bf.key, batchCmd, bf.flag)
	}
}

// buildTasks expands batch.tasks, or the pattern × seed grid when no task
// list is configured.
func buildTasks(v *viper.Viper, base pattern.Settings, ns noise.Settings) ([]worker.Task, error) {
	format, err := export.ParseFormat(v.GetString("batch.format"))
	if err != nil {
		return nil, err
	}

	if v.IsSet("batch.tasks") {
		var entries []batchEntry
		if err := v.UnmarshalKey("batch.tasks", &entries); err != nil {
			return nil, fmt.Errorf("invalid batch.tasks: %w", err)
		}
		tasks := make([]worker.Task, 0, len(entries))
		for i, e := range entries {
			if _, _, ok := pattern.Lookup(e.Pattern); !ok {
				return nil, fmt.Errorf("batch.tasks[%d]: %w: %q", i, pattern.ErrUnknownPattern, e.Pattern)
			}
			t := worker.Task{Name: e.Name, Pattern: e.Pattern, Settings: base, Noise: ns, Format: format}
			if e.Preset != "" {
				p, err := loadPreset(v, e.Preset)
				if err != nil {
					return nil, fmt.Errorf("batch.tasks[%d]: %w", i, err)
				}
				t.Settings, t.Noise = p.Settings, p.Noise
			}
			if e.Format != "" {
				if t.Format, err = export.ParseFormat(e.Format); err != nil {
					return nil, fmt.Errorf("batch.tasks[%d]: %w", i, err)
				}
			}
			if e.Seed != 0 {
				t.Settings.Seed = e.Seed
			}
			tasks = append(tasks, t)
		}
		return tasks, nil
	}

	ids := v.GetStringSlice("batch.patterns")
	if len(ids) == 0 {
		for _, d := range pattern.Catalog() {
			ids = append(ids, d.ID)
		}
	}
	count := max(v.GetInt("batch.count"), 1)

	tasks := make([]worker.Task, 0, len(ids)*count)
	for _, id := range ids {
		if _, _, ok := pattern.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %q", pattern.ErrUnknownPattern, id)
		}
		for i := 0; i < count; i++ {
			s := base
			s.Seed = base.Seed + int64(i)
			tasks = append(tasks, worker.Task{
				Name:     fmt.Sprintf("%s_%d", id, s.Seed),
				Pattern:  id,
				Settings: s,
				Noise:    ns,
				Format:   format,
			})
		}
	}
	return tasks, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	base, ns, err := resolveSettings(v, "batch")
	if err != nil {
		return err
	}
	tasks, err := buildTasks(v, base, ns)
	if err != nil {
		return err
	}

	workers := v.GetInt("batch.workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	outputDir := v.GetString("output-dir")

	exporter := &worker.Exporter{
		OutputDir: outputDir,
		Quality:   v.GetInt("batch.quality"),
		Overwrite: v.GetBool("batch.overwrite"),
		Logger:    logger,
	}
	if path := v.GetString("library"); path != "" {
		store, err := openLibrary(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close library", "error", err)
			}
		}()
		exporter.Sink = store
	}

	logger.Info("Starting batch export",
		"tasks", len(tasks),
		"workers", workers,
		"output_dir", outputDir,
	)

	progress := worker.NewProgress(len(tasks), v.GetBool("batch.progress"))
	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  exporter,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(cmd.Context(), tasks)
	progress.Done()

	for _, r := range results {
		if r.Err != nil {
			logger.Error("Texture export failed", "name", r.Task.Label(), "pattern", r.Task.Pattern, "error", r.Err)
		}
	}
	logger.Info(progress.Summary())
	failed := len(progress.Failures())

	if err := cmd.Context().Err(); err != nil {
		return fmt.Errorf("batch interrupted after %d of %d textures: %w", len(results), len(tasks), err)
	}
	if failed > 0 {
		if v.GetBool("batch.allow_failures") {
			logger.Warn("Some textures failed, continuing due to --allow-failures", "failed_count", failed)
			return nil
		}
		return fmt.Errorf("%d textures failed to export", failed)
	}
	return nil
}
