package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/MeKo-Tech/textilegen/internal/studio"
	"github.com/google/uuid"
)

// Sink receives every exported texture, e.g. a library store.
type Sink interface {
	Add(tex *studio.Texture) error
}

// Exporter renders tasks to files in OutputDir.
type Exporter struct {
	OutputDir string
	Quality   int
	// Overwrite replaces existing files; otherwise they are skipped.
	Overwrite bool
	Sink      Sink
	Logger    *slog.Logger
}

func (e *Exporter) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Path returns the output file for task.
func (e *Exporter) Path(task Task) string {
	f := task.Format
	if f == "" {
		f = export.PNG
	}
	name := strings.ReplaceAll(task.Label(), string(filepath.Separator), "_")
	return filepath.Join(e.OutputDir, name+f.Ext())
}

// Generate renders and writes one task.
func (e *Exporter) Generate(ctx context.Context, task Task) (Output, error) {
	path := e.Path(task)
	if !e.Overwrite {
		if fi, err := os.Stat(path); err == nil {
			e.log().Debug("skipping existing texture", "path", path)
			return Output{Path: path, Bytes: fi.Size(), Skipped: true}, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	start := time.Now()
	img, err := pattern.Render(task.Pattern, task.Settings, task.Noise)
	if err != nil {
		return Output{}, fmt.Errorf("render %s: %w", task.Pattern, err)
	}
	if err := export.WriteFile(path, img, e.Quality); err != nil {
		return Output{}, err
	}
	out := Output{Path: path}
	if fi, err := os.Stat(path); err == nil {
		out.Bytes = fi.Size()
	}

	if e.Sink != nil {
		desc, _, _ := pattern.Lookup(task.Pattern)
		name := task.Name
		if name == "" {
			name = desc.Name
		}
		tex := &studio.Texture{
			ID:        uuid.NewString(),
			Name:      name,
			Pattern:   task.Pattern,
			Settings:  task.Settings,
			Noise:     task.Noise,
			CreatedAt: start,
			Data:      img,
		}
		if err := e.Sink.Add(tex); err != nil {
			return out, fmt.Errorf("store %s: %w", path, err)
		}
	}

	e.log().Debug("texture exported", "pattern", task.Pattern, "path", path,
		"bytes", out.Bytes, "ms", time.Since(start).Milliseconds())
	return out, nil
}
