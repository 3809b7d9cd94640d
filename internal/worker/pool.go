// Package worker exports batches of textures in parallel.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
)

// Generator produces the output for one task.
type Generator interface {
	Generate(ctx context.Context, task Task) (Output, error)
}

// Output describes the file a task produced.
type Output struct {
	Path  string
	Bytes int64
	// Skipped is set when an existing file was kept.
	Skipped bool
}

// Task is one texture to render and export.
type Task struct {
	Name     string           `json:"name" mapstructure:"name"`
	Pattern  string           `json:"pattern" mapstructure:"pattern"`
	Settings pattern.Settings `json:"settings" mapstructure:"settings"`
	Noise    noise.Settings   `json:"noise" mapstructure:"noise"`
	Format   export.Format    `json:"format" mapstructure:"format"`
}

// Label names the task in file names and reports: Name, or
// "<pattern>_<seed>" when Name is empty.
func (t Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%s_%d", t.Pattern, t.Settings.Seed)
}

// Result is the outcome of a task.
type Result struct {
	Task Task
	Output
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called with every result, in completion order, together
// with the running counts.
type ProgressFunc func(r Result, completed, total, failed int)

type Config struct {
	Workers    int
	Generator  Generator
	OnProgress ProgressFunc
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	workers    int
	generator  Generator
	onProgress ProgressFunc
}

func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and blocks until they finish. Cancelling ctx
// stops feeding new tasks; tasks already picked up report ctx.Err().
// Results arrive in completion order.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task)
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})
	go func() {
		defer close(done)
		failed := 0
		for r := range resultCh {
			results = append(results, r)
			if r.Err != nil {
				failed++
			}
			if p.onProgress != nil {
				p.onProgress(r, len(results), len(tasks), failed)
			}
		}
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		out, err := p.generator.Generate(ctx, task)
		results <- Result{
			Task:    task,
			Output:  out,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
