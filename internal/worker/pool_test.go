package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/MeKo-Tech/textilegen/internal/studio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	delay     time.Duration
	fail      map[string]bool
	callCount atomic.Int32
}

func (m *mockGenerator) Generate(ctx context.Context, task Task) (Output, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	case <-time.After(m.delay):
	}

	if m.fail[task.Name] {
		return Output{}, errors.New("simulated failure")
	}
	return Output{Path: "/tmp/" + task.Name + ".png", Bytes: 100}, nil
}

func named(names ...string) []Task {
	tasks := make([]Task, len(names))
	for i, n := range names {
		tasks[i] = Task{Name: n, Pattern: "perlin_noise"}
	}
	return tasks
}

func TestPoolRunsEveryTask(t *testing.T) {
	gen := &mockGenerator{delay: 5 * time.Millisecond}
	pool := New(Config{Workers: 2, Generator: gen})

	tasks := named("a", "b", "c")
	results := pool.Run(context.Background(), tasks)

	require.Len(t, results, len(tasks))
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, "/tmp/"+r.Task.Name+".png", r.Path)
	}
	assert.EqualValues(t, len(tasks), gen.callCount.Load())
}

func TestPoolRunsInParallel(t *testing.T) {
	gen := &mockGenerator{delay: 50 * time.Millisecond}
	pool := New(Config{Workers: 4, Generator: gen})

	start := time.Now()
	results := pool.Run(context.Background(), named("1", "2", "3", "4", "5", "6", "7", "8"))
	elapsed := time.Since(start)

	require.Len(t, results, 8)
	// Sequential would take 400ms; four workers need about 100ms.
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestPoolReportsErrors(t *testing.T) {
	gen := &mockGenerator{delay: time.Millisecond, fail: map[string]bool{"b": true}}
	pool := New(Config{Workers: 2, Generator: gen})

	results := pool.Run(context.Background(), named("a", "b", "c"))

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.Equal(t, "b", r.Task.Name)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestPoolStopsOnCancel(t *testing.T) {
	gen := &mockGenerator{delay: 100 * time.Millisecond}
	pool := New(Config{Workers: 1, Generator: gen})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	tasks := named("1", "2", "3", "4", "5", "6", "7", "8", "9", "10")
	start := time.Now()
	results := pool.Run(ctx, tasks)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Less(t, len(results), len(tasks))
	assert.Less(t, int(gen.callCount.Load()), len(tasks))
}

func TestPoolProgressCallback(t *testing.T) {
	gen := &mockGenerator{delay: time.Millisecond, fail: map[string]bool{"c": true}}

	var mu sync.Mutex
	var failedNames []string
	var calls [][3]int
	pool := New(Config{
		Workers:   2,
		Generator: gen,
		OnProgress: func(r Result, completed, total, failed int) {
			mu.Lock()
			calls = append(calls, [3]int{completed, total, failed})
			if r.Err != nil {
				failedNames = append(failedNames, r.Task.Name)
			}
			mu.Unlock()
		},
	})

	pool.Run(context.Background(), named("a", "b", "c", "d"))

	require.Len(t, calls, 4)
	last := calls[len(calls)-1]
	assert.Equal(t, [3]int{4, 4, 1}, last)
	for i, c := range calls {
		assert.Equal(t, i+1, c[0])
	}
	assert.Equal(t, []string{"c"}, failedNames)
}

func TestPoolEmpty(t *testing.T) {
	pool := New(Config{Generator: &mockGenerator{}})
	assert.Empty(t, pool.Run(context.Background(), nil))
	assert.Equal(t, 1, pool.workers)
}

type memorySink struct {
	mu   sync.Mutex
	seen []*studio.Texture
}

func (s *memorySink) Add(tex *studio.Texture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, tex)
	return nil
}

func TestExporterWritesFiles(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	ex := &Exporter{OutputDir: dir, Quality: export.DefaultQuality, Sink: sink}

	st := pattern.DefaultSettings(32, 32)
	tasks := []Task{
		{Name: "grid", Pattern: "geometric_grid", Settings: st},
		{Pattern: "voronoi", Settings: st, Format: export.JPEG},
	}
	results := New(Config{Workers: 2, Generator: ex}).Run(context.Background(), tasks)
	require.Len(t, results, 2)

	for _, r := range results {
		require.NoError(t, r.Err)
		info, err := os.Stat(r.Path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
		assert.Equal(t, info.Size(), r.Bytes)
		assert.False(t, r.Skipped)
	}
	assert.FileExists(t, filepath.Join(dir, "grid.png"))
	assert.FileExists(t, filepath.Join(dir, "voronoi_1337.jpg"))

	require.Len(t, sink.seen, 2)
	for _, tex := range sink.seen {
		assert.NotEmpty(t, tex.ID)
		assert.Equal(t, 32, tex.Data.Bounds().Dx())
	}
}

func TestExporterSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	ex := &Exporter{OutputDir: dir}
	task := Task{Name: "kept", Pattern: "stripes", Settings: pattern.DefaultSettings(16, 16)}

	path := ex.Path(task)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	got, err := ex.Generate(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, Output{Path: path, Bytes: 1, Skipped: true}, got)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	ex.Overwrite = true
	_, err = ex.Generate(context.Background(), task)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "x", string(data))
}

func TestExporterUnknownPattern(t *testing.T) {
	ex := &Exporter{OutputDir: t.TempDir()}
	_, err := ex.Generate(context.Background(), Task{Pattern: "nope", Settings: pattern.DefaultSettings(8, 8)})
	assert.ErrorIs(t, err, pattern.ErrUnknownPattern)
}
