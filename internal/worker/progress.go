package worker

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/dustin/go-humanize"
)

const barWidth = 30

// Progress tallies a batch export as results arrive and draws a one-line
// status: textures done, bytes written and the texture just finished.
type Progress struct {
	mu      sync.Mutex
	output  io.Writer
	enabled bool
	start   time.Time

	total     int
	completed int
	failed    int
	skipped   int
	bytes     int64
	formats   map[export.Format]int
	failures  []string
	last      string
}

func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		output:  os.Stderr,
		enabled: enabled,
		start:   time.Now(),
		total:   total,
		formats: make(map[export.Format]int),
	}
}

// Record folds one result into the tally and redraws when enabled.
// It has the shape of a ProgressFunc.
func (p *Progress) Record(r Result, completed, total, failed int) {
	p.mu.Lock()
	p.completed, p.total, p.failed = completed, total, failed
	p.last = r.Task.Label()
	switch {
	case r.Err != nil:
		p.failures = append(p.failures, p.last)
	case r.Skipped:
		p.skipped++
	default:
		f := r.Task.Format
		if f == "" {
			f = export.PNG
		}
		p.formats[f]++
		p.bytes += r.Bytes
	}
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Record
}

func (p *Progress) Print() {
	p.mu.Lock()
	line := p.statusLine(time.Since(p.start))
	p.mu.Unlock()

	// Trailing spaces clear what a longer previous line left behind.
	fmt.Fprint(p.output, "\r"+line+"          ")
}

func (p *Progress) statusLine(elapsed time.Duration) string {
	filled := 0
	if p.total > 0 {
		filled = min(barWidth, p.completed*barWidth/p.total)
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d/%d textures", bar, p.completed, p.total)
	if p.failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", p.failed)
	}
	fmt.Fprintf(&b, " - %s", humanize.Bytes(uint64(p.bytes)))

	rate := ratePerSecond(p.completed, elapsed)
	fmt.Fprintf(&b, " - %.1f textures/sec", rate)
	if p.completed >= p.total {
		fmt.Fprintf(&b, " - Done in %s", formatDuration(elapsed))
	} else if rate > 0 {
		eta := time.Duration(float64(p.total-p.completed) / rate * float64(time.Second))
		fmt.Fprintf(&b, " - ETA: %s", formatDuration(eta))
	}
	if p.last != "" && p.completed < p.total {
		fmt.Fprintf(&b, " - %s", p.last)
	}
	return b.String()
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Failures lists the labels of failed tasks in completion order.
func (p *Progress) Failures() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.failures...)
}

// Summary describes the finished batch, e.g.
// "Exported 8/10 textures (4.1 MB; png 5, webp 3; 1 skipped) in 2s (4.0/sec); 2 failed: a, b".
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.start)
	written := p.completed - p.failed

	details := []string{humanize.Bytes(uint64(p.bytes))}
	if len(p.formats) > 0 {
		formats := make([]string, 0, len(p.formats))
		for f, n := range p.formats {
			formats = append(formats, fmt.Sprintf("%s %d", f, n))
		}
		sort.Strings(formats)
		details = append(details, strings.Join(formats, ", "))
	}
	if p.skipped > 0 {
		details = append(details, fmt.Sprintf("%d skipped", p.skipped))
	}

	s := fmt.Sprintf("Exported %d/%d textures (%s) in %s (%.1f/sec)",
		written, p.total, strings.Join(details, "; "), formatDuration(elapsed), ratePerSecond(p.completed, elapsed))
	if len(p.failures) > 0 {
		s += fmt.Sprintf("; %d failed: %s", len(p.failures), strings.Join(p.failures, ", "))
	}
	return s
}

func ratePerSecond(n int, d time.Duration) float64 {
	if n == 0 || d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
