package enrich

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
)

// Progress receives per-field progress updates from the queue.
type Progress interface {
	Start(field string, total int)
	Advance(field string, n int)
	Finish(field string)
}

type nopProgress struct{}

func (nopProgress) Start(string, int)   {}
func (nopProgress) Advance(string, int) {}
func (nopProgress) Finish(string)       {}

// BarProgress renders a single-line progress bar per field to out.
type BarProgress struct {
	mu    sync.Mutex
	out   io.Writer
	bar   progress.Model
	done  int
	total int
}

// NewBarProgress creates a bar renderer writing to out.
func NewBarProgress(out io.Writer) *BarProgress {
	return &BarProgress{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (b *BarProgress) Start(field string, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done, b.total = 0, total
	fmt.Fprintf(b.out, "[[[[%s]]]]\n", field)
	b.render(field)
}

func (b *BarProgress) Advance(field string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done += n
	// Rows inserted while a sweep runs can push done past the initial count.
	if b.done > b.total {
		b.total = b.done
	}
	b.render(field)
}

func (b *BarProgress) Finish(field string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.render(field)
	fmt.Fprintln(b.out)
}

func (b *BarProgress) render(field string) {
	pct := 1.0
	if b.total > 0 {
		pct = float64(b.done) / float64(b.total)
	}
	fmt.Fprintf(b.out, "\r%s %s %d/%d", field, b.bar.ViewAs(pct), b.done, b.total)
}
