package ui

import (
	"fmt"
	"io"
)

// Progress prints numbered steps of a run as "[n/N] label".
type Progress struct {
	out   io.Writer
	total int
	n     int
}

// NewProgress creates a progress printer for total steps.
func NewProgress(out io.Writer, total int) *Progress {
	return &Progress{out: out, total: total}
}

// Step advances the counter and prints label. Steps past total extend it.
func (p *Progress) Step(label string) {
	p.n++
	if p.n > p.total {
		p.total = p.n
	}
	_, _ = fmt.Fprintf(p.out, "%s %s\n", stepStyle.Render(fmt.Sprintf("[%d/%d]", p.n, p.total)), label)
}

// Log prints an indented detail line under the current step.
func (p *Progress) Log(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, "      "+format+"\n", args...)
}
