package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table renders rows in aligned columns with a bold header.
type Table struct {
	w    *tabwriter.Writer
	cols int
	rows int
}

// NewTable creates a table writer with the given column headers.
func NewTable(out io.Writer, headers ...string) *Table {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = headerStyle.Render(h)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(styled, "\t"))
	return &Table{w: tw, cols: len(headers)}
}

// Row appends a row. Missing trailing values render as "-".
func (t *Table) Row(values ...any) {
	n := max(len(values), t.cols)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "-"
		if i < len(values) {
			if s := fmt.Sprint(values[i]); s != "" {
				parts[i] = s
			}
		}
	}
	t.rows++
	_, _ = fmt.Fprintln(t.w, strings.Join(parts, "\t"))
}

// Len returns the number of rows written.
func (t *Table) Len() int { return t.rows }

// Flush writes the buffered output.
func (t *Table) Flush() error {
	return t.w.Flush()
}
