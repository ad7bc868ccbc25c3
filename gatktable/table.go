// Package gatktable writes the pipeline's recalibration tables in GATK's
// text format (spec §6): one #:GATKTable section per table, a header line
// naming the table and its column layout, then a blank-line-terminated
// block of rows.
package gatktable

import (
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
)

// Column describes one output column: its header text and the fmt verb
// used to render a row's value for it.
type Column struct {
	Header string
	Format string
}

// Table is one #:GATKTable section: a name, a free-text description, an
// ordered column list, and rows of already-computed values (one
// interface{} per column, in column order).
type Table struct {
	Name        string
	Description string
	Columns     []Column
	Rows        [][]interface{}
}

// Write emits every table in order, each as its own #:GATKTable section.
// It is the single entry point the pipeline driver's postprocess step
// calls once the global covariate tables have been merged.
func Write(w io.Writer, tables ...*Table) error {
	for _, t := range tables {
		if err := writeOne(w, t); err != nil {
			return errors.E(err, fmt.Sprintf("gatktable: writing table %s", t.Name))
		}
	}
	return nil
}

func writeOne(w io.Writer, t *Table) error {
	formats := make([]string, len(t.Columns))
	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		formats[i] = c.Format
		headers[i] = c.Header
	}
	if _, err := fmt.Fprintf(w, "#:GATKTable:%d:%d:%s:;\n", len(t.Columns), len(t.Rows), strings.Join(formats, ":")); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "#:GATKTable:%s:%s\n", t.Name, t.Description); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Join(headers, "  ")); err != nil {
		return err
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf(t.Columns[i].Format, v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "  ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
