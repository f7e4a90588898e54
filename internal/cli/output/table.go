package output

import (
	"io"
	"strings"
	"text/tabwriter"
)

// Tabular is implemented by results that know their table layout.
type Tabular interface {
	Table() *Table
}

// TableFormatter renders Tabular data. Other values fall back to JSON.
type TableFormatter struct {
	NoHeaders bool
}

// Format implements Formatter.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		return v.Render(w, f.NoHeaders)
	case Tabular:
		return v.Table().Render(w, f.NoHeaders)
	default:
		return (&JSONFormatter{}).Format(w, data)
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow adds a row. Empty cells render as "-".
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(cells))
	for i, c := range cells {
		if c == "" {
			c = "-"
		}
		row[i] = c
	}
	t.Rows = append(t.Rows, row)
}

// Render writes the table aligned with tabs.
func (t *Table) Render(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		io.WriteString(tw, strings.Join(t.Headers, "\t")+"\n")
	}
	for _, row := range t.Rows {
		io.WriteString(tw, strings.Join(row, "\t")+"\n")
	}
	return tw.Flush()
}
