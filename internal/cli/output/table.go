package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Table is a borderless, left-aligned table.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Append adds a row. Missing trailing cells are left blank.
func (t *Table) Append(cells ...string) {
	row := make([]string, max(len(cells), len(t.headers)))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	tw := newWriter(w)
	tw.SetHeader(t.headers)
	tw.SetAutoFormatHeaders(true)
	tw.SetColumnSeparator("")
	tw.AppendBulk(t.rows)
	tw.Render()
	return nil
}

// KeyValues writes one "key: value" line per pair, aligned on the colon.
func KeyValues(w io.Writer, pairs [][2]string) error {
	tw := newWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetColumnSeparator(":")
	for _, p := range pairs {
		tw.Append([]string{p[0], p[1]})
	}
	tw.Render()
	return nil
}

func newWriter(w io.Writer) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoWrapText(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("  ")
	tw.SetNoWhiteSpace(true)
	return tw
}
