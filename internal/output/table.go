package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Tabular values can be rendered as a table.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// PrintTable writes t as borderless left-aligned table.
func PrintTable(w io.Writer, t Tabular) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Header())
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(true)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("  ")
	tw.SetNoWhiteSpace(true)
	tw.AppendBulk(t.Rows())
	tw.Render()

	return nil
}

// KeyValue is a two-column table of named values kept in insertion order.
type KeyValue [][2]string

// Add appends a named value.
func (kv *KeyValue) Add(key, value string) {
	*kv = append(*kv, [2]string{key, value})
}

// Header implements Tabular.
func (KeyValue) Header() []string {
	return []string{"Field", "Value"}
}

// Rows implements Tabular.
func (kv KeyValue) Rows() [][]string {
	rows := make([][]string, 0, len(kv))
	for _, p := range kv {
		rows = append(rows, []string{p[0], p[1]})
	}
	return rows
}
