package formats

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/olekukonko/tablewriter"
)

type TableFormatter struct {
	table *tablewriter.Table
}

func NewTableFormatter(w io.Writer, colWidth int) *TableFormatter {
	table := tablewriter.NewWriter(w)
	table.SetColWidth(colWidth)
	table.SetRowLine(false)

	return &TableFormatter{
		table: table,
	}
}

func (t *TableFormatter) SetSchema(schema *arrow.Schema) {
	header := make([]string, len(schema.Fields()))
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}
	t.table.SetHeader(header)
	t.table.SetAutoFormatHeaders(false)
}

func (t *TableFormatter) Write(record arrow.Record) error {
	columns := record.Columns()
	for rowIndex := 0; rowIndex < int(record.NumRows()); rowIndex++ {
		row := make([]string, len(columns))
		for i := range columns {
			row[i] = formatValue(columns[i], rowIndex)
		}
		t.table.Append(row)
	}
	return nil
}

func (t *TableFormatter) Close() error {
	t.table.Render()
	return nil
}

// WriteSchema prints a human-readable description of the schema.
func WriteSchema(w io.Writer, schema *arrow.Schema) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"name", "type", "nullable"})
	table.SetAutoFormatHeaders(false)
	for _, field := range schema.Fields() {
		nullable := "no"
		if field.Nullable {
			nullable = "yes"
		}
		table.Append([]string{field.Name, field.Type.String(), nullable})
	}
	table.Render()
}
