package formats

import (
	"encoding/csv"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
)

type CSVFormatter struct {
	writer *csv.Writer
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	writer := csv.NewWriter(w)

	return &CSVFormatter{
		writer: writer,
	}
}

func (t *CSVFormatter) SetSchema(schema *arrow.Schema) {
	header := make([]string, len(schema.Fields()))
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}
	t.writer.Write(header)
}

func (t *CSVFormatter) Write(record arrow.Record) error {
	columns := record.Columns()
	for rowIndex := 0; rowIndex < int(record.NumRows()); rowIndex++ {
		row := make([]string, len(columns))
		for i := range columns {
			if columns[i].IsNull(rowIndex) {
				continue
			}
			row[i] = columns[i].ValueStr(rowIndex)
		}
		if err := t.writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (t *CSVFormatter) Close() error {
	t.writer.Flush()
	return t.writer.Error()
}
