package formats

import (
	"github.com/apache/arrow-go/v18/arrow"
)

type Format interface {
	SetSchema(schema *arrow.Schema)
	Write(record arrow.Record) error
	Close() error
}

// formatValue renders a single value for text outputs.
func formatValue(arr arrow.Array, i int) string {
	if arr.IsNull(i) {
		return "<null>"
	}
	return arr.ValueStr(i)
}
