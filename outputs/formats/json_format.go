package formats

import (
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/valyala/fastjson"
)

type JSONFormatter struct {
	buf    []byte
	arena  *fastjson.Arena
	w      io.Writer
	fields []arrow.Field
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{
		buf:   make([]byte, 0, 1024),
		arena: new(fastjson.Arena),
		w:     w,
	}
}

func (t *JSONFormatter) SetSchema(schema *arrow.Schema) {
	t.fields = schema.Fields()
}

func (t *JSONFormatter) Write(record arrow.Record) error {
	columns := record.Columns()
	for rowIndex := 0; rowIndex < int(record.NumRows()); rowIndex++ {
		obj := t.arena.NewObject()
		for i := range t.fields {
			value, err := ValueToJson(t.arena, columns[i], rowIndex)
			if err != nil {
				return fmt.Errorf("field '%s': %w", t.fields[i].Name, err)
			}
			obj.Set(t.fields[i].Name, value)
		}

		t.buf = obj.MarshalTo(t.buf)
		t.buf = append(t.buf, '\n')
		if _, err := t.w.Write(t.buf); err != nil {
			return err
		}
		t.buf = t.buf[:0]
		t.arena.Reset()
	}
	return nil
}

func ValueToJson(arena *fastjson.Arena, arr arrow.Array, i int) (*fastjson.Value, error) {
	if arr.IsNull(i) {
		return arena.NewNull(), nil
	}

	switch arr := arr.(type) {
	case *array.Int64:
		return arena.NewNumberInt(int(arr.Value(i))), nil
	case *array.Float64:
		return arena.NewNumberFloat64(arr.Value(i)), nil
	case *array.Boolean:
		if arr.Value(i) {
			return arena.NewTrue(), nil
		}
		return arena.NewFalse(), nil
	case *array.String:
		return arena.NewString(arr.Value(i)), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arena.NewString(arr.Value(i).ToTime(unit).Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", arr.DataType())
	}
}

func (t *JSONFormatter) Close() error {
	return nil
}
