package physical

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cube2222/arrowexec/execution"
	"github.com/cube2222/arrowexec/nodes"
)

func valuesStreamItems(schema *arrow.Schema, batches []ValuesBatch) ([]nodes.StreamItem, error) {
	var items []nodes.StreamItem
	for i, batch := range batches {
		if len(batch.Rows) > 0 {
			record, err := valuesRecord(schema, batch.Rows)
			if err != nil {
				return nil, fmt.Errorf("batch %d: %w", i, err)
			}
			items = append(items, nodes.StreamItem{Record: &execution.Record{Record: record}})
		}
		if batch.Watermark != nil {
			msg := execution.NewWatermarkMessage(*batch.Watermark)
			items = append(items, nodes.StreamItem{Metadata: &msg})
		}
	}
	return items, nil
}

func valuesRecord(schema *arrow.Schema, rows [][]interface{}) (arrow.Record, error) {
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	for rowIndex, row := range rows {
		if len(row) != len(schema.Fields()) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", rowIndex, len(row), len(schema.Fields()))
		}
		for i, value := range row {
			field := schema.Field(i)
			if err := appendValue(builder.Field(i), field, value); err != nil {
				return nil, fmt.Errorf("row %d, field '%s': %w", rowIndex, field.Name, err)
			}
		}
	}

	return builder.NewRecord(), nil
}

func appendValue(builder array.Builder, field arrow.Field, value interface{}) error {
	if value == nil {
		if !field.Nullable {
			return fmt.Errorf("null value in non-nullable field")
		}
		builder.AppendNull()
		return nil
	}

	switch builder := builder.(type) {
	case *array.Int64Builder:
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("expected int, got %T", value)
		}
		builder.Append(int64(v))
	case *array.Float64Builder:
		switch v := value.(type) {
		case float64:
			builder.Append(v)
		case int:
			builder.Append(float64(v))
		default:
			return fmt.Errorf("expected float, got %T", value)
		}
	case *array.StringBuilder:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		builder.Append(v)
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		builder.Append(v)
	case *array.TimestampBuilder:
		var t time.Time
		switch v := value.(type) {
		case time.Time:
			t = v
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return fmt.Errorf("couldn't parse timestamp: %w", err)
			}
			t = parsed
		default:
			return fmt.Errorf("expected timestamp, got %T", value)
		}
		builder.Append(arrow.Timestamp(t.UnixMilli()))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type)
	}
	return nil
}
