package physical

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// Field is a schema field as written in a plan file.
type Field struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable *bool  `yaml:"nullable"`
}

// ParseType parses a type name used in plan files.
// Timestamps have millisecond precision.
func ParseType(name string) (arrow.DataType, error) {
	switch strings.ToLower(name) {
	case "int", "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "float", "float64":
		return arrow.PrimitiveTypes.Float64, nil
	case "string":
		return arrow.BinaryTypes.String, nil
	case "bool", "boolean":
		return arrow.FixedWidthTypes.Boolean, nil
	case "timestamp":
		return arrow.FixedWidthTypes.Timestamp_ms, nil
	default:
		return nil, fmt.Errorf("unknown type '%s'", name)
	}
}

func SchemaFromFields(fields []Field) (*arrow.Schema, error) {
	out := make([]arrow.Field, len(fields))
	seen := make(map[string]bool, len(fields))
	for i, field := range fields {
		if field.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if seen[field.Name] {
			return nil, fmt.Errorf("duplicate field '%s'", field.Name)
		}
		seen[field.Name] = true

		dt, err := ParseType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("invalid type of field '%s': %w", field.Name, err)
		}
		nullable := true
		if field.Nullable != nil {
			nullable = *field.Nullable
		}
		out[i] = arrow.Field{
			Name:     field.Name,
			Type:     dt,
			Nullable: nullable,
		}
	}
	return arrow.NewSchema(out, nil), nil
}

// ParseValue parses a textual value, like a query parameter passed on the command line, into a scalar of the given type.
func ParseValue(dt arrow.DataType, text string) (scalar.Scalar, error) {
	switch dt.ID() {
	case arrow.INT64:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse int: %w", err)
		}
		return scalar.NewInt64Scalar(v), nil
	case arrow.FLOAT64:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse float: %w", err)
		}
		return scalar.NewFloat64Scalar(v), nil
	case arrow.STRING:
		return scalar.NewStringScalar(text), nil
	case arrow.BOOL:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse bool: %w", err)
		}
		return scalar.NewBooleanScalar(v), nil
	case arrow.TIMESTAMP:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse timestamp: %w", err)
		}
		return scalar.NewTimestampScalar(arrow.Timestamp(t.UnixMilli()), dt), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %s", dt)
	}
}
