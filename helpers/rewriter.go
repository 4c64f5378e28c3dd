package helpers

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/cube2222/arrowexec/execution"
)

// RewritableType reports whether MakeColumnRewriter supports the given type.
func RewritableType(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT64, arrow.FLOAT64, arrow.STRING, arrow.BOOL, arrow.TIMESTAMP:
		return true
	default:
		return false
	}
}

// MakeColumnRewriter returns a function which appends the given row of arr to builder.
func MakeColumnRewriter(builder array.Builder, arr arrow.Array) (func(rowIndex int), error) {
	// TODO: Should this operate on row ranges instead of single rows? Would make low-selectivity workloads faster, as well as nested types.
	if !arrow.TypeEqual(builder.Type(), arr.DataType()) {
		return nil, &execution.TypeMismatchError{
			Context:  "column rewriter",
			Expected: builder.Type(),
			Actual:   arr.DataType(),
		}
	}
	switch builder.Type().ID() {
	case arrow.INT64:
		return rewriterForType[int64](builder.(*array.Int64Builder), arr.(*array.Int64)), nil
	case arrow.FLOAT64:
		return rewriterForType[float64](builder.(*array.Float64Builder), arr.(*array.Float64)), nil
	case arrow.STRING:
		return rewriterForType[string](builder.(*array.StringBuilder), arr.(*array.String)), nil
	case arrow.BOOL:
		return rewriterForType[bool](builder.(*array.BooleanBuilder), arr.(*array.Boolean)), nil
	case arrow.TIMESTAMP:
		return rewriterForType[arrow.Timestamp](builder.(*array.TimestampBuilder), arr.(*array.Timestamp)), nil
	default:
		return nil, fmt.Errorf("unsupported type for rewriting: %v", builder.Type())
	}
}

func rewriterForType[T any, BuilderType interface {
	Append(v T)
	AppendNull()
}, ArrayType interface {
	Value(i int) T
	IsNull(i int) bool
}](builder BuilderType, arr ArrayType) func(rowIndex int) {
	return func(rowIndex int) {
		if arr.IsNull(rowIndex) {
			builder.AppendNull()
			return
		}
		builder.Append(arr.Value(rowIndex))
	}
}
