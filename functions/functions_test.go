package functions

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/arrowexec/execution"
)

func ints(values []int64, valid []bool) arrow.Array {
	builder := array.NewInt64Builder(memory.DefaultAllocator)
	defer builder.Release()
	builder.AppendValues(values, valid)
	return builder.NewArray()
}

func floats(values ...float64) arrow.Array {
	builder := array.NewFloat64Builder(memory.DefaultAllocator)
	defer builder.Release()
	builder.AppendValues(values, nil)
	return builder.NewArray()
}

func bools(values ...bool) arrow.Array {
	builder := array.NewBooleanBuilder(memory.DefaultAllocator)
	defer builder.Release()
	builder.AppendValues(values, nil)
	return builder.NewArray()
}

func boolValues(t *testing.T, arr arrow.Array) []bool {
	typed, ok := arr.(*array.Boolean)
	require.True(t, ok, "expected boolean array, got %s", arr.DataType())
	out := make([]bool, typed.Len())
	for i := range out {
		out[i] = typed.Value(i)
	}
	return out
}

func evaluate(t *testing.T, name string, args ...arrow.Array) (arrow.Array, error) {
	fn, ok := Get(name)
	require.True(t, ok)
	require.Len(t, args, fn.ArgumentCount)
	return fn.Implementation(context.Background(), args)
}

func TestComparisons(t *testing.T) {
	left := ints([]int64{1, 2, 3}, nil)
	right := ints([]int64{2, 2, 2}, nil)

	tests := []struct {
		name string
		want []bool
	}{
		{name: "equal", want: []bool{false, true, false}},
		{name: "not_equal", want: []bool{true, false, true}},
		{name: "greater", want: []bool{false, false, true}},
		{name: "greater_equal", want: []bool{false, true, true}},
		{name: "less", want: []bool{true, false, false}},
		{name: "less_equal", want: []bool{true, true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := evaluate(t, tt.name, left, right)
			require.NoError(t, err)
			defer out.Release()
			assert.Equal(t, tt.want, boolValues(t, out))
		})
	}
}

func TestBooleanLogic(t *testing.T) {
	left := bools(true, true, false, false)
	right := bools(true, false, true, false)

	out, err := evaluate(t, "and", left, right)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false, false}, boolValues(t, out))

	out, err = evaluate(t, "or", left, right)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true, false}, boolValues(t, out))

	out, err = evaluate(t, "not", left)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true, true}, boolValues(t, out))
}

func TestNotKeepsNulls(t *testing.T) {
	builder := array.NewBooleanBuilder(memory.DefaultAllocator)
	defer builder.Release()
	builder.AppendValues([]bool{true, false, false}, []bool{true, true, false})
	arg := builder.NewArray()
	defer arg.Release()

	out, err := evaluate(t, "not", arg)
	require.NoError(t, err)
	defer out.Release()
	require.Equal(t, 3, out.Len())
	assert.False(t, out.(*array.Boolean).Value(0))
	assert.True(t, out.(*array.Boolean).Value(1))
	assert.True(t, out.IsNull(2))
}

func TestArithmetic(t *testing.T) {
	left := ints([]int64{7, 8, -9}, nil)
	right := ints([]int64{2, 4, 2}, nil)

	tests := []struct {
		name string
		want []int64
	}{
		{name: "add", want: []int64{9, 12, -7}},
		{name: "subtract", want: []int64{5, 4, -11}},
		{name: "multiply", want: []int64{14, 32, -18}},
		{name: "divide", want: []int64{3, 2, -4}},
		{name: "modulo", want: []int64{1, 0, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := evaluate(t, tt.name, left, right)
			require.NoError(t, err)
			defer out.Release()
			assert.Equal(t, tt.want, out.(*array.Int64).Int64Values())
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := Divide(context.Background(), []arrow.Array{ints([]int64{1, 2}, nil), ints([]int64{1, 0}, nil)})
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Modulo(context.Background(), []arrow.Array{ints([]int64{1}, nil), ints([]int64{0}, nil)})
	assert.ErrorIs(t, err, ErrDivisionByZero)

	// Null rows are never evaluated.
	out, err := Divide(context.Background(), []arrow.Array{ints([]int64{1, 2}, nil), ints([]int64{1, 0}, []bool{true, false})})
	require.NoError(t, err)
	assert.True(t, out.IsNull(1))
	assert.Equal(t, int64(1), out.(*array.Int64).Value(0))
}

func TestFloatDivision(t *testing.T) {
	out, err := Divide(context.Background(), []arrow.Array{floats(1, 7.5), floats(4, 2.5)})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 3}, out.(*array.Float64).Float64Values())

	out, err = Modulo(context.Background(), []arrow.Array{floats(7.5), floats(2)})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, out.(*array.Float64).Float64Values())
}

func TestArithmeticTypeMismatch(t *testing.T) {
	_, err := Divide(context.Background(), []arrow.Array{ints([]int64{1}, nil), floats(1)})
	assert.ErrorIs(t, err, execution.ErrTypeMismatch)

	_, err = Divide(context.Background(), []arrow.Array{bools(true), bools(true)})
	assert.ErrorIs(t, err, execution.ErrTypeMismatch)
}

func TestOutputTypes(t *testing.T) {
	tests := []struct {
		name    string
		args    []arrow.DataType
		want    arrow.DataType
		wantErr bool
	}{
		{
			name: "greater",
			args: []arrow.DataType{arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64},
			want: arrow.FixedWidthTypes.Boolean,
		},
		{
			name:    "greater",
			args:    []arrow.DataType{arrow.PrimitiveTypes.Int64, arrow.BinaryTypes.String},
			wantErr: true,
		},
		{
			name: "add",
			args: []arrow.DataType{arrow.PrimitiveTypes.Float64, arrow.PrimitiveTypes.Float64},
			want: arrow.PrimitiveTypes.Float64,
		},
		{
			name:    "add",
			args:    []arrow.DataType{arrow.BinaryTypes.String, arrow.BinaryTypes.String},
			wantErr: true,
		},
		{
			name: "not",
			args: []arrow.DataType{arrow.FixedWidthTypes.Boolean},
			want: arrow.FixedWidthTypes.Boolean,
		},
		{
			name:    "and",
			args:    []arrow.DataType{arrow.FixedWidthTypes.Boolean, arrow.PrimitiveTypes.Int64},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := Get(tt.name)
			require.True(t, ok)
			got, err := fn.OutputType(tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, execution.ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.True(t, arrow.TypeEqual(tt.want, got))
		})
	}
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "greater")
	assert.Contains(t, names, "modulo")
	_, ok := Get("nonexistent")
	assert.False(t, ok)
}
