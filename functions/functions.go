package functions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cube2222/arrowexec/execution"
)

var ErrDivisionByZero = errors.New("division by zero")

type Function struct {
	Name           string
	ArgumentCount  int
	OutputType     func(args []arrow.DataType) (arrow.DataType, error)
	Implementation execution.FunctionImplementation
}

var registry = func() map[string]Function {
	out := make(map[string]Function)
	for _, name := range []string{"equal", "not_equal", "greater", "greater_equal", "less", "less_equal"} {
		out[name] = Function{
			Name:           name,
			ArgumentCount:  2,
			OutputType:     comparisonOutputType,
			Implementation: computeFunction(name),
		}
	}
	out["and"] = Function{
		Name:           "and",
		ArgumentCount:  2,
		OutputType:     booleanOutputType,
		Implementation: computeFunction("and"),
	}
	out["or"] = Function{
		Name:           "or",
		ArgumentCount:  2,
		OutputType:     booleanOutputType,
		Implementation: computeFunction("or"),
	}
	out["not"] = Function{
		Name:           "not",
		ArgumentCount:  1,
		OutputType:     booleanOutputType,
		Implementation: computeFunction("invert"),
	}
	out["add"] = Function{
		Name:          "add",
		ArgumentCount: 2,
		OutputType:    numericOutputType,
		Implementation: arithmetic(func(ctx context.Context, left, right compute.Datum) (compute.Datum, error) {
			return compute.Add(ctx, compute.ArithmeticOptions{}, left, right)
		}),
	}
	out["subtract"] = Function{
		Name:          "subtract",
		ArgumentCount: 2,
		OutputType:    numericOutputType,
		Implementation: arithmetic(func(ctx context.Context, left, right compute.Datum) (compute.Datum, error) {
			return compute.Subtract(ctx, compute.ArithmeticOptions{}, left, right)
		}),
	}
	out["multiply"] = Function{
		Name:          "multiply",
		ArgumentCount: 2,
		OutputType:    numericOutputType,
		Implementation: arithmetic(func(ctx context.Context, left, right compute.Datum) (compute.Datum, error) {
			return compute.Multiply(ctx, compute.ArithmeticOptions{}, left, right)
		}),
	}
	out["divide"] = Function{
		Name:           "divide",
		ArgumentCount:  2,
		OutputType:     numericOutputType,
		Implementation: Divide,
	}
	out["modulo"] = Function{
		Name:           "modulo",
		ArgumentCount:  2,
		OutputType:     numericOutputType,
		Implementation: Modulo,
	}
	return out
}()

func Get(name string) (Function, bool) {
	fn, ok := registry[name]
	return fn, ok
}

func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func comparisonOutputType(args []arrow.DataType) (arrow.DataType, error) {
	if !arrow.TypeEqual(args[0], args[1]) {
		return nil, &execution.TypeMismatchError{
			Context:  "comparison right operand",
			Expected: args[0],
			Actual:   args[1],
		}
	}
	return arrow.FixedWidthTypes.Boolean, nil
}

func booleanOutputType(args []arrow.DataType) (arrow.DataType, error) {
	for i := range args {
		if args[i].ID() != arrow.BOOL {
			return nil, &execution.TypeMismatchError{
				Context:  fmt.Sprintf("boolean operand %d", i),
				Expected: arrow.FixedWidthTypes.Boolean,
				Actual:   args[i],
			}
		}
	}
	return arrow.FixedWidthTypes.Boolean, nil
}

func numericOutputType(args []arrow.DataType) (arrow.DataType, error) {
	switch args[0].ID() {
	case arrow.INT64, arrow.FLOAT64:
	default:
		return nil, fmt.Errorf("%w: arithmetic on %s is not supported", execution.ErrTypeMismatch, args[0])
	}
	if !arrow.TypeEqual(args[0], args[1]) {
		return nil, &execution.TypeMismatchError{
			Context:  "arithmetic right operand",
			Expected: args[0],
			Actual:   args[1],
		}
	}
	return args[0], nil
}

func computeFunction(name string) execution.FunctionImplementation {
	return func(ctx context.Context, args []arrow.Array) (arrow.Array, error) {
		if ctx == nil {
			ctx = context.Background()
		}
		datums := make([]compute.Datum, len(args))
		for i := range args {
			datums[i] = compute.NewDatum(args[i])
			defer datums[i].Release()
		}
		out, err := compute.CallFunction(ctx, name, nil, datums...)
		if err != nil {
			return nil, err
		}
		defer out.Release()
		return out.(*compute.ArrayDatum).MakeArray(), nil
	}
}

func arithmetic(fn func(ctx context.Context, left, right compute.Datum) (compute.Datum, error)) execution.FunctionImplementation {
	return func(ctx context.Context, args []arrow.Array) (arrow.Array, error) {
		if ctx == nil {
			ctx = context.Background()
		}
		left, right := compute.NewDatum(args[0]), compute.NewDatum(args[1])
		defer left.Release()
		defer right.Release()
		out, err := fn(ctx, left, right)
		if err != nil {
			return nil, err
		}
		defer out.Release()
		return out.(*compute.ArrayDatum).MakeArray(), nil
	}
}

// Divide is checked integer division, integer division by zero is an error.
// Floating point division follows IEEE 754.
func Divide(ctx context.Context, args []arrow.Array) (arrow.Array, error) {
	return binaryNumeric(args, func(left, right int64) (int64, error) {
		if right == 0 {
			return 0, ErrDivisionByZero
		}
		return left / right, nil
	}, func(left, right float64) float64 {
		return left / right
	})
}

// Modulo is the remainder of integer division, with the sign of the dividend.
func Modulo(ctx context.Context, args []arrow.Array) (arrow.Array, error) {
	return binaryNumeric(args, func(left, right int64) (int64, error) {
		if right == 0 {
			return 0, ErrDivisionByZero
		}
		return left % right, nil
	}, math.Mod)
}

func binaryNumeric(args []arrow.Array, intFn func(left, right int64) (int64, error), floatFn func(left, right float64) float64) (arrow.Array, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	if args[0].Len() != args[1].Len() {
		return nil, &execution.LengthMismatchError{
			Context:  "arithmetic right operand",
			Expected: args[0].Len(),
			Actual:   args[1].Len(),
		}
	}
	if !arrow.TypeEqual(args[0].DataType(), args[1].DataType()) {
		return nil, &execution.TypeMismatchError{
			Context:  "arithmetic right operand",
			Expected: args[0].DataType(),
			Actual:   args[1].DataType(),
		}
	}

	switch left := args[0].(type) {
	case *array.Int64:
		right := args[1].(*array.Int64)
		builder := array.NewInt64Builder(memory.NewGoAllocator())
		defer builder.Release()
		builder.Reserve(left.Len())
		for i := 0; i < left.Len(); i++ {
			if left.IsNull(i) || right.IsNull(i) {
				builder.AppendNull()
				continue
			}
			v, err := intFn(left.Value(i), right.Value(i))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			builder.Append(v)
		}
		return builder.NewArray(), nil
	case *array.Float64:
		right := args[1].(*array.Float64)
		builder := array.NewFloat64Builder(memory.NewGoAllocator())
		defer builder.Release()
		builder.Reserve(left.Len())
		for i := 0; i < left.Len(); i++ {
			if left.IsNull(i) || right.IsNull(i) {
				builder.AppendNull()
				continue
			}
			builder.Append(floatFn(left.Value(i), right.Value(i)))
		}
		return builder.NewArray(), nil
	default:
		return nil, fmt.Errorf("%w: arithmetic on %s is not supported", execution.ErrTypeMismatch, args[0].DataType())
	}
}
