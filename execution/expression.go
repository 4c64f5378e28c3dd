package execution

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// Expression evaluates to a single column with as many rows as the record.
// The returned array is owned by the caller, who has to release it.
type Expression interface {
	Evaluate(ctx ExecutionContext, record Record) (arrow.Array, error)
}

type RecordVariable struct {
	index int
}

func NewRecordVariable(index int) *RecordVariable {
	return &RecordVariable{
		index: index,
	}
}

func (r *RecordVariable) Evaluate(ctx ExecutionContext, record Record) (arrow.Array, error) {
	if r.index < 0 || r.index >= int(record.NumCols()) {
		return nil, fmt.Errorf("record variable index %d out of range, record has %d columns", r.index, record.NumCols())
	}
	column := record.Column(r.index)
	column.Retain()
	return column, nil
}

// ConstArray always evaluates to the same array. Mostly useful in tests and benchmarks.
type ConstArray struct {
	Array arrow.Array
}

func (c *ConstArray) Evaluate(ctx ExecutionContext, record Record) (arrow.Array, error) {
	if c.Array.Len() != int(record.NumRows()) {
		return nil, &LengthMismatchError{
			Context:  "const array",
			Expected: int(record.NumRows()),
			Actual:   c.Array.Len(),
		}
	}
	c.Array.Retain()
	return c.Array, nil
}

type Constant struct {
	Value scalar.Scalar
}

func NewConstant(value scalar.Scalar) *Constant {
	return &Constant{
		Value: value,
	}
}

func (c *Constant) Evaluate(ctx ExecutionContext, record Record) (arrow.Array, error) {
	// TODO: Cache this for the IdealBatchSize.
	arr, err := scalar.MakeArrayFromScalar(c.Value, int(record.NumRows()), memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("couldn't broadcast constant %s: %w", c.Value, err)
	}
	return arr, nil
}

// Parameter evaluates to the value bound to the given name in the variable context, broadcast to the record length.
type Parameter struct {
	name string
	typ  arrow.DataType
}

func NewParameter(name string, typ arrow.DataType) *Parameter {
	return &Parameter{
		name: name,
		typ:  typ,
	}
}

func (p *Parameter) Evaluate(ctx ExecutionContext, record Record) (arrow.Array, error) {
	value, ok := ctx.Variables.Get(p.name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, p.name)
	}
	if !arrow.TypeEqual(value.DataType(), p.typ) {
		return nil, &TypeMismatchError{
			Context:  fmt.Sprintf("parameter %s", p.name),
			Expected: p.typ,
			Actual:   value.DataType(),
		}
	}
	arr, err := scalar.MakeArrayFromScalar(value, int(record.NumRows()), memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("couldn't broadcast parameter %s: %w", p.name, err)
	}
	return arr, nil
}

// FunctionImplementation computes a column from argument columns of equal length.
// It must not retain or release the arguments.
type FunctionImplementation func(ctx context.Context, args []arrow.Array) (arrow.Array, error)

type FunctionCall struct {
	name     string
	function FunctionImplementation
	args     []Expression
}

func NewFunctionCall(name string, function FunctionImplementation, args []Expression) *FunctionCall {
	return &FunctionCall{
		name:     name,
		function: function,
		args:     args,
	}
}

func (f *FunctionCall) Evaluate(ctx ExecutionContext, record Record) (arrow.Array, error) {
	args := make([]arrow.Array, 0, len(f.args))
	defer func() {
		for _, arr := range args {
			arr.Release()
		}
	}()
	for i, arg := range f.args {
		arr, err := arg.Evaluate(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("couldn't evaluate argument %d of %s: %w", i, f.name, err)
		}
		args = append(args, arr)
	}

	out, err := f.function(ctx.Context, args)
	if err != nil {
		return nil, fmt.Errorf("couldn't evaluate %s: %w", f.name, err)
	}
	if out.Len() != int(record.NumRows()) {
		out.Release()
		return nil, &LengthMismatchError{
			Context:  fmt.Sprintf("result of %s", f.name),
			Expected: int(record.NumRows()),
			Actual:   out.Len(),
		}
	}
	return out, nil
}
