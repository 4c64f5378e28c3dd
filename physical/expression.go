package physical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/scalar"

	"github.com/cube2222/arrowexec/execution"
	"github.com/cube2222/arrowexec/functions"
)

type ExpressionType string

const (
	ExpressionTypeColumn    ExpressionType = "column"
	ExpressionTypeConstant  ExpressionType = "constant"
	ExpressionTypeParameter ExpressionType = "parameter"
	ExpressionTypeFunction  ExpressionType = "function"
)

// Expression is a value expression as written in a plan file.
type Expression struct {
	Type ExpressionType `yaml:"type"`
	// Name of the column, parameter or function.
	Name string `yaml:"name"`
	// Value of a constant. Integers, floats, strings and booleans are supported.
	Value interface{} `yaml:"value"`
	// Args of a function call.
	Args []Expression `yaml:"args"`
}

// Materialize builds the executable expression, resolving columns against the input schema.
// It also returns the type of the expression.
func (expr *Expression) Materialize(env Environment, schema *arrow.Schema) (execution.Expression, arrow.DataType, error) {
	switch expr.Type {
	case ExpressionTypeColumn:
		indices := schema.FieldIndices(expr.Name)
		if len(indices) == 0 {
			return nil, nil, fmt.Errorf("unknown column '%s', available columns: %v", expr.Name, fieldNames(schema))
		}
		return execution.NewRecordVariable(indices[0]), schema.Field(indices[0]).Type, nil

	case ExpressionTypeConstant:
		value, err := constantScalar(expr.Value)
		if err != nil {
			return nil, nil, err
		}
		return execution.NewConstant(value), value.DataType(), nil

	case ExpressionTypeParameter:
		dt, ok := env.Parameters[expr.Name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: '%s' is not declared", execution.ErrUnknownParameter, expr.Name)
		}
		return execution.NewParameter(expr.Name, dt), dt, nil

	case ExpressionTypeFunction:
		fn, ok := functions.Get(expr.Name)
		if !ok {
			return nil, nil, fmt.Errorf("unknown function '%s', available functions: %v", expr.Name, functions.Names())
		}
		if len(expr.Args) != fn.ArgumentCount {
			return nil, nil, fmt.Errorf("function '%s' takes %d arguments, got %d", expr.Name, fn.ArgumentCount, len(expr.Args))
		}
		args := make([]execution.Expression, len(expr.Args))
		argTypes := make([]arrow.DataType, len(expr.Args))
		for i := range expr.Args {
			var err error
			args[i], argTypes[i], err = expr.Args[i].Materialize(env, schema)
			if err != nil {
				return nil, nil, fmt.Errorf("couldn't materialize argument %d of '%s': %w", i, expr.Name, err)
			}
		}
		outputType, err := fn.OutputType(argTypes)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid arguments to '%s': %w", expr.Name, err)
		}
		return execution.NewFunctionCall(expr.Name, fn.Implementation, args), outputType, nil
	}

	return nil, nil, fmt.Errorf("unknown expression type '%s'", expr.Type)
}

func constantScalar(value interface{}) (scalar.Scalar, error) {
	switch value := value.(type) {
	case int:
		return scalar.NewInt64Scalar(int64(value)), nil
	case int64:
		return scalar.NewInt64Scalar(value), nil
	case float64:
		return scalar.NewFloat64Scalar(value), nil
	case string:
		return scalar.NewStringScalar(value), nil
	case bool:
		return scalar.NewBooleanScalar(value), nil
	default:
		return nil, fmt.Errorf("unsupported constant %v of type %T", value, value)
	}
}

func fieldNames(schema *arrow.Schema) []string {
	out := make([]string, len(schema.Fields()))
	for i, field := range schema.Fields() {
		out[i] = field.Name
	}
	return out
}
