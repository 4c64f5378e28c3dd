package execution

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

var (
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrLengthMismatch   = errors.New("length mismatch")
	ErrUnknownParameter = errors.New("unknown parameter")
)

// TypeMismatchError is returned when a column has a different runtime type than its consumer requires.
type TypeMismatchError struct {
	Context  string
	Expected arrow.DataType
	Actual   arrow.DataType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, typeName(e.Expected), typeName(e.Actual))
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func typeName(dt arrow.DataType) string {
	if dt == nil {
		return "<nil>"
	}
	return dt.String()
}

// LengthMismatchError is returned when an evaluated column doesn't match the length of its batch.
type LengthMismatchError struct {
	Context  string
	Expected int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%s: expected length %d, got %d", e.Context, e.Expected, e.Actual)
}

func (e *LengthMismatchError) Is(target error) bool {
	return target == ErrLengthMismatch
}

// CheckColumn verifies that an evaluated column has the given type and the given length.
func CheckColumn(context string, arr arrow.Array, expected arrow.DataType, length int) error {
	if !arrow.TypeEqual(arr.DataType(), expected) {
		return &TypeMismatchError{
			Context:  context,
			Expected: expected,
			Actual:   arr.DataType(),
		}
	}
	if arr.Len() != length {
		return &LengthMismatchError{
			Context:  context,
			Expected: length,
			Actual:   arr.Len(),
		}
	}
	return nil
}
