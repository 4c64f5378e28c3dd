package execution

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// VariableContext holds the query-scoped values bound for a single execution, like query parameters.
// It is immutable once created.
type VariableContext struct {
	values map[string]scalar.Scalar
}

func NewVariableContext(values map[string]scalar.Scalar) *VariableContext {
	copied := make(map[string]scalar.Scalar, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &VariableContext{
		values: copied,
	}
}

func (v *VariableContext) Get(name string) (scalar.Scalar, bool) {
	if v == nil {
		return nil, false
	}
	value, ok := v.values[name]
	return value, ok
}

func (v *VariableContext) Names() []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.values))
	for name := range v.values {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
