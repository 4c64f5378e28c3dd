package physical

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/scalar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/arrowexec/config"
	"github.com/cube2222/arrowexec/execution"
	"github.com/cube2222/arrowexec/graph"
	"github.com/cube2222/arrowexec/nodes"
)

const filterPlan = `
parameters:
  - name: threshold
    type: int
node:
  type: filter
  predicate:
    type: function
    name: greater
    args:
      - type: column
        name: id
      - type: parameter
        name: threshold
  source:
    type: values
    schema:
      - name: id
        type: int
      - name: name
        type: string
    batches:
      - rows:
          - [1, "a"]
          - [5, "b"]
        watermark: 2024-01-01T00:00:00Z
      - rows:
          - [7, "c"]
          - [null, "d"]
`

type collected struct {
	ids        []int64
	watermarks []time.Time
}

func runNode(t *testing.T, node execution.Node, variables map[string]scalar.Scalar) collected {
	t.Helper()
	var out collected
	ctx := execution.NewExecutionContext(context.Background(), execution.NewVariableContext(variables))
	err := node.Run(ctx, func(ctx execution.ProduceContext, record execution.Record) error {
		ids := record.Column(0).(*array.Int64)
		for i := 0; i < ids.Len(); i++ {
			out.ids = append(out.ids, ids.Value(i))
		}
		return nil
	}, func(ctx execution.ProduceContext, msg execution.MetadataMessage) error {
		out.watermarks = append(out.watermarks, msg.Watermark)
		return nil
	})
	require.NoError(t, err)
	return out
}

func materialize(t *testing.T, text string, cfg *config.Config) (execution.Node, error) {
	t.Helper()
	plan, err := ParsePlan([]byte(text))
	require.NoError(t, err)
	env, err := plan.Environment(cfg)
	require.NoError(t, err)
	return plan.Root.Materialize(env)
}

func TestMaterializeFilter(t *testing.T) {
	for _, rebatch := range []bool{false, true} {
		cfg := config.Default()
		cfg.Execution.RebatchFilter = rebatch

		node, err := materialize(t, filterPlan, cfg)
		require.NoError(t, err)
		if rebatch {
			assert.IsType(t, &nodes.RebatchingFilter{}, node)
		} else {
			assert.IsType(t, &nodes.Filter{}, node)
		}

		schema := node.LogicalMetadata().Schema
		require.Equal(t, 2, len(schema.Fields()))
		assert.Equal(t, "id", schema.Field(0).Name)
		assert.Equal(t, arrow.BinaryTypes.String, schema.Field(1).Type)

		out := runNode(t, node, map[string]scalar.Scalar{
			"threshold": scalar.NewInt64Scalar(2),
		})
		assert.Equal(t, []int64{5, 7}, out.ids)
		assert.Equal(t, []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, out.watermarks)
	}
}

func TestMaterializeMapLimitUnion(t *testing.T) {
	text := `
node:
  type: limit
  limit: 3
  source:
    type: map
    fields:
      - name: doubled
        expression:
          type: function
          name: multiply
          args:
            - type: column
              name: x
            - type: constant
              value: 2
    source:
      type: union_all
      sources:
        - type: values
          schema:
            - name: x
              type: int
          batches:
            - rows: [[1], [2]]
        - type: values
          schema:
            - name: x
              type: int
          batches:
            - rows: [[3], [4]]
`
	node, err := materialize(t, text, config.Default())
	require.NoError(t, err)
	assert.Equal(t, "doubled", node.LogicalMetadata().Schema.Field(0).Name)

	out := runNode(t, node, nil)
	assert.Len(t, out.ids, 3)
	for _, id := range out.ids {
		assert.Contains(t, []int64{2, 4, 6, 8}, id)
	}
}

func TestMaterializeMaxDiffWatermark(t *testing.T) {
	text := `
node:
  type: max_diff_watermark
  time_field: t
  max_difference: 5s
  source:
    type: values
    schema:
      - name: t
        type: timestamp
    batches:
      - rows:
          - ["2024-01-01T00:00:10Z"]
`
	node, err := materialize(t, text, config.Default())
	require.NoError(t, err)

	var watermarks []time.Time
	ctx := execution.NewExecutionContext(context.Background(), nil)
	err = node.Run(ctx, func(ctx execution.ProduceContext, record execution.Record) error {
		return nil
	}, func(ctx execution.ProduceContext, msg execution.MetadataMessage) error {
		watermarks = append(watermarks, msg.Watermark)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, watermarks, 1)
	assert.True(t, watermarks[0].Equal(time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)), watermarks[0].String())
}

func TestMaterializeErrors(t *testing.T) {
	values := `
    type: values
    schema:
      - name: id
        type: int
    batches:
      - rows: [[1]]
`
	tests := []struct {
		name   string
		plan   string
		target error
		errMsg string
	}{
		{
			name: "non-boolean predicate",
			plan: `
node:
  type: filter
  predicate:
    type: column
    name: id
  source:` + values,
			target: execution.ErrTypeMismatch,
		},
		{
			name: "unknown column",
			plan: `
node:
  type: filter
  predicate:
    type: column
    name: missing
  source:` + values,
			errMsg: "unknown column 'missing'",
		},
		{
			name: "undeclared parameter",
			plan: `
node:
  type: filter
  predicate:
    type: parameter
    name: p
  source:` + values,
			target: execution.ErrUnknownParameter,
		},
		{
			name: "argument count",
			plan: `
node:
  type: filter
  predicate:
    type: function
    name: not
    args: []
  source:` + values,
			errMsg: "takes 1 arguments, got 0",
		},
		{
			name: "argument types",
			plan: `
node:
  type: filter
  predicate:
    type: function
    name: equal
    args:
      - type: column
        name: id
      - type: constant
        value: "a"
  source:` + values,
			errMsg: "invalid arguments to 'equal'",
		},
		{
			name: "time field not a timestamp",
			plan: `
node:
  type: max_diff_watermark
  time_field: id
  max_difference: 1s
  source:` + values,
			target: execution.ErrTypeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := materialize(t, tt.plan, config.Default())
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestParsePlanUnknownNodeType(t *testing.T) {
	_, err := ParsePlan([]byte("node:\n  type: sort\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type 'sort'")
}

func TestValuesErrors(t *testing.T) {
	schema, err := SchemaFromFields([]Field{{Name: "id", Type: "int", Nullable: new(bool)}})
	require.NoError(t, err)

	_, err = valuesStreamItems(schema, []ValuesBatch{{Rows: [][]interface{}{{1, 2}}}})
	assert.Contains(t, err.Error(), "has 2 values, expected 1")

	_, err = valuesStreamItems(schema, []ValuesBatch{{Rows: [][]interface{}{{nil}}}})
	assert.Contains(t, err.Error(), "null value in non-nullable field")

	_, err = valuesStreamItems(schema, []ValuesBatch{{Rows: [][]interface{}{{"x"}}}})
	assert.Contains(t, err.Error(), "expected int, got string")
}

func TestSchemaFromFields(t *testing.T) {
	_, err := SchemaFromFields([]Field{{Name: "a", Type: "int"}, {Name: "a", Type: "int"}})
	assert.Contains(t, err.Error(), "duplicate field 'a'")

	_, err = SchemaFromFields([]Field{{Name: "a", Type: "decimal"}})
	assert.Contains(t, err.Error(), "unknown type 'decimal'")

	schema, err := SchemaFromFields([]Field{{Name: "a", Type: "timestamp"}})
	require.NoError(t, err)
	assert.True(t, schema.Field(0).Nullable)
	assert.Equal(t, arrow.FixedWidthTypes.Timestamp_ms, schema.Field(0).Type)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(arrow.PrimitiveTypes.Int64, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.(*scalar.Int64).Value)

	v, err = ParseValue(arrow.FixedWidthTypes.Boolean, "true")
	require.NoError(t, err)
	assert.True(t, v.(*scalar.Boolean).Value)

	v, err = ParseValue(arrow.FixedWidthTypes.Timestamp_ms, "1970-01-01T00:00:01Z")
	require.NoError(t, err)
	assert.Equal(t, arrow.Timestamp(1000), v.(*scalar.Timestamp).Value)

	_, err = ParseValue(arrow.PrimitiveTypes.Int64, "abc")
	assert.Error(t, err)
}

func TestDescribeNode(t *testing.T) {
	plan, err := ParsePlan([]byte(filterPlan))
	require.NoError(t, err)

	described := DescribeNode(plan.Root)
	assert.Equal(t, "filter", described.Name)
	require.Len(t, described.Children, 2)
	assert.Equal(t, "predicate", described.Children[0].Name)
	assert.Equal(t, "function", described.Children[0].Node.Name)
	assert.Equal(t, "values", described.Children[1].Node.Name)
	assert.Contains(t, described.Children[1].Node.Fields, graph.Field{Name: "rows", Value: "4"})
}

func TestExamplePlans(t *testing.T) {
	for _, path := range []string{"../examples/plans/filter.yml", "../examples/plans/union.yml"} {
		t.Run(path, func(t *testing.T) {
			plan, err := ReadPlan(path)
			require.NoError(t, err)
			env, err := plan.Environment(config.Default())
			require.NoError(t, err)
			_, err = plan.Root.Materialize(env)
			require.NoError(t, err)
		})
	}
}

func TestJSONTailOption(t *testing.T) {
	text := `
node:
  type: json
  path: events.json
  tail: true
  schema:
    - name: id
      type: int
`
	plan, err := ParsePlan([]byte(text))
	require.NoError(t, err)
	require.NotNil(t, plan.Root.JSON)
	assert.True(t, plan.Root.JSON.Tail)
	assert.Contains(t, DescribeNode(plan.Root).Fields, graph.Field{Name: "tail", Value: "true"})

	env, err := plan.Environment(config.Default())
	require.NoError(t, err)
	node, err := plan.Root.Materialize(env)
	require.NoError(t, err)
	assert.Equal(t, "id", node.LogicalMetadata().Schema.Field(0).Name)
}
