package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/scalar"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/arrowexec/execution"
	"github.com/cube2222/arrowexec/functions"
)

var idSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

func testContext() execution.ExecutionContext {
	return execution.NewExecutionContext(context.Background(), nil)
}

func int64Record(values ...int64) execution.Record {
	builder := array.NewRecordBuilder(memory.DefaultAllocator, idSchema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues(values, nil)
	return execution.Record{Record: builder.NewRecord()}
}

func recordItem(record execution.Record) StreamItem {
	return StreamItem{Record: &record}
}

func watermarkItem(t time.Time) StreamItem {
	msg := execution.NewWatermarkMessage(t)
	return StreamItem{Metadata: &msg}
}

func call(t *testing.T, name string, args ...execution.Expression) execution.Expression {
	fn, ok := functions.Get(name)
	require.True(t, ok, "function %s not found", name)
	return execution.NewFunctionCall(name, fn.Implementation, args)
}

func column(index int) execution.Expression {
	return execution.NewRecordVariable(index)
}

func constInt(v int64) execution.Expression {
	return execution.NewConstant(scalar.NewInt64Scalar(v))
}

// collectedEvent is either a record or a metadata message, in the order they were received.
type collectedEvent struct {
	record   *execution.Record
	metadata *execution.MetadataMessage
}

type collector struct {
	events []collectedEvent
}

func (c *collector) produce(ctx execution.ProduceContext, record execution.Record) error {
	c.events = append(c.events, collectedEvent{record: &record})
	return nil
}

func (c *collector) metaSend(ctx execution.ProduceContext, msg execution.MetadataMessage) error {
	c.events = append(c.events, collectedEvent{metadata: &msg})
	return nil
}

func (c *collector) records() []execution.Record {
	var out []execution.Record
	for _, event := range c.events {
		if event.record != nil {
			out = append(out, *event.record)
		}
	}
	return out
}

func (c *collector) metadata() []execution.MetadataMessage {
	var out []execution.MetadataMessage
	for _, event := range c.events {
		if event.metadata != nil {
			out = append(out, *event.metadata)
		}
	}
	return out
}

func int64Column(t *testing.T, record execution.Record, index int) []int64 {
	arr, ok := record.Column(index).(*array.Int64)
	require.True(t, ok, "column %d is not int64: %s", index, record.Column(index).DataType())
	out := make([]int64, arr.Len())
	for i := range out {
		out[i] = arr.Value(i)
	}
	return out
}

// describeEvents renders collected events as int64 slices of the first column and watermark times.
func describeEvents(t *testing.T, events []collectedEvent) []interface{} {
	out := make([]interface{}, len(events))
	for i, event := range events {
		if event.record != nil {
			out[i] = int64Column(t, *event.record, 0)
		} else {
			out[i] = event.metadata.Watermark
		}
	}
	return out
}

// misbehavingNode keeps calling its callbacks even after they return errors, and returns the first error at the end.
type misbehavingNode struct {
	schema *arrow.Schema
	items  []StreamItem
}

func (m *misbehavingNode) LogicalMetadata() execution.LogicalMetadata {
	return execution.LogicalMetadata{Schema: m.schema}
}

func (m *misbehavingNode) Run(ctx execution.ExecutionContext, produce execution.ProduceFn, metaSend execution.MetaSendFn) error {
	var firstErr error
	produceCtx := execution.ProduceFromExecutionContext(ctx)
	for _, item := range m.items {
		var err error
		if item.Record != nil {
			err = produce(produceCtx, *item.Record)
		} else {
			err = metaSend(produceCtx, *item.Metadata)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
