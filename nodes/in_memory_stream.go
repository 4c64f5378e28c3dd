package nodes

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cube2222/arrowexec/execution"
)

// StreamItem is either a record or a metadata message.
type StreamItem struct {
	Record   *execution.Record
	Metadata *execution.MetadataMessage
}

// InMemoryStream replays a fixed sequence of records and metadata messages.
type InMemoryStream struct {
	metadata execution.LogicalMetadata
	items    []StreamItem
}

func NewInMemoryStream(schema *arrow.Schema, items []StreamItem) *InMemoryStream {
	return &InMemoryStream{
		metadata: execution.LogicalMetadata{Schema: schema},
		items:    items,
	}
}

func NewInMemoryRecords(schema *arrow.Schema, records []execution.Record) *InMemoryStream {
	items := make([]StreamItem, len(records))
	for i := range records {
		items[i] = StreamItem{Record: &records[i]}
	}
	return NewInMemoryStream(schema, items)
}

func (s *InMemoryStream) LogicalMetadata() execution.LogicalMetadata {
	return s.metadata
}

func (s *InMemoryStream) Run(ctx execution.ExecutionContext, produce execution.ProduceFn, metaSend execution.MetaSendFn) error {
	produceCtx := execution.ProduceFromExecutionContext(ctx)
	for i, item := range s.items {
		if err := ctx.CheckCancelled(); err != nil {
			return err
		}
		switch {
		case item.Record != nil:
			if item.Record.NumRows() == 0 {
				continue
			}
			if err := produce(produceCtx, *item.Record); err != nil {
				return fmt.Errorf("couldn't produce record %d: %w", i, err)
			}
		case item.Metadata != nil:
			if err := metaSend(produceCtx, *item.Metadata); err != nil {
				return fmt.Errorf("couldn't send metadata message %d: %w", i, err)
			}
		}
	}
	return nil
}
