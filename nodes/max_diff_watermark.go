package nodes

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/cube2222/arrowexec/execution"
)

// MaxDifferenceWatermark emits a watermark trailing the maximum event time seen so far by maxDifference.
type MaxDifferenceWatermark struct {
	metadata       execution.LogicalMetadata
	source         execution.Node
	maxDifference  time.Duration
	timeFieldIndex int
}

func NewMaxDifferenceWatermark(
	source execution.Node,
	maxDifference time.Duration,
	timeFieldIndex int,
) (*MaxDifferenceWatermark, error) {
	schema := source.LogicalMetadata().Schema
	if timeFieldIndex < 0 || timeFieldIndex >= len(schema.Fields()) {
		return nil, fmt.Errorf("time field index %d out of range, schema has %d fields", timeFieldIndex, len(schema.Fields()))
	}
	if field := schema.Field(timeFieldIndex); field.Type.ID() != arrow.TIMESTAMP {
		return nil, fmt.Errorf("%w: time field %s must be a timestamp, is %s", execution.ErrTypeMismatch, field.Name, field.Type)
	}
	return &MaxDifferenceWatermark{
		metadata:       source.LogicalMetadata(),
		source:         source,
		maxDifference:  maxDifference,
		timeFieldIndex: timeFieldIndex,
	}, nil
}

func (m *MaxDifferenceWatermark) LogicalMetadata() execution.LogicalMetadata {
	return m.metadata
}

func (m *MaxDifferenceWatermark) Run(ctx execution.ExecutionContext, produce execution.ProduceFn, metaSend execution.MetaSendFn) error {
	unit := m.metadata.Schema.Field(m.timeFieldIndex).Type.(*arrow.TimestampType).Unit
	maxValue := time.Time{}

	sourceProduce, sourceMetaSend := execution.FailFast(func(produceCtx execution.ProduceContext, record execution.Record) error {
		times, ok := record.Column(m.timeFieldIndex).(*array.Timestamp)
		if !ok {
			return &execution.TypeMismatchError{
				Context:  "watermark time field",
				Expected: m.metadata.Schema.Field(m.timeFieldIndex).Type,
				Actual:   record.Column(m.timeFieldIndex).DataType(),
			}
		}
		batchMax := time.Time{}
		for i := 0; i < times.Len(); i++ {
			if times.IsNull(i) {
				continue
			}
			if t := times.Value(i).ToTime(unit); t.After(batchMax) {
				batchMax = t
			}
		}

		if err := produce(produceCtx, record); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}

		// TODO: Think about adding granularity here. (so i.e. only have second resolution)
		if batchMax.After(maxValue) {
			maxValue = batchMax
			if err := metaSend(produceCtx, execution.NewWatermarkMessage(maxValue.Add(-m.maxDifference))); err != nil {
				return fmt.Errorf("couldn't send updated watermark: %w", err)
			}
		}
		return nil
	}, func(produceCtx execution.ProduceContext, msg execution.MetadataMessage) error {
		if msg.Type != execution.MetadataMessageTypeWatermark {
			return metaSend(produceCtx, msg)
		}
		return nil
	})

	if err := m.source.Run(ctx, sourceProduce, sourceMetaSend); err != nil {
		return fmt.Errorf("couldn't run source: %w", err)
	}
	return nil
}
