package nodes

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/cube2222/arrowexec/execution"
)

type Map struct {
	metadata execution.LogicalMetadata
	source   execution.Node
	exprs    []execution.Expression
}

// NewMap creates a projection with one expression per field of outSchema.
func NewMap(outSchema *arrow.Schema, source execution.Node, exprs []execution.Expression) (*Map, error) {
	if len(outSchema.Fields()) != len(exprs) {
		return nil, fmt.Errorf("map has %d expressions but %d output fields", len(exprs), len(outSchema.Fields()))
	}
	return &Map{
		metadata: execution.LogicalMetadata{Schema: outSchema},
		source:   source,
		exprs:    exprs,
	}, nil
}

func (m *Map) LogicalMetadata() execution.LogicalMetadata {
	return m.metadata
}

func (m *Map) Run(ctx execution.ExecutionContext, produce execution.ProduceFn, metaSend execution.MetaSendFn) error {
	sourceProduce, sourceMetaSend := execution.FailFast(func(produceCtx execution.ProduceContext, record execution.Record) error {
		if err := produceCtx.CheckCancelled(); err != nil {
			return err
		}

		outCols := make([]arrow.Array, 0, len(m.exprs))
		defer func() {
			for _, col := range outCols {
				col.Release()
			}
		}()
		for i := range m.exprs { // TODO: Parallelize.
			arr, err := m.exprs[i].Evaluate(produceCtx.ExecutionContext, record)
			if err != nil {
				return fmt.Errorf("couldn't evaluate expression %d: %w", i, err)
			}
			outCols = append(outCols, arr)
			field := m.metadata.Schema.Field(i)
			if err := execution.CheckColumn(fmt.Sprintf("map field %s", field.Name), arr, field.Type, int(record.NumRows())); err != nil {
				return err
			}
		}

		out := array.NewRecord(m.metadata.Schema, outCols, record.NumRows())
		if err := produce(produceCtx, execution.Record{Record: out}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
		return nil
	}, metaSend)

	if err := m.source.Run(ctx, sourceProduce, sourceMetaSend); err != nil {
		return fmt.Errorf("couldn't run source: %w", err)
	}
	return nil
}
