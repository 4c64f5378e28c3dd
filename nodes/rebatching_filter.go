package nodes

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/cube2222/arrowexec/execution"
	"github.com/cube2222/arrowexec/helpers"
)

// RebatchingFilter has a custom routine for filtering records, it re-batches the filtered records so that they aren't too far off the ideal batch size.
// Buffered rows are always flushed before a metadata message is forwarded,
// so the relative order of rows and metadata is the same as with the Filter.
type RebatchingFilter struct {
	metadata  execution.LogicalMetadata
	source    execution.Node
	predicate execution.Expression
	batchSize int
}

func NewRebatchingFilter(source execution.Node, predicate execution.Expression, batchSize int) *RebatchingFilter {
	if batchSize <= 0 {
		batchSize = execution.IdealBatchSize
	}
	return &RebatchingFilter{
		metadata:  source.LogicalMetadata(),
		source:    source,
		predicate: predicate,
		batchSize: batchSize,
	}
}

func (f *RebatchingFilter) LogicalMetadata() execution.LogicalMetadata {
	return f.metadata
}

func (f *RebatchingFilter) Run(ctx execution.ExecutionContext, produce execution.ProduceFn, metaSend execution.MetaSendFn) error {
	schema := f.metadata.Schema
	for _, field := range schema.Fields() {
		if !helpers.RewritableType(field.Type) {
			return fmt.Errorf("%w: rebatching filter doesn't support field %s of type %s", execution.ErrTypeMismatch, field.Name, field.Type)
		}
	}

	recordBuilder := array.NewRecordBuilder(memory.NewGoAllocator(), schema) // TODO: Get allocator as argument.
	defer recordBuilder.Release()
	buffered := 0

	flush := func(produceCtx execution.ProduceContext) error {
		if buffered == 0 {
			return nil
		}
		// The row count is tracked explicitly, a record without columns has no column to derive it from.
		columns := make([]arrow.Array, len(recordBuilder.Fields()))
		for i, fieldBuilder := range recordBuilder.Fields() {
			columns[i] = fieldBuilder.NewArray()
		}
		outRecord := array.NewRecord(schema, columns, int64(buffered))
		for _, column := range columns {
			column.Release()
		}
		buffered = 0
		if err := produce(produceCtx, execution.Record{Record: outRecord}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
		return nil
	}

	sourceProduce, sourceMetaSend := execution.FailFast(func(produceCtx execution.ProduceContext, record execution.Record) error {
		if err := produceCtx.CheckCancelled(); err != nil {
			return err
		}

		selection, err := evaluatePredicate(produceCtx.ExecutionContext, f.predicate, record)
		if err != nil {
			return err
		}
		defer selection.Release()

		rewriters := make([]func(rowIndex int), record.NumCols())
		for i := range rewriters {
			rewriters[i], err = helpers.MakeColumnRewriter(recordBuilder.Field(i), record.Column(i))
			if err != nil {
				return fmt.Errorf("couldn't rewrite column %d: %w", i, err)
			}
		}

		var g errgroup.Group
		for i := range rewriters {
			rewrite := rewriters[i]
			g.Go(func() error {
				Rewrite(selection, rewrite)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		buffered += selectedCount(selection)

		if buffered > f.batchSize/2 {
			return flush(produceCtx)
		}
		return nil
	}, func(produceCtx execution.ProduceContext, msg execution.MetadataMessage) error {
		if err := flush(produceCtx); err != nil {
			return err
		}
		return metaSend(produceCtx, msg)
	})

	if err := f.source.Run(ctx, sourceProduce, sourceMetaSend); err != nil {
		return fmt.Errorf("couldn't run source node: %w", err)
	}

	return flush(execution.ProduceFromExecutionContext(ctx))
}

// Rewrite calls rewriteFunc for each row index which is selected.
// Null selections are treated as false.
func Rewrite(selection *array.Boolean, rewriteFunc func(rowIndex int)) {
	for i := 0; i < selection.Len(); i++ {
		if selection.IsValid(i) && selection.Value(i) {
			rewriteFunc(i)
		}
	}
}

func selectedCount(selection *array.Boolean) int {
	count := 0
	for i := 0; i < selection.Len(); i++ {
		if selection.IsValid(i) && selection.Value(i) {
			count++
		}
	}
	return count
}
