package nodes

import (
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/sync/errgroup"

	"github.com/cube2222/arrowexec/execution"
)

// UnionAll runs all of its sources concurrently and merges their outputs.
// Calls to produce and metaSend are serialized, but may come from different goroutines.
// The output watermark is the minimum of the source watermarks.
// Sources need matching field types, output records use the field names of the first source.
type UnionAll struct {
	metadata execution.LogicalMetadata
	sources  []execution.Node
}

func NewUnionAll(sources []execution.Node) (*UnionAll, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("union all needs at least one source")
	}
	schema := sources[0].LogicalMetadata().Schema
	for i := 1; i < len(sources); i++ {
		if other := sources[i].LogicalMetadata().Schema; !schemasCompatible(schema, other) {
			return nil, fmt.Errorf("%w: union all source %d has schema %s, expected %s", execution.ErrTypeMismatch, i, other, schema)
		}
	}
	return &UnionAll{
		metadata: execution.LogicalMetadata{Schema: schema},
		sources:  sources,
	}, nil
}

func schemasCompatible(a, b *arrow.Schema) bool {
	if len(a.Fields()) != len(b.Fields()) {
		return false
	}
	for i := range a.Fields() {
		if !arrow.TypeEqual(a.Field(i).Type, b.Field(i).Type) {
			return false
		}
	}
	return true
}

func (u *UnionAll) LogicalMetadata() execution.LogicalMetadata {
	return u.metadata
}

func (u *UnionAll) Run(ctx execution.ExecutionContext, produce execution.ProduceFn, metaSend execution.MetaSendFn) error {
	produce, metaSend = execution.FailFast(produce, metaSend)

	var mutex sync.Mutex
	watermarks := newWatermarkMerger(len(u.sources))

	emitWatermark := func(produceCtx execution.ProduceContext) error {
		if watermark, ok := watermarks.advance(); ok {
			if err := metaSend(produceCtx, execution.NewWatermarkMessage(watermark)); err != nil {
				return fmt.Errorf("couldn't send watermark: %w", err)
			}
		}
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx.Context)
	sourceCtx := execution.NewExecutionContext(groupCtx, ctx.Variables)
	for sourceIndex := range u.sources {
		g.Go(func() error {
			if err := u.sources[sourceIndex].Run(sourceCtx, func(produceCtx execution.ProduceContext, record execution.Record) error {
				// Sources may differ in field names and nullability, output records always carry the declared schema.
				if !record.Schema().Equal(u.metadata.Schema) {
					record = execution.Record{Record: array.NewRecord(u.metadata.Schema, record.Columns(), record.NumRows())}
				}

				mutex.Lock()
				defer mutex.Unlock()

				return produce(produceCtx, record)
			}, func(produceCtx execution.ProduceContext, msg execution.MetadataMessage) error {
				mutex.Lock()
				defer mutex.Unlock()

				if msg.Type != execution.MetadataMessageTypeWatermark {
					return metaSend(produceCtx, msg)
				}
				watermarks.update(sourceIndex, msg.Watermark)
				return emitWatermark(produceCtx)
			}); err != nil {
				return fmt.Errorf("couldn't run source %d: %w", sourceIndex, err)
			}

			mutex.Lock()
			defer mutex.Unlock()

			watermarks.finish(sourceIndex)
			return emitWatermark(execution.ProduceFromExecutionContext(sourceCtx))
		})
	}

	return g.Wait()
}

type watermarkMerger struct {
	watermarks []time.Time
	received   []bool
	any        bool
	sent       time.Time
}

func newWatermarkMerger(sources int) *watermarkMerger {
	return &watermarkMerger{
		watermarks: make([]time.Time, sources),
		received:   make([]bool, sources),
	}
}

func (w *watermarkMerger) update(source int, watermark time.Time) {
	w.any = true
	w.received[source] = true
	if watermark.After(w.watermarks[source]) {
		w.watermarks[source] = watermark
	}
}

// finish marks the source as exhausted, it won't hold back the watermark anymore.
func (w *watermarkMerger) finish(source int) {
	w.received[source] = true
	w.watermarks[source] = execution.WatermarkMaxValue
}

// advance returns the new output watermark if it moved forward.
func (w *watermarkMerger) advance() (time.Time, bool) {
	if !w.any {
		return time.Time{}, false
	}
	lowest := execution.WatermarkMaxValue
	for i := range w.watermarks {
		if !w.received[i] {
			return time.Time{}, false
		}
		if w.watermarks[i].Before(lowest) {
			lowest = w.watermarks[i]
		}
	}
	if !lowest.After(w.sent) {
		return time.Time{}, false
	}
	w.sent = lowest
	return lowest, true
}
