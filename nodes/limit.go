package nodes

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/cube2222/arrowexec/execution"
)

type Limit struct {
	metadata execution.LogicalMetadata
	source   execution.Node
	limit    int64
}

func NewLimit(source execution.Node, limit int64) *Limit {
	return &Limit{
		metadata: source.LogicalMetadata(),
		source:   source,
		limit:    limit,
	}
}

func (l *Limit) LogicalMetadata() execution.LogicalMetadata {
	return l.metadata
}

// limitReachedError is returned because the limit has been reached, to stop underlying processing.
// It will be caught and silenced by the Limit node that emitted it.
type limitReachedError struct {
	nodeID string
}

func (e *limitReachedError) Error() string {
	return fmt.Sprintf("limit %s reached", e.nodeID)
}

func (l *Limit) Run(ctx execution.ExecutionContext, produce execution.ProduceFn, metaSend execution.MetaSendFn) error {
	if l.limit <= 0 {
		return nil
	}
	limitNodeID := ulid.MustNew(ulid.Now(), rand.Reader).String()

	var produced int64
	sourceProduce, sourceMetaSend := execution.FailFast(func(produceCtx execution.ProduceContext, record execution.Record) error {
		if remaining := l.limit - produced; record.NumRows() > remaining {
			// Some go, some stay.
			record = execution.Record{Record: record.NewSlice(0, remaining)}
		}
		if err := produce(produceCtx, record); err != nil {
			return fmt.Errorf("couldn't produce: %w", err)
		}
		produced += record.NumRows()
		if produced >= l.limit {
			return &limitReachedError{nodeID: limitNodeID}
		}
		return nil
	}, metaSend)

	if err := l.source.Run(ctx, sourceProduce, sourceMetaSend); err != nil {
		var limitErr *limitReachedError
		if errors.As(err, &limitErr) && limitErr.nodeID == limitNodeID {
			return nil
		}
		return fmt.Errorf("couldn't run source: %w", err)
	}
	return nil
}
