package json

import (
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/nxadm/tail"

	"github.com/cube2222/arrowexec/execution"
)

// In tail mode, buffered rows are produced after this long without a new line.
const tailFlushInterval = 100 * time.Millisecond

// DatasourceExecuting reads a newline delimited JSON file.
// In tail mode it keeps following the file for new lines until the query is cancelled.
type DatasourceExecuting struct {
	metadata  execution.LogicalMetadata
	path      string
	tail      bool
	batchSize int
}

func NewDatasourceExecuting(path string, schema *arrow.Schema, batchSize int, follow bool) *DatasourceExecuting {
	return &DatasourceExecuting{
		metadata:  execution.LogicalMetadata{Schema: schema},
		path:      path,
		tail:      follow,
		batchSize: batchSize,
	}
}

func (d *DatasourceExecuting) LogicalMetadata() execution.LogicalMetadata {
	return d.metadata
}

func (d *DatasourceExecuting) Run(ctx execution.ExecutionContext, produce execution.ProduceFn, metaSend execution.MetaSendFn) error {
	produceCtx := execution.ProduceFromExecutionContext(ctx)
	produceRecord := func(record arrow.Record) error {
		if err := ctx.CheckCancelled(); err != nil {
			return err
		}
		return produce(produceCtx, execution.Record{Record: record})
	}

	if d.tail {
		return d.runTail(ctx, produceRecord)
	}

	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("couldn't open file: %w", err)
	}
	defer f.Close()

	return ReadJSON(memory.NewGoAllocator(), f, d.metadata.Schema, d.batchSize, produceRecord)
}

func (d *DatasourceExecuting) runTail(ctx execution.ExecutionContext, produce func(record arrow.Record) error) error {
	if _, err := os.Stat(d.path); err != nil {
		return fmt.Errorf("couldn't open file: %w", err)
	}
	t, err := tail.TailFile(d.path, tail.Config{
		MustExist: true,
		Follow:    true,
		ReOpen:    true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("couldn't tail file: %w", err)
	}
	defer t.Cleanup()
	defer t.Stop()

	batches, err := newBatchReader(memory.NewGoAllocator(), d.metadata.Schema, d.batchSize)
	if err != nil {
		return err
	}
	defer batches.Release()

	ticker := time.NewTicker(tailFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok || line == nil {
				return batches.flush(produce)
			}
			if line.Err != nil {
				return fmt.Errorf("couldn't read line: %w", line.Err)
			}
			if err := batches.readLine([]byte(line.Text), produce); err != nil {
				return err
			}
		case <-ticker.C:
			if err := batches.flush(produce); err != nil {
				return err
			}
		case <-ctx.Context.Done():
			return ctx.CheckCancelled()
		}
	}
}
