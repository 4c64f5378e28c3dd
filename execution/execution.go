package execution

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// All nodes will try to create batches of approximately this size. Different sizes are allowed.
const IdealBatchSize = 16 * 1024

// ExecutionContext is passed by value through the whole node tree for a single query execution.
// Nodes must not retain it after the Run call that received it returns.
type ExecutionContext struct {
	Context   context.Context
	Variables *VariableContext
}

func NewExecutionContext(ctx context.Context, variables *VariableContext) ExecutionContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return ExecutionContext{
		Context:   ctx,
		Variables: variables,
	}
}

// CheckCancelled returns an error if the query has been cancelled or its deadline exceeded.
func (ctx ExecutionContext) CheckCancelled() error {
	if ctx.Context == nil {
		return nil
	}
	if err := ctx.Context.Err(); err != nil {
		return fmt.Errorf("query cancelled: %w", err)
	}
	return nil
}

type ProduceContext struct {
	ExecutionContext
}

func ProduceFromExecutionContext(ctx ExecutionContext) ProduceContext {
	return ProduceContext{
		ExecutionContext: ctx,
	}
}

// LogicalMetadata is the static description of a node's output.
// It's computed once, at construction, and never changes afterwards.
type LogicalMetadata struct {
	Schema *arrow.Schema
}

type Node interface {
	LogicalMetadata() LogicalMetadata
	// Run drives the node to exhaustion, calling produce for each output batch
	// and metaSend for each metadata message, synchronously, from the calling goroutine.
	// Neither callback may be called after Run returns.
	Run(ctx ExecutionContext, produce ProduceFn, metaSend MetaSendFn) error
}

type ProduceFn func(ctx ProduceContext, record Record) error

type MetaSendFn func(ctx ProduceContext, msg MetadataMessage) error

// Record is an immutable batch of rows. Ownership is passed to the receiver of the produce call.
type Record struct {
	arrow.Record
}

// FailFast wraps the callbacks so that once either of them returns an error,
// every subsequent call returns that same error without reaching the consumer.
func FailFast(produce ProduceFn, metaSend MetaSendFn) (ProduceFn, MetaSendFn) {
	var failure error
	guardedProduce := func(ctx ProduceContext, record Record) error {
		if failure != nil {
			return failure
		}
		if err := produce(ctx, record); err != nil {
			failure = err
			return err
		}
		return nil
	}
	guardedMetaSend := func(ctx ProduceContext, msg MetadataMessage) error {
		if failure != nil {
			return failure
		}
		if err := metaSend(ctx, msg); err != nil {
			failure = err
			return err
		}
		return nil
	}
	return guardedProduce, guardedMetaSend
}
