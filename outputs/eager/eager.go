package eager

import (
	"bufio"
	"fmt"
	"io"
	"log"

	"github.com/apache/arrow-go/v18/arrow"

	. "github.com/cube2222/arrowexec/execution"
	"github.com/cube2222/arrowexec/outputs/formats"
)

// OutputPrinter runs its source to completion and only then writes out all the records.
// Nothing is written if the source fails.
type OutputPrinter struct {
	source Node

	format             func(io.Writer) formats.Format
	describeWatermarks bool
}

func NewOutputPrinter(source Node, format func(io.Writer) formats.Format, describeWatermarks bool) *OutputPrinter {
	return &OutputPrinter{
		source:             source,
		format:             format,
		describeWatermarks: describeWatermarks,
	}
}

func (o *OutputPrinter) Run(execCtx ExecutionContext, out io.Writer) error {
	var records []arrow.Record
	var watermarks []MetadataMessage
	defer func() {
		for _, record := range records {
			record.Release()
		}
	}()

	if err := o.source.Run(
		execCtx,
		func(ctx ProduceContext, record Record) error {
			record.Retain()
			records = append(records, record.Record)
			return nil
		},
		func(ctx ProduceContext, msg MetadataMessage) error {
			log.Printf("output received %s", msg)
			watermarks = append(watermarks, msg)
			return nil
		},
	); err != nil {
		return err
	}

	w := bufio.NewWriterSize(out, 4096*1024)
	format := o.format(w)
	format.SetSchema(o.source.LogicalMetadata().Schema)
	for _, record := range records {
		if err := format.Write(record); err != nil {
			return fmt.Errorf("couldn't write record: %w", err)
		}
	}
	if err := format.Close(); err != nil {
		return fmt.Errorf("couldn't close output format: %w", err)
	}

	if o.describeWatermarks {
		for _, msg := range watermarks {
			fmt.Fprintln(w, msg)
		}
	}

	return w.Flush()
}
