package json

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/valyala/fastjson"
)

const DefaultBatchSize = 32 * 1024

type ValueReaderFunc func(value *fastjson.Value) error

// ReadJSON decodes newline delimited JSON objects into records of at most batchSize rows.
// Fields missing in an object are read as nulls.
func ReadJSON(allocator memory.Allocator, r io.Reader, schema *arrow.Schema, batchSize int, produce func(record arrow.Record) error) error {
	batches, err := newBatchReader(allocator, schema, batchSize)
	if err != nil {
		return err
	}
	defer batches.Release()

	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1024*1024*8)

	for sc.Scan() {
		if err := batches.readLine(sc.Bytes(), produce); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("couldn't read line: %w", err)
	}

	return batches.flush(produce)
}

// batchReader accumulates decoded lines into a record builder.
type batchReader struct {
	recordBuilder *array.RecordBuilder
	readerFunc    ValueReaderFunc
	parser        fastjson.Parser
	batchSize     int
	count         int
	line          int
}

func newBatchReader(allocator memory.Allocator, schema *arrow.Schema, batchSize int) (*batchReader, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	recordBuilder := array.NewRecordBuilder(allocator, schema)
	recordBuilder.Reserve(batchSize)

	readerFunc, err := recordReader(schema, recordBuilder)
	if err != nil {
		recordBuilder.Release()
		return nil, fmt.Errorf("couldn't construct record reader function: %w", err)
	}

	return &batchReader{
		recordBuilder: recordBuilder,
		readerFunc:    readerFunc,
		batchSize:     batchSize,
	}, nil
}

// readLine decodes one line, producing a record once the batch is full.
func (b *batchReader) readLine(data []byte, produce func(record arrow.Record) error) error {
	b.line++
	if len(data) == 0 {
		return nil
	}
	value, err := b.parser.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("couldn't parse line %d: %w", b.line, err)
	}
	if err := b.readerFunc(value); err != nil {
		return fmt.Errorf("couldn't read record on line %d: %w", b.line, err)
	}
	b.count++
	if b.count == b.batchSize {
		return b.flush(produce)
	}
	return nil
}

// flush produces the buffered rows, if there are any.
func (b *batchReader) flush(produce func(record arrow.Record) error) error {
	if b.count == 0 {
		return nil
	}
	b.count = 0
	record := b.recordBuilder.NewRecord()
	b.recordBuilder.Reserve(b.batchSize)
	if err := produce(record); err != nil {
		return fmt.Errorf("couldn't produce record: %w", err)
	}
	return nil
}

func (b *batchReader) Release() {
	b.recordBuilder.Release()
}

func recordReader(schema *arrow.Schema, recordBuilder *array.RecordBuilder) (ValueReaderFunc, error) {
	fields := schema.Fields()
	readers := make([]ValueReaderFunc, len(schema.Fields()))
	for i, field := range fields {
		var err error
		readers[i], err = valueReader(field.Type, recordBuilder.Field(i))
		if err != nil {
			return nil, fmt.Errorf("couldn't create value reader for field %v: %w", field.Name, err)
		}
	}

	return func(value *fastjson.Value) error {
		obj, err := value.Object()
		if err != nil {
			return fmt.Errorf("couldn't read object: %w", err)
		}
		for i, field := range fields {
			if err := readers[i](obj.Get(field.Name)); err != nil {
				return fmt.Errorf("couldn't read field %v: %w", field.Name, err)
			}
		}
		return nil
	}, nil
}

func valueReader(dt arrow.DataType, builder array.Builder) (ValueReaderFunc, error) {
	switch dt.ID() {
	case arrow.INT64:
		return nullableReader(intReader, builder), nil
	case arrow.FLOAT64:
		return nullableReader(floatReader, builder), nil
	case arrow.STRING:
		return nullableReader(stringReader, builder), nil
	case arrow.BOOL:
		return nullableReader(boolReader, builder), nil
	case arrow.TIMESTAMP:
		return nullableReader(timestampReader, builder), nil
		// TODO: Handle unions, structs and lists.
	default:
		return nil, fmt.Errorf("unsupported type: %v", dt)
	}
}

func intReader(builder array.Builder) ValueReaderFunc {
	intBuilder := builder.(*array.Int64Builder)
	return func(value *fastjson.Value) error {
		v, err := value.Int64()
		if err != nil {
			return fmt.Errorf("couldn't read int: %w", err)
		}
		intBuilder.Append(v)
		return nil
	}
}

func floatReader(builder array.Builder) ValueReaderFunc {
	floatBuilder := builder.(*array.Float64Builder)
	return func(value *fastjson.Value) error {
		v, err := value.Float64()
		if err != nil {
			return fmt.Errorf("couldn't read float: %w", err)
		}
		floatBuilder.Append(v)
		return nil
	}
}

func stringReader(builder array.Builder) ValueReaderFunc {
	stringBuilder := builder.(*array.StringBuilder)
	return func(value *fastjson.Value) error {
		v, err := value.StringBytes()
		if err != nil {
			return fmt.Errorf("couldn't read string: %w", err)
		}
		stringBuilder.BinaryBuilder.Append(v)
		return nil
	}
}

func boolReader(builder array.Builder) ValueReaderFunc {
	boolBuilder := builder.(*array.BooleanBuilder)
	return func(value *fastjson.Value) error {
		v, err := value.Bool()
		if err != nil {
			return fmt.Errorf("couldn't read bool: %w", err)
		}
		boolBuilder.Append(v)
		return nil
	}
}

// Timestamps are read from RFC3339 strings.
func timestampReader(builder array.Builder) ValueReaderFunc {
	timestampBuilder := builder.(*array.TimestampBuilder)
	unit := timestampBuilder.Type().(*arrow.TimestampType).Unit
	return func(value *fastjson.Value) error {
		v, err := value.StringBytes()
		if err != nil {
			return fmt.Errorf("couldn't read timestamp: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return fmt.Errorf("couldn't parse timestamp: %w", err)
		}
		timestampBuilder.Append(toTimestamp(t, unit))
		return nil
	}
}

func toTimestamp(t time.Time, unit arrow.TimeUnit) arrow.Timestamp {
	switch unit {
	case arrow.Second:
		return arrow.Timestamp(t.Unix())
	case arrow.Millisecond:
		return arrow.Timestamp(t.UnixMilli())
	case arrow.Microsecond:
		return arrow.Timestamp(t.UnixMicro())
	default:
		return arrow.Timestamp(t.UnixNano())
	}
}

func nullableReader(readerFuncMaker func(builder array.Builder) ValueReaderFunc, builder array.Builder) ValueReaderFunc {
	reader := readerFuncMaker(builder)
	return func(value *fastjson.Value) error {
		if value == nil || value.Type() == fastjson.TypeNull {
			builder.AppendNull()
			return nil
		}
		return reader(value)
	}
}
