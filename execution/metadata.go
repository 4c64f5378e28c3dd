package execution

import (
	"fmt"
	"time"
)

// MetadataMessage is an out-of-band correctness signal flowing alongside record batches.
type MetadataMessage struct {
	Type      MetadataMessageType
	Watermark time.Time
}

type MetadataMessageType int

const (
	MetadataMessageTypeWatermark MetadataMessageType = iota
)

func (t MetadataMessageType) String() string {
	switch t {
	case MetadataMessageTypeWatermark:
		return "watermark"
	}
	return "unknown"
}

func (msg MetadataMessage) String() string {
	switch msg.Type {
	case MetadataMessageTypeWatermark:
		if msg.Watermark.Equal(WatermarkMaxValue) {
			return "watermark(max)"
		}
		return fmt.Sprintf("watermark(%s)", msg.Watermark.Format(time.RFC3339Nano))
	}
	return msg.Type.String()
}

// WatermarkMaxValue is the watermark of a stream which will never produce any more records.
var WatermarkMaxValue = time.Unix(0, 0).AddDate(10000, 0, 0)

func NewWatermarkMessage(watermark time.Time) MetadataMessage {
	return MetadataMessage{
		Type:      MetadataMessageTypeWatermark,
		Watermark: watermark,
	}
}
