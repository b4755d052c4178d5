// Package wire defines the packed, power-of-two-sized frame structs
// exchanged between producers and the sink, and their manual
// marshal/unmarshal codecs.
package wire

import "unsafe"

// FrameType is the 4-byte discriminator carried as the first part of
// every wire message.
type FrameType uint32

const (
	FrameInitRecorder FrameType = iota
	FrameInitItem
	FrameData
)

func (t FrameType) String() string {
	switch t {
	case FrameInitRecorder:
		return "INIT_RECORDER"
	case FrameInitItem:
		return "INIT_ITEM"
	case FrameData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// ItemRecord is one packed sample: 16 bytes, memcpy-safe across threads.
type ItemRecord struct {
	Key    int16
	Kind   int8
	Length int8
	Time   int32
	Data   [8]byte
}

var _ [16]byte = [unsafe.Sizeof(ItemRecord{})]byte{}

// InitItem describes a registered key; emitted once immediately after
// setup(). 256 bytes: the naturally packed RecorderID+Key+Name+Unit+Desc
// layout totals 258 bytes, two bytes over a power of two, so Desc is
// trimmed to 184 bytes and a 4-byte Pad absorbs the remainder — see
// DESIGN.md for the padding rationale.
type InitItem struct {
	RecorderID int16
	Key        int16
	Name       [32]byte
	Unit       [32]byte
	Desc       [184]byte
	Pad        [4]byte
}

var _ [256]byte = [unsafe.Sizeof(InitItem{})]byte{}

// InitRecorder describes a recorder; emitted once at construction.
type InitRecorder struct {
	ExternalID int64
	RecorderID int16
	NumItems   int16
	Name       [52]byte
}

var _ [64]byte = [unsafe.Sizeof(InitRecorder{})]byte{}

// ItemRecordSize is sizeof(ItemRecord), used by the sink to compute
// count = len(bytes) / ItemRecordSize without risking a fault on a
// misaligned trailing partial record.
const ItemRecordSize = int(unsafe.Sizeof(ItemRecord{}))
