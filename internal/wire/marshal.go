package wire

import (
	"encoding/binary"
	"fmt"
)

// MarshalError reports a wire encode/decode failure with the offending
// type name, mirroring the uapi package's field-level error reporting.
type MarshalError struct {
	Type string
	Msg  string
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("wire: %s: %s", e.Type, e.Msg)
}

var (
	ErrInsufficientData = &MarshalError{Type: "*", Msg: "insufficient data"}
)

func insufficient(typeName string, need, got int) error {
	return &MarshalError{Type: typeName, Msg: fmt.Sprintf("need %d bytes, got %d", need, got)}
}

// MarshalFrameType encodes a FrameType as its 4-byte little-endian form.
func MarshalFrameType(t FrameType) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(t))
	return buf
}

// UnmarshalFrameType decodes a FrameType from its first 4 bytes.
func UnmarshalFrameType(b []byte) (FrameType, error) {
	if len(b) < 4 {
		return 0, insufficient("FrameType", 4, len(b))
	}
	return FrameType(binary.LittleEndian.Uint32(b)), nil
}

// MarshalItemRecord encodes a single ItemRecord into its 16-byte wire form.
func MarshalItemRecord(r ItemRecord) []byte {
	buf := make([]byte, ItemRecordSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(r.Key))
	buf[2] = byte(r.Kind)
	buf[3] = byte(r.Length)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Time))
	copy(buf[8:16], r.Data[:])
	return buf
}

// UnmarshalItemRecord decodes a single ItemRecord from its 16-byte wire form.
func UnmarshalItemRecord(b []byte) (ItemRecord, error) {
	var r ItemRecord
	if len(b) < ItemRecordSize {
		return r, insufficient("ItemRecord", ItemRecordSize, len(b))
	}
	r.Key = int16(binary.LittleEndian.Uint16(b[0:2]))
	r.Kind = int8(b[2])
	r.Length = int8(b[3])
	r.Time = int32(binary.LittleEndian.Uint32(b[4:8]))
	copy(r.Data[:], b[8:16])
	return r, nil
}

// MarshalItemRecords encodes a run of ItemRecords into one concatenated
// DATA-frame payload part.
func MarshalItemRecords(records []ItemRecord) []byte {
	buf := make([]byte, ItemRecordSize*len(records))
	for i, r := range records {
		copy(buf[i*ItemRecordSize:], MarshalItemRecord(r))
	}
	return buf
}

// UnmarshalItemRecords decodes a DATA-frame payload into individual
// records. Per §4.1, total length must be divisible by ItemRecordSize.
func UnmarshalItemRecords(b []byte) ([]ItemRecord, error) {
	if len(b)%ItemRecordSize != 0 {
		return nil, &MarshalError{Type: "[]ItemRecord", Msg: fmt.Sprintf("length %d not a multiple of %d", len(b), ItemRecordSize)}
	}
	n := len(b) / ItemRecordSize
	out := make([]ItemRecord, n)
	for i := 0; i < n; i++ {
		r, err := UnmarshalItemRecord(b[i*ItemRecordSize : (i+1)*ItemRecordSize])
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// MarshalInitItem encodes an InitItem into its 256-byte wire form.
func MarshalInitItem(it InitItem) []byte {
	buf := make([]byte, initItemSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(it.RecorderID))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(it.Key))
	copy(buf[4:36], it.Name[:])
	copy(buf[36:68], it.Unit[:])
	copy(buf[68:252], it.Desc[:])
	copy(buf[252:256], it.Pad[:])
	return buf
}

// UnmarshalInitItem decodes an InitItem from its 256-byte wire form.
func UnmarshalInitItem(b []byte) (InitItem, error) {
	var it InitItem
	if len(b) < initItemSize {
		return it, insufficient("InitItem", initItemSize, len(b))
	}
	it.RecorderID = int16(binary.LittleEndian.Uint16(b[0:2]))
	it.Key = int16(binary.LittleEndian.Uint16(b[2:4]))
	copy(it.Name[:], b[4:36])
	copy(it.Unit[:], b[36:68])
	copy(it.Desc[:], b[68:252])
	copy(it.Pad[:], b[252:256])
	return it, nil
}

// MarshalInitRecorder encodes an InitRecorder into its 64-byte wire form.
func MarshalInitRecorder(ir InitRecorder) []byte {
	buf := make([]byte, initRecorderSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(ir.ExternalID))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(ir.RecorderID))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(ir.NumItems))
	copy(buf[12:64], ir.Name[:])
	return buf
}

// UnmarshalInitRecorder decodes an InitRecorder from its 64-byte wire form.
func UnmarshalInitRecorder(b []byte) (InitRecorder, error) {
	var ir InitRecorder
	if len(b) < initRecorderSize {
		return ir, insufficient("InitRecorder", initRecorderSize, len(b))
	}
	ir.ExternalID = int64(binary.LittleEndian.Uint64(b[0:8]))
	ir.RecorderID = int16(binary.LittleEndian.Uint16(b[8:10]))
	ir.NumItems = int16(binary.LittleEndian.Uint16(b[10:12]))
	copy(ir.Name[:], b[12:64])
	return ir, nil
}

const (
	initItemSize     = 256
	initRecorderSize = 64
)
