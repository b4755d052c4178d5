package sink

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aronnbrant/gorecorder/internal/scalar"
	"github.com/aronnbrant/gorecorder/internal/wire"
)

// formatItemRecord renders one DATA-frame record as a single trace line,
// grounded on itemToString/the "(DATA): ..." printf in the original sink.
func formatItemRecord(recorderID uint16, rec wire.ItemRecord) string {
	return fmt.Sprintf("(DATA): @%03d %6d-%d T%d L%d -- %s",
		rec.Time, recorderID, rec.Key, rec.Kind, rec.Length, formatValue(scalar.Kind(rec.Kind), rec.Data, int(rec.Length)))
}

// formatInitItem renders an INIT_ITEM frame, grounded on the "(ITEM): ..."
// printf in the original sink.
func formatInitItem(it wire.InitItem) string {
	return fmt.Sprintf("(ITEM): %6d-%d '%s' '%s'",
		it.RecorderID, it.Key, cstr(it.Name[:]), cstr(it.Desc[:]))
}

// formatInitRecorder renders an INIT_RECORDER frame, grounded on the
// "(REC): ..." printf in the original sink.
func formatInitRecorder(ir wire.InitRecorder) string {
	return fmt.Sprintf("(REC):  %4d(%d) L%d '%s'",
		ir.RecorderID, ir.ExternalID, ir.NumItems, cstr(ir.Name[:]))
}

// formatValue renders the 8-byte payload according to kind, mirroring
// itemToString's per-type switch. The widening rule (scalar.Classify)
// only ever populates the leading element of an array value, so length
// is reported separately in the L field rather than reconstructed here.
func formatValue(kind scalar.Kind, data [8]byte, length int) string {
	switch kind {
	case scalar.Int:
		return fmt.Sprintf("%d", int64(binary.LittleEndian.Uint64(data[:])))
	case scalar.Uint, scalar.Char:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint64(data[:]))
	case scalar.Float:
		return fmt.Sprintf("%f", math.Float64frombits(binary.LittleEndian.Uint64(data[:])))
	case scalar.Str:
		return cstr(data[:])
	default:
		return ""
	}
}

// cstr trims a fixed-size NUL-padded byte array down to its leading
// NUL-terminated run, the Go equivalent of printf("%s", char[]).
func cstr(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
