package store

import (
	"encoding/binary"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aronnbrant/gorecorder/internal/scalar"
	"github.com/aronnbrant/gorecorder/internal/wire"
)

// CSVWriter persists each frame kind to its own CSV stream: one row per
// InitRecorder, one row per InitItem, one row per ItemRecord. It is the
// stand-in for the original's never-finished HDF5 backend.
type CSVWriter struct {
	mu sync.Mutex

	recorders *csv.Writer
	items     *csv.Writer
	data      *csv.Writer

	closers []io.Closer
}

// NewCSVWriter wraps three already-open destinations, writing their
// column headers immediately.
func NewCSVWriter(recorders, items, data io.Writer) (*CSVWriter, error) {
	w := &CSVWriter{
		recorders: csv.NewWriter(recorders),
		items:     csv.NewWriter(items),
		data:      csv.NewWriter(data),
	}
	if err := w.recorders.Write([]string{"recorder_id", "external_id", "num_items", "name"}); err != nil {
		return nil, err
	}
	if err := w.items.Write([]string{"recorder_id", "key", "name", "unit", "desc"}); err != nil {
		return nil, err
	}
	if err := w.data.Write([]string{"recorder_id", "key", "kind", "length", "time", "value"}); err != nil {
		return nil, err
	}
	return w, nil
}

// NewDirCSVWriter creates recorders.csv, items.csv, and data.csv under dir.
func NewDirCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	rf, err := os.Create(filepath.Join(dir, "recorders.csv"))
	if err != nil {
		return nil, err
	}
	itf, err := os.Create(filepath.Join(dir, "items.csv"))
	if err != nil {
		rf.Close()
		return nil, err
	}
	df, err := os.Create(filepath.Join(dir, "data.csv"))
	if err != nil {
		rf.Close()
		itf.Close()
		return nil, err
	}

	w, err := NewCSVWriter(rf, itf, df)
	if err != nil {
		rf.Close()
		itf.Close()
		df.Close()
		return nil, err
	}
	w.closers = []io.Closer{rf, itf, df}
	return w, nil
}

func (w *CSVWriter) WriteRecorder(ir wire.InitRecorder) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recorders.Write([]string{
		strconv.Itoa(int(ir.RecorderID)),
		strconv.FormatInt(ir.ExternalID, 10),
		strconv.Itoa(int(ir.NumItems)),
		cstr(ir.Name[:]),
	})
}

func (w *CSVWriter) WriteItem(it wire.InitItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.items.Write([]string{
		strconv.Itoa(int(it.RecorderID)),
		strconv.Itoa(int(it.Key)),
		cstr(it.Name[:]),
		cstr(it.Unit[:]),
		cstr(it.Desc[:]),
	})
}

func (w *CSVWriter) WriteData(recorderID uint16, records []wire.ItemRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rec := range records {
		row := []string{
			strconv.Itoa(int(recorderID)),
			strconv.Itoa(int(rec.Key)),
			scalar.Kind(rec.Kind).String(),
			strconv.Itoa(int(rec.Length)),
			strconv.Itoa(int(rec.Time)),
			formatCSVValue(scalar.Kind(rec.Kind), rec.Data),
		}
		if err := w.data.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recorders.Flush()
	w.items.Flush()
	w.data.Flush()
	if err := w.recorders.Error(); err != nil {
		return err
	}
	if err := w.items.Error(); err != nil {
		return err
	}
	return w.data.Error()
}

func (w *CSVWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

func formatCSVValue(kind scalar.Kind, data [8]byte) string {
	switch kind {
	case scalar.Int:
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(data[:])), 10)
	case scalar.Uint, scalar.Char:
		return strconv.FormatUint(binary.LittleEndian.Uint64(data[:]), 10)
	case scalar.Float:
		return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(data[:])), 'f', -1, 64)
	case scalar.Str:
		return cstr(data[:])
	default:
		return ""
	}
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

var _ Writer = (*CSVWriter)(nil)
