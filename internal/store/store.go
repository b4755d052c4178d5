// Package store implements downstream persistence of decoded frames. The
// original implementation's HDF5 backend never grew past a stub that
// re-implemented the same PULL loop as its primary sink with no real
// HDF5 calls, so this package keeps only the durable-output contract and
// a CSV-backed writer in its place.
package store

import "github.com/aronnbrant/gorecorder/internal/wire"

// Writer receives decoded frames as the sink dispatches them. All methods
// may be called concurrently with each other only if the concrete Writer
// documents that guarantee; the sink itself calls them from a single
// goroutine.
type Writer interface {
	WriteRecorder(ir wire.InitRecorder) error
	WriteItem(it wire.InitItem) error
	WriteData(recorderID uint16, records []wire.ItemRecord) error
	Flush() error
	Close() error
}
