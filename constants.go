package recorder

import "time"

// Defaults for transport options and buffer sizing.
const (
	// SendBufferCapacity is the fixed number of ItemRecord slots held per
	// Session before a flush is forced.
	SendBufferCapacity = 1024

	// SinkCounterSlots bounds the per-recorder counters array maintained
	// by the sink loop.
	SinkCounterSlots = 4096

	// RecorderIDMask wraps the atomic recorder_id counter at 2^15, per
	// the resolved open question allowing wraparound.
	RecorderIDMask = 0x7fff

	DefaultSendHWM     = 16000
	DefaultRecvHWM     = 16000
	DefaultLinger      = 3000 * time.Millisecond
	DefaultSendTimeout = 2 * time.Millisecond
	SinkPollInterval   = 100 * time.Millisecond

	// ControlUpdateInterval is the control-plane updater goroutine's tick
	// period (§4.6).
	ControlUpdateInterval = 250 * time.Millisecond

	// DefaultItemDesc is used when setup() is called without an explicit
	// description.
	DefaultItemDesc = "N/A"
)
