// Package sink implements the single consumer that pulls INIT_RECORDER,
// INIT_ITEM, and DATA frames off the transport and reconstructs
// per-recorder streams for verbose tracing, counting, and optional
// downstream persistence.
package sink

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/aronnbrant/gorecorder/internal/logging"
	"github.com/aronnbrant/gorecorder/internal/store"
	"github.com/aronnbrant/gorecorder/internal/transport"
	"github.com/aronnbrant/gorecorder/internal/wire"
)

// CounterSlots bounds the per-recorder counters array. Mirrors the root
// package's SinkCounterSlots; kept as its own constant so this package
// does not need to import the root module.
const CounterSlots = 4096

// PollInterval is how long Run blocks on each Poll before checking for a
// requested stop. Mirrors the root package's SinkPollInterval.
const PollInterval = 100 * time.Millisecond

// Sink pulls frames off a bound transport.Socket, maintains per-recorder
// counters, optionally traces every record, and optionally forwards
// decoded frames to a store.Writer.
type Sink struct {
	socket  transport.Socket
	logger  *logging.Logger
	verbose bool
	writer  store.Writer

	counters   [CounterSlots]atomic.Uint32
	outOfRange atomic.Uint32
	messages   atomic.Uint64
	bytes      atomic.Uint64

	stopRequested atomic.Bool
	started       time.Time

	cpuAffinity    int
	hasCPUAffinity bool
}

// Option configures a Sink at construction.
type Option func(*Sink)

// WithVerbose enables per-record tracing.
func WithVerbose(v bool) Option {
	return func(s *Sink) { s.verbose = v }
}

// WithWriter attaches a downstream persistence layer; every decoded
// frame is forwarded to it after the in-memory counters are updated.
func WithWriter(w store.Writer) Option {
	return func(s *Sink) { s.writer = w }
}

// WithCPUAffinity pins Run's poll loop to the given OS thread and CPU
// (Linux only). A failed pin is logged and non-fatal, matching the
// teacher's "continue without affinity" behavior.
func WithCPUAffinity(cpu int) Option {
	return func(s *Sink) {
		s.cpuAffinity = cpu
		s.hasCPUAffinity = true
	}
}

// New binds a PULL-shaped socket at address and returns a ready-to-run Sink.
func New(broker *transport.Broker, address string, opts transport.Options, sinkOpts ...Option) (*Sink, error) {
	sock := transport.NewSocket(broker, opts)
	if err := sock.Bind(address); err != nil {
		return nil, err
	}
	s := &Sink{
		socket: sock,
		logger: logging.Default(),
	}
	for _, opt := range sinkOpts {
		opt(s)
	}
	return s, nil
}

// Stop requests that Run exit once no more messages are immediately
// available; it does not interrupt an in-flight Poll early.
func (s *Sink) Stop() {
	s.stopRequested.Store(true)
}

// Run polls the bound socket until Stop is called and the inbound queue
// has drained, dispatching each frame by type. Besides that drained stop,
// it ends on a transport error (returned), a closed socket, or a cancelled
// ctx (both returning nil).
func (s *Sink) Run(ctx context.Context) error {
	if s.hasCPUAffinity {
		if err := pinToCPU(s.cpuAffinity); err != nil {
			s.logger.Warn("failed to set CPU affinity, continuing without it", "cpu", s.cpuAffinity, "error", err)
		} else {
			s.logger.Debug("pinned sink loop to CPU", "cpu", s.cpuAffinity)
		}
	}

	s.started = time.Now()
	for {
		ready, err := s.socket.Poll(ctx, PollInterval)
		if err != nil {
			if err == transport.ErrClosed || err == context.Canceled {
				return nil
			}
			return err
		}
		if !ready {
			if s.stopRequested.Load() {
				return nil
			}
			continue
		}

		parts, ok, err := s.socket.RecvPart(ctx)
		if err != nil {
			if err == transport.ErrClosed || err == context.Canceled {
				return nil
			}
			return err
		}
		if !ok {
			continue
		}
		if err := s.dispatch(parts); err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
		}
	}
}

func (s *Sink) dispatch(parts transport.Parts) error {
	if len(parts) == 0 {
		return nil
	}
	ft, err := wire.UnmarshalFrameType(parts[0])
	if err != nil {
		return err
	}

	switch ft {
	case wire.FrameInitRecorder:
		if len(parts) < 2 {
			return wire.ErrInsufficientData
		}
		ir, err := wire.UnmarshalInitRecorder(parts[1])
		if err != nil {
			return err
		}
		if s.verbose {
			s.logger.Info(formatInitRecorder(ir))
		}
		if s.writer != nil {
			return s.writer.WriteRecorder(ir)
		}
		return nil

	case wire.FrameInitItem:
		if len(parts) < 2 {
			return wire.ErrInsufficientData
		}
		it, err := wire.UnmarshalInitItem(parts[1])
		if err != nil {
			return err
		}
		if s.verbose {
			s.logger.Info(formatInitItem(it))
		}
		if s.writer != nil {
			return s.writer.WriteItem(it)
		}
		return nil

	case wire.FrameData:
		if len(parts) < 3 {
			return wire.ErrInsufficientData
		}
		if len(parts[1]) < 2 {
			return wire.ErrInsufficientData
		}
		rcid := binary.LittleEndian.Uint16(parts[1])
		records, err := wire.UnmarshalItemRecords(parts[2])
		if err != nil {
			return err
		}

		n := len(records)
		if int(rcid) < CounterSlots {
			s.counters[rcid].Add(uint32(n))
		} else {
			s.outOfRange.Add(1)
		}
		s.messages.Add(uint64(n))
		s.bytes.Add(uint64(len(parts[0]) + len(parts[1]) + len(parts[2])))

		if s.verbose {
			for _, rec := range records {
				s.logger.Info(formatItemRecord(rcid, rec))
			}
		}
		if s.writer != nil {
			return s.writer.WriteData(rcid, records)
		}
		return nil

	default:
		return nil
	}
}

// Counter returns the number of records received for recorderID so far.
// Recorder ids at or beyond CounterSlots are tallied only in OutOfRange.
func (s *Sink) Counter(recorderID uint16) uint32 {
	if int(recorderID) >= CounterSlots {
		return 0
	}
	return s.counters[recorderID].Load()
}

// OutOfRange reports how many DATA frames carried a recorder_id at or
// beyond CounterSlots and therefore could not be tallied per-recorder.
func (s *Sink) OutOfRange() uint32 {
	return s.outOfRange.Load()
}

// Summary is the throughput snapshot Run's caller prints on shutdown.
type Summary struct {
	Messages     uint64
	Duration     time.Duration
	MessagesSec  float64
	MiBSec       float64
	PerRecorder  map[uint16]uint32
	OutOfRange   uint32
}

// Summary computes the current throughput snapshot. Safe to call while
// Run is still executing (e.g. for a periodic status line) or after it
// returns.
func (s *Sink) Summary() Summary {
	duration := time.Since(s.started)
	count := s.messages.Load()
	bytes := s.bytes.Load()

	var msgSec, mibSec float64
	if secs := duration.Seconds(); secs > 0 {
		msgSec = float64(count) / secs
		mibSec = float64(bytes) / (1024 * 1024) / secs
	}

	per := make(map[uint16]uint32)
	for i := 0; i < CounterSlots; i++ {
		if v := s.counters[i].Load(); v != 0 {
			per[uint16(i)] = v
		}
	}

	return Summary{
		Messages:    count,
		Duration:    duration,
		MessagesSec: msgSec,
		MiBSec:      mibSec,
		PerRecorder: per,
		OutOfRange:  s.outOfRange.Load(),
	}
}

// Close releases the bound socket.
func (s *Sink) Close() error {
	return s.socket.Close()
}
