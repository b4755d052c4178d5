package recorder

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/aronnbrant/gorecorder/internal/logging"
	"github.com/aronnbrant/gorecorder/internal/transport"
	"github.com/aronnbrant/gorecorder/internal/wire"
)

// Session is the Go-idiomatic replacement for a per-thread transport
// handle and thread-local SendBuffer: Go has no OS-thread-local storage
// and goroutines are not pinned to OS threads, so ownership of the
// buffer and socket is made explicit. Create
// one Session per logical producer goroutine and share it across every
// Recorder constructed on that goroutine; a Session must not be used
// concurrently from more than one goroutine.
type Session struct {
	socket   transport.Socket
	metrics  *Metrics
	observer Observer
	logger   *logging.Logger

	mu sync.Mutex // guards buffer/index against a concurrent Close from another goroutine

	buffer      [SendBufferCapacity]wire.ItemRecord
	index       int
	runRecorder uint16
	hasRun      bool

	closed bool
}

// SessionOption configures optional Session behavior.
type SessionOption func(*Session)

// WithMetrics attaches shared Metrics counters to a Session.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
		s.observer = MetricsObserver{M: m}
	}
}

// WithObserver attaches a custom Observer to a Session.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) { s.observer = o }
}

// NewSession opens this goroutine's transport handle, connecting to the
// sink address set by Configure, and registers the session so Shutdown
// can flush it later.
func NewSession(opts ...SessionOption) (*Session, error) {
	b, addr, tcfg, err := currentConfig()
	if err != nil {
		return nil, err
	}

	sock := transport.NewSocket(b, tcfg)
	if err := sock.Connect(addr); err != nil {
		return nil, WrapError("NewSession", ErrCodeTransportFatal, err)
	}

	s := &Session{
		socket:   sock,
		logger:   logging.Default(),
		observer: NoOpObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}

	registerSession(s)
	return s, nil
}

// append adds one ItemRecord belonging to recorderID to the buffer,
// flushing first if the buffer already holds a run for a different
// recorder (keeping every DATA frame recorder-homogeneous, invariant I6),
// and flushing right after the append that fills the buffer to capacity.
func (s *Session) append(recorderID uint16, rec wire.ItemRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasRun && s.runRecorder != recorderID {
		if err := s.flushLocked(); err != nil {
			return err
		}
	}

	s.buffer[s.index] = rec
	s.index++
	s.runRecorder = recorderID
	s.hasRun = true

	if s.index == SendBufferCapacity {
		return s.flushLocked()
	}
	return nil
}

// Flush drains any buffered records, emitting one DATA frame. A Flush on
// an empty buffer is a no-op — no zero-length DATA frame is ever sent.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Session) flushLocked() error {
	if s.index == 0 {
		return nil
	}

	records := s.buffer[:s.index]
	recorderID := s.runRecorder

	frameType := wire.MarshalFrameType(wire.FrameData)
	rcid := make([]byte, 2)
	binary.LittleEndian.PutUint16(rcid, recorderID)
	payload := wire.MarshalItemRecords(records)

	err := s.socket.SendParts(context.Background(), transport.Parts{frameType, rcid, payload})
	if err != nil {
		s.logger.Warn("dropping batch", "recorder_id", recorderID, "records", s.index, "error", err)
		s.observer.OnBatchDropped()
	} else {
		s.observer.OnFrameSent(len(frameType) + len(rcid) + len(payload))
		if s.metrics != nil {
			s.metrics.RecordsEmitted.Add(uint64(s.index))
		}
	}

	s.index = 0
	s.hasRun = false
	// Reported-or-dropped, the batch is consumed either way: per §7 a
	// transport-transient failure drops the batch and continues.
	return nil
}

// sendInitRecorder emits an InitRecorder frame immediately, bypassing the
// SendBuffer (metadata frames are not batched).
func (s *Session) sendInitRecorder(ir wire.InitRecorder) error {
	frameType := wire.MarshalFrameType(wire.FrameInitRecorder)
	body := wire.MarshalInitRecorder(ir)
	if err := s.socket.SendParts(context.Background(), transport.Parts{frameType, body}); err != nil {
		s.observer.OnBatchDropped()
		return WrapError("sendInitRecorder", ErrCodeTransportTransient, err)
	}
	s.observer.OnFrameSent(len(frameType) + len(body))
	return nil
}

// sendInitItem emits an InitItem frame immediately.
func (s *Session) sendInitItem(it wire.InitItem) error {
	frameType := wire.MarshalFrameType(wire.FrameInitItem)
	body := wire.MarshalInitItem(it)
	if err := s.socket.SendParts(context.Background(), transport.Parts{frameType, body}); err != nil {
		s.observer.OnBatchDropped()
		return WrapError("sendInitItem", ErrCodeTransportTransient, err)
	}
	s.observer.OnFrameSent(len(frameType) + len(body))
	return nil
}

// Close flushes any remaining buffer and releases the transport handle.
// Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	_ = s.flushLocked()
	s.mu.Unlock()

	unregisterSession(s)
	return s.socket.Close()
}
