// Package transport provides a minimal in-process wrapper over PUSH/PULL
// (data path) semantics. No external messaging library in this project's
// dependency surface offers PUSH/PULL with HWM and linger, so this package
// implements the contract natively on top of buffered Go channels scoped
// to a process-wide Broker. It has no REQ/REP socket; the control plane
// uses TCP instead.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aronnbrant/gorecorder/internal/logging"
)

// ErrWouldBlock is returned by SendParts when the peer's inbound queue is
// at its high-water mark and send_timeout elapses before room frees up.
var ErrWouldBlock = errors.New("transport: send would block (hwm reached)")

// ErrNotBound is returned by Connect when no endpoint has been Bind'ed
// under that address, after the connect retry window elapses.
var ErrNotBound = errors.New("transport: no bound endpoint at address")

// ErrClosed is returned by operations on a closed Socket or a Broker that
// has been shut down.
var ErrClosed = errors.New("transport: closed")

// Parts is a multipart message: each []byte is one wire-frame part.
type Parts [][]byte

// Options configures a Socket's high-water mark, linger, and send timeout.
// RecvHWM sizes a bound endpoint's inbound queue and SendTimeout bounds
// SendParts; SendHWM and Linger are carried but not read, since a send
// goes straight into the peer's queue and no outbound queue exists.
type Options struct {
	SendHWM     int
	RecvHWM     int
	Linger      time.Duration
	SendTimeout time.Duration
}

// DefaultOptions returns the configuration mandated for the data path.
func DefaultOptions() Options {
	return Options{
		SendHWM:     16000,
		RecvHWM:     16000,
		Linger:      3000 * time.Millisecond,
		SendTimeout: 2 * time.Millisecond,
	}
}

// Socket is the minimal transport surface a producer or sink depends on.
type Socket interface {
	// Bind creates a new endpoint at address; fatal-for-the-caller if one
	// already exists there (the caller, per §4.2's error policy, is
	// expected to exit the process on bind failure).
	Bind(address string) error
	// Connect attaches to an endpoint previously (or soon-to-be) Bind'ed.
	// It retries briefly to tolerate start-up races between producers and
	// the sink.
	Connect(address string) error
	// SendParts pushes one multipart message. Returns ErrWouldBlock if
	// the peer is at its receive HWM and SendTimeout elapses.
	SendParts(ctx context.Context, parts Parts) error
	// RecvPart pulls one multipart message, blocking until one arrives or
	// ctx is done. ok is false only together with a non-nil err (closed
	// socket, socket not bound, or ctx done).
	RecvPart(ctx context.Context) (parts Parts, ok bool, err error)
	// Poll blocks up to timeout waiting for an inbound message to become
	// available without consuming it.
	Poll(ctx context.Context, timeout time.Duration) (ready bool, err error)
	// LastEndpoint returns the address this socket last bound or connected to.
	LastEndpoint() string
	Close() error
}

// endpoint is a bound address: an inbound queue shared by every socket
// connected to it (PUSH/PULL fan-in), plus the message a Poll has taken
// off the queue for the next RecvPart.
type endpoint struct {
	address string
	inbound chan Parts

	mu     sync.Mutex
	peeked *Parts
}

// Broker is the process-wide registry of bound endpoints. One Broker is
// created by bootstrap.Configure and shared by every Socket in the process,
// mirroring the shared messaging Context named in §4.4.
type Broker struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
	closed    bool
}

// NewBroker creates an empty, usable Broker.
func NewBroker() *Broker {
	return &Broker{endpoints: make(map[string]*endpoint)}
}

func (b *Broker) bind(address string, recvHWM int) (*endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if _, exists := b.endpoints[address]; exists {
		return nil, fmt.Errorf("transport: address %q already bound", address)
	}
	ep := &endpoint{address: address, inbound: make(chan Parts, recvHWM)}
	b.endpoints[address] = ep
	return ep, nil
}

func (b *Broker) lookup(address string) (*endpoint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ep, ok := b.endpoints[address]
	return ep, ok
}

func (b *Broker) unbind(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.endpoints, address)
}

// Close marks the broker closed; bound endpoints already handed out keep
// working for in-flight sends but no new Bind calls succeed.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// socket is the Broker-backed Socket implementation shared by PUSH-side
// (producers, control clients) and PULL-side (sink) roles; which methods
// are meaningful depends on whether the caller Bind's or Connect's.
type socket struct {
	broker   *Broker
	opts     Options
	logger   *logging.Logger
	mu       sync.Mutex
	bound    *endpoint
	peer     *endpoint
	endpoint string
	closed   bool
}

// NewSocket creates a Socket bound to the given Broker and options.
func NewSocket(broker *Broker, opts Options) Socket {
	return &socket{broker: broker, opts: opts, logger: logging.Default()}
}

func (s *socket) Bind(address string) error {
	ep, err := s.broker.bind(address, s.opts.RecvHWM)
	if err != nil {
		s.logger.Error("bind failed", "address", address, "error", err)
		return err
	}
	s.mu.Lock()
	s.bound = ep
	s.endpoint = address
	s.mu.Unlock()
	s.logger.Info("bound", "address", address)
	return nil
}

const connectRetryInterval = 5 * time.Millisecond
const connectRetryAttempts = 40 // ~200ms, tolerating sink start-up race

func (s *socket) Connect(address string) error {
	var ep *endpoint
	var ok bool
	for attempt := 0; attempt < connectRetryAttempts; attempt++ {
		ep, ok = s.broker.lookup(address)
		if ok {
			break
		}
		time.Sleep(connectRetryInterval)
	}
	if !ok {
		s.logger.Error("connect failed", "address", address, "error", ErrNotBound)
		return ErrNotBound
	}
	s.mu.Lock()
	s.peer = ep
	s.endpoint = address
	s.mu.Unlock()
	return nil
}

func (s *socket) SendParts(ctx context.Context, parts Parts) error {
	s.mu.Lock()
	peer := s.peer
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if peer == nil {
		return fmt.Errorf("transport: send before connect")
	}

	timer := time.NewTimer(s.opts.SendTimeout)
	defer timer.Stop()
	select {
	case peer.inbound <- parts:
		return nil
	case <-timer.C:
		return ErrWouldBlock
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *socket) RecvPart(ctx context.Context) (Parts, bool, error) {
	s.mu.Lock()
	bound := s.bound
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, false, ErrClosed
	}
	if bound == nil {
		return nil, false, fmt.Errorf("transport: recv before bind")
	}

	bound.mu.Lock()
	if bound.peeked != nil {
		parts := *bound.peeked
		bound.peeked = nil
		bound.mu.Unlock()
		return parts, true, nil
	}
	bound.mu.Unlock()

	select {
	case parts, open := <-bound.inbound:
		if !open {
			return nil, false, ErrClosed
		}
		return parts, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Poll blocks up to timeout waiting for a message without consuming it: a
// message received during Poll is cached on the endpoint and returned by
// the very next RecvPart call, mirroring poll()-then-recv() semantics
// without requiring a peekable channel.
func (s *socket) Poll(ctx context.Context, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	bound := s.bound
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false, ErrClosed
	}
	if bound == nil {
		return false, fmt.Errorf("transport: poll before bind")
	}

	bound.mu.Lock()
	if bound.peeked != nil {
		bound.mu.Unlock()
		return true, nil
	}
	bound.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case parts, open := <-bound.inbound:
		if !open {
			return false, ErrClosed
		}
		bound.mu.Lock()
		bound.peeked = &parts
		bound.mu.Unlock()
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *socket) LastEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

func (s *socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.bound != nil {
		s.broker.unbind(s.bound.address)
	}
	return nil
}
