// Package recorder implements an in-process telemetry recording system:
// producer goroutines register typed parameters and push sampled values,
// which are buffered, de-duplicated, and forwarded over an in-process
// transport to a single sink that reconstructs per-recorder streams for
// downstream persistence.
package recorder

import (
	"sync"
	"sync/atomic"

	"github.com/aronnbrant/gorecorder/internal/transport"
)

// Option configures process-wide behavior at Configure time.
type Option func(*config)

type config struct {
	opts transport.Options
}

// WithTransportOptions overrides the default HWM/linger/send-timeout
// socket options used by every Session's socket.
func WithTransportOptions(opts transport.Options) Option {
	return func(c *config) { c.opts = opts }
}

var (
	bootstrapMu  sync.Mutex
	broker       *transport.Broker
	sinkAddress  string
	configured   bool
	transportCfg transport.Options

	recorderIDCounter atomic.Uint32

	sessionMu sync.Mutex
	sessions  = make(map[*Session]struct{})
)

// Configure sets the process-wide messaging broker and sink address. It
// must be called exactly once, before the first Session or Recorder is
// constructed; a second call returns a config Error rather than silently
// reconfiguring a running process.
func Configure(address string, opts ...Option) error {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()

	if configured {
		return NewConfigError("Configure", "already configured; Configure must be called exactly once")
	}
	if address == "" {
		return NewConfigError("Configure", "sink address must not be empty")
	}

	c := &config{opts: transport.DefaultOptions()}
	for _, opt := range opts {
		opt(c)
	}

	broker = transport.NewBroker()
	sinkAddress = address
	transportCfg = c.opts
	configured = true
	return nil
}

// currentConfig returns the shared broker, sink address, and socket
// options, or a config Error if Configure has not run.
func currentConfig() (*transport.Broker, string, transport.Options, error) {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()
	if !configured {
		return nil, "", transport.Options{}, NewConfigError("currentConfig", "Configure must be called before constructing a Recorder or Session")
	}
	return broker, sinkAddress, transportCfg, nil
}

// nextRecorderID assigns the next process-wide recorder_id, wrapping at
// 2^15 constructions (wrap is explicitly legal per the design notes).
func nextRecorderID() uint16 {
	n := recorderIDCounter.Add(1)
	return uint16(n & RecorderIDMask)
}

func registerSession(s *Session) {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	sessions[s] = struct{}{}
}

func unregisterSession(s *Session) {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	delete(sessions, s)
}

// Shutdown flushes and closes every live Session's socket. Intended for
// graceful process exit; it does not reset Configure's state.
func Shutdown() {
	sessionMu.Lock()
	live := make([]*Session, 0, len(sessions))
	for s := range sessions {
		live = append(live, s)
	}
	sessionMu.Unlock()

	for _, s := range live {
		s.Close()
	}
}

// resetForTest clears all process-wide state. Only called from this
// package's own tests; never exported.
func resetForTest() {
	bootstrapMu.Lock()
	configured = false
	broker = nil
	sinkAddress = ""
	recorderIDCounter.Store(0)
	bootstrapMu.Unlock()

	sessionMu.Lock()
	sessions = make(map[*Session]struct{})
	sessionMu.Unlock()
}
