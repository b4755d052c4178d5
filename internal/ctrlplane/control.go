// Package ctrlplane implements the out-of-band control server: a
// line-based request/reply protocol over TCP (this project's stand-in
// for the REQ/REP control socket, since no messaging library in this
// project's dependency surface offers it) that lets a client register
// for a push feed of periodic update ticks and set the delivery
// frequency of a randomly chosen registered client.
package ctrlplane

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aronnbrant/gorecorder/internal/logging"
	"github.com/aronnbrant/gorecorder/internal/transport"
)

// UpdateInterval is the updater goroutine's tick period.
const UpdateInterval = 250 * time.Millisecond

// defaultFreq is the frequency (in update ticks) assigned to a newly
// connected client, and the fallback used when a "freq" command's
// argument fails to parse.
const defaultFreq = 10

// client is one registered control-plane peer: an in-process PUSH socket
// the updater goroutine writes "data:<tick>" messages to, gated by freq.
type client struct {
	id     int32
	freq   int32
	socket transport.Socket
	addr   string
}

// Server accepts TCP connections, each carrying exactly one command, and
// replies with exactly one line, mirroring the request/reply shape of
// the original control channel without requiring a long-lived session.
type Server struct {
	listener net.Listener
	broker   *transport.Broker
	logger   *logging.Logger

	mu      sync.Mutex
	clients []*client

	nextClientID atomic.Int32
	nextAddrSeq  atomic.Int64

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer listens on listenAddr (e.g. "127.0.0.1:10000") and prepares
// in-process PUSH endpoints for connecting clients on broker.
func NewServer(broker *transport.Broker, listenAddr string) (*Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{listener: ln, broker: broker, logger: logging.Default()}
	s.nextClientID.Store(1000)
	return s, nil
}

// Run starts the accept loop and the updater goroutine. It returns
// immediately; call Stop to shut both down.
func (s *Server) Run() {
	s.running.Store(true)
	s.wg.Add(2)
	go s.runControl()
	go s.runUpdater()
}

// Stop closes the listener, disconnects every client, and waits for both
// goroutines to exit.
func (s *Server) Stop() {
	s.running.Store(false)
	s.listener.Close()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.socket.Close()
	}
	s.clients = nil
}

func (s *Server) runControl() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		s.logger.Debug("control: empty request")
		return
	}

	fields := strings.Fields(line)
	cmd := fields[0]
	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}

	var reply string
	switch cmd {
	case "connect":
		reply = s.connectClient()
	case "disconnect":
		reply = s.disconnectClient()
	case "freq":
		reply = s.updateClientFrequency(arg)
	default:
		reply = reverse(cmd)
	}

	fmt.Fprintln(conn, reply)
}

func (s *Server) connectClient() string {
	id := s.nextClientID.Add(1)
	seq := s.nextAddrSeq.Add(1)
	addr := fmt.Sprintf("inproc://ctrlplane-client-%d-%d", id, seq)

	sock := transport.NewSocket(s.broker, transport.DefaultOptions())
	if err := sock.Bind(addr); err != nil {
		s.logger.Error("control: bind failed", "address", addr, "error", err)
		return "N/A"
	}

	c := &client{id: id, freq: defaultFreq, socket: sock, addr: addr}
	s.mu.Lock()
	s.clients = append(s.clients, c)
	s.mu.Unlock()

	return fmt.Sprintf("%d %s", id, addr)
}

func (s *Server) disconnectClient() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return "N/A"
	}
	c := s.clients[0]
	s.clients = s.clients[1:]
	c.socket.Close()
	return fmt.Sprintf("disconnect %d", c.id)
}

func (s *Server) updateClientFrequency(arg string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return "N/A"
	}

	idx := rand.Intn(len(s.clients))
	freq, err := strconv.Atoi(arg)
	if err != nil {
		s.logger.Warn("control: bad freq argument, using default", "arg", arg, "default", defaultFreq)
		freq = defaultFreq
	}
	s.clients[idx].freq = int32(freq)

	return fmt.Sprintf("frequency %d = %dHz", s.clients[idx].id, freq)
}

func (s *Server) runUpdater() {
	defer s.wg.Done()
	ticker := time.NewTicker(UpdateInterval)
	defer ticker.Stop()

	var loop uint64
	for s.running.Load() {
		<-ticker.C
		s.mu.Lock()
		for _, c := range s.clients {
			if c.freq <= 0 || loop%uint64(c.freq) != 0 {
				continue
			}
			payload := []byte(fmt.Sprintf("data:%d", loop))
			ctx, cancel := context.WithTimeout(context.Background(), UpdateInterval)
			if err := c.socket.SendParts(ctx, transport.Parts{payload}); err != nil {
				s.logger.Warn("control: update delivery failed", "client_id", c.id, "error", err)
			}
			cancel()
		}
		s.mu.Unlock()
		loop++
	}
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
