package ctrlplane

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/aronnbrant/gorecorder/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendCommand(t *testing.T, addr, cmd string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintln(conn, cmd)
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSpace(reply)
}

func TestConnectDisconnectRoundTrip(t *testing.T) {
	broker := transport.NewBroker()
	s, err := NewServer(broker, "127.0.0.1:0")
	require.NoError(t, err)
	s.Run()
	defer s.Stop()

	addr := s.listener.Addr().String()

	reply := sendCommand(t, addr, "connect")
	fields := strings.Fields(reply)
	require.Len(t, fields, 2)
	assert.True(t, strings.HasPrefix(fields[1], "inproc://ctrlplane-client-"))

	disconnectReply := sendCommand(t, addr, "disconnect")
	assert.True(t, strings.HasPrefix(disconnectReply, "disconnect "))
}

func TestDisconnectWithNoClientsRepliesNA(t *testing.T) {
	broker := transport.NewBroker()
	s, err := NewServer(broker, "127.0.0.1:0")
	require.NoError(t, err)
	s.Run()
	defer s.Stop()

	addr := s.listener.Addr().String()
	assert.Equal(t, "N/A", sendCommand(t, addr, "disconnect"))
	assert.Equal(t, "N/A", sendCommand(t, addr, "freq 5"))
}

func TestFreqUpdatesGateUpdaterDelivery(t *testing.T) {
	broker := transport.NewBroker()
	s, err := NewServer(broker, "127.0.0.1:0")
	require.NoError(t, err)
	s.Run()
	defer s.Stop()

	addr := s.listener.Addr().String()
	reply := sendCommand(t, addr, "connect")
	fields := strings.Fields(reply)
	require.Len(t, fields, 2)
	clientAddr := fields[1]

	freqReply := sendCommand(t, addr, "freq 1")
	assert.True(t, strings.HasPrefix(freqReply, "frequency "))

	pull := transport.NewSocket(broker, transport.DefaultOptions())
	require.NoError(t, pull.Connect(clientAddr))
	defer pull.Close()

	ready, err := pull.Poll(context.Background(), 2*UpdateInterval)
	require.NoError(t, err)
	assert.True(t, ready, "expected at least one pushed update within two ticks")
}

func TestUnknownCommandEchoesReversed(t *testing.T) {
	broker := transport.NewBroker()
	s, err := NewServer(broker, "127.0.0.1:0")
	require.NoError(t, err)
	s.Run()
	defer s.Stop()

	addr := s.listener.Addr().String()
	assert.Equal(t, "gnip", sendCommand(t, addr, "ping"))
}
