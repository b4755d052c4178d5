package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindConnectSendRecv(t *testing.T) {
	broker := NewBroker()
	opts := DefaultOptions()

	pull := NewSocket(broker, opts)
	require.NoError(t, pull.Bind("inproc://test"))

	push := NewSocket(broker, opts)
	require.NoError(t, push.Connect("inproc://test"))

	ctx := context.Background()
	require.NoError(t, push.SendParts(ctx, Parts{[]byte("hello")}))

	parts, ok, err := pull.RecvPart(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(parts[0]))
}

func TestConnectFailsWithoutBind(t *testing.T) {
	broker := NewBroker()
	push := NewSocket(broker, DefaultOptions())
	err := push.Connect("inproc://missing")
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestBindDuplicateAddressFails(t *testing.T) {
	broker := NewBroker()
	a := NewSocket(broker, DefaultOptions())
	b := NewSocket(broker, DefaultOptions())
	require.NoError(t, a.Bind("inproc://dup"))
	assert.Error(t, b.Bind("inproc://dup"))
}

func TestPollThenRecvDeliversSameMessage(t *testing.T) {
	broker := NewBroker()
	opts := DefaultOptions()
	pull := NewSocket(broker, opts)
	require.NoError(t, pull.Bind("inproc://poll"))
	push := NewSocket(broker, opts)
	require.NoError(t, push.Connect("inproc://poll"))

	ctx := context.Background()
	require.NoError(t, push.SendParts(ctx, Parts{[]byte("x")}))

	ready, err := pull.Poll(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ready)

	parts, ok, err := pull.RecvPart(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", string(parts[0]))
}

func TestPollTimesOutWithoutMessage(t *testing.T) {
	broker := NewBroker()
	pull := NewSocket(broker, DefaultOptions())
	require.NoError(t, pull.Bind("inproc://empty"))

	ready, err := pull.Poll(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestSendTimesOutAtHWM(t *testing.T) {
	broker := NewBroker()
	opts := DefaultOptions()
	opts.RecvHWM = 1
	opts.SendTimeout = 5 * time.Millisecond

	pull := NewSocket(broker, opts)
	require.NoError(t, pull.Bind("inproc://hwm"))
	push := NewSocket(broker, opts)
	require.NoError(t, push.Connect("inproc://hwm"))

	ctx := context.Background()
	require.NoError(t, push.SendParts(ctx, Parts{[]byte("1")}))
	err := push.SendParts(ctx, Parts{[]byte("2")})
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestCloseUnbindsAddress(t *testing.T) {
	broker := NewBroker()
	pull := NewSocket(broker, DefaultOptions())
	require.NoError(t, pull.Bind("inproc://closeme"))
	require.NoError(t, pull.Close())

	other := NewSocket(broker, DefaultOptions())
	assert.NoError(t, other.Bind("inproc://closeme"))
}
