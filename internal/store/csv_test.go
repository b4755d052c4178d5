package store

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aronnbrant/gorecorder/internal/scalar"
	"github.com/aronnbrant/gorecorder/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriterRoundTrip(t *testing.T) {
	var recorders, items, data bytes.Buffer
	w, err := NewCSVWriter(&recorders, &items, &data)
	require.NoError(t, err)

	var name [52]byte
	copy(name[:], "demo")
	require.NoError(t, w.WriteRecorder(wire.InitRecorder{RecorderID: 3, ExternalID: 99, NumItems: 2, Name: name}))

	var itemName, unit [32]byte
	var desc [184]byte
	copy(itemName[:], "speed")
	copy(unit[:], "m/s")
	require.NoError(t, w.WriteItem(wire.InitItem{RecorderID: 3, Key: 0, Name: itemName, Unit: unit, Desc: desc}))

	kind, val, _, err := scalar.Classify(int64(42))
	require.NoError(t, err)
	require.NoError(t, w.WriteData(3, []wire.ItemRecord{{Key: 0, Kind: int8(kind), Length: 1, Time: 7, Data: val}}))

	require.NoError(t, w.Flush())

	assert.True(t, strings.Contains(recorders.String(), "3,99,2,demo"))
	assert.True(t, strings.Contains(items.String(), "3,0,speed,m/s,"))
	assert.True(t, strings.Contains(data.String(), "3,0,INT,1,7,42"))
}

func TestCSVWriterImplementsWriter(t *testing.T) {
	var a, b, c bytes.Buffer
	w, err := NewCSVWriter(&a, &b, &c)
	require.NoError(t, err)
	var _ Writer = w
}
