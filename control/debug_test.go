// File: control/debug_test.go
package control_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/remoteproc/control"
)

type fakeProbe struct {
	name  string
	state string
	trace []byte
}

func (f fakeProbe) Name() string  { return f.name }
func (f fakeProbe) State() string { return f.state }
func (f fakeProbe) TraceSlot(i int) ([]byte, bool) {
	if i == 0 && f.trace != nil {
		return f.trace, true
	}
	return nil, false
}

func TestDebugRegisterAndDumpState(t *testing.T) {
	d := control.NewDebug()
	d.Register(fakeProbe{name: "ipu", state: "RUNNING", trace: []byte("hello")})
	d.Register(fakeProbe{name: "dsp", state: "OFFLINE"})

	state := d.DumpState()
	require.Equal(t, "RUNNING", state["ipu"])
	require.Equal(t, "OFFLINE", state["dsp"])

	data, ok := d.TraceSlot("ipu", 0)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), data)

	_, ok = d.TraceSlot("dsp", 0)
	require.False(t, ok)

	_, ok = d.TraceSlot("missing", 0)
	require.False(t, ok)
}

func TestDebugUnregister(t *testing.T) {
	d := control.NewDebug()
	d.Register(fakeProbe{name: "ipu", state: "RUNNING"})
	d.Unregister("ipu")
	require.Empty(t, d.DumpState())
}
