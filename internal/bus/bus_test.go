// File: internal/bus/bus_test.go
package bus_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/bus"
	"github.com/momentics/remoteproc/internal/endpoint"
)

// TestCreateChannelBindsMatchingDriver is property 7 from spec §8: a
// channel whose name matches a registered driver's id table is probed
// immediately.
func TestCreateChannelBindsMatchingDriver(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)

	probed := false
	var gotCh *bus.Channel
	d := &bus.Driver{
		IDTable: []string{"rpmsg-client-sample"},
		Probe: func(ch *bus.Channel) error {
			probed = true
			gotCh = ch
			return nil
		},
		Remove:   func(ch *bus.Channel) {},
		Callback: func(payload []byte, src uint32, userCtx any) {},
	}
	b.RegisterDriver(d)

	ch, err := b.CreateChannel("rpmsg-client-sample", api.AddrAny, 1500)
	require.NoError(t, err)
	require.True(t, probed)
	require.Same(t, ch, gotCh)
	require.GreaterOrEqual(t, ch.Src, api.ReservedLow)

	_, ok := eps.Get(ch.Src)
	require.True(t, ok)
}

func TestCreateChannelNoMatchingDriverStaysUnbound(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)

	ch, err := b.CreateChannel("unknown-channel", 10, 20)
	require.NoError(t, err)
	require.Equal(t, uint32(10), ch.Src)

	chans := b.Channels()
	require.Len(t, chans, 1)
}

func TestCreateChannelProbeFailureRollsBackEndpoint(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)

	d := &bus.Driver{
		IDTable: []string{"fails"},
		Probe: func(ch *bus.Channel) error {
			return errors.New("boom")
		},
		Remove: func(ch *bus.Channel) {},
	}
	b.RegisterDriver(d)

	_, err := b.CreateChannel("fails", api.AddrAny, 1)
	require.Error(t, err)
	require.Empty(t, b.Channels())

	// The endpoint allocated for the bind (the first dynamic address) is gone.
	_, ok := eps.Get(api.ReservedLow)
	require.False(t, ok)
}

func TestDestroyChannelCallsRemoveAndFreesEndpoint(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)

	removed := false
	d := &bus.Driver{
		IDTable:  []string{"sample"},
		Probe:    func(ch *bus.Channel) error { return nil },
		Remove:   func(ch *bus.Channel) { removed = true },
		Callback: func([]byte, uint32, any) {},
	}
	b.RegisterDriver(d)

	ch, err := b.CreateChannel("sample", api.AddrAny, 1)
	require.NoError(t, err)

	b.DestroyChannel("sample", ch.Dst)
	require.True(t, removed)
	_, ok := eps.Get(ch.Src)
	require.False(t, ok)
	require.Empty(t, b.Channels())
}

func TestDestroyChannelUnboundIsNoop(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)
	b.DestroyChannel("does-not-exist", 0)
}

func TestLookupByNameAndDst(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)

	_, err := b.CreateChannel("svc", 10, 1500)
	require.NoError(t, err)

	ch, ok := b.Lookup("svc", 1500)
	require.True(t, ok)
	require.Equal(t, "svc", ch.Name)

	_, ok = b.Lookup("svc", 9999)
	require.False(t, ok)
}
