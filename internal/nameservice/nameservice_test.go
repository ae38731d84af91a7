// File: internal/nameservice/nameservice_test.go
package nameservice_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/bus"
	"github.com/momentics/remoteproc/internal/endpoint"
	"github.com/momentics/remoteproc/internal/nameservice"
)

func encodeNSMsg(name string, addr uint32, flags api.NSFlag) []byte {
	buf := make([]byte, api.ChannelNameLen+8)
	copy(buf[:api.ChannelNameLen], name)
	binary.LittleEndian.PutUint32(buf[api.ChannelNameLen:], addr)
	binary.LittleEndian.PutUint32(buf[api.ChannelNameLen+4:], uint32(flags))
	return buf
}

// TestNameServiceCreateBindsMatchingDriver is property 7 / scenario E5 from
// spec §8: delivering {name="echo", addr=99, flags=CREATE} on address 53
// results in a channel visible to the bus, with a matching driver probed.
func TestNameServiceCreateBindsMatchingDriver(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)
	ns := nameservice.New(b)
	require.NoError(t, ns.Bind(eps))
	defer ns.Close()

	probed := make(chan *bus.Channel, 1)
	b.RegisterDriver(&bus.Driver{
		IDTable: []string{"echo"},
		Probe: func(ch *bus.Channel) error {
			probed <- ch
			return nil
		},
		Remove:   func(*bus.Channel) {},
		Callback: func([]byte, uint32, any) {},
	})

	msg := encodeNSMsg("echo", 99, api.NSCreate)
	ok := eps.Dispatch(api.NameServiceAddr, msg, 0)
	require.True(t, ok)

	select {
	case ch := <-probed:
		require.Equal(t, "echo", ch.Name)
		require.Equal(t, uint32(99), ch.Dst)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for driver probe")
	}

	ch, ok := b.Lookup("echo", 99)
	require.True(t, ok)
	require.Equal(t, "echo", ch.Name)
}

// TestNameServiceDestroyRemovesChannel covers the DESTROY half of property 7.
func TestNameServiceDestroyRemovesChannel(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)
	ns := nameservice.New(b)
	require.NoError(t, ns.Bind(eps))
	defer ns.Close()

	removed := make(chan struct{}, 1)
	b.RegisterDriver(&bus.Driver{
		IDTable:  []string{"svc"},
		Probe:    func(*bus.Channel) error { return nil },
		Remove:   func(*bus.Channel) { removed <- struct{}{} },
		Callback: func([]byte, uint32, any) {},
	})

	require.True(t, eps.Dispatch(api.NameServiceAddr, encodeNSMsg("svc", 7, api.NSCreate), 0))
	require.Eventually(t, func() bool {
		_, ok := b.Lookup("svc", 7)
		return ok
	}, time.Second, time.Millisecond)

	require.True(t, eps.Dispatch(api.NameServiceAddr, encodeNSMsg("svc", 7, api.NSDestroy), 0))

	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for driver remove")
	}
	_, ok := b.Lookup("svc", 7)
	require.False(t, ok)
}

// TestNameServiceRejectsWrongLength exercises the validation rule in
// spec §4.I: reject messages whose length != sizeof(ns_msg).
func TestNameServiceRejectsWrongLength(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)
	ns := nameservice.New(b)
	require.NoError(t, ns.Bind(eps))
	defer ns.Close()

	ok := eps.Dispatch(api.NameServiceAddr, []byte("too short"), 0)
	require.True(t, ok) // dispatch succeeds (endpoint exists); handler itself drops it

	require.Empty(t, b.Channels())
}

// TestNameServiceForcesNullTerminator shows a non-terminated remote name is
// still truncated correctly before use.
func TestNameServiceForcesNullTerminator(t *testing.T) {
	eps := endpoint.NewTable()
	b := bus.New(eps)
	ns := nameservice.New(b)
	require.NoError(t, ns.Bind(eps))
	defer ns.Close()

	msg := encodeNSMsg("", 5, api.NSCreate)
	for i := 0; i < api.ChannelNameLen; i++ {
		msg[i] = 'a'
	}
	eps.Dispatch(api.NameServiceAddr, msg, 0)

	wantName := ""
	for i := 0; i < api.ChannelNameLen-1; i++ {
		wantName += "a"
	}
	require.Eventually(t, func() bool {
		_, ok := b.Lookup(wantName, 5)
		return ok
	}, time.Second, time.Millisecond)
}
