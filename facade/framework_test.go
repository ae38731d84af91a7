// File: facade/framework_test.go
package facade_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/control"
	"github.com/momentics/remoteproc/fake"
	"github.com/momentics/remoteproc/facade"
	"github.com/momentics/remoteproc/internal/bus"
)

type nopDoorbell struct{}

func (nopDoorbell) Kick() {}

func ipuMemoryMap() []api.MemoryMapEntry {
	return []api.MemoryMapEntry{{DA: 0xA0000000, PA: 0x9CF00000, Size: 0x100000}}
}

// TestFrameworkEndToEndBootAndMessage wires every component through the
// facade and exercises the data flow from spec §2 as far as load -> boot
// -> ring send; endpoint dispatch is not reached because nothing plays the
// remote side and drains the send ring.
func TestFrameworkEndToEndBootAndMessage(t *testing.T) {
	mem := fake.NewMemIO(0xA000000)
	image := fake.BuildImage(api.VariantTIFW, nil, []fake.Section{
		{
			Type: api.SectionResource,
			DA:   0xA0000000,
			Content: fake.EncodeResourceSection(api.VariantTIFW, []fake.ResourceEntry{
				{Kind: api.ResourceBootAddr, DA: 0xA0000000, Len: 0},
			}),
		},
	})
	loader := &fake.FirmwareLoader{Image: image}
	ops := &fake.PlatformOps{}

	cfg := control.DefaultConfig()
	cfg.RingSlotCount = 16
	cfg.RingSlotSize = 128

	f := facade.New(cfg)
	defer f.Close()

	mb, err := f.RegisterProcessor("ipu", ops, loader, "ipu.fw", api.VariantTIFW, ipuMemoryMap(), mem, nopDoorbell{}, nil)
	require.NoError(t, err)

	h, err := f.Get("ipu")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.Debug().DumpState()["ipu"] == "RUNNING"
	}, time.Second, time.Millisecond)

	mb.Handle(uint32(api.MailboxReady))

	var gotPayload []byte
	_, err = f.CreateEndpoint("ipu", 2000, func(payload []byte, _ uint32, _ any) { gotPayload = payload }, nil)
	require.NoError(t, err)

	require.NoError(t, f.SendOffChannel("ipu", 1500, 2000, []byte("hello")))
	mb.Handle(uint32(api.MailboxPendingMsg))

	// The loopback simulating the remote side must be driven externally in
	// this test since no real coprocessor answers; DrainSendable/DeliverFrame
	// on the transport (exercised directly in internal/vring's own tests)
	// stand in for it. Here we only assert the send path itself succeeded
	// without error, and that the processor reached RUNNING.
	require.Nil(t, gotPayload) // nothing echoes the loopback without a remote

	require.NoError(t, f.Put(h))
}

func TestFrameworkDriverBindsViaCreateChannel(t *testing.T) {
	mem := fake.NewMemIO(0x1000)
	loader := &fake.FirmwareLoader{Image: fake.BuildImage(api.VariantTIFW, nil, nil)}
	ops := &fake.PlatformOps{}

	f := facade.New(nil)
	defer f.Close()

	_, err := f.RegisterProcessor("ipu", ops, loader, "ipu.fw", api.VariantTIFW, ipuMemoryMap(), mem, nopDoorbell{}, nil)
	require.NoError(t, err)

	probed := make(chan *bus.Channel, 1)
	d := &bus.Driver{
		IDTable:  []string{"echo"},
		Probe:    func(ch *bus.Channel) error { probed <- ch; return nil },
		Remove:   func(*bus.Channel) {},
		Callback: func([]byte, uint32, any) {},
	}
	require.NoError(t, f.RegisterDriver("ipu", d))

	ch, err := f.CreateChannel("ipu", "echo", api.AddrAny, 99)
	require.NoError(t, err)

	select {
	case got := <-probed:
		require.Same(t, ch, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for probe")
	}
}

func TestFrameworkUnregisterWithOutstandingActivationPanics(t *testing.T) {
	mem := fake.NewMemIO(0x1000)
	loader := &fake.FirmwareLoader{Image: fake.BuildImage(api.VariantTIFW, nil, nil)}
	ops := &fake.PlatformOps{}

	f := facade.New(nil)

	_, err := f.RegisterProcessor("ipu", ops, loader, "ipu.fw", api.VariantTIFW, ipuMemoryMap(), mem, nopDoorbell{}, nil)
	require.NoError(t, err)

	h, err := f.Get("ipu")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.Debug().DumpState()["ipu"] == "RUNNING"
	}, time.Second, time.Millisecond)

	require.Panics(t, func() { _ = f.Unregister("ipu") })
	require.NoError(t, f.Put(h))
	require.NoError(t, f.Close())
}
