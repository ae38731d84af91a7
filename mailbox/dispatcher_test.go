// File: mailbox/dispatcher_test.go
package mailbox_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/fake"
	"github.com/momentics/remoteproc/internal/endpoint"
	"github.com/momentics/remoteproc/internal/vring"
	"github.com/momentics/remoteproc/mailbox"
	"github.com/momentics/remoteproc/proc"
)

type nopDoorbell struct{}

func (nopDoorbell) Kick() {}

func ipuMemoryMap() []api.MemoryMapEntry {
	return []api.MemoryMapEntry{{DA: 0xA0000000, PA: 0x9CF00000, Size: 0x100000}}
}

func TestHandleReadyPublishesRXBuffers(t *testing.T) {
	eps := endpoint.NewTable()
	tr := vring.New(vring.Config{SlotCount: 16, SlotSize: 128}, nopDoorbell{}, eps)
	reg := proc.NewRegistry()
	defer reg.Close()

	var gotPayload []byte
	_, err := eps.Create(2000, func(payload []byte, _ uint32, _ any) { gotPayload = payload }, nil)
	require.NoError(t, err)

	d := mailbox.New("ipu", reg, tr, 2)
	d.Handle(uint32(api.MailboxReady)) // arms RX, so the loopback can consume sends

	lb := fake.NewLoopback(tr)
	require.NoError(t, tr.Send(1, 2000, []byte("x")))
	n := lb.Pump()

	require.Equal(t, 1, n)
	require.Equal(t, []byte("x"), gotPayload)
}

func TestHandleCrashTransitionsProcessor(t *testing.T) {
	mem := fake.NewMemIO(0x1000)
	loader := &fake.FirmwareLoader{Image: fake.BuildImage(api.VariantTIFW, nil, nil)}
	ops := &fake.PlatformOps{}

	reg := proc.NewRegistry()
	defer reg.Close()
	_, err := reg.Register("ipu", ops, loader, "ipu.fw", api.VariantTIFW, ipuMemoryMap(), mem, nil)
	require.NoError(t, err)

	h, err := reg.Get("ipu")
	require.NoError(t, err)
	rec := h.(*proc.Record)
	require.Eventually(t, func() bool { return rec.State() == api.StateRunning }, time.Second, time.Millisecond)

	eps := endpoint.NewTable()
	tr := vring.New(vring.Config{SlotCount: 16, SlotSize: 128}, nopDoorbell{}, eps)
	d := mailbox.New("ipu", reg, tr, 2)
	d.Handle(uint32(api.MailboxCrash))

	require.Equal(t, api.StateCrashed, rec.State())
}

func TestHandleUnknownBelowBaseVqIDIgnored(t *testing.T) {
	eps := endpoint.NewTable()
	tr := vring.New(vring.Config{SlotCount: 16, SlotSize: 128}, nopDoorbell{}, eps)
	reg := proc.NewRegistry()
	defer reg.Close()

	d := mailbox.New("ipu", reg, tr, 10)
	d.Handle(3) // below baseVqID, must be a no-op
}

func TestRunDrainsChannelUntilClosed(t *testing.T) {
	eps := endpoint.NewTable()
	tr := vring.New(vring.Config{SlotCount: 16, SlotSize: 128}, nopDoorbell{}, eps)
	reg := proc.NewRegistry()
	defer reg.Close()

	d := mailbox.New("ipu", reg, tr, 2)
	ch := make(chan uint32, 1)
	d.Run(ch)
	ch <- uint32(api.MailboxReady)
	close(ch)
	d.Close()
}
