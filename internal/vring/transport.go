// File: internal/vring/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport drives the RX/TX ring pair: find_vqs/publish_rx_buffers at
// setup, send() for outgoing frames, and receive_callback() for draining
// arrived ones. The TX lock (svqLock) serializes concurrent senders, and
// endpoint dispatch happens after the endpoint-table lock is released so
// user callbacks never run while a core lock is held. No explicit memory
// fence is issued around ring accesses. Only Send's descriptor write,
// avail publish and kick run under svqLock; PublishRXBuffers,
// ReceiveCallback and the simulated-remote helpers (DrainSendable,
// CompleteSend, DeliverFrame) take no lock, so their callers must not run
// them concurrently with each other or with Send.

package vring

import (
	"encoding/binary"
	"log"
	"sync"

	"github.com/momentics/remoteproc/api"
)

// Dispatcher resolves a local address to a registered endpoint callback.
// Implemented by internal/endpoint.Table; declared here to avoid a
// dependency from vring on endpoint.
type Dispatcher interface {
	Dispatch(dst uint32, payload []byte, src uint32) bool
}

// Config bundles the tunable parameters of one Transport instance.
type Config struct {
	SlotCount int    // N: total slots across RX+TX, must be even
	SlotSize  int    // bytes per slot, >= FrameHeaderLen
	Align     uint32 // ring alignment, e.g. 4096
	SimBase   uint64 // virtual rebase applied to addresses published on the ring
}

// DefaultConfig returns the reference platform's parameters (N=256,
// slot=512, align=4096).
func DefaultConfig() Config {
	return Config{SlotCount: 256, SlotSize: 512, Align: DefaultAlign}
}

// Transport is the virtqueue-backed messaging fabric for one remote
// processor (component F).
type Transport struct {
	cfg Config

	rvq *Ring
	svq *Ring

	pool *SlotPool

	svqLock sync.Mutex // TX ring lock (spec §5)

	doorbell api.Doorbell
	disp     Dispatcher

	rxPublished bool
}

// New constructs a Transport. disp is consulted by ReceiveCallback to route
// inbound frames; doorbell is kicked after every ring mutation the remote
// must observe.
func New(cfg Config, doorbell api.Doorbell, disp Dispatcher) *Transport {
	if cfg.SlotCount == 0 || cfg.SlotSize == 0 {
		cfg = DefaultConfig()
	}
	qsize := uint16(cfg.SlotCount / 2)
	svq := NewRing(qsize, cfg.Align)
	rvq := NewRing(qsize, cfg.Align)
	pool := NewSlotPool(cfg.SlotCount, cfg.SlotSize, svq)

	return &Transport{
		cfg:      cfg,
		rvq:      rvq,
		svq:      svq,
		pool:     pool,
		doorbell: doorbell,
		disp:     disp,
	}
}

// RVQ and SVQ expose the underlying rings for test harnesses that act as
// the simulated remote processor (see fake.Loopback).
func (t *Transport) RVQ() *Ring     { return t.rvq }
func (t *Transport) SVQ() *Ring     { return t.svq }
func (t *Transport) SlotSize() int  { return t.cfg.SlotSize }
func (t *Transport) SimBase() uint64 { return t.cfg.SimBase }

// PublishRXBuffers enqueues every RX slot as available and kicks the
// remote. Idempotent after the first call.
func (t *Transport) PublishRXBuffers() {
	if t.rxPublished {
		return
	}
	for i := 0; i < t.pool.RXCount(); i++ {
		buf := t.pool.RXSlot(i)
		addr := t.cfg.SimBase + uint64(i*t.cfg.SlotSize)
		t.rvq.SetDesc(uint16(i), addr, uint32(len(buf)), DescFlagWrite)
		t.rvq.PublishAvail(uint16(i))
	}
	t.rxPublished = true
	t.kick()
}

// Send frames (src, dst, data) into a TX slot and publishes it on the send
// virtqueue. Validates per spec §4.F.
func (t *Transport) Send(src, dst uint32, data []byte) error {
	if src == api.AddrAny || dst == api.AddrAny {
		return api.NewError(api.ErrCodeInvalid, "src and dst must be concrete addresses")
	}
	maxPayload := t.cfg.SlotSize - api.FrameHeaderLen
	if len(data) > maxPayload {
		return api.NewError(api.ErrCodeMsgTooBig, "payload exceeds slot capacity").
			WithContext("max", maxPayload).WithContext("got", len(data))
	}

	t.svqLock.Lock()
	defer t.svqLock.Unlock()

	slot, buf, ok := t.pool.AcquireTX()
	if !ok {
		return api.NewError(api.ErrCodeNoBuffer, "transmit pool exhausted")
	}

	frameLen := api.FrameHeaderLen + len(data)
	encodeFrame(buf, uint16(len(data)), src, dst, data)

	// TX descriptor indices are relative to the TX half of the pool; the
	// used-ring reclaim path in SlotPool.reclaimLocked assumes this.
	addr := t.cfg.SimBase + uint64((t.pool.RXCount()+int(slot))*t.cfg.SlotSize)
	t.svq.SetDesc(slot, addr, uint32(frameLen), 0)
	t.svq.PublishAvail(slot)
	t.kick()
	return nil
}

// ReceiveCallback drains every completed RX buffer in arrival order,
// dispatches it by destination address, and republishes the slot.
func (t *Transport) ReceiveCallback() {
	for {
		descIdx, length, ok := t.rvq.NextUsed()
		if !ok {
			return
		}
		buf := t.pool.RXSlot(int(descIdx))
		frame, err := decodeFrame(buf[:length])
		if err != nil {
			log.Printf("remoteproc: dropping malformed rpmsg frame: %v", err)
		} else if !t.disp.Dispatch(frame.Dst, frame.Data, frame.Src) {
			log.Printf("remoteproc: no endpoint bound at dst=%d, dropping message", frame.Dst)
		}

		// Re-publish the slot: descriptor address/flags are unchanged
		// (fixed RX mapping), only the avail entry is re-pushed.
		t.rvq.PublishAvail(descIdx)
		t.kick()
	}
}

// PendingSend is one frame the simulated remote has observed on the send
// virtqueue's avail ring but not yet completed.
type PendingSend struct {
	DescIdx uint16
	Frame   []byte
}

// DrainSendable is consumed by a simulated remote processor (see
// fake.Loopback): it returns every TX frame published since the last call,
// without yet reclaiming the slot — call CompleteSend once the simulated
// remote has "processed" it.
func (t *Transport) DrainSendable() []PendingSend {
	var out []PendingSend
	for {
		descIdx, ok := t.svq.NextAvail()
		if !ok {
			return out
		}
		_, length, _ := t.svq.Desc(descIdx)
		raw := t.pool.txSlot(int(descIdx))
		frame := make([]byte, length)
		copy(frame, raw[:length])
		out = append(out, PendingSend{DescIdx: descIdx, Frame: frame})
	}
}

// CompleteSend acknowledges a drained send, allowing AcquireTX to reclaim
// its slot.
func (t *Transport) CompleteSend(p PendingSend) {
	t.svq.PublishUsed(p.DescIdx, uint32(len(p.Frame)))
}

// DeliverFrame writes raw bytes from a simulated remote into the next
// available RX slot and marks it used, as if the remote had produced it.
// Returns false if the host has not published any RX buffer to consume.
func (t *Transport) DeliverFrame(raw []byte) bool {
	descIdx, ok := t.rvq.NextAvail()
	if !ok {
		return false
	}
	dst := t.pool.RXSlot(int(descIdx))
	n := copy(dst, raw)
	t.rvq.PublishUsed(descIdx, uint32(n))
	return true
}

// SendCallback is reserved: the reference design expects the remote side
// to suppress completion interrupts on the send virtqueue, so reclaiming
// TX slots happens lazily inside AcquireTX instead of from an interrupt
// handler here.
func (t *Transport) SendCallback() {}

func (t *Transport) kick() {
	if t.doorbell != nil {
		t.doorbell.Kick()
	}
}

// encodeFrame writes the 16-byte rpmsg header followed by payload into buf.
func encodeFrame(buf []byte, length uint16, src, dst uint32, payload []byte) {
	binary.LittleEndian.PutUint16(buf[0:], length)
	binary.LittleEndian.PutUint16(buf[2:], 0) // flags, reserved
	binary.LittleEndian.PutUint32(buf[4:], src)
	binary.LittleEndian.PutUint32(buf[8:], dst)
	binary.LittleEndian.PutUint32(buf[12:], 0) // reserved
	copy(buf[api.FrameHeaderLen:], payload)
}

// decodeFrame parses a received rpmsg frame from raw.
func decodeFrame(raw []byte) (*api.Frame, error) {
	if len(raw) < api.FrameHeaderLen {
		return nil, api.NewError(api.ErrCodeMalformed, "frame shorter than header")
	}
	length := binary.LittleEndian.Uint16(raw[0:])
	flags := binary.LittleEndian.Uint16(raw[2:])
	src := binary.LittleEndian.Uint32(raw[4:])
	dst := binary.LittleEndian.Uint32(raw[8:])
	if int(length) > len(raw)-api.FrameHeaderLen {
		return nil, api.NewError(api.ErrCodeMalformed, "frame length exceeds buffer")
	}
	data := make([]byte, length)
	copy(data, raw[api.FrameHeaderLen:api.FrameHeaderLen+int(length)])
	return &api.Frame{Len: length, Flags: flags, Src: src, Dst: dst, Data: data}, nil
}
