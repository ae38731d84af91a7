// File: internal/vring/ring.go
// Package vring implements the split-virtqueue transport (component F):
// two unidirectional rings (RX, TX) over contiguous shared memory, matching
// the classical virtio descriptor-table/avail-ring/used-ring layout
// bit-for-bit, since that layout is the wire contract with the remote
// processor (spec §6).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ring padding follows the teacher's discipline in core/concurrency/ring.go
// of separating hot fields to avoid false sharing; here it is applied to
// keep the avail and used halves on distinct cache lines where the layout
// permits, without deviating from the fixed wire format.

package vring

import (
	"encoding/binary"
)

const (
	// DefaultAlign is the typical shared-memory alignment boundary between
	// a ring's avail section and its used section.
	DefaultAlign = 4096

	descSize = 16 // addr(8) + len(4) + flags(2) + next(2)
	usedElemSize = 8 // id(4) + len(4)

	// DescFlagWrite marks a descriptor as device-writable (used for RX
	// buffers the remote fills in).
	DescFlagWrite uint16 = 1 << 1
)

// Ring is one split virtqueue: a descriptor table plus avail and used
// rings, laid out contiguously in a single buffer at the configured
// alignment.
type Ring struct {
	buf       []byte
	qsize     uint16
	align     uint32
	availOff  int
	usedOff   int

	// deviceAvailCursor tracks how far the simulated remote ("device" side)
	// has consumed the avail ring; hostUsedCursor tracks how far the host
	// ("driver" side) has consumed the used ring. Both live here because,
	// in this in-process simulation, one Ring is driven from both ends
	// (see fake.Loopback) rather than by a separate hardware actor.
	deviceAvailCursor uint16
	hostUsedCursor    uint16
}

// NewRing allocates a zeroed ring sized for qsize descriptors at align.
func NewRing(qsize uint16, align uint32) *Ring {
	if align == 0 {
		align = DefaultAlign
	}
	descTableLen := int(qsize) * descSize
	availLen := 4 + 2*int(qsize) + 2 // flags + idx + ring + used_event
	availOff := descTableLen
	usedOff := alignUp(availOff+availLen, int(align))
	usedLen := 4 + usedElemSize*int(qsize) + 2 // flags + idx + ring + avail_event
	total := usedOff + usedLen

	return &Ring{
		buf:      make([]byte, total),
		qsize:    qsize,
		align:    align,
		availOff: availOff,
		usedOff:  usedOff,
	}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// QueueSize returns the descriptor-table (and ring) capacity.
func (r *Ring) QueueSize() uint16 { return r.qsize }

// Size returns the total backing-buffer size in bytes.
func (r *Ring) Size() int { return len(r.buf) }

// --- Descriptor table ---

func (r *Ring) descOffset(i uint16) int {
	return int(i) * descSize
}

// SetDesc writes descriptor i.
func (r *Ring) SetDesc(i uint16, addr uint64, length uint32, flags uint16) {
	off := r.descOffset(i)
	binary.LittleEndian.PutUint64(r.buf[off:], addr)
	binary.LittleEndian.PutUint32(r.buf[off+8:], length)
	binary.LittleEndian.PutUint16(r.buf[off+12:], flags)
	binary.LittleEndian.PutUint16(r.buf[off+14:], 0) // next, unused (no chaining)
}

// Desc reads descriptor i.
func (r *Ring) Desc(i uint16) (addr uint64, length uint32, flags uint16) {
	off := r.descOffset(i)
	addr = binary.LittleEndian.Uint64(r.buf[off:])
	length = binary.LittleEndian.Uint32(r.buf[off+8:])
	flags = binary.LittleEndian.Uint16(r.buf[off+12:])
	return
}

// SetDescLen updates just the length field of descriptor i, used to record
// the actual payload size without re-encoding address/flags.
func (r *Ring) SetDescLen(i uint16, length uint32) {
	off := r.descOffset(i)
	binary.LittleEndian.PutUint32(r.buf[off+8:], length)
}

// --- Avail ring (driver/host -> device/remote) ---

func (r *Ring) availFlags() uint16     { return binary.LittleEndian.Uint16(r.buf[r.availOff:]) }
func (r *Ring) availIdx() uint16       { return binary.LittleEndian.Uint16(r.buf[r.availOff+2:]) }
func (r *Ring) setAvailIdx(idx uint16) { binary.LittleEndian.PutUint16(r.buf[r.availOff+2:], idx) }
func (r *Ring) availRingSlot(pos uint16) int {
	return r.availOff + 4 + int(pos%r.qsize)*2
}

// PublishAvail appends descIdx to the avail ring and advances avail.idx.
// Callers hold whichever lock protects this ring (TX lock for svq,
// implicit single-writer for rvq republication).
func (r *Ring) PublishAvail(descIdx uint16) {
	idx := r.availIdx()
	binary.LittleEndian.PutUint16(r.buf[r.availRingSlot(idx):], descIdx)
	r.setAvailIdx(idx + 1)
}

// NextAvail returns the next unconsumed avail entry from the simulated
// device side, advancing its cursor. ok is false if the device has caught
// up with the host.
func (r *Ring) NextAvail() (descIdx uint16, ok bool) {
	if r.deviceAvailCursor == r.availIdx() {
		return 0, false
	}
	pos := r.availRingSlot(r.deviceAvailCursor)
	descIdx = binary.LittleEndian.Uint16(r.buf[pos:])
	r.deviceAvailCursor++
	return descIdx, true
}

// --- Used ring (device/remote -> driver/host) ---

func (r *Ring) usedIdx() uint16       { return binary.LittleEndian.Uint16(r.buf[r.usedOff+2:]) }
func (r *Ring) setUsedIdx(idx uint16) { binary.LittleEndian.PutUint16(r.buf[r.usedOff+2:], idx) }
func (r *Ring) usedRingSlot(pos uint16) int {
	return r.usedOff + 4 + int(pos%r.qsize)*usedElemSize
}

// PublishUsed appends a completion for descIdx (with the number of bytes
// the device actually wrote/consumed) from the simulated device side.
func (r *Ring) PublishUsed(descIdx uint16, length uint32) {
	idx := r.usedIdx()
	off := r.usedRingSlot(idx)
	binary.LittleEndian.PutUint32(r.buf[off:], uint32(descIdx))
	binary.LittleEndian.PutUint32(r.buf[off+4:], length)
	r.setUsedIdx(idx + 1)
}

// NextUsed returns the next unconsumed used entry for the host side,
// advancing the host's cursor. ok is false if nothing new has arrived.
func (r *Ring) NextUsed() (descIdx uint16, length uint32, ok bool) {
	if r.hostUsedCursor == r.usedIdx() {
		return 0, 0, false
	}
	off := r.usedRingSlot(r.hostUsedCursor)
	descIdx = uint16(binary.LittleEndian.Uint32(r.buf[off:]))
	length = binary.LittleEndian.Uint32(r.buf[off+4:])
	r.hostUsedCursor++
	return descIdx, length, true
}
