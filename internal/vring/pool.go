// File: internal/vring/pool.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-size slot pool backing both rings. RX slots occupy [0, n/2); TX
// slots occupy [n/2, n). The reference implementation this spec is drawn
// from allocates TX buffers from a monotonically advancing cursor and then
// switches to used-ring reclamation once the cursor is exhausted, which
// admits a race if send() interleaves with the first reclaim. Per spec §9
// this is unified behind a single pool operation guarded by the TX lock.

package vring

import "sync"

// SlotPool manages the fixed-size shared buffer region and the TX
// free-slot bookkeeping. RX slots are always considered "in flight" (owned
// by the ring) and are never tracked as free/busy here.
type SlotPool struct {
	mem      []byte
	slotSize int
	n        int // total slots
	rxCount  int // n/2

	mu       sync.Mutex
	txFree   []uint16 // free TX slot indices, relative to the TX half (0-based)
	svq      *Ring    // drained for reclaim when txFree is empty
}

// NewSlotPool allocates n slots of slotSize bytes each; n must be even.
func NewSlotPool(n int, slotSize int, svq *Ring) *SlotPool {
	if n%2 != 0 {
		n++
	}
	p := &SlotPool{
		mem:      make([]byte, n*slotSize),
		slotSize: slotSize,
		n:        n,
		rxCount:  n / 2,
		svq:      svq,
	}
	p.txFree = make([]uint16, n/2)
	for i := range p.txFree {
		p.txFree[i] = uint16(i)
	}
	return p
}

// SlotSize returns the fixed size of one slot.
func (p *SlotPool) SlotSize() int { return p.slotSize }

// RXCount returns the number of RX slots.
func (p *SlotPool) RXCount() int { return p.rxCount }

// TXCount returns the number of TX slots.
func (p *SlotPool) TXCount() int { return p.n - p.rxCount }

// RXSlot returns the backing buffer for RX slot index i (0-based within
// the RX half).
func (p *SlotPool) RXSlot(i int) []byte {
	off := i * p.slotSize
	return p.mem[off : off+p.slotSize]
}

// txSlot returns the backing buffer for TX slot index i (0-based within
// the TX half).
func (p *SlotPool) txSlot(i int) []byte {
	off := (p.rxCount + i) * p.slotSize
	return p.mem[off : off+p.slotSize]
}

// AcquireTX reserves a free TX slot, reclaiming completed ones from the
// send virtqueue's used ring if the free list is empty. Returns ok=false
// if no slot is available after reclamation (NoBuffer).
func (p *SlotPool) AcquireTX() (slot uint16, buf []byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.txFree) == 0 {
		p.reclaimLocked()
	}
	if len(p.txFree) == 0 {
		return 0, nil, false
	}
	last := len(p.txFree) - 1
	slot = p.txFree[last]
	p.txFree = p.txFree[:last]
	return slot, p.txSlot(int(slot)), true
}

// reclaimLocked drains every pending used-ring completion on svq back into
// the free list. Caller holds p.mu.
func (p *SlotPool) reclaimLocked() {
	for {
		descIdx, _, ok := p.svq.NextUsed()
		if !ok {
			return
		}
		txIdx := descIdx // TX descriptor indices are TX-half-relative by construction
		p.txFree = append(p.txFree, txIdx)
	}
}

// ReleaseTX returns a slot to the free list without going through the used
// ring; used only for rollback of a reservation that was never published.
func (p *SlotPool) ReleaseTX(slot uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txFree = append(p.txFree, slot)
}
