// File: proc/record.go
package proc

import (
	"sync"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/xlat"
)

// traceSlot is one host-mapped trace buffer surfaced for introspection.
type traceSlot struct {
	pa   uint64
	data []byte
	used bool
}

// Record is one registered remote processor: identity and configuration
// fixed at registration, runtime state guarded by its own mutex per spec
// §4.D/§5 (per-record mutex, never held across firmware I/O or parsing).
type Record struct {
	name         string
	ops          api.PlatformOps
	loader       api.FirmwareLoader
	fwPath       string
	variant      api.FirmwareVariant
	table        *xlat.Table
	mem          api.MemIO
	platformPriv any

	mu         sync.Mutex
	state      api.State
	refcount   int
	loadDone   chan struct{}
	bootAddr   uint64
	traceSlots [2]traceSlot
}

var _ api.Handle = (*Record)(nil)

// Name implements api.Handle.
func (r *Record) Name() string { return r.name }

// PlatformPriv returns the opaque platform-private value supplied at
// registration, for use by a PlatformOps implementation.
func (r *Record) PlatformPriv() any { return r.platformPriv }

// State returns a snapshot of the current lifecycle state.
func (r *Record) State() api.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Refcount returns a snapshot of the current activation count.
func (r *Record) Refcount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refcount
}

// BootAddr returns the entry point discovered by the last successful load.
func (r *Record) BootAddr() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bootAddr
}

// TraceSlot returns a read-only view of trace buffer i (0 or 1), and
// whether it is currently populated (component 4.K debug surface).
func (r *Record) TraceSlot(i int) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.traceSlots) || !r.traceSlots[i].used {
		return nil, false
	}
	return r.traceSlots[i].data, true
}
