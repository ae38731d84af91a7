// File: internal/endpoint/table.go
// Package endpoint implements the per-processor endpoint table (component
// G): a map from local address to callback, with dynamic allocation above
// a reserved low range.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shape follows the teacher's internal/session/store.go (mutex-guarded map
// with Create/Get/Delete), simplified from session's sharded-by-hash
// design to a single lock: a processor's address space is not nearly as
// hot a path as the teacher's per-connection session map, so the extra
// complexity of sharding is not grounded by any evidence of contention
// here.

package endpoint

import (
	"sync"

	"github.com/momentics/remoteproc/api"
)

// Callback is invoked for every inbound message dispatched to an endpoint.
// It runs after the table's lock has been released (spec §5: "the
// callback executes after release, to prevent holding the lock across
// user code").
type Callback func(payload []byte, src uint32, userContext any)

// Endpoint is one bound local address.
type Endpoint struct {
	Addr          uint32
	Callback      Callback
	UserContext   any
	OwningChannel any // *bus.Channel, left untyped to avoid an endpoint->bus import cycle
}

// Table is a per-processor map of local address to Endpoint.
type Table struct {
	mu      sync.Mutex
	entries map[uint32]*Endpoint
	cursor  uint32
}

// NewTable constructs an empty table with allocation starting at
// api.ReservedLow.
func NewTable() *Table {
	return &Table{
		entries: make(map[uint32]*Endpoint),
		cursor:  api.ReservedLow,
	}
}

// Create binds a new endpoint. If addr == api.AddrAny, the first free
// address at or above the table's allocation cursor is chosen (the cursor
// starts at api.ReservedLow and only moves upward, so an address freed
// below it is not handed out again by AddrAny allocation); otherwise addr
// is claimed exactly, failing api.ErrCodeExists if already bound.
func (t *Table) Create(addr uint32, cb Callback, userContext any) (*Endpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if addr == api.AddrAny {
		addr = t.allocateLocked()
	} else if _, exists := t.entries[addr]; exists {
		return nil, api.NewError(api.ErrCodeExists, "address already bound").WithContext("addr", addr)
	}

	ep := &Endpoint{Addr: addr, Callback: cb, UserContext: userContext}
	t.entries[addr] = ep
	return ep, nil
}

// allocateLocked returns the first free address at or above the table's
// cursor (never below api.ReservedLow) and advances the cursor past it.
// Caller holds t.mu.
func (t *Table) allocateLocked() uint32 {
	for {
		if t.cursor < api.ReservedLow {
			t.cursor = api.ReservedLow
		}
		if _, busy := t.entries[t.cursor]; !busy {
			addr := t.cursor
			t.cursor++
			return addr
		}
		t.cursor++
	}
}

// Destroy unbinds addr, a no-op if nothing is bound there.
func (t *Table) Destroy(addr uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, addr)
}

// Dispatch looks up dst under the lock, releases it, then invokes the
// bound callback with the message. Returns false if no endpoint is bound,
// in which case the caller is expected to log and drop (spec §4.F).
func (t *Table) Dispatch(dst uint32, payload []byte, src uint32) bool {
	t.mu.Lock()
	ep, ok := t.entries[dst]
	t.mu.Unlock()
	if !ok {
		return false
	}
	ep.Callback(payload, src, ep.UserContext)
	return true
}

// Get returns the endpoint bound at addr, if any.
func (t *Table) Get(addr uint32) (*Endpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ep, ok := t.entries[addr]
	return ep, ok
}

// Bind pre-binds a well-known address (e.g. the name-service endpoint at
// 53) outside the ADDR_ANY allocation path, failing if already bound.
func (t *Table) Bind(addr uint32, cb Callback, userContext any) (*Endpoint, error) {
	return t.Create(addr, cb, userContext)
}
