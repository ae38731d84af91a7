// File: internal/xlat/table.go
// Package xlat implements the device-address to physical-address
// translation table (component A).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A table is built once per remote processor from its memory map and
// treated as immutable thereafter. Ranges are non-overlapping on da, so a
// linear scan is sufficient at the small sizes (<= ~16 entries) these
// tables reach in practice — simpler and faster here than a tree.

package xlat

import "github.com/momentics/remoteproc/api"

// NotFound is returned by Lookup when da falls outside every range.
const NotFound uint64 = ^uint64(0)

// Table is an immutable, linearly-scanned range table.
type Table struct {
	entries []api.MemoryMapEntry
}

// New builds a Table from a memory map. The slice is copied; mutating the
// caller's slice afterward does not affect the table.
func New(memoryMap []api.MemoryMapEntry) *Table {
	entries := make([]api.MemoryMapEntry, len(memoryMap))
	copy(entries, memoryMap)
	return &Table{entries: entries}
}

// Lookup translates a device address to its host physical address, or
// returns NotFound if da lies outside every mapped range.
func (t *Table) Lookup(da uint64) uint64 {
	for _, e := range t.entries {
		if da >= e.DA && da < e.DA+e.Size {
			return e.PA + (da - e.DA)
		}
	}
	return NotFound
}

// Len reports the number of entries in the table.
func (t *Table) Len() int {
	return len(t.entries)
}
