// File: fake/memio.go
// Package fake provides deterministic test doubles for the platform
// collaborators the core treats as external (spec §1), mirroring the
// teacher's fake package (predictable, controllable behavior for every
// core interface).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"fmt"
	"sync"

	"github.com/momentics/remoteproc/api"
)

// MemIO is an in-process simulation of host physical memory, addressed
// directly by physical address with no real page mapping involved. It
// implements api.MemIO.
type MemIO struct {
	mu  sync.Mutex
	mem []byte
}

// NewMemIO allocates a simulated physical address space of size bytes.
func NewMemIO(size uint64) *MemIO {
	return &MemIO{mem: make([]byte, size)}
}

// Map returns a slice aliasing [pa, pa+size) of the simulated address
// space, growing the backing array if necessary.
func (m *MemIO) Map(pa uint64, size uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := pa + size
	if end > uint64(len(m.mem)) {
		grown := make([]byte, end)
		copy(grown, m.mem)
		m.mem = grown
	}
	return m.mem[pa:end], nil
}

// Unmap is a no-op: the returned slice already aliases the backing array,
// so nothing needs to be flushed or released.
func (m *MemIO) Unmap(pa uint64, mapped []byte) error {
	return nil
}

// ReadAt is a test helper returning a copy of [pa, pa+n).
func (m *MemIO) ReadAt(pa uint64, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pa+uint64(n) > uint64(len(m.mem)) {
		panic(fmt.Sprintf("fake.MemIO: read out of range pa=%#x n=%d size=%d", pa, n, len(m.mem)))
	}
	out := make([]byte, n)
	copy(out, m.mem[pa:pa+uint64(n)])
	return out
}

var _ api.MemIO = (*MemIO)(nil)
