//go:build !linux
// +build !linux

// File: platform/memio_generic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable in-process fallback for platforms without a Linux mmap(2)
// device to back host-physical memory, mirroring the teacher's generic
// fallback files alongside its _linux.go/_windows.go platform splits. This
// is a plain growable byte slice addressed directly by physical address —
// adequate for development and CI off Linux, not for production use.

package platform

import (
	"sync"

	"github.com/momentics/remoteproc/api"
)

// MemIO simulates host physical memory as a single growable byte slice.
type MemIO struct {
	mu  sync.Mutex
	mem []byte
}

// NewMemIO allocates a simulated physical address space; devicePath is
// accepted for API parity with the Linux implementation and ignored.
func NewMemIO(devicePath string) (*MemIO, error) {
	return &MemIO{}, nil
}

// Map returns a slice aliasing [pa, pa+size), growing the backing array if
// necessary.
func (m *MemIO) Map(pa uint64, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
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

// Unmap is a no-op: the slice returned by Map already aliases the backing
// array directly.
func (m *MemIO) Unmap(pa uint64, mapped []byte) error {
	return nil
}

// Close is a no-op on this fallback.
func (m *MemIO) Close() error {
	return nil
}

var _ api.MemIO = (*MemIO)(nil)
