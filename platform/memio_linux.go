//go:build linux
// +build linux

// File: platform/memio_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux mmap(2)-backed implementation of api.MemIO, mapping host-physical
// ranges through a character device (typically /dev/mem or a UIO node
// exposing the coprocessor's carveout). Mirrors the teacher's
// reactor_linux.go / bufferpool_linux.go split: a platform-specific file
// with the matching generic fallback alongside it.

package platform

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/remoteproc/api"
)

var pageSize = uint64(os.Getpagesize())

// MemIO maps host-physical ranges via mmap(2) over an open device file
// (e.g. "/dev/mem"). Map/Unmap internally handle the page alignment the
// spec requires, independent of the exact pa/size requested.
type MemIO struct {
	mu   sync.Mutex
	fd   *os.File
	maps map[uint64][]byte // keyed by the exact pa requested, value is the raw page-aligned mmap
}

// NewMemIO opens devicePath (e.g. "/dev/mem") for mmap-backed access.
func NewMemIO(devicePath string) (*MemIO, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, api.NewError(api.ErrCodePlatformFail, "failed to open memory device").WithContext("err", err)
	}
	return &MemIO{fd: f, maps: make(map[uint64][]byte)}, nil
}

// Map returns a slice aliasing host-physical [pa, pa+size), internally
// mmap-ing the containing page-aligned region.
func (m *MemIO) Map(pa uint64, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	aligned := pa &^ (pageSize - 1)
	offset := pa - aligned
	mmapLen := roundUpPage(offset + size)

	raw, err := unix.Mmap(int(m.fd.Fd()), int64(aligned), int(mmapLen), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, api.NewError(api.ErrCodePlatformFail, "mmap failed").WithContext("err", err).WithContext("pa", pa)
	}

	m.mu.Lock()
	m.maps[pa] = raw
	m.mu.Unlock()
	return raw[offset : offset+size], nil
}

// Unmap releases the mapping created by the Map call that returned mapped.
func (m *MemIO) Unmap(pa uint64, mapped []byte) error {
	m.mu.Lock()
	raw, ok := m.maps[pa]
	if ok {
		delete(m.maps, pa)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if err := unix.Munmap(raw); err != nil {
		return api.NewError(api.ErrCodePlatformFail, "munmap failed").WithContext("err", err)
	}
	return nil
}

// Close releases the underlying device file. Callers must Unmap every
// outstanding region first.
func (m *MemIO) Close() error {
	return m.fd.Close()
}

func roundUpPage(n uint64) uint64 {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

var _ api.MemIO = (*MemIO)(nil)
