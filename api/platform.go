// File: api/platform.go
// Author: momentics <momentics@gmail.com>
//
// Platform operations abstract the per-SoC collaborators the core treats as
// external: clocks, reset lines, IOMMU programming, and host-side mapping of
// device-backed physical memory. The core depends only on these interfaces.

package api

// Handle is an opaque reference to a registered remote processor, returned
// by get() and consumed by put() and platform operations.
type Handle interface {
	Name() string
}

// PlatformOps is the vtable a platform shim supplies at registration. Start
// must return success before any messaging may be initiated by the remote;
// Stop must be idempotent against repeated invocation while offline.
type PlatformOps interface {
	Start(h Handle, bootAddr uint64) error
	Stop(h Handle) error
}

// MemIO is the host-side memory-mapping primitive the firmware parser and
// resource handler use to write sections and surface trace buffers. Map
// returns a byte slice aliasing the host physical range [pa, pa+size); the
// caller must Unmap it when done. Implementations page-align internally.
type MemIO interface {
	Map(pa uint64, size uint64) ([]byte, error)
	Unmap(pa uint64, mapped []byte) error
}

// FirmwareLoader reads the raw bytes of a firmware image from its
// configured path. File I/O is an external collaborator per spec; the core
// only consumes the resulting bytes.
type FirmwareLoader interface {
	Load(path string) ([]byte, error)
}

// Doorbell notifies the remote processor that new ring activity is
// available. The hardware mailbox send/recv driver is an external
// collaborator per spec §1; the core depends only on this interface.
type Doorbell interface {
	Kick()
}

