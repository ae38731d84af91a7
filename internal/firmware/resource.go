// File: internal/firmware/resource.go
// Package firmware implements the firmware image parser (component B) and
// resource-table handler (component C).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The resource handler interprets the packed array of resource entries
// carried by an FW_RESOURCE section. Only TRACE and BOOTADDR are acted on;
// every other kind is logged and ignored.

package firmware

import (
	"encoding/binary"
	"log"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/xlat"
)

// resourceEntryBase is the fixed portion of a resource entry excluding da,
// whose width depends on the firmware variant: type(4) + len(4) +
// reserved(4) + name(48) = 60 bytes, plus 4 or 8 for da.
const resourceEntryBase = 4 + 4 + 4 + api.ResourceNameLen

// maxTraceSlots bounds the number of concurrently tracked trace buffers.
const maxTraceSlots = 2

// TraceSlot is a host-mapped trace-buffer region surfaced for introspection.
type TraceSlot struct {
	PA   uint64
	Len  uint64
	Data []byte
}

// ResourceState accumulates the effects of interpreting one or more
// FW_RESOURCE sections for a single remote processor. Duplicate sections
// are allowed; resources accumulate.
type ResourceState struct {
	BootAddr    uint64
	BootAddrSet bool
	TraceSlots  []TraceSlot
}

// HandleResourceSection walks a packed resource array and folds its effects
// into state. mem is used to map the physical region backing a TRACE entry;
// table translates a TRACE entry's device address to a physical one.
func HandleResourceSection(data []byte, variant api.FirmwareVariant, table *xlat.Table, mem api.MemIO, state *ResourceState) error {
	daWidth := daWidthFor(variant)
	entrySize := resourceEntryBase + daWidth

	for off := 0; off+entrySize <= len(data); off += entrySize {
		kind := api.ResourceKind(binary.LittleEndian.Uint32(data[off:]))
		da, truncated := readDA(data[off+4:], daWidth)
		if truncated {
			log.Printf("remoteproc: resource entry da exceeds 32 bits, downcasting for translation (legacy behavior)")
		}
		length := uint64(binary.LittleEndian.Uint32(data[off+4+daWidth:]))
		// reserved field at off+4+daWidth+4 is unused.

		switch kind {
		case api.ResourceTrace:
			if err := handleTrace(da, length, table, mem, state); err != nil {
				return err
			}
		case api.ResourceBootAddr:
			state.BootAddr = da
			state.BootAddrSet = true
		default:
			log.Printf("remoteproc: ignoring resource entry kind=%s da=0x%x len=%d", kind, da, length)
		}
	}
	return nil
}

// daWidthFor returns the byte width of a da field for the given variant.
func daWidthFor(variant api.FirmwareVariant) int {
	if variant == api.VariantRPRC {
		return 8
	}
	return 4
}

// readDA reads a da field of the given width, returning the 32-bit-downcast
// lookup key and whether truncation actually discarded information.
func readDA(b []byte, width int) (da uint64, truncated bool) {
	if width == 8 {
		full := binary.LittleEndian.Uint64(b)
		if full > 0xFFFFFFFF {
			return full & 0xFFFFFFFF, true
		}
		return full, false
	}
	return uint64(binary.LittleEndian.Uint32(b)), false
}

func handleTrace(da uint64, length uint64, table *xlat.Table, mem api.MemIO, state *ResourceState) error {
	if len(state.TraceSlots) >= maxTraceSlots {
		log.Printf("remoteproc: dropping trace buffer at da=0x%x, both slots occupied", da)
		return nil
	}
	pa := table.Lookup(da)
	if pa == xlat.NotFound {
		return api.NewError(api.ErrCodeBadAddress, "trace buffer da has no translation").WithContext("da", da)
	}
	var data []byte
	if length > 0 {
		mapped, err := mem.Map(pa, length)
		if err != nil {
			return api.NewError(api.ErrCodePlatformFail, "failed to map trace buffer").WithContext("err", err)
		}
		data = mapped
	}
	state.TraceSlots = append(state.TraceSlots, TraceSlot{PA: pa, Len: length, Data: data})
	return nil
}
