// File: internal/firmware/parser.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Parses a framed firmware image (see spec §3/§6), writing each section's
// content into host-mapped physical memory via the translation table and
// MemIO, and forwarding FW_RESOURCE sections to the resource handler.

package firmware

import (
	"encoding/binary"
	"log"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/xlat"
)

const magicLen = 4

var magicTIFW = [magicLen]byte{'T', 'I', 'F', 'W'}
var magicRPRC = [magicLen]byte{'R', 'P', 'R', 'C'}

// headerFixedLen is magic(4) + version(4) + header_len(4).
const headerFixedLen = magicLen + 4 + 4

// ParseResult is the outcome of a successful Parse.
type ParseResult struct {
	BootAddr uint64
	State    ResourceState
}

// Parse walks image according to variant, writing sections through table
// and mem, and returns the boot address discovered in the resource table
// (zero if none was present).
func Parse(image []byte, variant api.FirmwareVariant, table *xlat.Table, mem api.MemIO) (*ParseResult, error) {
	if len(image) < headerFixedLen {
		return nil, api.NewError(api.ErrCodeMalformed, "image shorter than fixed header")
	}

	var magic [magicLen]byte
	copy(magic[:], image[:magicLen])
	want := magicTIFW
	if variant == api.VariantRPRC {
		want = magicRPRC
	}
	if magic != want {
		return nil, api.NewError(api.ErrCodeBadMagic, "firmware magic does not match configured variant").
			WithContext("got", string(magic[:])).WithContext("want", string(want[:]))
	}

	headerLen := binary.LittleEndian.Uint32(image[magicLen+4:])
	cursor := headerFixedLen
	if uint32(len(image)-cursor) < headerLen {
		return nil, api.NewError(api.ErrCodeTruncated, "opaque header runs past end of image")
	}
	cursor += int(headerLen)

	daWidth := daWidthFor(variant)
	sectionHeaderLen := 4 + daWidth + 4 // type + da + len

	state := ResourceState{}

	for len(image)-cursor >= sectionHeaderLen {
		sType := binary.LittleEndian.Uint32(image[cursor:])
		da, truncated := readDA(image[cursor+4:], daWidth)
		if truncated {
			log.Printf("remoteproc: section da exceeds 32 bits, downcasting for translation (legacy behavior)")
		}
		length := binary.LittleEndian.Uint32(image[cursor+4+daWidth:])
		cursor += sectionHeaderLen

		remaining := len(image) - cursor
		if int(length) > remaining {
			return nil, api.NewError(api.ErrCodeTruncated, "section content runs past end of image").
				WithContext("section_type", sType)
		}
		content := image[cursor : cursor+int(length)]
		cursor += int(length)

		if length > 0 {
			pa := table.Lookup(da)
			if pa == xlat.NotFound {
				return nil, api.NewError(api.ErrCodeBadAddress, "section da has no translation").
					WithContext("da", da)
			}
			written, err := mapAndWrite(mem, pa, content)
			if err != nil {
				return nil, err
			}
			if api.SectionType(sType) == api.SectionResource {
				// Hand the freshly written bytes to the resource handler
				// before unmapping, per the loader's contract.
				if err := HandleResourceSection(written, variant, table, mem, &state); err != nil {
					mem.Unmap(pa, written)
					return nil, err
				}
			}
			if err := mem.Unmap(pa, written); err != nil {
				return nil, api.NewError(api.ErrCodePlatformFail, "failed to unmap section destination").WithContext("err", err)
			}
		} else if api.SectionType(sType) == api.SectionResource {
			// A zero-length resource section legally contributes nothing.
			continue
		}
	}
	// Trailing bytes smaller than one section header terminate parsing
	// silently — this matches observed firmware.

	result := &ParseResult{State: state}
	if state.BootAddrSet {
		result.BootAddr = state.BootAddr
	}
	return result, nil
}

// mapAndWrite maps [pa, pa+len(content)), copies content into it, and
// returns the mapped slice for the caller to inspect before unmapping.
func mapAndWrite(mem api.MemIO, pa uint64, content []byte) ([]byte, error) {
	dst, err := mem.Map(pa, uint64(len(content)))
	if err != nil {
		return nil, api.NewError(api.ErrCodePlatformFail, "failed to map section destination").WithContext("err", err)
	}
	if n := copy(dst, content); n != len(content) {
		return nil, api.NewError(api.ErrCodePlatformFail, "short write into mapped section")
	}
	return dst, nil
}
