// File: fake/firmware.go
// Author: momentics <momentics@gmail.com>
//
// Builders for synthetic firmware images, used to exercise the parser and
// end-to-end lifecycle tests without real firmware files.

package fake

import (
	"encoding/binary"

	"github.com/momentics/remoteproc/api"
)

// Section is one section to encode into a firmware image.
type Section struct {
	Type    api.SectionType
	DA      uint64
	Content []byte
}

// ResourceEntry is one entry to encode into an FW_RESOURCE section.
type ResourceEntry struct {
	Kind api.ResourceKind
	DA   uint64
	Len  uint32
	Name string
}

// EncodeResourceSection packs entries into FW_RESOURCE section content for
// the given variant.
func EncodeResourceSection(variant api.FirmwareVariant, entries []ResourceEntry) []byte {
	daWidth := 4
	if variant == api.VariantRPRC {
		daWidth = 8
	}
	entrySize := 4 + daWidth + 4 + 4 + api.ResourceNameLen
	buf := make([]byte, 0, entrySize*len(entries))
	for _, e := range entries {
		rec := make([]byte, entrySize)
		binary.LittleEndian.PutUint32(rec[0:], uint32(e.Kind))
		if daWidth == 8 {
			binary.LittleEndian.PutUint64(rec[4:], e.DA)
		} else {
			binary.LittleEndian.PutUint32(rec[4:], uint32(e.DA))
		}
		binary.LittleEndian.PutUint32(rec[4+daWidth:], e.Len)
		// reserved left zero
		copy(rec[4+daWidth+8:], []byte(e.Name))
		buf = append(buf, rec...)
	}
	return buf
}

// BuildImage encodes a firmware image header plus sections for the given
// variant. opaqueHeader may be empty.
func BuildImage(variant api.FirmwareVariant, opaqueHeader []byte, sections []Section) []byte {
	magic := "TIFW"
	daWidth := 4
	if variant == api.VariantRPRC {
		magic = "RPRC"
		daWidth = 8
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, []byte(magic)...)
	buf = binary.LittleEndian.AppendUint32(buf, 1) // version
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(opaqueHeader)))
	buf = append(buf, opaqueHeader...)

	for _, s := range sections {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Type))
		if daWidth == 8 {
			buf = binary.LittleEndian.AppendUint64(buf, s.DA)
		} else {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(s.DA))
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Content)))
		buf = append(buf, s.Content...)
	}
	return buf
}

// BuildBadMagic returns an image whose magic matches neither known variant.
func BuildBadMagic() []byte {
	buf := []byte("XXXX")
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	return buf
}
