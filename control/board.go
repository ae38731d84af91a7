// File: control/board.go
// Package control provides the ambient configuration, board description,
// and introspection surface around the core (spec §1 "board-specific
// memory maps" as an external collaborator, and §6 Observability).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BoardConfig replaces hand-written Go literals with a YAML board
// description file (spec §3.1/§6.1), grounded on
// gopkg.in/yaml.v3 the way the retrieval pack's config loaders use it.

package control

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/momentics/remoteproc/api"
)

// MemoryMapEntryConfig is one YAML-decoded memory map range.
type MemoryMapEntryConfig struct {
	DA   uint64 `yaml:"da"`
	PA   uint64 `yaml:"pa"`
	Size uint64 `yaml:"size"`
}

// ProcessorConfig is one YAML-decoded remote processor description.
type ProcessorConfig struct {
	Name       string                 `yaml:"name"`
	Firmware   string                 `yaml:"firmware"`
	Variant    string                 `yaml:"variant"`
	MemoryMap  []MemoryMapEntryConfig `yaml:"memory_map"`
}

// BoardConfig is the top-level board description: one or more remote
// processors sharing a deployment.
type BoardConfig struct {
	Processors []ProcessorConfig `yaml:"processors"`
}

// LoadBoardConfig reads and decodes a YAML board file from path.
func LoadBoardConfig(path string) (*BoardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, api.NewError(api.ErrCodePlatformFail, "failed to read board file").WithContext("err", err)
	}
	var cfg BoardConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, api.NewError(api.ErrCodeMalformed, "failed to decode board file").WithContext("err", err)
	}
	return &cfg, nil
}

// MemoryMap converts the YAML entries into the core's memory-map type.
func (p ProcessorConfig) MemoryMap() []api.MemoryMapEntry {
	out := make([]api.MemoryMapEntry, len(p.MemoryMap))
	for i, e := range p.MemoryMap {
		out[i] = api.MemoryMapEntry{DA: e.DA, PA: e.PA, Size: e.Size}
	}
	return out
}

// FirmwareVariant translates the YAML variant string into api.FirmwareVariant,
// failing api.ErrCodeInvalid on an unrecognized value.
func (p ProcessorConfig) FirmwareVariant() (api.FirmwareVariant, error) {
	switch p.Variant {
	case "TIFW", "":
		return api.VariantTIFW, nil
	case "RPRC":
		return api.VariantRPRC, nil
	default:
		return 0, api.NewError(api.ErrCodeInvalid, "unknown firmware variant").WithContext("variant", p.Variant)
	}
}
