// File: control/board_test.go
package control_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/control"
)

const sampleBoard = `
processors:
  - name: ipu
    firmware: /lib/firmware/ipu.fw
    variant: TIFW
    memory_map:
      - da: 0xA0000000
        pa: 0x9CF00000
        size: 0x100000
`

func TestLoadBoardConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleBoard), 0o644))

	cfg, err := control.LoadBoardConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Processors, 1)

	p := cfg.Processors[0]
	require.Equal(t, "ipu", p.Name)
	require.Equal(t, "/lib/firmware/ipu.fw", p.Firmware)

	variant, err := p.FirmwareVariant()
	require.NoError(t, err)
	require.Equal(t, api.VariantTIFW, variant)

	mm := p.MemoryMap()
	require.Len(t, mm, 1)
	require.Equal(t, uint64(0xA0000000), mm[0].DA)
	require.Equal(t, uint64(0x9CF00000), mm[0].PA)
	require.Equal(t, uint64(0x100000), mm[0].Size)
}

func TestLoadBoardConfigMissingFile(t *testing.T) {
	_, err := control.LoadBoardConfig("/nonexistent/board.yaml")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, api.ErrCodePlatformFail, apiErr.Code)
}

func TestFirmwareVariantRejectsUnknown(t *testing.T) {
	p := control.ProcessorConfig{Variant: "BOGUS"}
	_, err := p.FirmwareVariant()
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, api.ErrCodeInvalid, apiErr.Code)
}
