// File: fake/platform.go
// Author: momentics <momentics@gmail.com>
//
// Deterministic PlatformOps and FirmwareLoader doubles used by the
// lifecycle engine's tests: counted invocations, injectable failures.

package fake

import (
	"sync"

	"github.com/momentics/remoteproc/api"
)

// PlatformOps counts Start/Stop invocations and can be made to fail either
// call, for exercising property 3 (at-most-one) and the rollback paths.
type PlatformOps struct {
	mu sync.Mutex

	StartCount int
	StopCount  int
	LastBoot   uint64

	StartErr error
	StopErr  error
}

func (p *PlatformOps) Start(h api.Handle, bootAddr uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCount++
	p.LastBoot = bootAddr
	return p.StartErr
}

func (p *PlatformOps) Stop(h api.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCount++
	return p.StopErr
}

func (p *PlatformOps) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.StartCount
}

func (p *PlatformOps) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.StopCount
}

var _ api.PlatformOps = (*PlatformOps)(nil)

// FirmwareLoader serves a fixed, in-memory image regardless of the
// requested path, or fails if Err is set.
type FirmwareLoader struct {
	Image []byte
	Err   error
}

func (l *FirmwareLoader) Load(path string) ([]byte, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Image, nil
}

var _ api.FirmwareLoader = (*FirmwareLoader)(nil)
