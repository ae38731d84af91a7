// File: facade/framework.go
// Package facade orchestrates the core subsystems into the single
// composable entry point a platform shim programs against: register a
// board's remote processors, activate them, exchange messages, bind
// drivers to logical channels.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shape follows the teacher's facade.HioloadWS: one struct owning every
// subsystem, constructed with a Config, torn down with Close. Unlike the
// teacher's single shared transport, this domain has one transport (and
// endpoint table, bus, name-service handler, mailbox dispatcher) per
// registered remote processor, reflecting the per-processor resource
// ownership spec §9 describes ("Framework ▶ Processor ▶ Channel ▶
// Endpoint").

package facade

import (
	"fmt"
	"sync"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/control"
	"github.com/momentics/remoteproc/internal/bus"
	"github.com/momentics/remoteproc/internal/endpoint"
	"github.com/momentics/remoteproc/internal/nameservice"
	"github.com/momentics/remoteproc/internal/vring"
	"github.com/momentics/remoteproc/mailbox"
	"github.com/momentics/remoteproc/proc"
)

// processor bundles the per-remote-processor resources the framework owns:
// its endpoint table, driver bus, virtqueue transport, name-service
// handler, and mailbox dispatcher.
type processor struct {
	name   string
	eps    *endpoint.Table
	bus    *bus.Bus
	tr     *vring.Transport
	ns     *nameservice.Handler
	mbox   *mailbox.Dispatcher
	handle api.Handle
}

func (p *processor) Name() string { return p.name }

func (p *processor) State() string {
	if rec, ok := p.handle.(*proc.Record); ok {
		return rec.State().String()
	}
	return "UNKNOWN"
}

func (p *processor) TraceSlot(i int) ([]byte, bool) {
	if rec, ok := p.handle.(*proc.Record); ok {
		return rec.TraceSlot(i)
	}
	return nil, false
}

// Framework is the top-level object a platform shim constructs once at
// startup and tears down at shutdown (spec §9 "global named registries...
// model as explicit handles to a process-wide framework object").
type Framework struct {
	mu    sync.Mutex
	cfg   *control.Config
	reg   *proc.Registry
	debug *control.Debug

	processors map[string]*processor
}

// New constructs a Framework. A nil cfg falls back to control.DefaultConfig.
func New(cfg *control.Config) *Framework {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	return &Framework{
		cfg:        cfg,
		reg:        proc.NewRegistry(),
		debug:      control.NewDebug(),
		processors: make(map[string]*processor),
	}
}

// Debug exposes the aggregated introspection surface (component 4.K).
func (f *Framework) Debug() *control.Debug { return f.debug }

// RegisterProcessor wires a new remote processor into the framework: it
// registers it with the lifecycle registry and constructs its endpoint
// table, driver bus, virtqueue transport, and name-service handler. The
// doorbell the caller supplies is kicked whenever the host publishes to a
// ring;
// the mailbox values the caller's hardware driver delivers should be fed
// into the returned *mailbox.Dispatcher's Run.
func (f *Framework) RegisterProcessor(
	name string,
	ops api.PlatformOps,
	loader api.FirmwareLoader,
	fwPath string,
	variant api.FirmwareVariant,
	memoryMap []api.MemoryMapEntry,
	mem api.MemIO,
	doorbell api.Doorbell,
	platformPriv any,
) (*mailbox.Dispatcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.processors[name]; exists {
		return nil, api.NewError(api.ErrCodeExists, "processor already registered in framework").WithContext("name", name)
	}

	handle, err := f.reg.Register(name, ops, loader, fwPath, variant, memoryMap, mem, platformPriv)
	if err != nil {
		return nil, err
	}

	eps := endpoint.NewTable()
	b := bus.New(eps)
	ringCfg := vring.Config{
		SlotCount: f.cfg.RingSlotCount,
		SlotSize:  f.cfg.RingSlotSize,
		Align:     f.cfg.RingAlign,
	}
	tr := vring.New(ringCfg, doorbell, eps)
	ns := nameservice.New(b)
	if err := ns.Bind(eps); err != nil {
		f.reg.Unregister(name)
		return nil, err
	}
	mb := mailbox.New(name, f.reg, tr, f.cfg.MailboxBaseVqID)

	p := &processor{name: name, eps: eps, bus: b, tr: tr, ns: ns, mbox: mb, handle: handle}
	f.processors[name] = p
	if f.cfg.EnableDebug {
		f.debug.Register(p)
	}
	return mb, nil
}

// LoadBoard registers every processor named in board, using the same ops,
// loader, and memory-io primitive for all of them (the common case for a
// single-SoC deployment); per-processor doorbells come from doorbells,
// keyed by processor name.
func (f *Framework) LoadBoard(board *control.BoardConfig, ops api.PlatformOps, loader api.FirmwareLoader, mem api.MemIO, doorbells map[string]api.Doorbell) error {
	for _, pc := range board.Processors {
		variant, err := pc.FirmwareVariant()
		if err != nil {
			return err
		}
		if _, err := f.RegisterProcessor(pc.Name, ops, loader, pc.Firmware, variant, pc.MemoryMap(), mem, doorbells[pc.Name], nil); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes a processor registered via RegisterProcessor or
// LoadBoard, tearing down its name-service executor and stopping its
// mailbox dispatcher's Run goroutine, if started. The caller must ensure no
// activations are outstanding (spec §4.D); a violation panics via the
// underlying registry.
func (f *Framework) Unregister(name string) error {
	f.mu.Lock()
	p, ok := f.processors[name]
	if ok {
		delete(f.processors, name)
	}
	f.mu.Unlock()
	if !ok {
		return api.NewError(api.ErrCodeNotFound, "no such processor").WithContext("name", name)
	}

	if err := f.reg.Unregister(name); err != nil {
		return err
	}
	f.debug.Unregister(name)
	p.ns.Close()
	p.mbox.Close()
	return nil
}

// Get activates the named processor (spec §6 public API: get).
func (f *Framework) Get(name string) (api.Handle, error) {
	return f.reg.Get(name)
}

// Put releases one activation acquired by Get (spec §6 public API: put).
func (f *Framework) Put(h api.Handle) error {
	return f.reg.Put(h)
}

// CreateEndpoint binds a new endpoint on the named processor's endpoint
// table (spec §6 public API: create_endpoint).
func (f *Framework) CreateEndpoint(procName string, addr uint32, cb endpoint.Callback, userContext any) (*endpoint.Endpoint, error) {
	p, err := f.proc(procName)
	if err != nil {
		return nil, err
	}
	return p.eps.Create(addr, cb, userContext)
}

// DestroyEndpoint unbinds addr on the named processor (spec §6 public API:
// destroy_endpoint).
func (f *Framework) DestroyEndpoint(procName string, addr uint32) error {
	p, err := f.proc(procName)
	if err != nil {
		return err
	}
	p.eps.Destroy(addr)
	return nil
}

// Send transmits on ch using its own src/dst (spec §6 public API: send).
func (f *Framework) Send(procName string, ch *bus.Channel, data []byte) error {
	p, err := f.proc(procName)
	if err != nil {
		return err
	}
	return p.tr.Send(ch.Src, ch.Dst, data)
}

// SendTo transmits on ch's src to an explicit dst (spec §6 public API:
// sendto(dst)).
func (f *Framework) SendTo(procName string, ch *bus.Channel, dst uint32, data []byte) error {
	p, err := f.proc(procName)
	if err != nil {
		return err
	}
	return p.tr.Send(ch.Src, dst, data)
}

// SendOffChannel transmits with both addresses given explicitly, bypassing
// any channel (spec §6 public API: send_offchannel(src, dst)).
func (f *Framework) SendOffChannel(procName string, src, dst uint32, data []byte) error {
	p, err := f.proc(procName)
	if err != nil {
		return err
	}
	return p.tr.Send(src, dst, data)
}

// RegisterDriver registers a driver against the named processor's bus
// (spec §6 public API: register_driver).
func (f *Framework) RegisterDriver(procName string, d *bus.Driver) error {
	p, err := f.proc(procName)
	if err != nil {
		return err
	}
	p.bus.RegisterDriver(d)
	return nil
}

// UnregisterDriver removes d from the named processor's bus (spec §6
// public API: unregister_driver).
func (f *Framework) UnregisterDriver(procName string, d *bus.Driver) error {
	p, err := f.proc(procName)
	if err != nil {
		return err
	}
	p.bus.UnregisterDriver(d)
	return nil
}

// CreateChannel creates a logical channel on the named processor's bus,
// binding it immediately if a registered driver claims its name.
func (f *Framework) CreateChannel(procName, name string, src, dst uint32) (*bus.Channel, error) {
	p, err := f.proc(procName)
	if err != nil {
		return nil, err
	}
	return p.bus.CreateChannel(name, src, dst)
}

// PublishRXBuffers arms the named processor's receive ring, mirroring the
// mailbox READY code for callers driving it directly instead of through a
// *mailbox.Dispatcher.
func (f *Framework) PublishRXBuffers(procName string) error {
	p, err := f.proc(procName)
	if err != nil {
		return err
	}
	p.tr.PublishRXBuffers()
	return nil
}

func (f *Framework) proc(name string) (*processor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.processors[name]
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, "no such processor").WithContext("name", name)
	}
	return p, nil
}

// Close tears down every registered processor. Per spec §5.1, it asserts
// (panics if violated) that no processor has outstanding activations.
func (f *Framework) Close() error {
	f.mu.Lock()
	names := make([]string, 0, len(f.processors))
	for name := range f.processors {
		names = append(names, name)
	}
	f.mu.Unlock()

	var firstErr error
	for _, name := range names {
		if err := f.Unregister(name); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remoteproc: close %q: %w", name, err)
		}
	}
	f.reg.Close()
	return firstErr
}
