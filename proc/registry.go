// File: proc/registry.go
// Package proc implements the remote-processor registry & lifecycle engine
// (component D): a named registry of remote processors, each driven by a
// refcounted get()/put() activation protocol over an explicit state machine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Grounded on the teacher's facade orchestration pattern (a process-wide
// object owning a named collection, constructed at init and torn down at
// shutdown) generalized from hioload-ws's connection registry to this
// domain's refcounted activation model. The per-record mutex and explicit
// state machine follow spec §4.D/§9's guidance to encapsulate the refcount
// and completion signal inside the record, and to never hold the mutex
// across firmware I/O or parsing.

package proc

import (
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/firmware"
	"github.com/momentics/remoteproc/internal/taskqueue"
	"github.com/momentics/remoteproc/internal/xlat"
)

// Registry is a process-wide, mutex-guarded named collection of remote
// processors, held in a map keyed by processor name.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record

	exe   *taskqueue.Executor
	group singleflight.Group
}

// NewRegistry constructs an empty registry with its own background
// executor for asynchronous firmware loads.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
		exe:     taskqueue.NewExecutor(),
	}
}

// Register inserts a new record in state OFFLINE with refcount 0. Fails
// api.ErrCodeExists if name is already registered.
func (r *Registry) Register(name string, ops api.PlatformOps, loader api.FirmwareLoader, fwPath string, variant api.FirmwareVariant, memoryMap []api.MemoryMapEntry, mem api.MemIO, platformPriv any) (api.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[name]; exists {
		return nil, api.NewError(api.ErrCodeExists, "remote processor already registered").WithContext("name", name)
	}

	rec := &Record{
		name:         name,
		ops:          ops,
		loader:       loader,
		fwPath:       fwPath,
		variant:      variant,
		table:        xlat.New(memoryMap),
		mem:          mem,
		platformPriv: platformPriv,
		state:        api.StateOffline,
	}
	r.records[name] = rec
	return rec, nil
}

// Unregister removes name from the registry. The caller must ensure no
// activations are outstanding; per spec §4.D this is a programming
// invariant, and a violation panics rather than silently corrupting state.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	rec, ok := r.records[name]
	if ok {
		delete(r.records, name)
	}
	r.mu.Unlock()
	if !ok {
		return api.NewError(api.ErrCodeNotFound, "no such remote processor").WithContext("name", name)
	}

	rec.mu.Lock()
	refcount := rec.refcount
	rec.mu.Unlock()
	if refcount != 0 {
		panic("remoteproc: unregister called with outstanding activations on " + name)
	}
	return nil
}

// Get activates name, returning a handle. If an activation is already in
// progress or complete, this call observes the same completion as the
// first caller (spec §8 property 3: at-most-one). Fails api.ErrCodeNotFound
// if name is unregistered.
func (r *Registry) Get(name string) (api.Handle, error) {
	r.mu.Lock()
	rec, ok := r.records[name]
	r.mu.Unlock()
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, "no such remote processor").WithContext("name", name)
	}

	rec.mu.Lock()
	rec.refcount++
	if rec.refcount > 1 {
		// Activation already in progress or complete; this caller shares
		// the existing load-completion signal.
		rec.mu.Unlock()
		return rec, nil
	}
	rec.loadDone = make(chan struct{})
	rec.state = api.StateLoading
	done := rec.loadDone
	rec.mu.Unlock()

	err := r.exe.Submit(func() { r.runLoad(rec, done) })
	if err != nil {
		// Submission itself failed synchronously: roll back refcount
		// before returning, per spec §4.D's race-handling rule.
		rec.mu.Lock()
		rec.refcount--
		rec.state = api.StateOffline
		close(done)
		rec.mu.Unlock()
		return nil, api.NewError(api.ErrCodePlatformFail, "failed to submit firmware load").WithContext("err", err)
	}
	return rec, nil
}

// Put releases one reference acquired by Get. It blocks cooperatively until
// any in-flight load for this record completes, then decrements refcount;
// on the last release it stops the processor (if running) and returns it
// to OFFLINE.
func (r *Registry) Put(h api.Handle) error {
	rec, ok := h.(*Record)
	if !ok {
		return api.NewError(api.ErrCodeInvalid, "handle not issued by this registry")
	}

	rec.mu.Lock()
	done := rec.loadDone
	rec.mu.Unlock()
	if done != nil {
		<-done
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.refcount <= 0 {
		panic("remoteproc: put() called with refcount already zero on " + rec.name)
	}
	rec.refcount--
	if rec.refcount > 0 {
		return nil
	}

	if rec.state == api.StateRunning {
		if err := rec.ops.Stop(rec); err != nil {
			log.Printf("remoteproc: stop failed for %q: %v", rec.name, err)
		}
	}
	for i := range rec.traceSlots {
		if rec.traceSlots[i].used {
			rec.mem.Unmap(rec.traceSlots[i].pa, rec.traceSlots[i].data)
			rec.traceSlots[i] = traceSlot{}
		}
	}
	rec.state = api.StateOffline
	return nil
}

// runLoad performs the asynchronous firmware-load-and-boot sequence on the
// registry's background executor, singleflight-keyed by processor name as
// defense in depth alongside the refcount gate in Get.
func (r *Registry) runLoad(rec *Record, done chan struct{}) {
	_, _, _ = r.group.Do(rec.name, func() (any, error) {
		r.load(rec)
		return nil, nil
	})
	close(done)
}

func (r *Registry) load(rec *Record) {
	image, err := rec.loader.Load(rec.fwPath)
	if err != nil {
		log.Printf("remoteproc: firmware load failed for %q: %v", rec.name, err)
		r.rollbackToOffline(rec)
		return
	}

	result, err := firmware.Parse(image, rec.variant, rec.table, rec.mem)
	if err != nil {
		log.Printf("remoteproc: firmware parse failed for %q: %v", rec.name, err)
		r.rollbackToOffline(rec)
		return
	}

	rec.mu.Lock()
	rec.bootAddr = result.BootAddr
	for i, slot := range result.State.TraceSlots {
		if i >= len(rec.traceSlots) {
			break
		}
		rec.traceSlots[i] = traceSlot{pa: slot.PA, data: slot.Data, used: true}
	}
	rec.mu.Unlock()

	if err := rec.ops.Start(rec, result.BootAddr); err != nil {
		log.Printf("remoteproc: platform start failed for %q: %v", rec.name, err)
		r.rollbackToOffline(rec)
		return
	}

	rec.mu.Lock()
	rec.state = api.StateRunning
	rec.mu.Unlock()
}

// rollbackToOffline forces state to OFFLINE on any load-path failure,
// without touching refcount — the matching Put() call will observe
// state != RUNNING, skip ops.Stop, and complete the transition to
// OFFLINE once the refcount actually reaches zero (spec §4.D / §9 open
// question: always roll back to OFFLINE on failure).
func (r *Registry) rollbackToOffline(rec *Record) {
	rec.mu.Lock()
	rec.state = api.StateOffline
	rec.mu.Unlock()
}

// Crash transitions name to CRASHED, invoked from the mailbox dispatcher on
// a MailboxCrash code (spec §6).
func (r *Registry) Crash(name string) error {
	r.mu.Lock()
	rec, ok := r.records[name]
	r.mu.Unlock()
	if !ok {
		return api.NewError(api.ErrCodeNotFound, "no such remote processor").WithContext("name", name)
	}
	rec.mu.Lock()
	rec.state = api.StateCrashed
	rec.mu.Unlock()
	log.Printf("remoteproc: %q reported CRASH over mailbox", name)
	return nil
}

// Close stops the registry's background executor. Callers must ensure all
// processors have already been put() back to OFFLINE.
func (r *Registry) Close() {
	r.exe.Close()
}
