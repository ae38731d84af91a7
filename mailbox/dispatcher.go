// File: mailbox/dispatcher.go
// Package mailbox implements the mailbox dispatcher: the mapping from a
// discriminated u32 value delivered by the hardware mailbox driver to a
// concrete action against one remote processor's lifecycle and transport.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The hardware mailbox send/recv driver itself is an external collaborator
// (spec §1); this package only consumes values already delivered to it on
// a channel, mirroring the teacher's event-driven reactor loop
// (reactor/reactor.go) pattern of one goroutine draining one event source.

package mailbox

import (
	"log"
	"sync"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/vring"
	"github.com/momentics/remoteproc/proc"
)

// Dispatcher owns the mailbox-code-to-action mapping for one remote
// processor.
type Dispatcher struct {
	name     string
	registry *proc.Registry
	tr       *vring.Transport
	baseVqID uint32

	mu        sync.Mutex
	started   bool
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New constructs a Dispatcher for the named processor. baseVqID is the
// threshold below which raw mailbox values are ignored per spec §6; values
// at or above it index a local virtqueue to service (only RX, vq 0, exists
// in this design).
func New(name string, registry *proc.Registry, tr *vring.Transport, baseVqID uint32) *Dispatcher {
	return &Dispatcher{
		name:     name,
		registry: registry,
		tr:       tr,
		baseVqID: baseVqID,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run drains ch on a background goroutine until Close is called or ch is
// closed, dispatching each value via Handle.
func (d *Dispatcher) Run(ch <-chan uint32) {
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		for {
			select {
			case code, ok := <-ch:
				if !ok {
					return
				}
				d.Handle(code)
			case <-d.stop:
				return
			}
		}
	}()
}

// Close stops the background goroutine started by Run, if any. Safe to call
// whether or not Run was ever invoked, and safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.stop) })

	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if started {
		<-d.done
	}
}

// Handle processes one mailbox value synchronously, per spec §6's
// discriminated-code table.
func (d *Dispatcher) Handle(code uint32) {
	switch api.MailboxCode(code) {
	case api.MailboxReady:
		d.tr.PublishRXBuffers()
	case api.MailboxPendingMsg:
		d.tr.ReceiveCallback()
	case api.MailboxCrash:
		if err := d.registry.Crash(d.name); err != nil {
			log.Printf("remoteproc: mailbox CRASH for unknown processor %q: %v", d.name, err)
		}
	case api.MailboxEchoRequest:
		log.Printf("remoteproc: mailbox ECHO_REQUEST from %q", d.name)
	case api.MailboxEchoReply:
		log.Printf("remoteproc: mailbox ECHO_REPLY from %q", d.name)
	case api.MailboxAbortRequest:
		log.Printf("remoteproc: mailbox ABORT_REQUEST from %q", d.name)
	default:
		if code < d.baseVqID {
			return
		}
		vqID := code - d.baseVqID
		if vqID == 0 {
			d.tr.ReceiveCallback()
			return
		}
		log.Printf("remoteproc: mailbox value %#x indexes unknown virtqueue %d for %q", code, vqID, d.name)
	}
}
