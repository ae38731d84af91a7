// File: internal/bus/bus.go
// Package bus implements the channel & driver bus (component H): logical
// channels matched to drivers by exact name.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bus

import (
	"sync"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/endpoint"
)

// Driver is the vtable a caller registers to claim channels by name (spec
// §6 public API: driver vtable {probe, remove, callback, id_table}).
type Driver struct {
	IDTable  []string
	Probe    func(ch *Channel) error
	Remove   func(ch *Channel)
	Callback endpoint.Callback
}

// matches reports whether name appears in the driver's id table, exact
// match, bounded string length (spec §4.H).
func (d *Driver) matches(name string) bool {
	for _, n := range d.IDTable {
		if len(n) <= api.ChannelNameLen && n == name {
			return true
		}
	}
	return false
}

// Channel is a logical (name, src, dst) bond, optionally matched to a
// driver (spec §3).
type Channel struct {
	Name string
	Src  uint32
	Dst  uint32

	driver   *Driver
	endpoint *endpoint.Endpoint
}

// Bus owns the set of registered drivers and live channels for one
// processor's endpoint table (spec §9: "Channels are exclusively owned by
// their processor").
type Bus struct {
	mu       sync.Mutex
	drivers  []*Driver
	channels map[string]*Channel
	eps      *endpoint.Table
}

// New constructs a Bus bound to a processor's endpoint table.
func New(eps *endpoint.Table) *Bus {
	return &Bus{
		channels: make(map[string]*Channel),
		eps:      eps,
	}
}

// RegisterDriver adds d to the set of drivers eligible to bind future
// channels. It does not retroactively bind existing channels.
func (b *Bus) RegisterDriver(d *Driver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drivers = append(b.drivers, d)
}

// UnregisterDriver removes d. Channels already bound to it are unaffected
// until explicitly destroyed.
func (b *Bus) UnregisterDriver(d *Driver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.drivers {
		if existing == d {
			b.drivers = append(b.drivers[:i], b.drivers[i+1:]...)
			return
		}
	}
}

// CreateChannel creates a channel and, if a registered driver's id table
// names it, binds it immediately. src/dst may be api.AddrAny for the side
// not yet assigned; on a successful bind, Src is overwritten with the
// allocated endpoint address (spec §3).
func (b *Bus) CreateChannel(name string, src, dst uint32) (*Channel, error) {
	ch := &Channel{Name: name, Src: src, Dst: dst}

	b.mu.Lock()
	var driver *Driver
	for _, d := range b.drivers {
		if d.matches(name) {
			driver = d
			break
		}
	}
	b.channels[name] = ch
	b.mu.Unlock()

	if driver != nil {
		if err := b.bind(ch, driver); err != nil {
			b.mu.Lock()
			delete(b.channels, name)
			b.mu.Unlock()
			return nil, err
		}
	}
	return ch, nil
}

// bind creates an endpoint at ch.Src (or allocates one), probes the
// driver, and rolls back the endpoint on probe failure (spec §4.H).
func (b *Bus) bind(ch *Channel, d *Driver) error {
	ep, err := b.eps.Create(ch.Src, func(payload []byte, src uint32, userCtx any) {
		d.Callback(payload, src, userCtx)
	}, ch)
	if err != nil {
		return err
	}
	ch.Src = ep.Addr

	if err := d.Probe(ch); err != nil {
		b.eps.Destroy(ep.Addr)
		return api.NewError(api.ErrCodePlatformFail, "driver probe failed").WithContext("err", err)
	}

	b.mu.Lock()
	ch.driver = d
	ch.endpoint = ep
	b.mu.Unlock()
	return nil
}

// DestroyChannel unbinds and removes the channel matching {name, dst}, a
// no-op if no such channel exists (spec §4.I: the name-service DESTROY path
// locates a channel by this pair, not by name alone).
func (b *Bus) DestroyChannel(name string, dst uint32) {
	ch, ok := b.Lookup(name, dst)
	if !ok {
		return
	}

	b.mu.Lock()
	delete(b.channels, name)
	b.mu.Unlock()

	if ch.driver != nil {
		ch.driver.Remove(ch)
		b.eps.Destroy(ch.endpoint.Addr)
	}
}

// Lookup returns the channel matching name, dst (used by the name-service
// DESTROY path, which addresses channels by {name, dst}).
func (b *Bus) Lookup(name string, dst uint32) (*Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[name]
	if !ok || ch.Dst != dst {
		return nil, false
	}
	return ch, true
}

// Channels returns a snapshot of all live channels, for introspection.
func (b *Bus) Channels() []*Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		out = append(out, ch)
	}
	return out
}
