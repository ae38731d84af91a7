// File: internal/nameservice/nameservice.go
// Package nameservice implements the name-service protocol (component I):
// a well-known endpoint at local address 53 that announces channel
// create/destroy events delivered by the remote processor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nameservice

import (
	"encoding/binary"
	"log"

	"github.com/momentics/remoteproc/api"
	"github.com/momentics/remoteproc/internal/bus"
	"github.com/momentics/remoteproc/internal/endpoint"
	"github.com/momentics/remoteproc/internal/taskqueue"
)

// msgLen is sizeof(ns_msg): name[32] + addr(u32) + flags(u32).
const msgLen = api.ChannelNameLen + 4 + 4

// Handler binds the name-service endpoint and drives bus.CreateChannel /
// DestroyChannel off a dedicated executor, so a slow or misbehaving driver
// probe never blocks the RX ring's serial dispatch thread.
type Handler struct {
	bus *bus.Bus
	exe *taskqueue.Executor
}

// New constructs a Handler bound to bus for one remote processor.
func New(b *bus.Bus) *Handler {
	return &Handler{bus: b, exe: taskqueue.NewExecutor()}
}

// Bind pre-registers the handler at the well-known name-service address on
// eps, failing api.ErrCodeExists if already bound.
func (h *Handler) Bind(eps *endpoint.Table) error {
	_, err := eps.Bind(api.NameServiceAddr, h.onMessage, nil)
	return err
}

// Close stops the handler's executor, draining any queued events first.
func (h *Handler) Close() {
	h.exe.Close()
}

// onMessage is the endpoint callback invoked by the endpoint table's
// Dispatch; per spec §4.I it parses {name[32], addr, flags} and submits
// the corresponding bus action to the executor rather than acting inline.
func (h *Handler) onMessage(payload []byte, _ uint32, _ any) {
	if len(payload) != msgLen {
		log.Printf("remoteproc: name-service message has wrong length %d, want %d, dropping", len(payload), msgLen)
		return
	}

	var name [api.ChannelNameLen]byte
	copy(name[:], payload[:api.ChannelNameLen])
	name[api.ChannelNameLen-1] = 0 // force null terminator, do not trust the remote
	addr := binary.LittleEndian.Uint32(payload[api.ChannelNameLen:])
	flags := api.NSFlag(binary.LittleEndian.Uint32(payload[api.ChannelNameLen+4:]))

	nameStr := cStringOf(name[:])

	err := h.exe.Submit(func() {
		switch flags {
		case api.NSCreate:
			if _, err := h.bus.CreateChannel(nameStr, api.AddrAny, addr); err != nil {
				log.Printf("remoteproc: name-service create %q failed: %v", nameStr, err)
			}
		case api.NSDestroy:
			h.bus.DestroyChannel(nameStr, addr)
		default:
			log.Printf("remoteproc: name-service message with unknown flags=%d, dropping", flags)
		}
	})
	if err != nil {
		log.Printf("remoteproc: name-service executor closed, dropping message for %q", nameStr)
	}
}

// cStringOf returns the portion of b before its first NUL byte.
func cStringOf(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
