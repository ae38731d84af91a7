// File: fake/loopback.go
// Author: momentics <momentics@gmail.com>
//
// Loopback simulates the remote processor's side of a vring.Transport: it
// drains frames the host published to the send virtqueue and mirrors them
// back onto the receive virtqueue, exercising the real ring encode/decode
// path without a hardware mailbox. Used by property/scenario tests (spec
// §8 property 5, scenario E6) and the mailbox dispatcher tests.

package fake

import "github.com/momentics/remoteproc/internal/vring"

// Loopback pumps a single Transport's TX output back into its own RX
// input, simulating a remote processor that echoes every frame it
// receives straight back to the host's endpoint table.
type Loopback struct {
	t *vring.Transport
}

// NewLoopback wraps t for pumping.
func NewLoopback(t *vring.Transport) *Loopback {
	return &Loopback{t: t}
}

// Pump drains every pending send, redelivers it as an inbound frame, and
// dispatches arrivals. Returns the number of frames relayed.
func (l *Loopback) Pump() int {
	pending := l.t.DrainSendable()
	for _, p := range pending {
		l.t.CompleteSend(p)
		l.t.DeliverFrame(p.Frame)
	}
	l.t.ReceiveCallback()
	return len(pending)
}
