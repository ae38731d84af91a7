// File: control/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Plain-struct configuration with a DefaultConfig constructor, matching
// the teacher's facade.Config/DefaultConfig shape rather than a flag or
// env-var parsing library — this module has no network-facing CLI surface
// of its own, only the values a platform shim supplies at startup.

package control

import "time"

// Config bundles the tunables of the ring transport and lifecycle engine
// that are not board-specific (compare control.BoardConfig, which carries
// the per-deployment memory maps and firmware paths).
type Config struct {
	RingSlotCount int
	RingSlotSize  int
	RingAlign     uint32

	MailboxBaseVqID uint32

	// PutTimeout is carried in the configuration but is not read by any
	// code in this module: Put() always waits for an in-flight load to
	// finish, with no time limit.
	PutTimeout time.Duration

	EnableDebug bool
}

// DefaultConfig returns the reference platform's ring parameters (N=256,
// slot=512, align=4096) with debug introspection enabled and no put
// timeout.
func DefaultConfig() *Config {
	return &Config{
		RingSlotCount:   256,
		RingSlotSize:    512,
		RingAlign:       4096,
		MailboxBaseVqID: 2,
		PutTimeout:      0,
		EnableDebug:     true,
	}
}
