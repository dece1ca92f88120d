// Package backend describes the runtime breakpoint service exposed by the script
// execution host and provides a JSON-RPC client for it.
package backend

import (
	"fmt"
	"strings"
)

// Availability reports whether the host can accept direct breakpoint calls.
type Availability int

const (
	// Idle means the runspace is not executing and accepts direct calls.
	Idle Availability = iota
	// Busy means the runspace is executing and only accepts textual commands.
	Busy
)

func (a Availability) String() string {
	switch a {
	case Idle:
		return "Idle"
	case Busy:
		return "Busy"
	default:
		return fmt.Sprintf("Availability(%d)", int(a))
	}
}

// ParseAvailability parses the wire form of an availability value.
func ParseAvailability(s string) (Availability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle", "available":
		return Idle, nil
	case "busy":
		return Busy, nil
	default:
		return 0, fmt.Errorf("unknown availability: %q", s)
	}
}

// Service is the breakpoint capability of the execution host.
//
// SetBreakpoint, EnableBreakpoint, RemoveBreakpoint and ClearAllBreakpoints are
// only valid while Idle. ResolveBreakpointID and ExecuteCommand are used while Busy.
type Service interface {
	// GetAvailability queries the current availability. It must not be cached.
	GetAvailability() (Availability, error)

	SetBreakpoint(file string, line, column int) error
	EnableBreakpoint(file string, line, column int, enable bool) error
	RemoveBreakpoint(file string, line, column int) error
	ClearAllBreakpoints() error

	// ResolveBreakpointID maps an identity to the host's runtime id.
	// A negative id means no breakpoint is known at that location.
	ResolveBreakpointID(file string, line, column int) (int, error)

	// ExecuteCommand queues a textual command for the running pipeline.
	// It returns once the host accepted the command, not when it ran.
	ExecuteCommand(text string) error
}
