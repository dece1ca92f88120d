// Package breakpoint keeps the frontend's breakpoint list in sync with the
// runtime breakpoint service of a script execution host.
package breakpoint

import (
	"fmt"
	"strings"
	"sync"
)

// State is the enablement of a breakpoint.
type State int

const (
	Enabled State = iota
	Disabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Identity addresses a breakpoint. File is compared case-insensitively.
type Identity struct {
	File   string
	Line   int
	Column int
}

// Matches reports whether the identity addresses file:line:column.
func (id Identity) Matches(file string, line, column int) bool {
	return id.Line == line && id.Column == column && strings.EqualFold(id.File, file)
}

// Equal reports whether two identities address the same breakpoint.
func (id Identity) Equal(other Identity) bool {
	return id.Matches(other.File, other.Line, other.Column)
}

func (id Identity) String() string {
	return fmt.Sprintf("%s:%d:%d", id.File, id.Line, id.Column)
}

// Record is a frontend breakpoint. Its identity never changes; state and
// runtime id are owned by the Manager once the record is registered.
type Record struct {
	id Identity

	mu        sync.Mutex
	state     State
	runtimeID int
}

// NewRecord creates a record. Line and column are 1-based.
func NewRecord(file string, line, column int, state State) *Record {
	return &Record{
		id:        Identity{File: strings.TrimSpace(file), Line: line, Column: column},
		state:     state,
		runtimeID: -1,
	}
}

func (r *Record) Identity() Identity { return r.id }
func (r *Record) File() string       { return r.id.File }
func (r *Record) Line() int          { return r.id.Line }
func (r *Record) Column() int        { return r.id.Column }

// Matches reports whether r sits at file:line:column.
func (r *Record) Matches(file string, line, column int) bool {
	return r.id.Matches(file, line, column)
}

// Equal reports whether both records share an identity.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.id.Equal(other.id)
}

func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Record) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// RuntimeID returns the host id learned through the textual path, if any.
// The id is cached whenever a Busy-path call resolves it, including for a
// record that was first set through the direct path; a later SetBreakpoint
// clears it again.
func (r *Record) RuntimeID() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runtimeID, r.runtimeID >= 0
}

func (r *Record) setRuntimeID(id int) {
	r.mu.Lock()
	r.runtimeID = id
	r.mu.Unlock()
}

func (r *Record) clearRuntimeID() {
	r.setRuntimeID(-1)
}

func (r *Record) String() string {
	return fmt.Sprintf("%s (%s)", r.id, r.State())
}
