package breakpoint

import (
	"sync"

	"github.com/xhd2015/psdebug-mcp/backend"
	"github.com/xhd2015/psdebug-mcp/log"
	"github.com/xhd2015/psdebug-mcp/metrics"
)

// Manager owns the breakpoint list of one debug session and mirrors every
// lifecycle operation onto the runtime service.
//
// Backend failures are logged and discarded: the local state a call applied
// is kept even when the host rejected it. List membership changes only through
// SetBreakpoints, AddBreakpoint, DeleteBreakpoint and Close; RemoveBreakpoint
// and EnableBreakpoint never touch it.
type Manager struct {
	service backend.Service
	logger  log.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	breakpoints []*Record

	// serializes bulk reloads
	reloadMu sync.Mutex

	hits    Observers[HitEvent]
	updates Observers[UpdateEvent]
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger log.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a manager bound to service. service must not be nil.
func NewManager(service backend.Service, opts ...Option) *Manager {
	if service == nil {
		panic("breakpoint: NewManager called with nil service")
	}
	m := &Manager{
		service: service,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hits is the hit notification registry.
func (m *Manager) Hits() *Observers[HitEvent] {
	return &m.hits
}

// Updates is the updated notification registry.
func (m *Manager) Updates() *Observers[UpdateEvent] {
	return &m.updates
}

// Breakpoints returns a snapshot of the managed list in insertion order.
func (m *Manager) Breakpoints() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*Record, len(m.breakpoints))
	copy(result, m.breakpoints)
	return result
}

// Find returns the managed record at file:line:column.
func (m *Manager) Find(file string, line, column int) (*Record, bool) {
	for _, r := range m.Breakpoints() {
		if r.Matches(file, line, column) {
			return r, true
		}
	}
	return nil, false
}

// SetBreakpoints replaces the managed list and the host's breakpoints with
// records, in order. A nil slice is a no-op; an empty one clears everything.
// Later duplicates of an identity are skipped.
func (m *Manager) SetBreakpoints(records []*Record) {
	if records == nil {
		return
	}

	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	m.ClearBreakpoints()

	m.mu.Lock()
	m.breakpoints = nil
	m.mu.Unlock()

	for _, r := range records {
		if r == nil {
			continue
		}
		if !m.appendIfAbsent(r) {
			m.logger.Warnf("skipping duplicate breakpoint %s", r.Identity())
			continue
		}
		m.add(r)
	}
}

// AddBreakpoint registers a single record and sets it on the host. It reports
// false, without contacting the host, when the identity is already managed.
func (m *Manager) AddBreakpoint(r *Record) bool {
	if r == nil || !m.appendIfAbsent(r) {
		return false
	}
	m.add(r)
	return true
}

// DeleteBreakpoint removes the record from the host and from the managed list.
// It reports whether the identity was managed.
func (m *Manager) DeleteBreakpoint(r *Record) bool {
	if r == nil {
		return false
	}
	m.mu.Lock()
	found := false
	for i, existing := range m.breakpoints {
		if existing.Equal(r) {
			m.breakpoints = append(m.breakpoints[:i:i], m.breakpoints[i+1:]...)
			found = true
			break
		}
	}
	m.mu.Unlock()

	m.RemoveBreakpoint(r)
	return found
}

// Close ends the session and forgets every managed record.
func (m *Manager) Close() {
	m.mu.Lock()
	m.breakpoints = nil
	m.mu.Unlock()
}

func (m *Manager) add(r *Record) {
	m.SetBreakpoint(r)
	if r.State() == Disabled {
		m.EnableBreakpoint(r, 0)
	}
}

func (m *Manager) appendIfAbsent(r *Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.breakpoints {
		if existing.Equal(r) {
			return false
		}
	}
	m.breakpoints = append(m.breakpoints, r)
	return true
}

// SetBreakpoint sets r on the host. It does not change the managed list.
// While Busy the column is dropped, since the command form is line-only.
func (m *Manager) SetBreakpoint(r *Record) {
	if r == nil {
		return
	}
	avail, ok := m.availability("set", r)
	if !ok {
		return
	}

	id := r.Identity()
	switch avail {
	case backend.Busy:
		err := m.service.ExecuteCommand(backend.SetBreakpointCommand(id.File, id.Line))
		m.observe("set", metrics.PathCommand, r, err)
	default:
		err := m.service.SetBreakpoint(id.File, id.Line, id.Column)
		m.observe("set", metrics.PathDirect, r, err)
	}
	// a fresh breakpoint invalidates any id learned for a previous one
	r.clearRuntimeID()
}

// EnableBreakpoint enables r when enable is non-zero and disables it otherwise.
// The local state is updated before the host is contacted.
func (m *Manager) EnableBreakpoint(r *Record, enable int) {
	if r == nil {
		return
	}
	on := enable != 0
	if on {
		r.setState(Enabled)
	} else {
		r.setState(Disabled)
	}

	op := "enable"
	if !on {
		op = "disable"
	}
	avail, ok := m.availability(op, r)
	if !ok {
		return
	}

	id := r.Identity()
	switch avail {
	case backend.Busy:
		runtimeID, ok := m.resolveRuntimeID(op, r)
		if !ok {
			return
		}
		err := m.service.ExecuteCommand(backend.EnableBreakpointCommand(runtimeID, on))
		m.observe(op, metrics.PathCommand, r, err)
	default:
		err := m.service.EnableBreakpoint(id.File, id.Line, id.Column, on)
		m.observe(op, metrics.PathDirect, r, err)
	}
}

// RemoveBreakpoint removes r from the host. It does not change the managed list.
func (m *Manager) RemoveBreakpoint(r *Record) {
	if r == nil {
		return
	}
	avail, ok := m.availability("remove", r)
	if !ok {
		return
	}

	id := r.Identity()
	switch avail {
	case backend.Busy:
		runtimeID, ok := m.resolveRuntimeID("remove", r)
		if !ok {
			return
		}
		err := m.service.ExecuteCommand(backend.RemoveBreakpointCommand(runtimeID))
		m.observe("remove", metrics.PathCommand, r, err)
		if err == nil {
			r.clearRuntimeID()
		}
	default:
		err := m.service.RemoveBreakpoint(id.File, id.Line, id.Column)
		m.observe("remove", metrics.PathDirect, r, err)
	}
}

// ClearBreakpoints removes every breakpoint from the host. The managed list is kept.
func (m *Manager) ClearBreakpoints() {
	err := m.service.ClearAllBreakpoints()
	m.metrics.ObserveCall("clear", metrics.PathDirect, err)
	if err != nil {
		m.logger.Errorf("failed to clear breakpoints: %v", err)
	}
}

// ProcessLineBreakpoints publishes a hit for the first managed record at
// script:line:column. It returns false when nothing matches or nobody listens,
// in which case the host should not suspend.
func (m *Manager) ProcessLineBreakpoints(script string, line, column int) bool {
	r, ok := m.Find(script, line, column)
	if !ok {
		return false
	}
	if !m.hits.Publish(HitEvent{Breakpoint: r}) {
		m.logger.Debugf("no hit subscriber for %s", r.Identity())
		return false
	}
	m.metrics.ObserveHit()
	return true
}

// UpdateBreakpoint republishes ev to the update subscribers and reports
// whether any were registered.
func (m *Manager) UpdateBreakpoint(ev UpdateEvent) bool {
	return m.updates.Publish(ev)
}

func (m *Manager) availability(op string, r *Record) (backend.Availability, bool) {
	avail, err := m.service.GetAvailability()
	if err != nil {
		m.logger.Errorf("failed to query availability to %s breakpoint %s: %v", op, r.Identity(), err)
		return avail, false
	}
	return avail, true
}

func (m *Manager) resolveRuntimeID(op string, r *Record) (int, bool) {
	id := r.Identity()
	runtimeID, err := m.service.ResolveBreakpointID(id.File, id.Line, id.Column)
	if err != nil {
		m.logger.Errorf("failed to resolve runtime id to %s breakpoint %s: %v", op, id, err)
		return -1, false
	}
	if runtimeID < 0 {
		m.logger.Debugf("no runtime breakpoint at %s, skipping %s", id, op)
		r.clearRuntimeID()
		return -1, false
	}
	r.setRuntimeID(runtimeID)
	return runtimeID, true
}

func (m *Manager) observe(op, path string, r *Record, err error) {
	m.metrics.ObserveCall(op, path, err)
	if err != nil {
		m.logger.Errorf("failed to %s breakpoint %s via %s path: %v", op, r.Identity(), path, err)
	}
}
