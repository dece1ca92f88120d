// Package dap republishes breakpoint notifications as Debug Adapter Protocol events
// and converts DAP breakpoint requests into breakpoint records.
package dap

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/go-dap"
	"github.com/xhd2015/psdebug-mcp/breakpoint"
	"github.com/xhd2015/psdebug-mcp/log"
)

// Sink receives DAP messages destined for the frontend.
type Sink interface {
	Send(msg dap.Message) error
}

// StreamSink writes DAP wire frames to w.
type StreamSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (s *StreamSink) Send(msg dap.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dap.WriteProtocolMessage(s.w, msg)
}

// Fanout sends every message to each sink in order. It returns the first error
// but still tries the remaining sinks.
type Fanout []Sink

func (f Fanout) Send(msg dap.Message) error {
	var first error
	for _, sink := range f {
		if err := sink.Send(msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Queue buffers the most recent messages until drained.
type Queue struct {
	mu   sync.Mutex
	max  int
	msgs []dap.Message
}

// NewQueue keeps at most max messages, dropping the oldest. max <= 0 means unbounded.
func NewQueue(max int) *Queue {
	return &Queue{max: max}
}

func (q *Queue) Send(msg dap.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.msgs = append(q.msgs, msg)
	if q.max > 0 && len(q.msgs) > q.max {
		q.msgs = append([]dap.Message(nil), q.msgs[len(q.msgs)-q.max:]...)
	}
	return nil
}

// Drain returns the buffered messages in arrival order and empties the queue.
func (q *Queue) Drain() []dap.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	msgs := q.msgs
	q.msgs = nil
	return msgs
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Options configures a Notifier.
type Options struct {
	// ThreadID is reported in stopped events. Defaults to 1.
	ThreadID int
	Logger   log.Logger
}

// Notifier forwards a manager's hit and update notifications to a Sink.
type Notifier struct {
	manager  *breakpoint.Manager
	sink     Sink
	threadID int
	logger   log.Logger
	seq      atomic.Int64

	hitSub    breakpoint.Subscription
	updateSub breakpoint.Subscription
}

// Attach subscribes a new Notifier to m.
func Attach(m *breakpoint.Manager, sink Sink, opts Options) *Notifier {
	n := &Notifier{
		manager:  m,
		sink:     sink,
		threadID: opts.ThreadID,
		logger:   opts.Logger,
	}
	if n.threadID == 0 {
		n.threadID = 1
	}
	if n.logger == nil {
		n.logger = log.Discard()
	}
	n.hitSub = m.Hits().Subscribe(n.onHit)
	n.updateSub = m.Updates().Subscribe(n.onUpdate)
	return n
}

// Detach unsubscribes from the manager.
func (n *Notifier) Detach() {
	n.manager.Hits().Unsubscribe(n.hitSub)
	n.manager.Updates().Unsubscribe(n.updateSub)
}

func (n *Notifier) onHit(ev breakpoint.HitEvent) {
	n.send(StoppedEvent(int(n.seq.Add(1)), n.threadID, ev.Breakpoint))
}

func (n *Notifier) onUpdate(ev breakpoint.UpdateEvent) {
	if ev.Breakpoint == nil {
		return
	}
	n.send(BreakpointEvent(int(n.seq.Add(1)), ev))
}

func (n *Notifier) send(msg dap.Message) {
	if err := n.sink.Send(msg); err != nil {
		n.logger.Errorf("failed to send %T to frontend: %v", msg, err)
	}
}

// StoppedEvent builds the stopped event for a breakpoint hit.
func StoppedEvent(seq int, threadID int, r *breakpoint.Record) *dap.StoppedEvent {
	body := dap.StoppedEventBody{
		Reason:            "breakpoint",
		ThreadId:          threadID,
		AllThreadsStopped: true,
	}
	if r != nil {
		body.Description = fmt.Sprintf("Paused on breakpoint %s", r.Identity())
		if id, ok := r.RuntimeID(); ok {
			body.HitBreakpointIds = []int{id}
		}
	}
	return &dap.StoppedEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "event"},
			Event:           "stopped",
		},
		Body: body,
	}
}

// BreakpointEvent builds the breakpoint event for an update notification.
func BreakpointEvent(seq int, ev breakpoint.UpdateEvent) *dap.BreakpointEvent {
	return &dap.BreakpointEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "event"},
			Event:           "breakpoint",
		},
		Body: dap.BreakpointEventBody{
			Reason:     eventReason(ev.Kind),
			Breakpoint: ToBreakpoint(ev.Breakpoint),
		},
	}
}

// DAP only knows new, changed and removed.
func eventReason(kind breakpoint.UpdateKind) string {
	switch kind {
	case breakpoint.UpdateAdded, breakpoint.UpdateRemoved:
		return kind.String()
	default:
		return breakpoint.UpdateChanged.String()
	}
}

// ToBreakpoint converts a record into its DAP form.
func ToBreakpoint(r *breakpoint.Record) dap.Breakpoint {
	id := r.Identity()
	bp := dap.Breakpoint{
		Verified: r.State() == breakpoint.Enabled,
		Source:   &dap.Source{Name: filepath.Base(id.File), Path: id.File},
		Line:     id.Line,
		Column:   id.Column,
	}
	if runtimeID, ok := r.RuntimeID(); ok {
		bp.Id = runtimeID
	}
	if !bp.Verified {
		bp.Message = "disabled"
	}
	return bp
}

// RecordsFromSetBreakpoints converts a setBreakpoints request into enabled records.
// A missing column defaults to 1. The legacy Lines field is used when Breakpoints is empty.
func RecordsFromSetBreakpoints(args dap.SetBreakpointsArguments) []*breakpoint.Record {
	file := args.Source.Path
	if file == "" {
		file = args.Source.Name
	}

	records := make([]*breakpoint.Record, 0, len(args.Breakpoints))
	for _, sbp := range args.Breakpoints {
		column := sbp.Column
		if column <= 0 {
			column = 1
		}
		records = append(records, breakpoint.NewRecord(file, sbp.Line, column, breakpoint.Enabled))
	}
	if len(args.Breakpoints) == 0 {
		for _, line := range args.Lines {
			records = append(records, breakpoint.NewRecord(file, line, 1, breakpoint.Enabled))
		}
	}
	return records
}
