package dap

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhd2015/psdebug-mcp/backend"
	"github.com/xhd2015/psdebug-mcp/breakpoint"
)

type idleService struct{}

func (idleService) GetAvailability() (backend.Availability, error)    { return backend.Idle, nil }
func (idleService) SetBreakpoint(string, int, int) error              { return nil }
func (idleService) EnableBreakpoint(string, int, int, bool) error     { return nil }
func (idleService) RemoveBreakpoint(string, int, int) error           { return nil }
func (idleService) ClearAllBreakpoints() error                        { return nil }
func (idleService) ResolveBreakpointID(string, int, int) (int, error) { return -1, nil }
func (idleService) ExecuteCommand(string) error                       { return nil }

type failingSink struct{}

func (failingSink) Send(dap.Message) error { return errors.New("frontend gone") }

func TestNotifierForwardsHitsAndUpdates(t *testing.T) {
	m := breakpoint.NewManager(idleService{})
	r := breakpoint.NewRecord("/work/A.ps1", 10, 1, breakpoint.Enabled)
	m.SetBreakpoints([]*breakpoint.Record{r})

	q := NewQueue(0)
	n := Attach(m, q, Options{ThreadID: 7})

	require.True(t, m.ProcessLineBreakpoints("/work/a.ps1", 10, 1))
	require.True(t, m.UpdateBreakpoint(breakpoint.UpdateEvent{Kind: breakpoint.UpdateRemoved, Breakpoint: r}))

	msgs := q.Drain()
	require.Len(t, msgs, 2)

	stopped, ok := msgs[0].(*dap.StoppedEvent)
	require.True(t, ok)
	assert.Equal(t, 1, stopped.Seq)
	assert.Equal(t, "stopped", stopped.Event.Event)
	assert.Equal(t, "breakpoint", stopped.Body.Reason)
	assert.Equal(t, 7, stopped.Body.ThreadId)
	assert.Contains(t, stopped.Body.Description, "/work/A.ps1:10:1")

	bpEvent, ok := msgs[1].(*dap.BreakpointEvent)
	require.True(t, ok)
	assert.Equal(t, 2, bpEvent.Seq)
	assert.Equal(t, "removed", bpEvent.Body.Reason)
	assert.Equal(t, 10, bpEvent.Body.Breakpoint.Line)
	assert.Equal(t, "/work/A.ps1", bpEvent.Body.Breakpoint.Source.Path)
	assert.Equal(t, "A.ps1", bpEvent.Body.Breakpoint.Source.Name)

	n.Detach()
	assert.False(t, m.ProcessLineBreakpoints("/work/a.ps1", 10, 1))
	assert.Equal(t, 0, q.Len())
}

func TestNotifierSinkErrorDoesNotBreakHit(t *testing.T) {
	m := breakpoint.NewManager(idleService{})
	m.SetBreakpoints([]*breakpoint.Record{breakpoint.NewRecord("a.ps1", 1, 1, breakpoint.Enabled)})
	Attach(m, failingSink{}, Options{})

	assert.True(t, m.ProcessLineBreakpoints("a.ps1", 1, 1))
}

func TestStreamSinkWritesFrames(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStreamSink(&buf)

	r := breakpoint.NewRecord("a.ps1", 3, 2, breakpoint.Disabled)
	require.NoError(t, sink.Send(BreakpointEvent(5, breakpoint.UpdateEvent{Kind: breakpoint.UpdateHit, Breakpoint: r})))

	msg, err := dap.ReadProtocolMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	ev, ok := msg.(*dap.BreakpointEvent)
	require.True(t, ok)
	assert.Equal(t, "changed", ev.Body.Reason)
	assert.False(t, ev.Body.Breakpoint.Verified)
	assert.Equal(t, "disabled", ev.Body.Breakpoint.Message)
	assert.Equal(t, 2, ev.Body.Breakpoint.Column)
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(2)
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Send(StoppedEvent(i, 1, nil)))
	}
	msgs := q.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, 2, msgs[0].GetSeq())
	assert.Equal(t, 3, msgs[1].GetSeq())
	assert.Empty(t, q.Drain())
}

func TestRecordsFromSetBreakpoints(t *testing.T) {
	records := RecordsFromSetBreakpoints(dap.SetBreakpointsArguments{
		Source: dap.Source{Path: "/work/A.ps1"},
		Breakpoints: []dap.SourceBreakpoint{
			{Line: 4},
			{Line: 9, Column: 3},
		},
	})
	require.Len(t, records, 2)
	assert.Equal(t, breakpoint.Identity{File: "/work/A.ps1", Line: 4, Column: 1}, records[0].Identity())
	assert.Equal(t, breakpoint.Identity{File: "/work/A.ps1", Line: 9, Column: 3}, records[1].Identity())
	assert.Equal(t, breakpoint.Enabled, records[1].State())

	legacy := RecordsFromSetBreakpoints(dap.SetBreakpointsArguments{
		Source: dap.Source{Name: "B.ps1"},
		Lines:  []int{7},
	})
	require.Len(t, legacy, 1)
	assert.Equal(t, "B.ps1", legacy[0].File())
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	first := NewQueue(0)
	second := NewQueue(0)
	fan := Fanout{first, failingSink{}, second}

	err := fan.Send(StoppedEvent(1, 1, nil))
	assert.EqualError(t, err, "frontend gone")
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
}
