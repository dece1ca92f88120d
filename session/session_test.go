package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-dap"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhd2015/psdebug-mcp/backend"
	"github.com/xhd2015/psdebug-mcp/breakpoint"
	frontend "github.com/xhd2015/psdebug-mcp/frontend/dap"
)

type fakeConn struct {
	mu       sync.Mutex
	calls    []string
	closed   bool
	closeErr error
}

func (c *fakeConn) add(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return nil
}

func (c *fakeConn) GetAvailability() (backend.Availability, error) { return backend.Idle, nil }
func (c *fakeConn) SetBreakpoint(file string, line, column int) error {
	return c.add("set " + file)
}
func (c *fakeConn) EnableBreakpoint(file string, line, column int, enable bool) error {
	return c.add("enable " + file)
}
func (c *fakeConn) RemoveBreakpoint(file string, line, column int) error {
	return c.add("remove " + file)
}
func (c *fakeConn) ClearAllBreakpoints() error { return c.add("clear") }
func (c *fakeConn) ResolveBreakpointID(file string, line, column int) (int, error) {
	return -1, nil
}
func (c *fakeConn) ExecuteCommand(text string) error { return c.add("exec " + text) }
func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func newTestManager(conn *fakeConn) *Manager {
	return NewManager(Options{
		QueueSize: 8,
		Dial: func(ctx context.Context, addr string) (Conn, error) {
			if addr == "unreachable:1" {
				return nil, errors.New("connection refused")
			}
			return conn, nil
		},
	})
}

func TestSessionLifecycle(t *testing.T) {
	conn := &fakeConn{}
	sm := newTestManager(conn)

	s, err := sm.CreateSession(context.Background(), "127.0.0.1:12764")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.ID, "session-"))

	got, err := sm.GetSession(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	s.Breakpoints.SetBreakpoints([]*breakpoint.Record{breakpoint.NewRecord("a.ps1", 1, 1, breakpoint.Enabled)})
	infos := sm.ListSessions()
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].Breakpoints)
	assert.Equal(t, "127.0.0.1:12764", infos[0].Address)

	require.True(t, s.Breakpoints.ProcessLineBreakpoints("A.ps1", 1, 1))
	msgs := s.Events.Drain()
	require.Len(t, msgs, 1)
	_, ok := msgs[0].(*dap.StoppedEvent)
	assert.True(t, ok)

	require.NoError(t, sm.TerminateSession(s.ID))
	assert.True(t, conn.closed)
	assert.Empty(t, s.Breakpoints.Breakpoints())
	assert.False(t, s.Breakpoints.ProcessLineBreakpoints("A.ps1", 1, 1))

	_, err = sm.GetSession(s.ID)
	assert.Error(t, err)
	assert.Error(t, sm.TerminateSession(s.ID))
}

func TestCreateSessionErrors(t *testing.T) {
	sm := newTestManager(&fakeConn{})

	_, err := sm.CreateSession(context.Background(), "")
	assert.Error(t, err)

	_, err = sm.CreateSession(context.Background(), "unreachable:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, sm.ListSessions())
}

func TestCloseAll(t *testing.T) {
	conn := &fakeConn{}
	sm := newTestManager(conn)
	_, err := sm.CreateSession(context.Background(), "a:1")
	require.NoError(t, err)
	_, err = sm.CreateSession(context.Background(), "b:1")
	require.NoError(t, err)

	require.NoError(t, sm.CloseAll())
	assert.Empty(t, sm.ListSessions())
	assert.True(t, conn.closed)
}

func TestCloseAllCombinesErrors(t *testing.T) {
	conn := &fakeConn{closeErr: errors.New("reset by peer")}
	sm := newTestManager(conn)
	_, err := sm.CreateSession(context.Background(), "a:1")
	require.NoError(t, err)
	_, err = sm.CreateSession(context.Background(), "b:1")
	require.NoError(t, err)

	err = sm.CloseAll()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), "reset by peer")
	assert.Empty(t, sm.ListSessions())
}

func TestSessionStreamReceivesEvents(t *testing.T) {
	var buf bytes.Buffer
	sm := NewManager(Options{
		Stream: frontend.NewStreamSink(&buf),
		Dial: func(ctx context.Context, addr string) (Conn, error) {
			return &fakeConn{}, nil
		},
	})

	s, err := sm.CreateSession(context.Background(), "a:1")
	require.NoError(t, err)
	s.Breakpoints.SetBreakpoints([]*breakpoint.Record{breakpoint.NewRecord("a.ps1", 1, 1, breakpoint.Enabled)})
	require.True(t, s.Breakpoints.ProcessLineBreakpoints("a.ps1", 1, 1))

	infos := sm.ListSessions()
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].PendingEvents)

	msg, err := dap.ReadProtocolMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	stopped, ok := msg.(*dap.StoppedEvent)
	require.True(t, ok)
	assert.Equal(t, "breakpoint", stopped.Body.Reason)

	s.Events.Drain()
	assert.Equal(t, 0, sm.ListSessions()[0].PendingEvents)
}
