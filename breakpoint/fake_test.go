package breakpoint

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xhd2015/psdebug-mcp/backend"
)

var errBackend = errors.New("runtime service unavailable")

// fakeService records every call as a short string.
type fakeService struct {
	mu    sync.Mutex
	avail backend.Availability
	calls []string

	ids      map[string]int
	failOn   func(call string) bool
	availErr error
}

func newFakeService(avail backend.Availability) *fakeService {
	return &fakeService{avail: avail, ids: map[string]int{}}
}

func key(file string, line, column int) string {
	return fmt.Sprintf("%s:%d:%d", strings.ToLower(file), line, column)
}

func (f *fakeService) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.failOn != nil && f.failOn(call) {
		return errBackend
	}
	return nil
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeService) setAvailability(a backend.Availability) {
	f.mu.Lock()
	f.avail = a
	f.mu.Unlock()
}

func (f *fakeService) GetAvailability() (backend.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail, f.availErr
}

func (f *fakeService) SetBreakpoint(file string, line, column int) error {
	return f.record("set " + key(file, line, column))
}

func (f *fakeService) EnableBreakpoint(file string, line, column int, enable bool) error {
	if enable {
		return f.record("enable " + key(file, line, column))
	}
	return f.record("disable " + key(file, line, column))
}

func (f *fakeService) RemoveBreakpoint(file string, line, column int) error {
	return f.record("remove " + key(file, line, column))
}

func (f *fakeService) ClearAllBreakpoints() error {
	return f.record("clear")
}

func (f *fakeService) ResolveBreakpointID(file string, line, column int) (int, error) {
	k := key(file, line, column)
	if err := f.record("resolve " + k); err != nil {
		return -1, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[k]
	if !ok {
		return -1, nil
	}
	return id, nil
}

func (f *fakeService) ExecuteCommand(text string) error {
	return f.record("exec " + text)
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Infof(format string, args ...interface{})  {}
func (l *recordingLogger) Debugf(format string, args ...interface{}) {}
func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}
func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}
func (l *recordingLogger) Info(args ...interface{})  {}
func (l *recordingLogger) Debug(args ...interface{}) {}
func (l *recordingLogger) Warn(args ...interface{})  {}
func (l *recordingLogger) Error(args ...interface{}) {}

func (l *recordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}
