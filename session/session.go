// Package session tracks debug sessions, each bound to one runtime service connection.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xhd2015/psdebug-mcp/backend"
	"github.com/xhd2015/psdebug-mcp/breakpoint"
	frontend "github.com/xhd2015/psdebug-mcp/frontend/dap"
	"github.com/xhd2015/psdebug-mcp/log"
	"github.com/xhd2015/psdebug-mcp/metrics"
)

// Conn is a connected runtime service.
type Conn interface {
	backend.Service
	Close() error
}

// Dialer opens a Conn to the runtime service at addr.
type Dialer func(ctx context.Context, addr string) (Conn, error)

// Options configures a Manager.
type Options struct {
	Logger      log.Logger
	Metrics     *metrics.Metrics
	DialTimeout time.Duration
	CallTimeout time.Duration
	QueueSize   int
	// Stream, when set, also receives every session's DAP events.
	Stream frontend.Sink
	// Dial overrides how connections are opened. Defaults to a backend.Client.
	Dial Dialer
}

// Manager manages debug sessions
type Manager struct {
	opts     Options
	sessions map[string]*Session
	mu       sync.Mutex
}

// Session is one debug session.
type Session struct {
	ID          string
	Address     string
	CreatedAt   time.Time
	Conn        Conn
	Breakpoints *breakpoint.Manager
	Events      *frontend.Queue

	notifier *frontend.Notifier
}

// Info summarizes a session for listing.
type Info struct {
	ID          string
	Address     string
	Breakpoints int
	// PendingEvents is the number of queued events not yet polled.
	PendingEvents int
	CreatedAt     time.Time
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = clientDialer(opts)
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

func clientDialer(opts Options) Dialer {
	return func(ctx context.Context, addr string) (Conn, error) {
		client := backend.NewClient(
			backend.WithDialTimeout(opts.DialTimeout),
			backend.WithCallTimeout(opts.CallTimeout),
			backend.WithLogger(opts.Logger),
		)
		if err := client.Connect(ctx, addr); err != nil {
			return nil, err
		}
		return client, nil
	}
}

// CreateSession connects to the runtime service at addr and starts a session.
func (sm *Manager) CreateSession(ctx context.Context, addr string) (*Session, error) {
	if addr == "" {
		return nil, fmt.Errorf("runtime service address is required")
	}
	conn, err := sm.opts.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to runtime service: %w", err)
	}

	s := &Session{
		ID:        fmt.Sprintf("session-%s", uuid.NewString()),
		Address:   addr,
		CreatedAt: time.Now(),
		Conn:      conn,
		Breakpoints: breakpoint.NewManager(conn,
			breakpoint.WithLogger(sm.opts.Logger),
			breakpoint.WithMetrics(sm.opts.Metrics),
		),
		Events: frontend.NewQueue(sm.opts.QueueSize),
	}
	var sink frontend.Sink = s.Events
	if sm.opts.Stream != nil {
		sink = frontend.Fanout{s.Events, sm.opts.Stream}
	}
	s.notifier = frontend.Attach(s.Breakpoints, sink, frontend.Options{Logger: sm.opts.Logger})

	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.mu.Unlock()

	sm.opts.Logger.Infof("session %s started against %s", s.ID, addr)
	return s, nil
}

// GetSession returns a debug session by ID
func (sm *Manager) GetSession(sessionID string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return s, nil
}

// ListSessions returns the active sessions ordered by creation time.
func (sm *Manager) ListSessions() []Info {
	sm.mu.Lock()
	result := make([]Info, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		result = append(result, Info{
			ID:            s.ID,
			Address:       s.Address,
			Breakpoints:   len(s.Breakpoints.Breakpoints()),
			PendingEvents: s.Events.Len(),
			CreatedAt:     s.CreatedAt,
		})
	}
	sm.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// TerminateSession ends a session and closes its connection.
func (sm *Manager) TerminateSession(sessionID string) error {
	sm.mu.Lock()
	s, ok := sm.sessions[sessionID]
	if ok {
		delete(sm.sessions, sessionID)
	}
	sm.mu.Unlock()

	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return s.close()
}

// CloseAll terminates every session and returns the combined close errors.
func (sm *Manager) CloseAll() error {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*Session)
	sm.mu.Unlock()

	var result error
	for id, s := range sessions {
		if err := s.close(); err != nil {
			sm.opts.Logger.Warnf("failed to close session %s: %v", id, err)
			result = multierror.Append(result, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return result
}

func (s *Session) close() error {
	s.notifier.Detach()
	s.Breakpoints.Close()
	if err := s.Conn.Close(); err != nil {
		return fmt.Errorf("failed to close runtime service connection: %w", err)
	}
	return nil
}
