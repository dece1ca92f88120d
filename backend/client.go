package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/xhd2015/psdebug-mcp/log"
)

type jsonRPCRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
	Id     int           `json:"id"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Id int `json:"id"`
}

// RemoteError is an error reported by the host rather than by the transport.
type RemoteError struct {
	Method  RPCMethod
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("error from runtime service (%s): %s", e.Method, e.Message)
}

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client is closed")

// Client talks line-delimited JSON-RPC to the runtime breakpoint service.
// Calls are serialized on the single connection.
type Client struct {
	conn     net.Conn
	reader   *bufio.Reader
	seq      int
	isClosed bool
	addr     string
	mutex    sync.Mutex

	dialTimeout time.Duration
	callTimeout time.Duration
	logger      log.Logger
}

var _ Service = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDialTimeout bounds Connect and reconnect attempts.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// WithCallTimeout sets a deadline on every request/response round trip. Zero disables it.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(logger log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an unconnected client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		seq:         1,
		dialTimeout: 10 * time.Second,
		logger:      log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the runtime service at addr.
func (c *Client) Connect(ctx context.Context, addr string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.addr = addr
	if err := c.dialLocked(ctx); err != nil {
		return fmt.Errorf("failed to connect to runtime service: %w", err)
	}
	c.isClosed = false

	c.logger.Infof("connected to runtime service at %s", addr)
	return nil
}

// Close closes the connection. Further calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.isClosed = true
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.reader = nil
		return err
	}
	return nil
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.isClosed
}

func (c *Client) GetAvailability() (Availability, error) {
	out, err := call[AvailabilityOut](c, RPCGetAvailability, Empty{})
	if err != nil {
		return Idle, err
	}
	return ParseAvailability(out.Availability)
}

func (c *Client) SetBreakpoint(file string, line, column int) error {
	_, err := call[Empty](c, RPCSetBreakpoint, BreakpointIn{File: file, Line: line, Column: column})
	return err
}

func (c *Client) EnableBreakpoint(file string, line, column int, enable bool) error {
	_, err := call[Empty](c, RPCEnableBreakpoint, EnableBreakpointIn{
		BreakpointIn: BreakpointIn{File: file, Line: line, Column: column},
		Enable:       enable,
	})
	return err
}

func (c *Client) RemoveBreakpoint(file string, line, column int) error {
	_, err := call[Empty](c, RPCRemoveBreakpoint, BreakpointIn{File: file, Line: line, Column: column})
	return err
}

func (c *Client) ClearAllBreakpoints() error {
	_, err := call[Empty](c, RPCClearAllBreakpoints, Empty{})
	return err
}

func (c *Client) ResolveBreakpointID(file string, line, column int) (int, error) {
	out, err := call[ResolveBreakpointIDOut](c, RPCResolveBreakpointID, BreakpointIn{File: file, Line: line, Column: column})
	if err != nil {
		return -1, err
	}
	return out.ID, nil
}

// ExecuteCommand waits for the enqueue acknowledgement only.
func (c *Client) ExecuteCommand(text string) error {
	_, err := call[Empty](c, RPCExecuteCommand, ExecuteCommandIn{Command: text})
	return err
}

func call[T any](c *Client, method RPCMethod, params interface{}) (T, error) {
	var result T

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.isClosed {
		return result, ErrClosed
	}
	if c.conn == nil {
		if c.addr == "" {
			return result, fmt.Errorf("connection to runtime service not established")
		}
		// a previous call dropped the connection or failed to redial
		if err := c.reconnectLocked(context.Background()); err != nil {
			return result, fmt.Errorf("connection to runtime service not established: %w", err)
		}
	}

	seqNum := c.seq
	c.seq++

	req := jsonRPCRequest{
		Method: string(method),
		Params: []interface{}{params},
		Id:     seqNum,
	}
	requestBytes, err := json.Marshal(req)
	if err != nil {
		return result, fmt.Errorf("failed to marshal request: %w", err)
	}
	c.logger.Debugf("sending request to runtime service: %s", requestBytes)
	requestBytes = append(requestBytes, '\n')

	c.setDeadlineLocked()
	if _, err := c.conn.Write(requestBytes); err != nil {
		if !isBrokenConn(err) {
			c.dropLocked()
			return result, fmt.Errorf("failed to send request: %w", err)
		}
		// the request never reached the host, so it is safe to resend once
		if reconnErr := c.reconnectLocked(context.Background()); reconnErr != nil {
			return result, fmt.Errorf("failed to send request and reconnect: %w", err)
		}
		c.setDeadlineLocked()
		if _, err := c.conn.Write(requestBytes); err != nil {
			c.dropLocked()
			return result, fmt.Errorf("failed to send request after reconnect: %w", err)
		}
	}

	// After a failed read or a mismatched reply the stream can no longer be
	// trusted: a late reply would be taken for the next request's. The
	// connection is dropped and the next call redials.
	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.dropLocked()
		return result, fmt.Errorf("failed to read response: %w", err)
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		c.dropLocked()
		return result, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Id != seqNum {
		c.dropLocked()
		return result, fmt.Errorf("response ID %d does not match request ID %d", resp.Id, seqNum)
	}
	if resp.Error != nil {
		return result, &RemoteError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return result, nil
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return result, nil
}

func (c *Client) setDeadlineLocked() {
	if c.callTimeout <= 0 {
		return
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.callTimeout)); err != nil {
		c.logger.Warnf("failed to set deadline: %v", err)
	}
}

func (c *Client) dialLocked(ctx context.Context) error {
	var d net.Dialer
	timeoutCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, err := d.DialContext(timeoutCtx, "tcp", c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// reconnectLocked replaces the connection. Caller must hold the mutex lock.
func (c *Client) reconnectLocked(ctx context.Context) error {
	c.dropLocked()
	if c.addr == "" {
		return fmt.Errorf("cannot reconnect: no server address stored")
	}

	c.logger.Infof("reconnecting to runtime service at %s", c.addr)
	if err := c.dialLocked(ctx); err != nil {
		return fmt.Errorf("failed to reconnect to runtime service: %w", err)
	}
	return nil
}

// dropLocked closes the connection, keeping the address for a later redial.
func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Debugf("closing runtime service connection: %v", err)
	}
	c.conn = nil
	c.reader = nil
}

func isBrokenConn(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
