// Package lineproto implements a newline-delimited text protocol over TCP.
// It frames a raw byte stream into UTF-8 messages, runs each message
// through a per-connection Service and writes the responses back in order.
package lineproto

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Errors returned by connection operations.
var (
	// ErrInvalidService is returned when no service is provided.
	ErrInvalidService = errors.New("invalid service")
	// ErrInvalidCodec is returned when the codec factory yields no codec.
	ErrInvalidCodec = errors.New("invalid codec factory")
	// ErrConnectionClosed is returned when running a connection that was already closed.
	ErrConnectionClosed = errors.New("connection closed")
)

// ServiceError is returned by Run when the Service fails a request and the
// connection is torn down because of it.
type ServiceError struct {
	Request Message
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service failed on %d byte request: %v", e.Request.Length(), e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Conn drives the request/response pipeline of one accepted connection.
// Requests are read, handled and answered strictly one at a time.
type Conn struct {
	rawConn   net.Conn
	transport *Transport
	service   Service
	logger    Logger
	id        uuid.UUID

	opts options

	state  atomic.Int32
	closed atomic.Bool
	local  atomic.Bool // Close was called by the owner
}

// Default configuration values.
const (
	// defaultMaxPackageLength leaves frames bounded only by memory.
	defaultMaxPackageLength = 0
)

// NewConn creates a pipeline around conn that answers requests with svc.
// Returns an error if svc is nil or the codec factory yields no codec.
func NewConn(conn net.Conn, svc Service, opt ...Option) (*Conn, error) {
	if svc == nil {
		return nil, ErrInvalidService
	}

	var opts options
	for _, o := range opt {
		o(&opts)
	}

	checkOptions(&opts)

	codec := opts.newCodec()
	if codec == nil {
		return nil, ErrInvalidCodec
	}

	return newConnWithOptions(conn, svc, codec, opts), nil
}

// checkOptions sets default values for connection options.
func checkOptions(opts *options) {
	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}

	if opts.maxReadLength < 0 {
		opts.maxReadLength = defaultMaxPackageLength
	}

	if opts.idleTimeout < 0 {
		opts.idleTimeout = 0
	}

	if opts.newCodec == nil {
		maxLength := opts.maxReadLength
		opts.newCodec = func() Codec { return NewLineCodec(maxLength) }
	}

	if opts.onServiceError == nil {
		opts.onServiceError = func(error) (Message, ErrorAction) { return "", Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}

// newConnWithOptions creates a new Conn with validated options.
func newConnWithOptions(c net.Conn, svc Service, codec Codec, opts options) *Conn {
	id := uuid.New()
	cc := &Conn{
		rawConn: c,
		transport: NewTransport(c, codec,
			TransportReadSizeOption(opts.readBufferSize),
			TransportIdleTimeoutOption(opts.idleTimeout),
		),
		service: svc,
		logger:  withFields(opts.logger, "conn_id", id.String(), "addr", c.RemoteAddr()),
		id:      id,
		opts:    opts,
	}
	cc.state.Store(int32(AwaitingRequest))

	return cc
}

// Run reads requests until the peer closes the stream, ctx is canceled,
// Close is called or an unrecoverable error occurs.
// The connection is always closed when Run returns.
//
// Returns:
//   - nil: the peer closed cleanly on a frame boundary, or Close was called (state Closed)
//   - ctx.Err(): the context was canceled (state Closed)
//   - any other error: decode, I/O or service failure (state Failed)
func (c *Conn) Run(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	c.logger.Info("connection established")
	c.logger.Debug("connection options",
		"read_buffer_size", c.opts.readBufferSize,
		"max_read_length", c.opts.maxReadLength,
		"idle_timeout", c.opts.idleTimeout)

	stop := context.AfterFunc(ctx, func() {
		_ = c.closeConn()
	})
	defer stop()

	err := c.serve(ctx)
	_ = c.closeConn()

	state := Closed
	switch {
	case err == nil:
	case ctx.Err() != nil:
		err = ctx.Err()
	case c.local.Load():
		err = nil
	default:
		state = Failed
	}
	c.setState(state)

	if state == Failed {
		c.logger.Info("connection closed with error", "error", err)
	} else {
		c.logger.Info("connection closed")
	}

	return err
}

// serve is the per-connection state machine. It returns nil when the stream
// ends on a frame boundary.
func (c *Conn) serve(ctx context.Context) error {
	for {
		c.setState(AwaitingRequest)
		req, err := c.transport.Receive()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			c.logger.Debug("read error", "error", err)
			return err
		}

		c.setState(Processing)
		resp, err := c.service.Handle(ctx, req)
		if err != nil {
			reply, action := c.opts.onServiceError(err)
			if action != Continue {
				return &ServiceError{Request: req, Err: err}
			}
			c.logger.Warn("service error, sending reply", "error", err)
			resp = reply
		}

		c.setState(WritingResponse)
		if err = c.transport.Send(resp); err != nil {
			c.logger.Debug("write error", "error", err)
			return err
		}
	}
}

// Close closes the connection, unblocking any pending read or write.
// A running pipeline ends in state Closed. Safe to call multiple times.
func (c *Conn) Close() error {
	c.local.Store(true)
	return c.closeConn()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// State returns the current pipeline state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// ID returns the identifier used in this connection's log records.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// closeConn closes the underlying connection once.
func (c *Conn) closeConn() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.rawConn.Close()
}
