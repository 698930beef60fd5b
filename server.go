package lineproto

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Handler is the interface for handling accepted connections.
type Handler interface {
	// Handle is called on its own goroutine for each new connection and owns it.
	// ctx is canceled when the server gives up waiting for connections to drain.
	Handle(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn net.Conn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// Server represents a TCP server that listens for incoming connections.
type Server struct {
	listener        net.Listener
	logger          Logger
	shutdownTimeout time.Duration
	maxConns        int
	reusePort       bool

	active atomic.Int64

	mu           sync.Mutex
	shutdown     bool
	shutdownNow  chan struct{} // closed by Close to skip the drain timeout
	shutdownOnce sync.Once
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context passed to Serve is canceled the listener is closed at
// once, then open connections get up to this duration to finish before
// their context is canceled. Default is 0 (cancel connections immediately).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// ServerMaxConnectionsOption caps the number of connections handled at once.
// Connections accepted beyond the cap are closed straight away.
// Zero means no cap.
func ServerMaxConnectionsOption(n int) ServerOption {
	return func(s *Server) {
		s.maxConns = n
	}
}

// ServerReusePortOption sets SO_REUSEADDR and SO_REUSEPORT on the listening
// socket so several processes can share one address.
func ServerReusePortOption(enabled bool) ServerOption {
	return func(s *Server) {
		s.reusePort = enabled
	}
}

// New creates a new TCP server bound to addr ("host:port").
// Returns an error if the address cannot be bound.
func New(addr string, opts ...ServerOption) (*Server, error) {
	s := &Server{
		logger:      defaultLogger(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	var lc net.ListenConfig
	if s.reusePort {
		lc.Control = reusePortControl
	}

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	s.listener = listener

	return s, nil
}

// NewWithListener creates a server that accepts from an existing listener.
func NewWithListener(listener net.Listener, opts ...ServerOption) *Server {
	s := &Server{
		listener:    listener,
		logger:      defaultLogger(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve starts accepting connections and dispatching each to handler on its
// own goroutine. It blocks until ctx is canceled, Close is called or an
// unrecoverable accept error occurs, and returns only after every handler
// has returned.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	var group errgroup.Group
	if s.maxConns > 0 {
		group.SetLimit(s.maxConns)
	}

	stop := context.AfterFunc(ctx, func() {
		s.markShutdown()
		_ = s.listener.Close()
	})
	defer stop()

	var serveErr error
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShutdown() {
				serveErr = ctx.Err()
				break
			}

			// Check if it's a temporary error
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			serveErr = err
			break
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		s.active.Add(1)
		started := group.TryGo(func() error {
			defer s.active.Add(-1)
			handler.Handle(connCtx, conn)
			return nil
		})
		if !started {
			s.active.Add(-1)
			s.logger.Warn("connection limit reached", "remote_addr", conn.RemoteAddr(), "limit", s.maxConns)
			_ = conn.Close()
		}
	}

	s.drain(&group, cancelConns)
	s.logger.Info("server stopped", "addr", s.listener.Addr())

	return serveErr
}

// drain waits for handlers to return, canceling them once the shutdown
// timeout expires or Close is called.
func (s *Server) drain(group *errgroup.Group, cancelConns context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	if s.shutdownTimeout > 0 && s.ActiveConns() > 0 {
		s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout, "active", s.ActiveConns())
		timer := time.NewTimer(s.shutdownTimeout)
		defer timer.Stop()

		select {
		case <-done:
			return
		case <-timer.C:
			s.logger.Warn("shutdown timeout expired, closing connections", "active", s.ActiveConns())
		case <-s.shutdownNow:
			s.logger.Debug("shutdown timeout bypassed via Close()")
		}
	}

	cancelConns()
	<-done
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is running, Close bypasses the remaining timeout.
func (s *Server) Close() error {
	s.markShutdown()
	s.shutdownOnce.Do(func() {
		close(s.shutdownNow)
	})

	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ActiveConns returns the number of connections currently being handled.
func (s *Server) ActiveConns() int {
	return int(s.active.Load())
}

func (s *Server) markShutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}
