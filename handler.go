package lineproto

import (
	"context"
	"net"
)

// serviceHandler binds accepted connections to the line protocol pipeline.
type serviceHandler struct {
	factory ServiceFactory
	opts    []Option
	logger  Logger
}

// NewServiceHandler returns a Handler that, for every accepted connection,
// creates a fresh Service with factory and runs a Conn until it ends.
// opts are applied to every Conn.
func NewServiceHandler(factory ServiceFactory, opts ...Option) Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}

	return &serviceHandler{
		factory: factory,
		opts:    opts,
		logger:  o.logger,
	}
}

// Handle implements Handler.
func (h *serviceHandler) Handle(ctx context.Context, conn net.Conn) {
	c, err := NewConn(conn, h.factory(), h.opts...)
	if err != nil {
		h.logger.Error("failed to create connection", "remote_addr", conn.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}

	// Run logs its own outcome; errors stay local to the connection.
	_ = c.Run(ctx)
}
