package lineproto

import (
	"time"
)

// ErrorAction defines the action to take when a Service fails.
type ErrorAction int

const (
	// Disconnect fails the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue writes a reply in place of the response and keeps the connection open.
	Continue
)

// options holds the configuration for a connection.
type options struct {
	newCodec func() Codec
	logger   Logger

	// onServiceError is called when the Service returns an error.
	// Returns Disconnect to fail the connection, or Continue with the reply to write.
	onServiceError func(error) (Message, ErrorAction)

	readBufferSize int           // bytes requested per read
	maxReadLength  int           // maximum size of a single frame, 0 for unbounded
	idleTimeout    time.Duration // read/write deadline, 0 to block indefinitely
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption returns an Option that sets the codec factory.
// The factory is called once per connection because codecs may keep
// decoding state. Defaults to a LineCodec honouring MessageMaxSize.
func CustomCodecOption(newCodec func() Codec) Option {
	return func(o *options) {
		o.newCodec = newCodec
	}
}

// ReadBufferSizeOption returns an Option that sets how many bytes are
// requested from the socket per read.
func ReadBufferSizeOption(size int) Option {
	return func(o *options) {
		o.readBufferSize = size
	}
}

// IdleTimeoutOption returns an Option that sets the read/write deadline.
// A connection that neither sends a complete read nor accepts a write within
// this duration fails with a timeout. Zero blocks indefinitely.
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// MessageMaxSize returns an Option that sets the maximum frame size in bytes.
// Frames larger than this fail the connection with ErrFrameTooLarge.
// Zero leaves frames unbounded.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxReadLength = size
	}
}

// OnServiceErrorOption returns an Option that sets the service error callback.
// Return Disconnect to fail the connection, or Continue together with a reply
// line that is written as the response to the failed request.
func OnServiceErrorOption(cb func(error) (Message, ErrorAction)) Option {
	return func(o *options) {
		o.onServiceError = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
