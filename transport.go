package lineproto

import (
	"bytes"
	"io"
	"time"

	"github.com/pkg/errors"
)

// defaultReadBufferSize is the number of bytes requested from the stream per read.
const defaultReadBufferSize = 4096

// deadliner is implemented by streams that support I/O deadlines, such as net.Conn.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Transport turns a raw byte stream into a stream of messages using a Codec.
// It owns its read and write buffers and is not safe for concurrent use.
type Transport struct {
	rw    io.ReadWriter
	codec Codec

	in    bytes.Buffer
	out   bytes.Buffer
	chunk []byte

	idleTimeout time.Duration
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// TransportReadSizeOption sets how many bytes are requested from the stream per read.
func TransportReadSizeOption(size int) TransportOption {
	return func(t *Transport) {
		if size > 0 {
			t.chunk = make([]byte, size)
		}
	}
}

// TransportIdleTimeoutOption sets a deadline of now+timeout on every read and
// write when the stream supports deadlines. Zero disables deadlines.
func TransportIdleTimeoutOption(timeout time.Duration) TransportOption {
	return func(t *Transport) {
		t.idleTimeout = timeout
	}
}

// NewTransport binds codec to rw.
func NewTransport(rw io.ReadWriter, codec Codec, opts ...TransportOption) *Transport {
	t := &Transport{
		rw:    rw,
		codec: codec,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.chunk == nil {
		t.chunk = make([]byte, defaultReadBufferSize)
	}

	return t
}

// Receive blocks until a complete message is decoded, the stream ends or an
// error occurs.
//
// Returns:
//   - io.EOF: the stream ended cleanly on a frame boundary
//   - io.ErrUnexpectedEOF (wrapped): the stream ended inside a frame
//   - ErrMalformedFrame or ErrFrameTooLarge (wrapped): the codec rejected the input
//   - any read error from the underlying stream
func (t *Transport) Receive() (Message, error) {
	for {
		msg, ok, err := t.codec.Decode(&t.in)
		if err != nil {
			return "", err
		}
		if ok {
			return msg, nil
		}

		if t.idleTimeout > 0 {
			if d, isDeadliner := t.rw.(deadliner); isDeadliner {
				_ = d.SetReadDeadline(time.Now().Add(t.idleTimeout))
			}
		}

		n, err := t.rw.Read(t.chunk)
		if n > 0 {
			t.in.Write(t.chunk[:n])
		}

		if err == nil {
			continue
		}

		if err == io.EOF {
			if n > 0 {
				// the final chunk may still complete a frame
				continue
			}
			if t.in.Len() == 0 {
				return "", io.EOF
			}
			return "", errors.Wrapf(io.ErrUnexpectedEOF, "stream ended with %d undelimited bytes", t.in.Len())
		}

		return "", errors.Wrap(err, "read")
	}
}

// Send encodes msg and writes it to the stream, blocking until the stream
// accepts all bytes or fails.
func (t *Transport) Send(msg Message) error {
	t.out.Reset()
	if err := t.codec.Encode(msg, &t.out); err != nil {
		return errors.WithMessage(err, "encode")
	}

	if t.idleTimeout > 0 {
		if d, isDeadliner := t.rw.(deadliner); isDeadliner {
			_ = d.SetWriteDeadline(time.Now().Add(t.idleTimeout))
		}
	}

	if _, err := t.rw.Write(t.out.Bytes()); err != nil {
		return errors.Wrap(err, "write")
	}

	return nil
}

// Buffered returns the number of received bytes not yet consumed by a frame.
func (t *Transport) Buffered() int {
	return t.in.Len()
}
