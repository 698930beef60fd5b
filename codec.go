package lineproto

import (
	"bytes"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Delimiter terminates every frame on the wire.
const Delimiter byte = '\n'

// Errors returned by the codec.
var (
	// ErrMalformedFrame is returned when a delimited frame is not valid UTF-8.
	// The frame bytes are consumed; the stream cannot be trusted afterwards.
	ErrMalformedFrame = errors.New("malformed frame: invalid UTF-8")
	// ErrFrameTooLarge is returned when the pending bytes of a frame exceed
	// the configured maximum without a delimiter.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Codec is the interface for frame encoding and decoding.
//
// Decode works on a buffer that accumulates bytes read from the stream.
// It returns ok == false with a nil error when the buffer does not yet hold
// a complete frame; the caller should read more bytes and call Decode again.
// A Codec may keep state between calls, so each connection needs its own.
type Codec interface {
	// Decode removes one complete frame from the front of buf.
	Decode(buf *bytes.Buffer) (msg Message, ok bool, err error)
	// Encode appends the wire form of msg to buf.
	Encode(msg Message, buf *bytes.Buffer) error
}

// LineCodec frames messages with a trailing newline.
type LineCodec struct {
	maxLength int
	// scanned counts the leading unconsumed bytes already known to hold no
	// delimiter, so a long pending line is scanned only once.
	scanned int
}

// NewLineCodec returns a LineCodec. A maxLength of zero or less means
// frames are bounded only by available memory.
func NewLineCodec(maxLength int) *LineCodec {
	return &LineCodec{maxLength: maxLength}
}

// Decode implements Codec.
func (c *LineCodec) Decode(buf *bytes.Buffer) (Message, bool, error) {
	pending := buf.Bytes()
	if c.scanned > len(pending) {
		// the buffer was drained or reset behind our back
		c.scanned = 0
	}

	i := bytes.IndexByte(pending[c.scanned:], Delimiter)
	if i < 0 {
		c.scanned = len(pending)
		if c.maxLength > 0 && len(pending) > c.maxLength {
			return "", false, errors.Wrapf(ErrFrameTooLarge, "%d bytes pending, limit %d", len(pending), c.maxLength)
		}
		return "", false, nil
	}
	i += c.scanned
	c.scanned = 0

	if c.maxLength > 0 && i > c.maxLength {
		buf.Next(i + 1)
		return "", false, errors.Wrapf(ErrFrameTooLarge, "frame of %d bytes, limit %d", i, c.maxLength)
	}

	line := buf.Next(i)
	valid := utf8.Valid(line)
	msg := Message(line)
	buf.Next(1)

	if !valid {
		return "", false, errors.Wrapf(ErrMalformedFrame, "frame of %d bytes", i)
	}

	return msg, true, nil
}

// Encode implements Codec.
func (c *LineCodec) Encode(msg Message, buf *bytes.Buffer) error {
	buf.Grow(len(msg) + 1)
	buf.WriteString(string(msg))
	buf.WriteByte(Delimiter)
	return nil
}
