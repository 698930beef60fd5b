package lineproto

// Message is the text carried by one frame of the line protocol.
// A Message never contains the newline delimiter; the codec strips it on
// decode and appends it on encode.
type Message string

// Length returns the length of the message in bytes.
func (m Message) Length() int {
	return len(m)
}

// Body returns the raw message bytes.
func (m Message) Body() []byte {
	return []byte(m)
}

// String returns the message text.
func (m Message) String() string {
	return string(m)
}
