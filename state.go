package lineproto

// State is the position of a connection pipeline in its request/response cycle.
type State int32

const (
	// AwaitingRequest waits for the next complete frame.
	AwaitingRequest State = iota
	// Processing runs the Service on the decoded request.
	Processing
	// WritingResponse hands the response to the transport.
	WritingResponse
	// Closed is terminal: the stream ended cleanly or the connection was closed locally.
	Closed
	// Failed is terminal: a decode, I/O or service error ended the connection.
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingRequest:
		return "awaiting_request"
	case Processing:
		return "processing"
	case WritingResponse:
		return "writing_response"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Closed or Failed.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}
