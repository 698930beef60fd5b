package lineproto

import "testing"

func TestState_String(t *testing.T) {
	cases := map[State]string{
		AwaitingRequest: "awaiting_request",
		Processing:      "processing",
		WritingResponse: "writing_response",
		Closed:          "closed",
		Failed:          "failed",
		State(42):       "unknown",
	}

	for s, want := range cases {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []State{AwaitingRequest, Processing, WritingResponse} {
		if s.Terminal() {
			t.Errorf("%v reported terminal", s)
		}
	}
	for _, s := range []State{Closed, Failed} {
		if !s.Terminal() {
			t.Errorf("%v not reported terminal", s)
		}
	}
}
