package lineproto

import (
	"bytes"
	"errors"
	"testing"
)

func TestLineCodec_RoundTrip(t *testing.T) {
	cases := []Message{"", "ping", "hello world", "héllo wörld", "日本語", "tab\tseparated", "trailing space "}

	for _, want := range cases {
		codec := NewLineCodec(0)
		var buf bytes.Buffer

		if err := codec.Encode(want, &buf); err != nil {
			t.Fatalf("Encode(%q) failed: %v", want, err)
		}

		got, ok, err := codec.Decode(&buf)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", want, err)
		}
		if !ok {
			t.Fatalf("Decode(%q) reported incomplete frame", want)
		}
		if got != want {
			t.Errorf("round trip = %q, want %q", got, want)
		}
		if buf.Len() != 0 {
			t.Errorf("buffer has %d bytes left after %q", buf.Len(), want)
		}
	}
}

func TestLineCodec_IncrementalDelivery(t *testing.T) {
	codec := NewLineCodec(0)
	var wire bytes.Buffer
	_ = codec.Encode("hello", &wire)
	encoded := wire.Bytes()

	var buf bytes.Buffer
	for i, b := range encoded {
		buf.WriteByte(b)

		msg, ok, err := codec.Decode(&buf)
		if err != nil {
			t.Fatalf("byte %d: Decode failed: %v", i, err)
		}

		last := i == len(encoded)-1
		if ok != last {
			t.Fatalf("byte %d: ok = %v, want %v", i, ok, last)
		}
		if last && msg != "hello" {
			t.Errorf("msg = %q, want %q", msg, "hello")
		}
	}
}

func TestLineCodec_AnyChunking(t *testing.T) {
	input := []byte("a\nbb\n\nccc\n")
	want := []Message{"a", "bb", "", "ccc"}

	for size := 1; size <= len(input); size++ {
		codec := NewLineCodec(0)
		var buf bytes.Buffer
		var got []Message

		for off := 0; off < len(input); off += size {
			end := off + size
			if end > len(input) {
				end = len(input)
			}
			buf.Write(input[off:end])

			for {
				msg, ok, err := codec.Decode(&buf)
				if err != nil {
					t.Fatalf("chunk size %d: Decode failed: %v", size, err)
				}
				if !ok {
					break
				}
				got = append(got, msg)
			}
		}

		if len(got) != len(want) {
			t.Fatalf("chunk size %d: got %d messages %q, want %q", size, len(got), got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk size %d: message %d = %q, want %q", size, i, got[i], want[i])
			}
		}
	}
}

func TestLineCodec_MultipleFramesInOneRead(t *testing.T) {
	codec := NewLineCodec(0)
	buf := bytes.NewBufferString("a\nb\nc\n")

	for _, want := range []Message{"a", "b", "c"} {
		msg, ok, err := codec.Decode(buf)
		if err != nil || !ok {
			t.Fatalf("Decode = (%q, %v, %v), want (%q, true, nil)", msg, ok, err, want)
		}
		if msg != want {
			t.Errorf("msg = %q, want %q", msg, want)
		}
	}

	msg, ok, err := codec.Decode(buf)
	if ok || err != nil {
		t.Errorf("fourth Decode = (%q, %v, %v), want incomplete frame", msg, ok, err)
	}
}

func TestLineCodec_EmptyFrame(t *testing.T) {
	codec := NewLineCodec(0)
	buf := bytes.NewBufferString("\n")

	msg, ok, err := codec.Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !ok {
		t.Fatal("empty frame reported as incomplete")
	}
	if msg != "" {
		t.Errorf("msg = %q, want empty", msg)
	}
}

func TestLineCodec_IncompleteLeavesBuffer(t *testing.T) {
	codec := NewLineCodec(0)
	buf := bytes.NewBufferString("partial")

	for i := 0; i < 3; i++ {
		_, ok, err := codec.Decode(buf)
		if ok || err != nil {
			t.Fatalf("call %d: ok = %v, err = %v, want incomplete", i, ok, err)
		}
	}
	if buf.String() != "partial" {
		t.Errorf("buffer = %q, want %q", buf.String(), "partial")
	}

	buf.WriteString(" line\nnext")
	msg, ok, err := codec.Decode(buf)
	if err != nil || !ok {
		t.Fatalf("Decode = (%q, %v, %v)", msg, ok, err)
	}
	if msg != "partial line" {
		t.Errorf("msg = %q, want %q", msg, "partial line")
	}
	if buf.String() != "next" {
		t.Errorf("remaining = %q, want %q", buf.String(), "next")
	}
}

func TestLineCodec_MalformedUTF8(t *testing.T) {
	codec := NewLineCodec(0)
	buf := bytes.NewBufferString("\xff\xfe\nok\n")

	_, ok, err := codec.Decode(buf)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
	if ok {
		t.Error("ok = true on malformed frame")
	}

	// the bad frame and its delimiter are consumed
	if buf.String() != "ok\n" {
		t.Errorf("remaining = %q, want %q", buf.String(), "ok\n")
	}
}

func TestLineCodec_MalformedNeedsDelimiter(t *testing.T) {
	codec := NewLineCodec(0)
	buf := bytes.NewBufferString("\xff")

	_, ok, err := codec.Decode(buf)
	if ok || err != nil {
		t.Errorf("undelimited bytes: ok = %v, err = %v, want incomplete", ok, err)
	}
}

func TestLineCodec_MaxLength(t *testing.T) {
	t.Run("pending within limit", func(t *testing.T) {
		codec := NewLineCodec(4)
		buf := bytes.NewBufferString("abcd")
		if _, ok, err := codec.Decode(buf); ok || err != nil {
			t.Errorf("ok = %v, err = %v, want incomplete", ok, err)
		}
		buf.WriteString("\n")
		msg, ok, err := codec.Decode(buf)
		if err != nil || !ok || msg != "abcd" {
			t.Errorf("Decode = (%q, %v, %v), want (\"abcd\", true, nil)", msg, ok, err)
		}
	})

	t.Run("pending over limit", func(t *testing.T) {
		codec := NewLineCodec(4)
		buf := bytes.NewBufferString("abcde")
		_, _, err := codec.Decode(buf)
		if !errors.Is(err, ErrFrameTooLarge) {
			t.Errorf("err = %v, want ErrFrameTooLarge", err)
		}
	})

	t.Run("delimited over limit", func(t *testing.T) {
		codec := NewLineCodec(4)
		buf := bytes.NewBufferString("abcdef\nok\n")
		_, _, err := codec.Decode(buf)
		if !errors.Is(err, ErrFrameTooLarge) {
			t.Errorf("err = %v, want ErrFrameTooLarge", err)
		}
		if buf.String() != "ok\n" {
			t.Errorf("remaining = %q, want %q", buf.String(), "ok\n")
		}
	})
}

func TestLineCodec_BufferReset(t *testing.T) {
	codec := NewLineCodec(0)
	buf := bytes.NewBufferString("long pending text")

	if _, ok, _ := codec.Decode(buf); ok {
		t.Fatal("unexpected frame")
	}

	buf.Reset()
	buf.WriteString("x\n")

	msg, ok, err := codec.Decode(buf)
	if err != nil || !ok || msg != "x" {
		t.Errorf("Decode = (%q, %v, %v), want (\"x\", true, nil)", msg, ok, err)
	}
}

func TestLineCodec_Encode(t *testing.T) {
	codec := NewLineCodec(0)
	var buf bytes.Buffer

	_ = codec.Encode("one", &buf)
	_ = codec.Encode("", &buf)
	_ = codec.Encode("two", &buf)

	if buf.String() != "one\n\ntwo\n" {
		t.Errorf("encoded = %q, want %q", buf.String(), "one\n\ntwo\n")
	}
}

func TestMessage(t *testing.T) {
	msg := Message("héllo")

	if msg.Length() != 6 {
		t.Errorf("Length() = %d, want 6", msg.Length())
	}
	if string(msg.Body()) != "héllo" {
		t.Errorf("Body() = %q", msg.Body())
	}
	if msg.String() != "héllo" {
		t.Errorf("String() = %q", msg.String())
	}
}
