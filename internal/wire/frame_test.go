package wire

import (
	"bytes"
	"testing"
)

func TestBuildFrameRoundTrip(t *testing.T) {
	frame, err := BuildFrame("chat", "hello", "world")
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	want := "chat\thello\tworld\r\n"
	if string(frame) != want {
		t.Fatalf("got %q, want %q", frame, want)
	}

	f := NewFramer(bytes.NewReader(frame))
	got, err := f.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	name, args := SplitArgs(got)
	if name != "chat" || len(args) != 2 || args[0] != "hello" || args[1] != "world" {
		t.Fatalf("round-trip mismatch: name=%q args=%v", name, args)
	}
}

func TestBuildFrameRejectsForbiddenBytes(t *testing.T) {
	if _, err := BuildFrame("chat", "has\ttab"); err == nil {
		t.Fatal("HT inside an argument must be rejected")
	}
	if _, err := BuildFrame("chat", "has\rcr"); err == nil {
		t.Fatal("CR inside an argument must be rejected")
	}
}

func TestBuildFrameRejectsOverlong(t *testing.T) {
	big := make([]byte, MaxFrameSize)
	for i := range big {
		big[i] = 'a'
	}
	if _, err := BuildFrame("chat", string(big)); err == nil {
		t.Fatal("overlong frame must be rejected")
	}
}
