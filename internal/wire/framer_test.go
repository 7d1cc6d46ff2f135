package wire

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFramerSplitsValidFrames(t *testing.T) {
	input := "hello\tworld\r\nchat\tthere\r\n"
	f := NewFramer(strings.NewReader(input))

	frame, err := f.Next()
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if string(frame) != "hello\tworld" {
		t.Fatalf("got %q", frame)
	}

	frame, err = f.Next()
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if string(frame) != "chat\tthere" {
		t.Fatalf("got %q", frame)
	}

	if _, err := f.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestFramerAllowsLiteralLFInsideFrame(t *testing.T) {
	input := "tell\tline one\nline two\r\n"
	f := NewFramer(strings.NewReader(input))

	frame, err := f.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != "tell\tline one\nline two" {
		t.Fatalf("got %q", frame)
	}
}

func TestFramerRejectsBareCR(t *testing.T) {
	input := "bad\rmiddle\r\ngood\r\n"
	f := NewFramer(strings.NewReader(input))

	_, err := f.Next()
	var ferr *FramingError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FramingError, got %v", err)
	}

	frame, err := f.Next()
	if err != nil {
		t.Fatalf("expected recovery frame, got error: %v", err)
	}
	if string(frame) != "good" {
		t.Fatalf("got %q", frame)
	}
}

func TestFramerRejectsForbiddenControlByte(t *testing.T) {
	input := "bad\x01control\r\ngood\r\n"
	f := NewFramer(strings.NewReader(input))

	_, err := f.Next()
	var ferr *FramingError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FramingError, got %v", err)
	}

	frame, err := f.Next()
	if err != nil {
		t.Fatalf("expected recovery frame, got error: %v", err)
	}
	if string(frame) != "good" {
		t.Fatalf("got %q", frame)
	}
}

func TestFramerAllowsHT(t *testing.T) {
	f := NewFramer(strings.NewReader("a\tb\tc\r\n"))
	frame, err := f.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != "a\tb\tc" {
		t.Fatalf("got %q", frame)
	}
}

func TestFramerRejectsOverlongFrame(t *testing.T) {
	overlong := strings.Repeat("x", MaxFrameSize)
	input := overlong + "\r\ngood\r\n"
	f := NewFramer(strings.NewReader(input))

	_, err := f.Next()
	var ferr *FramingError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FramingError for overlong frame, got %v", err)
	}

	frame, err := f.Next()
	if err != nil {
		t.Fatalf("expected recovery frame, got error: %v", err)
	}
	if string(frame) != "good" {
		t.Fatalf("got %q", frame)
	}
}

func TestFramerRejectsInvalidUTF8(t *testing.T) {
	input := string([]byte{'b', 'a', 'd', 0xff, 0xfe}) + "\r\ngood\r\n"
	f := NewFramer(strings.NewReader(input))

	_, err := f.Next()
	var ferr *FramingError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FramingError for invalid UTF-8, got %v", err)
	}

	frame, err := f.Next()
	if err != nil {
		t.Fatalf("expected recovery frame, got error: %v", err)
	}
	if string(frame) != "good" {
		t.Fatalf("got %q", frame)
	}
}

func TestFramerNeverAcceptsBareLFAsTerminator(t *testing.T) {
	// A frame containing only literal LFs and no CR LF never terminates;
	// the framer must hit EOF rather than splitting on the LF.
	input := "one\ntwo\nthree"
	f := NewFramer(strings.NewReader(input))

	_, err := f.Next()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF since no CR LF boundary exists, got %v", err)
	}
}
