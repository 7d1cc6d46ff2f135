// Package wire implements the HackVR byte-stream framing and typed
// argument codec described in §4.1/§4.2/§6 of the protocol: splitting a
// byte stream into CRLF-terminated frames, and parsing/formatting the
// typed arguments carried inside them.
//
// The framer is a push-parser over an io.Reader: it never assumes a
// single read delivers a full line and tolerates arbitrary partial reads,
// the way internal/ipc.Conn tolerates partial socket reads in the agent
// this package is adapted from.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/hackvr/hackvr-core/internal/logging"
)

var log = logging.L("wire")

// MaxFrameSize is the maximum size of a frame, including its CR LF
// terminator (§6).
const MaxFrameSize = 1024

const (
	ht byte = 0x09
	lf byte = 0x0A
	cr byte = 0x0D
)

// FramingError reports a recoverable (post-establishment) or fatal
// (pre-establishment) violation of the frame grammar in §4.1. By the time
// it is returned, the Framer has already discarded bytes up to the next
// CR LF boundary and is ready to produce the next frame.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("wire: framing error: %s", e.Reason)
}

// Framer splits an incoming byte stream into CRLF-terminated frames.
type Framer struct {
	r   *bufio.Reader
	buf []byte // bytes accumulated for the frame currently being read
}

// NewFramer wraps r with frame-boundary detection.
func NewFramer(r io.Reader) *Framer {
	return &Framer{
		r:   bufio.NewReader(r),
		buf: make([]byte, 0, MaxFrameSize),
	}
}

// Next reads the next frame. On success it returns the frame payload with
// the CR LF terminator stripped. If a framing violation is encountered,
// Next discards bytes through the next CR LF boundary and returns a
// *FramingError; the caller decides whether that is fatal (still
// establishing) or merely drops the one malformed frame and calls Next
// again (optimistic, post-establishment — see §4.1, §7). Next returns the
// underlying read error (commonly io.EOF) once the stream is exhausted.
func (f *Framer) Next() ([]byte, error) {
	f.buf = f.buf[:0]

	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}

		if b == cr {
			next, err := f.r.ReadByte()
			if err != nil {
				return nil, err
			}
			if next == lf {
				return f.finish()
			}
			// Bare CR: violation. The byte we peeked is not LF (it may be
			// another CR), so push it back into consideration by resyncing
			// from it.
			if ferr := f.resyncFrom(next); ferr != nil {
				return nil, ferr
			}
			return nil, &FramingError{Reason: "bare CR not immediately followed by LF"}
		}

		if isForbiddenControl(b) {
			if err := f.resync(); err != nil {
				return nil, err
			}
			return nil, &FramingError{Reason: fmt.Sprintf("forbidden control byte 0x%02X", b)}
		}

		if len(f.buf)+1 > MaxFrameSize-2 {
			if err := f.resync(); err != nil {
				return nil, err
			}
			return nil, &FramingError{Reason: "frame exceeds 1024 bytes"}
		}

		f.buf = append(f.buf, b)
	}
}

// finish validates the accumulated frame (UTF-8) and returns a copy, since
// f.buf is reused by the next call. The CR LF terminator is already
// consumed from the stream at this point, so an invalid frame needs no
// further resync.
func (f *Framer) finish() ([]byte, error) {
	if !utf8.Valid(f.buf) {
		return nil, &FramingError{Reason: "invalid UTF-8"}
	}
	out := make([]byte, len(f.buf))
	copy(out, f.buf)
	return out, nil
}

// resync discards bytes until (and including) the next CR LF boundary.
func (f *Framer) resync() error {
	b, err := f.r.ReadByte()
	if err != nil {
		return err
	}
	return f.resyncFrom(b)
}

// resyncFrom continues the resync scan starting with a byte already read
// from the stream (used when a lookahead byte turned out not to be part
// of a CR LF boundary).
func (f *Framer) resyncFrom(b byte) error {
	for {
		if b == cr {
			next, err := f.r.ReadByte()
			if err != nil {
				return err
			}
			if next == lf {
				return nil
			}
			b = next
			continue
		}
		var err error
		b, err = f.r.ReadByte()
		if err != nil {
			return err
		}
	}
}

// isForbiddenControl reports whether b is a C0/DEL control byte other
// than HT (argument separator) or LF (allowed as literal content inside a
// parameter). CR is handled separately by the caller since its legality
// depends on what follows it.
func isForbiddenControl(b byte) bool {
	if b == ht || b == lf {
		return false
	}
	return b < 0x20 || b == 0x7F
}

// ErrFrameTooLarge is returned by helpers that validate a frame produced
// outside the streaming Framer (e.g. an assembled outbound frame).
var ErrFrameTooLarge = errors.New("wire: frame exceeds 1024 bytes")
