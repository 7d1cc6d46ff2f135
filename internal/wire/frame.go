package wire

import (
	"fmt"
	"strings"
)

// BuildFrame assembles an outbound frame: name, HT-separated args, and the
// CR LF terminator. It validates that no argument contains a forbidden
// byte (HT or CR — LF is permitted as literal content per §4.1/§4.2) and
// that the assembled frame does not exceed MaxFrameSize.
func BuildFrame(name string, args ...string) ([]byte, error) {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if strings.IndexByte(a, ht) >= 0 || strings.IndexByte(a, cr) >= 0 {
			return nil, fmt.Errorf("wire: argument %q carries a forbidden HT or CR byte", a)
		}
		parts = append(parts, a)
	}
	line := strings.Join(parts, string(rune(ht)))
	frame := append([]byte(line), cr, lf)
	if len(frame) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return frame, nil
}

// OptArg renders an optional argument slot: "" when absent, v otherwise.
// Used when building a frame whose optional trailing parameters are
// omitted by passing "" up to the last present one (§4.2's optional
// mapping in reverse, for emission rather than parsing).
func OptArg(present bool, v string) string {
	if !present {
		return ""
	}
	return v
}
