package wire

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// SplitArgs splits a frame payload (with the CR LF terminator already
// stripped by the Framer) into a command name and its HT-separated
// arguments, per §4.2.
func SplitArgs(payload []byte) (name string, args []string) {
	parts := strings.Split(string(payload), string(rune(ht)))
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// Field returns the raw argument at index i and whether it was present on
// the wire at all. i is omitted (absent, false) when the command simply
// didn't supply that many arguments.
func Field(args []string, i int) (string, bool) {
	if i < 0 || i >= len(args) {
		return "", false
	}
	return args[i], true
}

// OptionalNonString implements the §4.2/§8 optional-parameter mapping for
// every type except zstring: omitted is absent; present-but-empty is also
// absent (there is no valid empty encoding of a float, vec, color, id,
// enum, or token).
func OptionalNonString(args []string, i int) (string, bool) {
	v, present := Field(args, i)
	if !present || v == "" {
		return "", false
	}
	return v, true
}

// OptionalZString implements optional-parameter mapping for a zstring
// field: omitted is absent, but present-but-empty is the empty string,
// not absent.
func OptionalZString(args []string, i int) (string, bool) {
	return Field(args, i)
}

var floatPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// ParseFloat parses a HackVR float literal: no NaN, no infinities, no
// exponent form, no leading '+'.
func ParseFloat(s string) (float64, error) {
	if !floatPattern.MatchString(s) {
		return 0, fmt.Errorf("wire: invalid float %q", s)
	}
	return strconv.ParseFloat(s, 64)
}

// formatFloat renders a float in canonical HackVR form: no trailing zeros
// beyond what's needed, no exponent, no trailing bare '.'.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	return s
}

// ParseVec2 parses `(x y)`, with optional spaces after '(' and before ')'
// and at least one space between components.
func ParseVec2(s string) (Vec2, error) {
	fields, err := parseVecFields(s, 2)
	if err != nil {
		return Vec2{}, err
	}
	return Vec2{X: fields[0], Y: fields[1]}, nil
}

// ParseVec3 parses `(x y z)` with the same grammar as ParseVec2.
func ParseVec3(s string) (Vec3, error) {
	fields, err := parseVecFields(s, 3)
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{X: fields[0], Y: fields[1], Z: fields[2]}, nil
}

func parseVecFields(s string, n int) ([]float64, error) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("wire: invalid vector %q", s)
	}
	inner := s[1 : len(s)-1]
	// HT is not whitespace inside a parameter; only ASCII space separates
	// components, and any amount of it may pad the parens or separate
	// components (at least one is required between components).
	inner = strings.Trim(inner, " ")
	if inner == "" {
		return nil, fmt.Errorf("wire: invalid vector %q", s)
	}
	parts := strings.Fields(inner)
	if len(parts) != n {
		return nil, fmt.Errorf("wire: vector %q wants %d components, got %d", s, n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := ParseFloat(p)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ParseColor parses a `#RRGGBB` color, case-insensitively.
func ParseColor(s string) (Color, error) {
	if !colorPattern.MatchString(s) {
		return Color{}, fmt.Errorf("wire: invalid color %q", s)
	}
	b, err := hex.DecodeString(s[1:])
	if err != nil {
		return Color{}, fmt.Errorf("wire: invalid color %q", s)
	}
	return Color{R: b[0], G: b[1], B: b[2]}, nil
}

// ParseBytesN parses a `bytes[n]` argument: exactly 2n hex chars, either
// case.
func ParseBytesN(s string, n int) ([]byte, error) {
	if len(s) != 2*n {
		return nil, fmt.Errorf("wire: bytes[%d] wants %d hex chars, got %d", n, 2*n, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("wire: invalid bytes[%d] %q: %w", n, s, err)
	}
	return b, nil
}

// FormatBytesN renders b as canonical (lowercase) hex. The canonical form
// is what must be used as signing input (§4.6).
func FormatBytesN(b []byte) string {
	return hex.EncodeToString(b)
}

// ParseUserID validates a `userid`: UTF-8, at most 127 code points, no LF,
// no leading/trailing Unicode White_Space.
func ParseUserID(s string) (string, error) {
	if strings.ContainsRune(s, '\n') {
		return "", fmt.Errorf("wire: userid contains LF")
	}
	if n := len([]rune(s)); n > 127 {
		return "", fmt.Errorf("wire: userid exceeds 127 code points")
	}
	if s != strings.TrimSpace(s) {
		return "", fmt.Errorf("wire: userid has leading/trailing whitespace")
	}
	if s == "" {
		return "", fmt.Errorf("wire: empty userid")
	}
	return s, nil
}

// AnonymousUser is the reserved always-valid userid.
const AnonymousUser = "$anonymous"

// ParseURI validates an absolute RFC-3986 URI and rejects LF, which the
// framer otherwise allows as literal content (§4.2 carves out `uri` and
// `userid` as exceptions).
func ParseURI(s string) (string, error) {
	if strings.ContainsRune(s, '\n') {
		return "", fmt.Errorf("wire: uri contains LF")
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("wire: invalid uri %q: %w", s, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("wire: uri %q is not absolute", s)
	}
	return s, nil
}

// SessionTokenLen is the decoded length of a session token in bytes.
const SessionTokenLen = 32

// ParseSessionToken decodes a base64url-without-padding session token,
// validating it decodes to exactly 32 bytes.
func ParseSessionToken(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("wire: invalid session token %q: %w", s, err)
	}
	if len(b) != SessionTokenLen {
		return nil, fmt.Errorf("wire: session token decodes to %d bytes, want %d", len(b), SessionTokenLen)
	}
	return b, nil
}

// FormatSessionToken encodes decoded token bytes back to wire form.
func FormatSessionToken(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
