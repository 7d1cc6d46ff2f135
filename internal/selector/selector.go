// Package selector implements the HackVR selector engine (§4.4): expanding
// `*`, `?`, `{a,b,c}`, and `{N..M}` tokens in a selector parameter against
// the current population of an identifier or tag space.
//
// Brace groups (`{a,b,c}` and `{N..M}`) are expanded by this package into
// a set of concrete glob patterns; each pattern is then matched against
// the population using github.com/gobwas/glob compiled with `-` as the
// part separator, following the same separator-aware compilation
// gravwell-style tag/path glob matching uses. A bare `*` is translated to
// glob's cross-separator `**` (matches zero or more whole parts); a `?` is
// translated to glob's single-segment `*` (matches exactly one whole
// part, since it is bounded by the surrounding literal dashes).
package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/hackvr/hackvr-core/internal/logging"
)

var log = logging.L("selector")

// Kind classifies an expansion for the soft-cap and create-family rules.
type Kind int

const (
	// KindLiteral is a plain identifier with no selector metacharacters.
	KindLiteral Kind = iota
	// KindBareStar is exactly "*", which always expands fully against the
	// population regardless of the soft cap (§4.4, §9's fast-path note).
	KindBareStar
	// KindGeneral is any other selector form (?, {..}, {N..M}, or * used
	// as part of a larger pattern such as "foo-*"), subject to the cap.
	KindGeneral
)

// ExpandError reports a selector-expansion failure; per §4.10/§7 these
// make the whole command a no-op (zero matches) or a dropped command
// error (cap exceeded, invalid brace form), never a partial application.
type ExpandError struct {
	Reason string
}

func (e *ExpandError) Error() string {
	return fmt.Sprintf("selector: %s", e.Reason)
}

// Classify reports the Kind of selector without touching a population,
// used by the dispatcher to enforce the create-family restriction: create
// commands may only use {…} expansion forms, never bare * or ?.
func Classify(sel string) Kind {
	if sel == "*" {
		return KindBareStar
	}
	if strings.ContainsAny(sel, "*?") {
		return KindGeneral
	}
	if strings.Contains(sel, "{") {
		return KindGeneral
	}
	return KindLiteral
}

// ValidateForCreate rejects bare * or ? and over-cap expansion in a
// create-family command's selector position (§4.4, §6). {…} forms are
// fine; a literal identifier is fine (it is simply a non-selector
// create).
func ValidateForCreate(sel string, capLimit int) error {
	_, err := ExpandCreate(sel, capLimit)
	return err
}

// ExpandCreate resolves a create-family command's selector argument into
// the literal ids it names. Unlike Expand, this never matches against an
// existing population: a create's selector names ids that do not exist
// yet, so {…}/{N..M} groups are expanded directly into concrete
// identifiers and a bare * or ? is rejected rather than treated as a
// zero-match no-op. Creates have no bare-* fast-path to exempt, so the
// §6 cap applies to every create expansion; exceeding it drops the whole
// command with no partial application.
func ExpandCreate(sel string, capLimit int) ([]string, error) {
	expanded, err := braceExpand(sel)
	if err != nil {
		return nil, err
	}
	if len(expanded) > capLimit {
		return nil, &ExpandError{Reason: fmt.Sprintf("selector %q expands to %d ids, exceeds create cap %d", sel, len(expanded), capLimit)}
	}
	for _, pattern := range expanded {
		if strings.ContainsAny(pattern, "*?") {
			return nil, &ExpandError{Reason: fmt.Sprintf("selector %q uses */? in a create command", sel)}
		}
	}
	return expanded, nil
}

// Expand resolves sel against population (which callers populate with
// whatever identifier or tag space is relevant, including any reserved
// $-identifiers the caller wants matchable). capLimit bounds every expansion
// except a bare "*", which always expands in full. The result is
// deduplicated; order is unspecified, matching §4.4's "expansion order is
// unspecified; commands must behave order-independently."
func Expand(sel string, population []string, capLimit int) ([]string, Kind, error) {
	kind := Classify(sel)

	if kind == KindBareStar {
		return append([]string(nil), population...), kind, nil
	}

	patterns, err := braceExpand(sel)
	if err != nil {
		return nil, kind, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		matches, err := matchOne(pattern, population)
		if err != nil {
			return nil, kind, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	if kind == KindGeneral && len(out) > capLimit {
		return nil, kind, &ExpandError{Reason: fmt.Sprintf("selector %q expands to %d matches, exceeds cap %d", sel, len(out), capLimit)}
	}

	return out, kind, nil
}

// matchOne compiles one concrete (brace-free) pattern and matches it
// against population, handling the "foo-*" also matches bare "foo"
// exception.
func matchOne(pattern string, population []string) ([]string, error) {
	if pattern == "" {
		return nil, &ExpandError{Reason: "empty selector"}
	}

	if !strings.ContainsAny(pattern, "*?") {
		for _, id := range population {
			if id == pattern {
				return []string{id}, nil
			}
		}
		return nil, nil
	}

	g, err := compile(pattern)
	if err != nil {
		return nil, &ExpandError{Reason: err.Error()}
	}

	// "foo-*" also matches bare "foo" (§4.4's explicit exception to plain
	// concatenation semantics).
	var bareParent string
	var hasBareParent bool
	if s, ok := strings.CutSuffix(pattern, "-*"); ok {
		bareParent, hasBareParent = s, true
	}

	var out []string
	for _, id := range population {
		if g.Match(id) || (hasBareParent && id == bareParent) {
			out = append(out, id)
		}
	}
	return out, nil
}

// compile translates the HackVR selector grammar's `*` (zero or more
// whole parts) and `?` (exactly one whole part) into glob syntax compiled
// with `-` as the part separator: `*` becomes glob's cross-separator
// `**`, `?` becomes glob's single-segment `*`.
func compile(pattern string) (glob.Glob, error) {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString("**")
		case '?':
			b.WriteRune('*')
		default:
			b.WriteRune(r)
		}
	}
	return glob.Compile(b.String(), '-')
}

// braceExpand expands every `{a,b,c}` and `{N..M}` group in sel into the
// Cartesian product of concrete (but possibly still */?-bearing) selector
// strings. A selector with no brace groups expands to itself.
func braceExpand(sel string) ([]string, error) {
	start := strings.IndexByte(sel, '{')
	if start < 0 {
		return []string{sel}, nil
	}
	end := strings.IndexByte(sel[start:], '}')
	if end < 0 {
		return nil, &ExpandError{Reason: fmt.Sprintf("unterminated brace group in %q", sel)}
	}
	end += start

	prefix, body, suffix := sel[:start], sel[start+1:end], sel[end+1:]

	variants, err := expandBraceBody(body)
	if err != nil {
		return nil, err
	}

	// The suffix may itself contain further brace groups; expand it
	// independently and take the Cartesian product with variants.
	suffixExpansions, err := braceExpand(suffix)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, v := range variants {
		for _, s := range suffixExpansions {
			out = append(out, prefix+v+s)
		}
	}
	return out, nil
}

// expandBraceBody expands the contents of a single `{...}` group: either
// a `{N..M}` integer range or a `{a,b,c}` literal list.
func expandBraceBody(body string) ([]string, error) {
	if lo, hi, loWidth, hiWidth, ok := parseRange(body); ok {
		if lo > hi {
			return nil, &ExpandError{Reason: fmt.Sprintf("invalid range {%s}: low > high", body)}
		}
		width := 0
		if loWidth >= hiWidth {
			width = loWidth
		} else {
			width = hiWidth
		}
		var out []string
		for n := lo; n <= hi; n++ {
			out = append(out, padInt(n, width))
		}
		return out, nil
	}

	parts := strings.Split(body, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, &ExpandError{Reason: fmt.Sprintf("empty alternative in brace group {%s}", body)}
		}
		out = append(out, p)
	}
	return out, nil
}

// parseRange recognizes "N..M" and reports the zero-padding width implied
// by each endpoint's leading zeros, per §4.4's zero-padding rule.
func parseRange(body string) (lo, hi, loWidth, hiWidth int, ok bool) {
	idx := strings.Index(body, "..")
	if idx < 0 {
		return 0, 0, 0, 0, false
	}
	loStr, hiStr := body[:idx], body[idx+2:]
	if loStr == "" || hiStr == "" {
		return 0, 0, 0, 0, false
	}
	loN, err := strconv.Atoi(loStr)
	if err != nil {
		return 0, 0, 0, 0, false
	}
	hiN, err := strconv.Atoi(hiStr)
	if err != nil {
		return 0, 0, 0, 0, false
	}
	return loN, hiN, leadingZeroWidth(loStr), leadingZeroWidth(hiStr), true
}

// leadingZeroWidth returns the field's digit width when it begins with a
// '0' (i.e. was authored zero-padded), else 0.
func leadingZeroWidth(s string) int {
	if len(s) > 1 && s[0] == '0' {
		return len(s)
	}
	return 0
}

func padInt(n, width int) string {
	s := strconv.Itoa(n)
	if width > len(s) {
		return strings.Repeat("0", width-len(s)) + s
	}
	return s
}
