package selector

import (
	"reflect"
	"sort"
	"testing"
)

func sorted(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}

func TestExpandLiteral(t *testing.T) {
	pop := []string{"door-01", "door-02", "window"}
	got, kind, err := Expand("door-01", pop, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindLiteral {
		t.Fatalf("expected KindLiteral, got %v", kind)
	}
	if !reflect.DeepEqual(got, []string{"door-01"}) {
		t.Fatalf("got %v", got)
	}
}

func TestExpandBareStarBypassesCap(t *testing.T) {
	pop := []string{"a", "b", "c", "d", "e"}
	got, kind, err := Expand("*", pop, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindBareStar {
		t.Fatalf("expected KindBareStar, got %v", kind)
	}
	if len(got) != len(pop) {
		t.Fatalf("bare * must enumerate the full population even over cap, got %v", got)
	}
}

func TestExpandSuffixStarMatchesWholePartsAndBareParent(t *testing.T) {
	pop := []string{"door", "door-01", "door-01-left", "doorway"}
	got, _, err := Expand("door-*", pop, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"door", "door-01", "door-01-left"}
	if !reflect.DeepEqual(sorted(got), sorted(want)) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandQuestionMarkMatchesExactlyOnePart(t *testing.T) {
	pop := []string{"door-01", "door-01-left", "door"}
	got, _, err := Expand("door-?", pop, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"door-01"}
	if !reflect.DeepEqual(sorted(got), want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandBraceList(t *testing.T) {
	pop := []string{"red", "green", "blue", "yellow"}
	got, kind, err := Expand("{red,blue}", pop, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindGeneral {
		t.Fatalf("expected KindGeneral, got %v", kind)
	}
	if !reflect.DeepEqual(sorted(got), []string{"blue", "red"}) {
		t.Fatalf("got %v", got)
	}
}

func TestExpandBraceRangeZeroPadding(t *testing.T) {
	pop := []string{"door-01", "door-02", "door-03", "door-10"}
	got, _, err := Expand("door-{01..03}", pop, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"door-01", "door-02", "door-03"}
	if !reflect.DeepEqual(sorted(got), want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandRangeMismatchedWidthUsesWider(t *testing.T) {
	got, err := expandBraceBody("1..03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"01", "02", "03"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandZeroMatchesIsNoOpNotError(t *testing.T) {
	got, _, err := Expand("nonexistent-*", []string{"door-01"}, 10)
	if err != nil {
		t.Fatalf("zero matches should not be an error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero matches, got %v", got)
	}
}

func TestExpandOverCapDropsWholeCommand(t *testing.T) {
	pop := []string{"a-1", "a-2", "a-3"}
	_, _, err := Expand("a-{1,2,3}", pop, 2)
	if err == nil {
		t.Fatalf("expected cap-exceeded error")
	}
}

func TestExpandIdempotentUnderDuplicateExpansion(t *testing.T) {
	pop := []string{"door-01"}
	got, _, err := Expand("{door-01,door-01}", pop, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"door-01"}) {
		t.Fatalf("duplicate expansion should collapse to one match, got %v", got)
	}
}

func TestValidateForCreateRejectsBareWildcards(t *testing.T) {
	if err := ValidateForCreate("door-*", 1000); err == nil {
		t.Fatalf("expected error for bare * in create command")
	}
	if err := ValidateForCreate("door-?", 1000); err == nil {
		t.Fatalf("expected error for bare ? in create command")
	}
	if err := ValidateForCreate("door-{01..03}", 1000); err != nil {
		t.Fatalf("brace range should be valid in create command: %v", err)
	}
	if err := ValidateForCreate("door-01", 1000); err != nil {
		t.Fatalf("literal should be valid in create command: %v", err)
	}
}

func TestExpandCreateOverCapIsError(t *testing.T) {
	if _, err := ExpandCreate("door-{1..11}", 10); err == nil {
		t.Fatalf("expected cap-exceeded error for an 11-wide create expansion")
	}
	got, err := ExpandCreate("door-{1..10}", 10)
	if err != nil {
		t.Fatalf("expansion at the cap should succeed: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 ids, got %d", len(got))
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"door-01":       KindLiteral,
		"*":             KindBareStar,
		"door-*":        KindGeneral,
		"door-?":        KindGeneral,
		"door-{01..03}": KindGeneral,
	}
	for sel, want := range cases {
		if got := Classify(sel); got != want {
			t.Errorf("Classify(%q) = %v, want %v", sel, got, want)
		}
	}
}
