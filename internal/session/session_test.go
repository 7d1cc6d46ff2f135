package session

import (
	"testing"
	"time"
)

func mustToken(b byte) Token {
	var t Token
	for i := range t {
		t[i] = b
	}
	return t
}

func TestAnnounceThenResume(t *testing.T) {
	r := NewRegistry(time.Minute)
	tok := mustToken(1)
	origin := Origin{Scheme: "hackvr", Host: "example.com", Port: "7600", Path: "/world"}
	now := time.Now()

	r.Announce(tok, "conn-1", origin, now)

	got, valid := r.Resume(tok, now.Add(time.Second))
	if !valid {
		t.Fatalf("expected token valid")
	}
	if got != origin {
		t.Fatalf("got origin %v, want %v", got, origin)
	}
}

func TestResumeRejectsExpired(t *testing.T) {
	r := NewRegistry(time.Minute)
	tok := mustToken(2)
	now := time.Now()
	r.Announce(tok, "conn-1", Origin{}, now)

	_, valid := r.Resume(tok, now.Add(2*time.Minute))
	if valid {
		t.Fatalf("expected expired token to be invalid")
	}
}

func TestRevokeIsWorldWide(t *testing.T) {
	r := NewRegistry(time.Minute)
	tok := mustToken(3)
	now := time.Now()
	r.Announce(tok, "conn-1", Origin{}, now)
	r.Revoke(tok)

	_, valid := r.Resume(tok, now)
	if valid {
		t.Fatalf("expected revoked token to be invalid")
	}
}

func TestReAnnounceDifferentTokenInvalidatesPrevious(t *testing.T) {
	r := NewRegistry(time.Minute)
	tokA := mustToken(4)
	tokB := mustToken(5)
	now := time.Now()

	r.Announce(tokA, "conn-1", Origin{}, now)
	r.Announce(tokB, "conn-1", Origin{}, now)

	if _, valid := r.Resume(tokA, now); valid {
		t.Fatalf("expected previous token on the same connection to be invalidated")
	}
	if _, valid := r.Resume(tokB, now); !valid {
		t.Fatalf("expected new token to be valid")
	}
}

func TestForgetRemovesConnectionTokens(t *testing.T) {
	r := NewRegistry(time.Minute)
	tok := mustToken(6)
	now := time.Now()
	r.Announce(tok, "conn-1", Origin{}, now)
	r.Forget("conn-1")

	if _, valid := r.Resume(tok, now); valid {
		t.Fatalf("expected token to be gone after Forget")
	}
}

func TestCanonicalizeRawStripsFragmentAndDefaultsPort(t *testing.T) {
	o, err := CanonicalizeRaw("hackvr://Example.COM/world?x=1#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Host != "example.com" {
		t.Fatalf("expected lowercased host, got %q", o.Host)
	}
	if o.Port != "7600" {
		t.Fatalf("expected default port 7600, got %q", o.Port)
	}
	if o.Query != "x=1" {
		t.Fatalf("expected query preserved, got %q", o.Query)
	}
}

func TestCanonicalizeHTTPParsesHostHeaderPort(t *testing.T) {
	o, err := CanonicalizeHTTP("https+hackvr", "Example.com:8443", "/world?x=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Host != "example.com" || o.Port != "8443" || o.Path != "/world" || o.Query != "x=1" {
		t.Fatalf("got %+v", o)
	}
}
