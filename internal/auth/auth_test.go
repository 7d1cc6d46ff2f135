package auth

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/hackvr/hackvr-core/internal/wire"
)

func TestSetUserAnonymousSkipsChallenge(t *testing.T) {
	m := NewMachine()
	if err := m.BeginRequestUser(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	anon, nonce, err := m.SetUser(wire.AnonymousUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !anon || nonce != nil {
		t.Fatalf("expected anonymous acceptance with no challenge, got anon=%v nonce=%v", anon, nonce)
	}
	if m.State() != Idle {
		t.Fatalf("expected Idle after anonymous set-user, got %s", m.State())
	}
	if m.User() != wire.AnonymousUser {
		t.Fatalf("expected effective user $anonymous, got %s", m.User())
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	m := NewMachine()
	if err := m.BeginRequestUser(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, nonce, err := m.SetUser("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nonce) != NonceSize {
		t.Fatalf("expected %d-byte nonce, got %d", NonceSize, len(nonce))
	}

	sig := ed25519.Sign(priv, SigningMessage("alice", nonce))
	ok, reason := m.Authenticate(time.Now(), "alice", sig, pub)
	if !ok {
		t.Fatalf("expected success, got rejection: %s", reason)
	}
	m.Accept("alice")
	if m.User() != "alice" {
		t.Fatalf("expected effective user alice, got %s", m.User())
	}
	if m.State() != Idle {
		t.Fatalf("expected Idle after accept, got %s", m.State())
	}
}

func TestAuthenticateRejectsBitFlippedSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	m := NewMachine()
	m.BeginRequestUser()
	_, nonce, _ := m.SetUser("alice")

	sig := ed25519.Sign(priv, SigningMessage("alice", nonce))
	sig[0] ^= 0xFF

	ok, _ := m.Authenticate(time.Now(), "alice", sig, pub)
	if ok {
		t.Fatalf("expected rejection for bit-flipped signature")
	}
}

func TestAuthenticateRejectsExpiredNonce(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	m := NewMachine()
	m.BeginRequestUser()
	_, nonce, _ := m.SetUser("alice")

	sig := ed25519.Sign(priv, SigningMessage("alice", nonce))
	future := time.Now().Add(NonceTTL + time.Second)
	ok, _ := m.Authenticate(future, "alice", sig, pub)
	if ok {
		t.Fatalf("expected rejection for expired nonce")
	}
}

func TestNonceIsSingleUse(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	m := NewMachine()
	m.BeginRequestUser()
	_, nonce, _ := m.SetUser("alice")
	sig := ed25519.Sign(priv, SigningMessage("alice", nonce))

	ok, _ := m.Authenticate(time.Now(), "alice", sig, pub)
	if !ok {
		t.Fatalf("expected first authenticate to succeed")
	}
	m.Accept("alice")

	// Replaying the same signature after the cycle completed must fail:
	// the machine is no longer awaiting authentication for this nonce.
	ok, _ = m.Authenticate(time.Now(), "alice", sig, pub)
	if ok {
		t.Fatalf("expected replay to be rejected")
	}
}

func TestRejectReturnsToAnonymous(t *testing.T) {
	m := NewMachine()
	m.BeginRequestUser()
	m.SetUser("alice")
	m.Reject()
	if m.User() != wire.AnonymousUser {
		t.Fatalf("expected $anonymous after reject, got %s", m.User())
	}
	if m.State() != Idle {
		t.Fatalf("expected Idle after reject, got %s", m.State())
	}
}
