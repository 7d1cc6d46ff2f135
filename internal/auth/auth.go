// Package auth implements the HackVR userid authentication state machine
// (§4.6): the request-user/set-user/request-authentication/authenticate/
// accept-user/reject-user sequence, nonce lifecycle, and Ed25519
// signature verification.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/wire"
)

var log = logging.L("auth")

// State is the auth state machine's position, grounded on the
// string-enum-with-IsTerminal style used elsewhere in the ecosystem for
// small session lifecycles.
type State string

const (
	Idle              State = "IDLE"
	AwaitSetUser      State = "AWAIT_SET_USER"
	AwaitAuthenticate State = "AWAIT_AUTHENTICATE"
)

// IsTerminal reports whether s accepts no further auth-cycle commands
// without the server re-initiating one. Idle is terminal in this sense:
// the cycle has completed (successfully or not) and a new one must begin
// with request-user.
func (s State) IsTerminal() bool {
	return s == Idle
}

// NonceTTL is the lifetime of a request-authentication nonce (§4.6, §5).
const NonceTTL = 60 * time.Second

// NonceSize and SignatureSize are the bytes[N] widths §4.6 specifies.
const (
	NonceSize     = 16
	SignatureSize = 64
)

// Machine is one connection's auth state. It is not safe for concurrent
// use; per §5 a connection is a single-threaded agent.
type Machine struct {
	state      State
	user       string // effective userid; defaults to wire.AnonymousUser
	pendingFor string // user argument to the request-authentication in flight
	nonce      []byte
	issuedAt   time.Time
}

// NewMachine returns a Machine with the effective userid defaulted to
// $anonymous and the state machine Idle.
func NewMachine() *Machine {
	return &Machine{state: Idle, user: wire.AnonymousUser}
}

// State reports the current auth state.
func (m *Machine) State() State { return m.state }

// User reports the connection's current effective userid.
func (m *Machine) User() string { return m.user }

// BeginRequestUser transitions Idle -> AwaitSetUser. Any other starting
// state is a caller bug (the dispatcher must not emit request-user
// outside Idle per §4.6).
func (m *Machine) BeginRequestUser() error {
	if m.state != Idle {
		return fmt.Errorf("auth: request-user sent while not Idle (state=%s)", m.state)
	}
	m.state = AwaitSetUser
	return nil
}

// SetUser processes a viewer `set-user <user>` command. It returns
// (anonymous=true, nonce=nil) for $anonymous, or
// (anonymous=false, nonce) when a challenge must be issued.
func (m *Machine) SetUser(user string) (anonymous bool, nonce []byte, err error) {
	if m.state != AwaitSetUser {
		return false, nil, fmt.Errorf("auth: set-user received outside AwaitSetUser (state=%s)", m.state)
	}
	if _, err := wire.ParseUserID(user); err != nil {
		return false, nil, err
	}

	if user == wire.AnonymousUser {
		m.user = wire.AnonymousUser
		m.state = Idle
		return true, nil, nil
	}

	n := make([]byte, NonceSize)
	if _, err := rand.Read(n); err != nil {
		return false, nil, fmt.Errorf("auth: generating nonce: %w", err)
	}
	m.pendingFor = user
	m.nonce = n
	m.issuedAt = time.Now()
	m.state = AwaitAuthenticate
	return false, n, nil
}

// SigningMessage builds the exact byte sequence the viewer signs for
// user/nonce: "hackvr-auth-v1:<user>:<lowercase-hex-nonce>". The nonce is
// always rendered lowercase regardless of how the server transmitted it.
func SigningMessage(user string, nonce []byte) []byte {
	return []byte(fmt.Sprintf("hackvr-auth-v1:%s:%s", user, wire.FormatBytesN(nonce)))
}

// Authenticate verifies a viewer `authenticate <user> <signature>` against
// the pending nonce and the identity store's public key for user. now is
// injected for testability. The nonce is single-use: on return (success
// or failure) it is always invalidated.
func (m *Machine) Authenticate(now time.Time, user string, signature []byte, pubKey ed25519.PublicKey) (ok bool, reason string) {
	defer m.invalidateNonce()

	if m.state != AwaitAuthenticate {
		return false, "rejected"
	}
	if user != m.pendingFor {
		return false, "rejected"
	}
	if now.Sub(m.issuedAt) > NonceTTL {
		return false, "rejected"
	}
	if len(signature) != SignatureSize {
		return false, "rejected"
	}
	if pubKey == nil {
		return false, "rejected"
	}

	msg := SigningMessage(user, m.nonce)
	if !ed25519.Verify(pubKey, msg, signature) {
		return false, "rejected"
	}
	return true, ""
}

// Accept finalizes a successful authentication, returning to Idle with
// the effective userid set.
func (m *Machine) Accept(user string) {
	m.user = user
	m.state = Idle
}

// Reject finalizes a failed authentication, returning to Idle with the
// effective userid reset to $anonymous, per §4.6.
func (m *Machine) Reject() {
	m.user = wire.AnonymousUser
	m.state = Idle
}

// invalidateNonce clears the pending nonce. Called whenever the nonce is
// consumed, superseded, or expires — request-authentication,
// accept-user, reject-user, or authenticate all invalidate it (§4.6).
func (m *Machine) invalidateNonce() {
	m.nonce = nil
	m.pendingFor = ""
	m.issuedAt = time.Time{}
}

// Reset forcibly returns the machine to Idle, invalidating any pending
// nonce. The effective userid is left unchanged.
func (m *Machine) Reset() {
	m.invalidateNonce()
	m.state = Idle
}
