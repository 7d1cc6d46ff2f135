// Package session implements the HackVR session-token engine (§4.7):
// announce/revoke/resume and origin binding. Session tokens are
// identifiers, not credentials; the registry's job is bookkeeping, not
// access control.
package session

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/wire"
)

var log = logging.L("session")

// Token is the decoded 32-byte session identifier, compared by value
// (§3: "equality by decoded bytes").
type Token [wire.SessionTokenLen]byte

func TokenFromBytes(b []byte) (Token, bool) {
	var t Token
	if len(b) != wire.SessionTokenLen {
		return t, false
	}
	copy(t[:], b)
	return t, true
}

func (t Token) String() string {
	return base64.RawURLEncoding.EncodeToString(t[:])
}

// record is one registry entry: which connection currently holds the
// token, what origin it's bound to, and when it expires absent a refresh.
type record struct {
	connID   string
	origin   Origin
	expires  time.Time
	revoked  bool
}

// Registry is the server-wide table of announced session tokens. Lookups
// are read-mostly; mutation is single-writer-at-a-time via an RWMutex, as
// required by §5's shared-resource policy.
type Registry struct {
	mu      sync.RWMutex
	ttl     time.Duration
	byToken map[Token]*record
}

// NewRegistry returns an empty registry whose entries expire after ttl
// absent a refreshing re-announce.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{ttl: ttl, byToken: make(map[Token]*record)}
}

// Announce implements `announce-session` (S→C intent, recorded
// server-side so resume-session can later be validated): binds token to
// connID and origin. Re-announcing the same token on the same connection
// refreshes its expiry; announcing a different token on a connection that
// previously held one invalidates the old one for that connection.
func (r *Registry) Announce(token Token, connID string, origin Origin, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for tok, rec := range r.byToken {
		if rec.connID == connID && tok != token {
			delete(r.byToken, tok)
		}
	}

	rec, exists := r.byToken[token]
	if !exists {
		rec = &record{connID: connID, origin: origin}
		r.byToken[token] = rec
	}
	rec.connID = connID
	rec.origin = origin
	rec.expires = now.Add(r.ttl)
	rec.revoked = false
}

// Revoke implements `revoke-session`: marks token world-wide invalid.
func (r *Registry) Revoke(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byToken[token]; ok {
		rec.revoked = true
	}
}

// Resume implements the server side of `resume-session`: reports whether
// token is currently valid (known, not revoked, not expired) and, if so,
// the origin it was bound under. The caller (the dispatcher) still
// decides whether resumption requires re-authentication; per §4.7 that
// decision is server-defined and not made by this registry.
func (r *Registry) Resume(token Token, now time.Time) (origin Origin, valid bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byToken[token]
	if !ok || rec.revoked {
		return Origin{}, false
	}
	if now.After(rec.expires) {
		return Origin{}, false
	}
	return rec.origin, true
}

// Forget removes every token bound to connID, called on transport close
// (§3: "destroyed on transport close").
func (r *Registry) Forget(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, rec := range r.byToken {
		if rec.connID == connID {
			delete(r.byToken, tok)
		}
	}
}
