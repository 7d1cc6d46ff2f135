package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/hackvr/hackvr-core/internal/auth"
	"github.com/hackvr/hackvr-core/internal/config"
	"github.com/hackvr/hackvr-core/internal/identitystore"
	"github.com/hackvr/hackvr-core/internal/interaction"
	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/scene"
	"github.com/hackvr/hackvr-core/internal/selector"
	"github.com/hackvr/hackvr-core/internal/session"
	"github.com/hackvr/hackvr-core/internal/wire"
)

// Role distinguishes which end of a connection an Agent plays, since
// §4.3's direction table is defined relative to server/viewer, not
// inbound/outbound.
type Role int

const (
	RoleServer Role = iota
	RoleViewer
)

// Emitter is the outbound side of a connection: everything dispatch
// needs to send a command is a built frame's bytes. The server's
// listener and the viewer client package both implement this over their
// own net.Conn.
type Emitter interface {
	Emit(frame []byte) error
}

// Event is one viewer-initiated interaction surfaced to the hosting
// application. The dispatcher validates and gates these against scene
// and interaction state but does not decide what a tap or a chat message
// *means* — that is application logic outside this protocol core's
// scope.
type Event struct {
	Kind    EventKind
	Object  string
	TapKind wire.TapKind
	Tag     string
	Text    string
	Origin  wire.Vec3
	Dir     wire.Vec3
	User    string
}

type EventKind int

const (
	EventTap EventKind = iota
	EventTell
	EventSendInput
	EventRaycast
	EventChat
)

// Agent is one connection's complete dispatch state: the scene mirror,
// the auth and interaction-mode state machines, and the shared
// server-wide tables it consults (sessions, identities). It is driven by
// one goroutine per connection and is not safe for concurrent use (§5).
type Agent struct {
	ConnID string
	Role   Role

	Scene *scene.Scene
	Auth  *auth.Machine
	Gates *interaction.Gates

	Sessions   *session.Registry
	Identities *identitystore.Store
	Origin     session.Origin

	Cfg *config.Config

	// PendingAuthUser/PendingNonce record the last request-authentication
	// challenge seen by a viewer-role agent, so the client package can
	// build the matching `authenticate` response. Unused by a server-role
	// agent, which drives auth.Machine directly instead.
	PendingAuthUser string
	PendingNonce    []byte

	// OnEvent, if set, is called for every viewer-initiated interaction a
	// server-role agent accepts (tap-object, tell-object, send-input,
	// raycast, chat). It runs on the agent's own goroutine.
	OnEvent func(Event)

	out     Emitter
	limiter *rateLimiter
	log     *slog.Logger
}

// New returns an Agent ready to dispatch frames for one connection.
func New(connID string, role Role, cfg *config.Config, sessions *session.Registry, identities *identitystore.Store, origin session.Origin, out Emitter) *Agent {
	return &Agent{
		ConnID:     connID,
		Role:       role,
		Scene:      scene.New(),
		Auth:       auth.NewMachine(),
		Gates:      interaction.NewGates(),
		Sessions:   sessions,
		Identities: identities,
		Origin:     origin,
		Cfg:        cfg,
		out:        out,
		limiter:    newRateLimiter(cfg.MaxCommandsPerSecond),
		log:        logging.WithConn(log, connID),
	}
}

// Dispatch processes one complete frame payload (post-framing, pre-split
// — exactly what Framer.Next returns). It never returns an error for a
// per-command validation failure; per §4.10 those are silently dropped.
// A command over the rate limit is dropped the same way, so every path
// returns nil; a non-nil error would mean the connection must be closed.
func (a *Agent) Dispatch(frame []byte) error {
	if !a.limiter.Allow() {
		a.log.Warn("dropping command: rate limit exceeded")
		return nil
	}

	name, args := wire.SplitArgs(frame)
	def, ok := catalog[name]
	if !ok {
		a.log.Debug("ignoring unknown command", logging.KeyCommand, name)
		return nil
	}
	if !def.direction.allowedFrom(a.Role) {
		a.log.Debug("dropping direction-violating command", logging.KeyCommand, name)
		return nil
	}
	if !def.variadic && len(args) < def.minArgs {
		a.log.Debug("dropping short command", logging.KeyCommand, name, "want", def.minArgs, "got", len(args))
		return nil
	}

	if len(def.selectors) == 0 {
		if err := def.handler(a, args); err != nil {
			a.log.Debug("handler error", logging.KeyCommand, name, logging.KeyError, err)
		}
		return nil
	}

	instances, ok := a.expandSelectors(def, args)
	if !ok {
		return nil
	}
	for _, inst := range instances {
		if err := def.handler(a, inst); err != nil {
			a.log.Debug("handler error", logging.KeyCommand, name, logging.KeyError, err)
		}
	}
	return nil
}

// Send authors an outbound command from this agent's own role. A
// server-role agent's S→C commands are first applied to this
// connection's local state through the same handler pipeline inbound
// frames use — the server's scene mirror stays current with what it has
// authored, and mode-gating commands (raycast-request, request-input,
// request-user) arm the local state the viewer's eventual reply is
// validated against. OnEvent is suppressed during that local
// application: a sender does not observe its own commands as
// interactions. Unlike Dispatch, Send returns validation errors to the
// caller — a malformed outbound command is a local programming error,
// not a peer's protocol error to be silently dropped.
//
// A viewer-role agent's outbound surface is package client; Send from a
// viewer only validates direction and emits.
func (a *Agent) Send(name string, args ...string) error {
	def, ok := catalog[name]
	if !ok {
		return fmt.Errorf("dispatch: unknown command %q", name)
	}
	if !def.direction.allowedTo(a.Role) {
		return fmt.Errorf("dispatch: %s cannot be sent from this role", name)
	}
	if !def.variadic && len(args) < def.minArgs {
		return fmt.Errorf("dispatch: %s wants at least %d args, got %d", name, def.minArgs, len(args))
	}

	if a.Role == RoleServer && def.direction != DirClientToServer {
		saved := a.OnEvent
		a.OnEvent = nil
		err := a.applyLocally(def, args)
		a.OnEvent = saved
		if err != nil {
			return err
		}
	}

	frame, err := wire.BuildFrame(name, args...)
	if err != nil {
		return err
	}
	return a.out.Emit(frame)
}

// applyLocally runs def's handler against this agent's own state, with
// the same selector expansion Dispatch performs.
func (a *Agent) applyLocally(def commandDef, args []string) error {
	if len(def.selectors) == 0 {
		return def.handler(a, args)
	}
	instances, ok := a.expandSelectors(def, args)
	if !ok {
		return fmt.Errorf("dispatch: selector expansion failed for %s", def.name)
	}
	for _, inst := range instances {
		if err := def.handler(a, inst); err != nil {
			return err
		}
	}
	return nil
}

// expandSelectors resolves every selectorArg in def against args,
// enforcing the create-family */? restriction, and returns the Cartesian
// product of concrete args slices (one per combination of expanded
// selector values), per §4.4.
func (a *Agent) expandSelectors(def commandDef, args []string) ([][]string, bool) {
	combos := [][]string{append([]string(nil), args...)}

	for _, sel := range def.selectors {
		if sel.index >= len(args) {
			return nil, false
		}
		raw := args[sel.index]

		var matches []string
		if def.createFamily {
			// A create's selector names ids that don't exist yet, so it is
			// expanded literally rather than matched against the current
			// population (which would otherwise always yield zero matches).
			// Over-cap expansion drops the whole command here, before any
			// handler has run (§4.4: no partial application).
			m, err := selector.ExpandCreate(raw, a.Cfg.SelectorExpansionCap)
			if err != nil {
				a.log.Debug("dropping create command: invalid or over-cap selector", logging.KeyCommand, def.name, logging.KeyError, err)
				return nil, false
			}
			matches = m
		} else {
			population := a.population(sel.pop)
			m, _, err := selector.Expand(raw, population, a.Cfg.SelectorExpansionCap)
			if err != nil {
				a.log.Debug("dropping command: selector expansion failed", logging.KeyCommand, def.name, logging.KeyError, err)
				return nil, false
			}
			matches = m
		}
		if len(matches) == 0 {
			return nil, false
		}

		var next [][]string
		for _, combo := range combos {
			for _, m := range matches {
				variant := append([]string(nil), combo...)
				variant[sel.index] = m
				next = append(next, variant)
			}
		}
		combos = next
	}

	return combos, true
}

// population returns the current id/tag space a popKind's selector
// argument expands against. create-family commands never consult it:
// expandSelectors expands their selector literally with ExpandCreate.
func (a *Agent) population(kind popKind) []string {
	switch kind {
	case popObject:
		return a.Scene.ObjectIDs()
	case popGeometry:
		return a.Scene.GeometryIDs()
	case popIntent:
		return a.Scene.IntentIDs()
	default:
		return nil
	}
}

// emit builds and sends an outbound frame, logging rather than failing
// the whole agent on a transient write error (the caller's transport
// loop is responsible for deciding whether that error is fatal).
func (a *Agent) emit(name string, args ...string) {
	frame, err := wire.BuildFrame(name, args...)
	if err != nil {
		a.log.Error("failed to build outbound frame", logging.KeyCommand, name, logging.KeyError, err)
		return
	}
	if err := a.out.Emit(frame); err != nil {
		a.log.Debug("failed to emit outbound frame", logging.KeyCommand, name, logging.KeyError, err)
	}
}
