// Package dispatch implements the HackVR command dispatcher (§4.3): the
// per-connection agent loop that turns framed, HT-split argument lists
// into validated subsystem calls against auth, session, scene, and
// interaction state, enforcing command direction and the create-family
// selector restriction along the way.
package dispatch

import "github.com/hackvr/hackvr-core/internal/logging"

var log = logging.L("dispatch")

// Direction is a command's permitted travel direction, per §4.3's
// direction table.
type Direction int

const (
	DirServerToClient Direction = iota
	DirClientToServer
	DirEither
)

// allowedFrom reports whether a command with direction d may be accepted
// as inbound by a connection acting in role r.
func (d Direction) allowedFrom(r Role) bool {
	switch d {
	case DirEither:
		return true
	case DirServerToClient:
		return r == RoleViewer
	case DirClientToServer:
		return r == RoleServer
	default:
		return false
	}
}

// allowedTo reports whether a command with direction d may be sent
// outbound by a connection acting in role r.
func (d Direction) allowedTo(r Role) bool {
	switch d {
	case DirEither:
		return true
	case DirServerToClient:
		return r == RoleServer
	case DirClientToServer:
		return r == RoleViewer
	default:
		return false
	}
}

// popKind names which population a selector-bearing argument expands
// against.
type popKind int

const (
	popNone popKind = iota
	popObject
	popGeometry
	popIntent
)

// selectorArg names one selector-bearing argument position in a command.
// The dispatcher expands every selectorArg's population and takes the
// Cartesian product across all of them before invoking the handler once
// per concrete combination (§4.4).
type selectorArg struct {
	index int
	pop   popKind
}

// commandDef is one catalog entry: a fixed name, its direction, whether
// it belongs to the create-family (restricting its selector argument to
// `{…}` forms only), and the handler invoked once per selector-expansion
// instance.
type commandDef struct {
	name         string
	direction    Direction
	createFamily bool
	selectors    []selectorArg
	variadic     bool // true for the add-triangle-* commands, whose tail is a flat repeated group
	minArgs      int
	handler      func(a *Agent, args []string) error
}

// catalog is the full command table. Argument indices below are 0-based
// positions within the args slice SplitArgs returns (i.e. excluding the
// command name itself).
var catalog = map[string]commandDef{
	// Establishment's hackvr-hello is handled entirely by the establish
	// package before the dispatcher ever sees a frame; it never appears
	// here.

	// Scene graph (S->C).
	"create-object": {
		name: "create-object", direction: DirServerToClient, createFamily: true,
		selectors: []selectorArg{{0, popObject}}, minArgs: 1, handler: handleCreateObject,
	},
	"destroy-object": {
		name: "destroy-object", direction: DirServerToClient,
		selectors: []selectorArg{{0, popObject}}, minArgs: 1, handler: handleDestroyObject,
	},
	"reparent-object": {
		name: "reparent-object", direction: DirServerToClient,
		selectors: []selectorArg{{0, popObject}}, minArgs: 3, handler: handleReparentObject,
	},
	"set-object-transform": {
		name: "set-object-transform", direction: DirServerToClient,
		// pos/rot/scale/duration are all optional (§4.8: an omitted channel
		// is no change); only the object selector is mandatory.
		selectors: []selectorArg{{0, popObject}}, minArgs: 1, handler: handleSetObjectTransform,
	},
	"set-object-property": {
		name: "set-object-property", direction: DirServerToClient,
		selectors: []selectorArg{{0, popObject}}, minArgs: 3, handler: handleSetObjectProperty,
	},
	"attach-geometry": {
		name: "attach-geometry", direction: DirServerToClient,
		selectors: []selectorArg{{0, popObject}}, minArgs: 2, handler: handleAttachGeometry,
	},
	"detach-geometry": {
		name: "detach-geometry", direction: DirServerToClient,
		selectors: []selectorArg{{0, popObject}}, minArgs: 1, handler: handleDetachGeometry,
	},
	"track-object": {
		name: "track-object", direction: DirServerToClient,
		selectors: []selectorArg{{0, popObject}}, minArgs: 4, handler: handleTrackObject,
	},
	"untrack-object": {
		name: "untrack-object", direction: DirServerToClient,
		selectors: []selectorArg{{0, popObject}}, minArgs: 1, handler: handleUntrackObject,
	},
	"enable-free-look": {
		name: "enable-free-look", direction: DirServerToClient, minArgs: 1, handler: handleEnableFreeLook,
	},
	"set-free-look-rotation": {
		name: "set-free-look-rotation", direction: DirServerToClient, minArgs: 3, handler: handleSetFreeLookRotation,
	},

	// Geometry (S->C).
	"create-triangle-soup": {
		name: "create-triangle-soup", direction: DirServerToClient, createFamily: true,
		selectors: []selectorArg{{0, popGeometry}}, minArgs: 1, handler: handleCreateTriangleSoup,
	},
	"create-sprite": {
		name: "create-sprite", direction: DirServerToClient, createFamily: true,
		selectors: []selectorArg{{0, popGeometry}}, minArgs: 7, handler: handleCreateSprite,
	},
	"create-text-sprite": {
		name: "create-text-sprite", direction: DirServerToClient, createFamily: true,
		selectors: []selectorArg{{0, popGeometry}}, minArgs: 6, handler: handleCreateTextSprite,
	},
	"add-triangle-list": {
		name: "add-triangle-list", direction: DirServerToClient,
		minArgs: 6, variadic: true, handler: handleAddTriangleList,
	},
	"add-triangle-strip": {
		name: "add-triangle-strip", direction: DirServerToClient,
		minArgs: 6, variadic: true, handler: handleAddTriangleStrip,
	},
	"add-triangle-fan": {
		name: "add-triangle-fan", direction: DirServerToClient,
		minArgs: 6, variadic: true, handler: handleAddTriangleFan,
	},
	"remove-triangles": {
		name: "remove-triangles", direction: DirServerToClient, minArgs: 2, handler: handleRemoveTriangles,
	},
	"set-text-sprite-text": {
		name: "set-text-sprite-text", direction: DirServerToClient,
		selectors: []selectorArg{{0, popGeometry}}, minArgs: 2, handler: handleSetTextSpriteText,
	},
	"set-text-sprite-colors": {
		name: "set-text-sprite-colors", direction: DirServerToClient,
		selectors: []selectorArg{{0, popGeometry}}, minArgs: 3, handler: handleSetTextSpriteColors,
	},

	// Intent registry (S->C).
	"create-intent": {
		name: "create-intent", direction: DirServerToClient, createFamily: true,
		selectors: []selectorArg{{0, popIntent}}, minArgs: 2, handler: handleCreateIntent,
	},
	"destroy-intent": {
		name: "destroy-intent", direction: DirServerToClient,
		selectors: []selectorArg{{0, popIntent}}, minArgs: 1, handler: handleDestroyIntent,
	},

	// Auth (§4.6).
	"request-user": {
		name: "request-user", direction: DirServerToClient, minArgs: 0, handler: handleRequestUser,
	},
	"set-user": {
		name: "set-user", direction: DirClientToServer, minArgs: 1, handler: handleSetUser,
	},
	"request-authentication": {
		name: "request-authentication", direction: DirServerToClient, minArgs: 2, handler: handleRequestAuthentication,
	},
	"authenticate": {
		name: "authenticate", direction: DirClientToServer, minArgs: 2, handler: handleAuthenticate,
	},
	"accept-user": {
		name: "accept-user", direction: DirServerToClient, minArgs: 1, handler: handleAcceptUser,
	},
	"reject-user": {
		name: "reject-user", direction: DirServerToClient, minArgs: 1, handler: handleRejectUser,
	},

	// Session tokens (§4.7).
	"announce-session": {
		name: "announce-session", direction: DirServerToClient, minArgs: 1, handler: handleAnnounceSession,
	},
	"revoke-session": {
		name: "revoke-session", direction: DirServerToClient, minArgs: 1, handler: handleRevokeSession,
	},
	"resume-session": {
		name: "resume-session", direction: DirClientToServer, minArgs: 1, handler: handleResumeSession,
	},

	// Interaction modes (§4.9).
	"request-input": {
		name: "request-input", direction: DirServerToClient, minArgs: 0, handler: handleRequestInput,
	},
	"cancel-input": {
		name: "cancel-input", direction: DirServerToClient, minArgs: 0, handler: handleCancelInput,
	},
	"send-input": {
		name: "send-input", direction: DirClientToServer, minArgs: 1, handler: handleSendInput,
	},
	"raycast-request": {
		name: "raycast-request", direction: DirServerToClient, minArgs: 0, handler: handleRaycastRequest,
	},
	"raycast-cancel": {
		name: "raycast-cancel", direction: DirEither, minArgs: 0, handler: handleRaycastCancel,
	},
	"raycast": {
		name: "raycast", direction: DirClientToServer, minArgs: 2, handler: handleRaycast,
	},
	"tap-object": {
		name: "tap-object", direction: DirClientToServer,
		selectors: []selectorArg{{0, popObject}}, minArgs: 3, handler: handleTapObject,
	},
	"tell-object": {
		name: "tell-object", direction: DirClientToServer,
		selectors: []selectorArg{{0, popObject}}, minArgs: 2, handler: handleTellObject,
	},
	"chat": {
		name: "chat", direction: DirEither, minArgs: 1, handler: handleChat,
	},
}
