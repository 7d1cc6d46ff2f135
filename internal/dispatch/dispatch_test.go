package dispatch

import (
	"testing"

	"github.com/hackvr/hackvr-core/internal/config"
	"github.com/hackvr/hackvr-core/internal/session"
	"github.com/hackvr/hackvr-core/internal/wire"
)

type recordingEmitter struct {
	frames [][]byte
}

func (r *recordingEmitter) Emit(frame []byte) error {
	r.frames = append(r.frames, frame)
	return nil
}

func newTestAgent(role Role) (*Agent, *recordingEmitter) {
	cfg := config.Default()
	out := &recordingEmitter{}
	a := New("conn-1", role, cfg, session.NewRegistry(0), nil, session.Origin{}, out)
	return a, out
}

func frameFor(t *testing.T, name string, args ...string) []byte {
	t.Helper()
	f, err := wire.BuildFrame(name, args...)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	return f[:len(f)-2] // Dispatch takes a frame payload without CR LF, matching Framer.Next's contract
}

func TestCreateObjectLiteral(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	if err := a.Dispatch(frameFor(t, "create-object", "room")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, ok := a.Scene.Object("room"); !ok {
		t.Fatal("expected room to be created")
	}
}

func TestCreateObjectBraceExpansion(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	if err := a.Dispatch(frameFor(t, "create-object", "door-{01..03}")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	for _, id := range []string{"door-01", "door-02", "door-03"} {
		if _, ok := a.Scene.Object(id); !ok {
			t.Fatalf("expected %s to be created", id)
		}
	}
	if _, ok := a.Scene.Object("door"); ok {
		t.Fatal("bare door must not have been created")
	}
}

func TestCreateObjectRejectsBareStar(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	if err := a.Dispatch(frameFor(t, "create-object", "*")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ids := a.Scene.ObjectIDs(); len(ids) != 2 {
		t.Fatalf("expected only the two seed objects, got %v", ids)
	}
}

func TestCreateObjectRejectsNonSpecDefinedReservedID(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	if err := a.Dispatch(frameFor(t, "create-object", "$foo")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, ok := a.Scene.Object("$foo"); ok {
		t.Fatal("$foo is not a spec-defined reserved id and must not be created")
	}
}

func TestCreateIntentRejectsNonSpecDefinedReservedID(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	a.Dispatch(frameFor(t, "create-intent", "$jump", "Jump"))
	if _, ok := a.Scene.Intent("$jump"); ok {
		t.Fatal("$jump is not a spec-defined reserved intent id and must not be created")
	}
}

func TestCreateObjectOverCapExpansionDropsWholeCommand(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	a.Cfg.SelectorExpansionCap = 10
	if err := a.Dispatch(frameFor(t, "create-object", "o-{1..11}")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ids := a.Scene.ObjectIDs(); len(ids) != 2 {
		t.Fatalf("over-cap create expansion must be dropped with no partial application, got %v", ids)
	}
}

func TestSetObjectPropertySelectorExpansion(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	a.Dispatch(frameFor(t, "create-object", "door-{01..03}"))
	a.Dispatch(frameFor(t, "set-object-property", "door-*", "clickable", "true"))

	for _, id := range []string{"door-01", "door-02", "door-03"} {
		obj, _ := a.Scene.Object(id)
		if !obj.Clickable {
			t.Fatalf("expected %s clickable", id)
		}
	}
	if _, ok := a.Scene.Object("door"); ok {
		t.Fatal("bare door should not exist")
	}
}

func TestDirectionViolationIsDropped(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	// set-user is C->S; a viewer-role agent must never accept it inbound.
	if err := a.Dispatch(frameFor(t, "set-user", "alice")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if a.Auth.State() != "IDLE" {
		t.Fatal("direction-violating command must not have mutated auth state")
	}
}

func TestServerRoleAcceptsSetUserAnonymous(t *testing.T) {
	a, _ := newTestAgent(RoleServer)
	a.Auth.BeginRequestUser()
	if err := a.Dispatch(frameFor(t, "set-user", wire.AnonymousUser)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if a.Auth.User() != wire.AnonymousUser {
		t.Fatalf("expected anonymous user, got %q", a.Auth.User())
	}
}

func TestTapObjectRequiresClickable(t *testing.T) {
	a, out := newTestAgent(RoleServer)
	if err := a.Send("create-object", "door"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var events []Event
	a.OnEvent = func(e Event) { events = append(events, e) }

	a.Dispatch(frameFor(t, "tap-object", "door", "primary", "floor"))
	if len(events) != 0 {
		t.Fatal("tap on a non-clickable object must not fire an event")
	}

	if err := a.Send("set-object-property", "door", "clickable", "true"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	a.Dispatch(frameFor(t, "tap-object", "door", "primary", "floor"))
	if len(events) != 1 || events[0].Kind != EventTap {
		t.Fatalf("expected exactly one tap event, got %v", events)
	}
	_ = out
}

func TestAuthFlowRequestAuthenticationCarriesUser(t *testing.T) {
	a, out := newTestAgent(RoleServer)
	if err := a.Auth.BeginRequestUser(); err != nil {
		t.Fatalf("BeginRequestUser: %v", err)
	}
	a.Dispatch(frameFor(t, "set-user", "alice"))

	if len(out.frames) != 1 {
		t.Fatalf("expected exactly one emitted frame, got %d", len(out.frames))
	}
	name, args := splitEmitted(t, out.frames[0])
	if name != "request-authentication" {
		t.Fatalf("expected request-authentication, got %q", name)
	}
	if len(args) != 2 {
		t.Fatalf("expected request-authentication <user> <nonce>, got %v", args)
	}
	if args[0] != "alice" {
		t.Fatalf("expected user argument %q, got %q", "alice", args[0])
	}
	if a.Auth.State() != "AWAIT_AUTHENTICATE" {
		t.Fatalf("expected AWAIT_AUTHENTICATE, got %s", a.Auth.State())
	}
}

func splitEmitted(t *testing.T, frame []byte) (string, []string) {
	t.Helper()
	payload := frame[:len(frame)-2]
	name, args := wire.SplitArgs(payload)
	return name, args
}

func TestSetObjectTransformOmittedChannelIsNoChange(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	a.Dispatch(frameFor(t, "create-object", "ball"))
	a.Dispatch(frameFor(t, "set-object-transform", "ball", "(1 2 3)", "", "", "0"))

	obj, ok := a.Scene.Object("ball")
	if !ok {
		t.Fatal("expected ball to exist")
	}
	if obj.LocalPos.X != 1 || obj.LocalPos.Y != 2 || obj.LocalPos.Z != 3 {
		t.Fatalf("expected pos to be set to (1 2 3), got %+v", obj.LocalPos)
	}

	// Omitting rot/scale entirely (trailing omission) must also be a no-op
	// for those channels rather than a parse error that drops the whole
	// command.
	a.Dispatch(frameFor(t, "set-object-transform", "ball", "(4 5 6)"))
	obj, _ = a.Scene.Object("ball")
	if obj.LocalPos.X != 4 || obj.LocalPos.Y != 5 || obj.LocalPos.Z != 6 {
		t.Fatalf("expected pos to be set to (4 5 6), got %+v", obj.LocalPos)
	}
}

func TestSendArmsServerRaycastMode(t *testing.T) {
	a, out := newTestAgent(RoleServer)
	if err := a.Send("raycast-request"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !a.Gates.RaycastMode() {
		t.Fatal("sending raycast-request must arm the server's own raycast_mode")
	}
	if len(out.frames) != 1 {
		t.Fatalf("expected one emitted frame, got %d", len(out.frames))
	}

	a.Dispatch(frameFor(t, "raycast", "(0 0 0)", "(0 0 -1)"))
	if a.Gates.RaycastMode() {
		t.Fatal("a valid raycast must exit raycast_mode")
	}
}

func TestSendRejectsWrongDirection(t *testing.T) {
	a, out := newTestAgent(RoleServer)
	if err := a.Send("set-user", "alice"); err == nil {
		t.Fatal("a server must not be able to send the C->S set-user")
	}
	if len(out.frames) != 0 {
		t.Fatal("a rejected Send must not emit")
	}
}

func TestSendKeepsServerSceneMirrorCurrent(t *testing.T) {
	a, _ := newTestAgent(RoleServer)
	if err := a.Send("create-object", "room"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, ok := a.Scene.Object("room"); !ok {
		t.Fatal("sent create-object must apply to the server's own scene mirror")
	}
}

func TestCreateObjectEnforcesMaxObjects(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	a.Cfg.MaxObjects = 3 // $global + $camera + one more
	a.Dispatch(frameFor(t, "create-object", "a"))
	a.Dispatch(frameFor(t, "create-object", "b"))
	if _, ok := a.Scene.Object("a"); !ok {
		t.Fatal("create within the object limit should apply")
	}
	if _, ok := a.Scene.Object("b"); ok {
		t.Fatal("create beyond the object limit must be dropped")
	}
}

func TestAddTriangleListEnforcesTriangleCap(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	a.Cfg.MaxTrianglesPerGeometry = 1
	a.Dispatch(frameFor(t, "add-triangle-list", "$global", "floor",
		"#808080", "(0 0 0)", "(1 0 0)", "(1 0 1)"))
	a.Dispatch(frameFor(t, "add-triangle-list", "$global", "floor",
		"#808080", "(0 0 0)", "(0 1 0)", "(0 1 1)"))
	if n := a.Scene.TriangleCount("$global"); n != 1 {
		t.Fatalf("expected exactly 1 triangle after hitting the cap, got %d", n)
	}
}

func TestReparentEnforcesNestingDepth(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	a.Cfg.MaxNestingDepth = 2
	a.Dispatch(frameFor(t, "create-object", "a"))
	a.Dispatch(frameFor(t, "create-object", "b"))
	a.Dispatch(frameFor(t, "create-object", "c"))
	a.Dispatch(frameFor(t, "reparent-object", "b", "a", "local"))
	a.Dispatch(frameFor(t, "reparent-object", "c", "b", "local"))

	obj, _ := a.Scene.Object("c")
	if obj.Parent != "$global" {
		t.Fatalf("reparent beyond the nesting limit must be dropped, got parent %q", obj.Parent)
	}
}

func TestRateLimitDropsExcessCommands(t *testing.T) {
	a, _ := newTestAgent(RoleViewer)
	a.limiter = newRateLimiter(1)
	a.Dispatch(frameFor(t, "create-object", "a"))
	a.Dispatch(frameFor(t, "create-object", "b"))
	if _, ok := a.Scene.Object("a"); !ok {
		t.Fatal("first command within the limit should apply")
	}
	if _, ok := a.Scene.Object("b"); ok {
		t.Fatal("second command should have been rate-limited")
	}
}
