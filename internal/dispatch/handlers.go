package dispatch

import (
	"fmt"
	"time"

	"github.com/hackvr/hackvr-core/internal/scene"
	"github.com/hackvr/hackvr-core/internal/session"
	"github.com/hackvr/hackvr-core/internal/wire"
)

// Every handler receives args already selector-resolved: wherever the
// catalog entry named a selectorArg, args[index] is one concrete id, not
// a selector pattern. A handler's own parse failures are per-command
// drops (§4.10), never escalated.

// reservedObjectIDs/reservedGeometryIDs are the only $-prefixed ids each
// population's create-family commands may legally introduce (§3, §4.10's
// "forbidden identifier" error); create-intent's equivalent list lives on
// scene.PredefinedIntentIDs since the scene package already owns it.
var (
	reservedObjectIDs   = []string{scene.GlobalID, scene.CameraID}
	reservedGeometryIDs = []string{scene.GlobalID}
)

func handleCreateObject(a *Agent, args []string) error {
	if err := wire.ValidateCreateID(args[0], reservedObjectIDs...); err != nil {
		return err
	}
	if a.Scene.ObjectCount() >= a.Cfg.MaxObjects {
		return fmt.Errorf("dispatch: object limit %d reached", a.Cfg.MaxObjects)
	}
	a.Scene.CreateObject(args[0])
	return nil
}

func handleDestroyObject(a *Agent, args []string) error {
	return a.Scene.DestroyObject(args[0])
}

func handleReparentObject(a *Agent, args []string) error {
	mode, err := wire.ParseReparentMode(args[2])
	if err != nil {
		return err
	}
	if a.Scene.NestingDepth(args[1])+1+a.Scene.SubtreeHeight(args[0]) > a.Cfg.MaxNestingDepth {
		return fmt.Errorf("dispatch: reparent would exceed nesting depth %d", a.Cfg.MaxNestingDepth)
	}
	return a.Scene.ReparentObject(args[0], args[1], mode)
}

func handleSetObjectTransform(a *Agent, args []string) error {
	dur := time.Duration(0)
	if d, ok := wire.OptionalNonString(args, 4); ok {
		f, err := wire.ParseFloat(d)
		if err != nil {
			return err
		}
		if f < 0 {
			return fmt.Errorf("dispatch: negative transition duration")
		}
		dur = time.Duration(f * float64(time.Second))
	}

	id := args[0]

	// Omitted channel (§4.8): no change, any in-flight transition on that
	// channel continues untouched. Given channel: cancel-and-restart.
	if posStr, ok := wire.OptionalNonString(args, 1); ok {
		pos, err := wire.ParseVec3(posStr)
		if err != nil {
			return err
		}
		a.Scene.StartPos(id, pos, dur)
	}
	if rotStr, ok := wire.OptionalNonString(args, 2); ok {
		rot, err := wire.ParseVec3(rotStr)
		if err != nil {
			return err
		}
		a.Scene.StartRot(id, rot, dur)
	}
	if scaleStr, ok := wire.OptionalNonString(args, 3); ok {
		scaleV, err := wire.ParseVec3(scaleStr)
		if err != nil {
			return err
		}
		a.Scene.StartScale(id, scaleV, dur)
	}
	return nil
}

func handleSetObjectProperty(a *Agent, args []string) error {
	return a.Scene.SetObjectProperty(args[0], args[1], args[2])
}

func handleAttachGeometry(a *Agent, args []string) error {
	a.Scene.AttachGeometry(args[0], args[1])
	return nil
}

func handleDetachGeometry(a *Agent, args []string) error {
	a.Scene.DetachGeometry(args[0])
	return nil
}

func handleTrackObject(a *Agent, args []string) error {
	mode, err := wire.ParseTrackMode(args[2])
	if err != nil {
		return err
	}
	f, err := wire.ParseFloat(args[3])
	if err != nil {
		return err
	}
	return a.Scene.Track(args[0], args[1], mode, time.Duration(f*float64(time.Second)))
}

func handleUntrackObject(a *Agent, args []string) error {
	a.Scene.StopTrack(args[0])
	return nil
}

func handleEnableFreeLook(a *Agent, args []string) error {
	switch args[0] {
	case "true":
		a.Scene.EnableFreeLook(true)
	case "false":
		a.Scene.EnableFreeLook(false)
	}
	return nil
}

func handleSetFreeLookRotation(a *Agent, args []string) error {
	pan, err := wire.ParseFloat(args[0])
	if err != nil {
		return err
	}
	tilt, err := wire.ParseFloat(args[1])
	if err != nil {
		return err
	}
	roll, err := wire.ParseFloat(args[2])
	if err != nil {
		return err
	}
	a.Scene.SetFreeLookRot(pan, tilt, roll)
	return nil
}

func handleCreateTriangleSoup(a *Agent, args []string) error {
	if err := wire.ValidateCreateID(args[0], reservedGeometryIDs...); err != nil {
		return err
	}
	a.Scene.CreateGeometry(args[0], scene.KindTriangleSoup)
	return nil
}

func handleCreateSprite(a *Agent, args []string) error {
	if err := wire.ValidateCreateID(args[0], reservedGeometryIDs...); err != nil {
		return err
	}
	width, err := wire.ParseFloat(args[1])
	if err != nil {
		return err
	}
	height, err := wire.ParseFloat(args[2])
	if err != nil {
		return err
	}
	anchor, err := wire.ParseAnchor(args[3])
	if err != nil {
		return err
	}
	uri, err := wire.ParseURI(args[4])
	if err != nil {
		return err
	}
	sha, err := wire.ParseBytesN(args[5], 32)
	if err != nil {
		return err
	}
	sizeMode, err := wire.ParseSizeMode(args[6])
	if err != nil {
		return err
	}
	a.Scene.CreateSprite(args[0], width, height, anchor, uri, wire.FormatBytesN(sha), sizeMode)
	return nil
}

func handleCreateTextSprite(a *Agent, args []string) error {
	if err := wire.ValidateCreateID(args[0], reservedGeometryIDs...); err != nil {
		return err
	}
	width, err := wire.ParseFloat(args[1])
	if err != nil {
		return err
	}
	height, err := wire.ParseFloat(args[2])
	if err != nil {
		return err
	}
	anchor, err := wire.ParseAnchor(args[3])
	if err != nil {
		return err
	}
	fontURI, err := wire.ParseURI(args[4])
	if err != nil {
		return err
	}
	sizeMode, err := wire.ParseSizeMode(args[5])
	if err != nil {
		return err
	}
	a.Scene.CreateTextSprite(args[0], width, height, anchor, fontURI, sizeMode)
	return nil
}

// triangleGroupSize is the number of wire fields one triangle-list entry
// occupies: a shared color plus three vertex positions.
const triangleGroupSize = 4

func handleAddTriangleList(a *Agent, args []string) error {
	geomID, tag := args[0], args[1]
	rest := args[2:]
	if len(rest)%triangleGroupSize != 0 {
		return nil
	}
	n := len(rest) / triangleGroupSize
	colors := make([]wire.Color, 0, n)
	verts := make([][3]wire.Vec3, 0, n)
	for i := 0; i < n; i++ {
		base := i * triangleGroupSize
		c, err := wire.ParseColor(rest[base])
		if err != nil {
			return err
		}
		var v [3]wire.Vec3
		for j := 0; j < 3; j++ {
			vv, err := wire.ParseVec3(rest[base+1+j])
			if err != nil {
				return err
			}
			v[j] = vv
		}
		colors = append(colors, c)
		verts = append(verts, v)
	}
	if a.Scene.TriangleCount(geomID)+n > a.Cfg.MaxTrianglesPerGeometry {
		return fmt.Errorf("dispatch: triangle limit %d exceeded for %s", a.Cfg.MaxTrianglesPerGeometry, geomID)
	}
	return a.Scene.AddTriangleList(geomID, tag, colors, verts)
}

func handleAddTriangleStrip(a *Agent, args []string) error {
	geomID, tag := args[0], args[1]
	color, err := wire.ParseColor(args[2])
	if err != nil {
		return err
	}
	seq, err := parseVecSequence(args[3:])
	if err != nil {
		return err
	}
	if err := a.checkTriangleBudget(geomID, len(seq)); err != nil {
		return err
	}
	return a.Scene.AddTriangleStrip(geomID, tag, color, seq)
}

func handleAddTriangleFan(a *Agent, args []string) error {
	geomID, tag := args[0], args[1]
	color, err := wire.ParseColor(args[2])
	if err != nil {
		return err
	}
	seq, err := parseVecSequence(args[3:])
	if err != nil {
		return err
	}
	if err := a.checkTriangleBudget(geomID, len(seq)); err != nil {
		return err
	}
	return a.Scene.AddTriangleFan(geomID, tag, color, seq)
}

// checkTriangleBudget enforces the per-geometry triangle cap for a strip
// or fan of seqLen vertices (seqLen-2 triangles once seeded).
func (a *Agent) checkTriangleBudget(geomID string, seqLen int) error {
	if seqLen < 3 {
		return nil
	}
	if a.Scene.TriangleCount(geomID)+seqLen-2 > a.Cfg.MaxTrianglesPerGeometry {
		return fmt.Errorf("dispatch: triangle limit %d exceeded for %s", a.Cfg.MaxTrianglesPerGeometry, geomID)
	}
	return nil
}

func parseVecSequence(raw []string) ([]wire.Vec3, error) {
	out := make([]wire.Vec3, 0, len(raw))
	for _, r := range raw {
		v, err := wire.ParseVec3(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func handleRemoveTriangles(a *Agent, args []string) error {
	return a.Scene.RemoveTriangles(args[0], args[1], a.Cfg.SelectorExpansionCap)
}

func handleSetTextSpriteText(a *Agent, args []string) error {
	return a.Scene.SetTextSpriteText(args[0], args[1])
}

func handleSetTextSpriteColors(a *Agent, args []string) error {
	text, err := wire.ParseColor(args[1])
	if err != nil {
		return err
	}
	bg, err := wire.ParseColor(args[2])
	if err != nil {
		return err
	}
	return a.Scene.SetTextSpriteColors(args[0], text, bg)
}

func handleCreateIntent(a *Agent, args []string) error {
	if err := wire.ValidateCreateID(args[0], scene.PredefinedIntentIDs...); err != nil {
		return err
	}
	a.Scene.CreateIntent(args[0], args[1])
	return nil
}

func handleDestroyIntent(a *Agent, args []string) error {
	a.Scene.DestroyIntent(args[0])
	return nil
}

// Auth (§4.6). A server-role agent drives auth.Machine directly from the
// viewer's set-user/authenticate; a viewer-role agent only needs to
// remember the challenge long enough for the client package to answer
// it, since signing requires a private key this core never holds.

func handleRequestUser(a *Agent, _ []string) error {
	return a.Auth.BeginRequestUser()
}

func handleSetUser(a *Agent, args []string) error {
	user, err := wire.ParseUserID(args[0])
	if err != nil {
		return err
	}
	anonymous, nonce, err := a.Auth.SetUser(user)
	if err != nil {
		a.emit("reject-user", user)
		return err
	}
	if anonymous {
		a.Auth.Accept(wire.AnonymousUser)
		a.emit("accept-user", wire.AnonymousUser)
		return nil
	}
	a.emit("request-authentication", user, wire.FormatBytesN(nonce))
	return nil
}

func handleRequestAuthentication(a *Agent, args []string) error {
	user, err := wire.ParseUserID(args[0])
	if err != nil {
		return err
	}
	nonce, err := wire.ParseBytesN(args[1], 16)
	if err != nil {
		return err
	}
	a.PendingAuthUser = user
	a.PendingNonce = nonce
	return nil
}

func handleAuthenticate(a *Agent, args []string) error {
	user, err := wire.ParseUserID(args[0])
	if err != nil {
		return err
	}
	sig, err := wire.ParseBytesN(args[1], 64)
	if err != nil {
		return err
	}

	var pub []byte
	if a.Identities != nil {
		if k, ok := a.Identities.Lookup(user); ok {
			pub = k
		}
	}

	ok, reason := a.Auth.Authenticate(time.Now(), user, sig, pub)
	if ok {
		a.Auth.Accept(user)
		a.emit("accept-user", user)
	} else {
		a.Auth.Reject()
		// §4.6: the reason must not disclose whether the username or the
		// signature was the cause; reason is always the uniform string
		// auth.Machine.Authenticate already returns.
		a.emit("reject-user", user, reason)
	}
	return nil
}

func handleAcceptUser(a *Agent, args []string) error {
	a.Auth.Accept(args[0])
	return nil
}

func handleRejectUser(a *Agent, _ []string) error {
	a.Auth.Reject()
	return nil
}

// Session tokens (§4.7).

func handleAnnounceSession(a *Agent, args []string) error {
	raw, err := wire.ParseSessionToken(args[0])
	if err != nil {
		return err
	}
	tok, ok := session.TokenFromBytes(raw)
	if !ok || a.Sessions == nil {
		return nil
	}
	a.Sessions.Announce(tok, a.ConnID, a.Origin, time.Now())
	return nil
}

func handleRevokeSession(a *Agent, args []string) error {
	raw, err := wire.ParseSessionToken(args[0])
	if err != nil {
		return err
	}
	tok, ok := session.TokenFromBytes(raw)
	if !ok || a.Sessions == nil {
		return nil
	}
	a.Sessions.Revoke(tok)
	return nil
}

func handleResumeSession(a *Agent, args []string) error {
	raw, err := wire.ParseSessionToken(args[0])
	if err != nil {
		return err
	}
	tok, ok := session.TokenFromBytes(raw)
	if !ok || a.Sessions == nil {
		return nil
	}
	origin, valid := a.Sessions.Resume(tok, time.Now())
	if !valid || origin != a.Origin {
		return nil
	}
	if a.OnEvent != nil {
		a.OnEvent(Event{Kind: EventChat, Text: "resume-session:" + args[0]})
	}
	return nil
}

// Interaction modes (§4.9).

func handleRequestInput(a *Agent, _ []string) error {
	a.Gates.RequestInput()
	return nil
}

func handleCancelInput(a *Agent, _ []string) error {
	a.Gates.CancelInput()
	return nil
}

func handleSendInput(a *Agent, args []string) error {
	a.Gates.SetDraft(args[0])
	text, ok := a.Gates.SendInput()
	if !ok {
		return nil
	}
	if a.OnEvent != nil {
		a.OnEvent(Event{Kind: EventSendInput, Text: text})
	}
	return nil
}

func handleRaycastRequest(a *Agent, _ []string) error {
	a.Gates.RaycastRequest()
	return nil
}

func handleRaycastCancel(a *Agent, _ []string) error {
	a.Gates.RaycastCancel()
	return nil
}

func handleRaycast(a *Agent, args []string) error {
	origin, err := wire.ParseVec3(args[0])
	if err != nil {
		return err
	}
	dir, err := wire.ParseVec3(args[1])
	if err != nil {
		return err
	}
	if err := a.Gates.Raycast(origin, dir); err != nil {
		return err
	}
	if a.OnEvent != nil {
		a.OnEvent(Event{Kind: EventRaycast, Origin: origin, Dir: dir})
	}
	return nil
}

func handleTapObject(a *Agent, args []string) error {
	obj, ok := a.Scene.Object(args[0])
	if !ok {
		return nil
	}
	tapKind, err := wire.ParseTapKind(args[1])
	if err != nil {
		return err
	}
	tag := args[2]
	if !obj.Clickable || tag == "" {
		return nil
	}
	if a.OnEvent != nil {
		a.OnEvent(Event{Kind: EventTap, Object: args[0], TapKind: tapKind, Tag: tag})
	}
	return nil
}

func handleTellObject(a *Agent, args []string) error {
	obj, ok := a.Scene.Object(args[0])
	if !ok {
		return nil
	}
	if !obj.TextInput {
		return nil
	}
	if a.OnEvent != nil {
		a.OnEvent(Event{Kind: EventTell, Object: args[0], Text: args[1]})
	}
	return nil
}

func handleChat(a *Agent, args []string) error {
	if a.OnEvent != nil {
		a.OnEvent(Event{Kind: EventChat, Text: args[0], User: a.Auth.User()})
	}
	return nil
}
