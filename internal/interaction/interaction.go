// Package interaction implements the HackVR interaction mode gates of
// §4.9: text-input mode, raycast mode, and the tap/tell/open-href gating
// rules that determine which viewer-initiated interaction commands are
// currently legal.
package interaction

import (
	"fmt"

	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/wire"
)

var log = logging.L("interaction")

// Gates holds one connection's interaction-mode state. It is not safe for
// concurrent use; per §5 a connection is a single-threaded agent.
type Gates struct {
	textInputMode bool
	draft         string // opaque viewer-held text-input draft, never cleared by a new request-input

	raycastMode bool
}

// NewGates returns Gates with both modes off and an empty draft.
func NewGates() *Gates {
	return &Gates{}
}

// TextInputMode reports whether send-input is currently legal.
func (g *Gates) TextInputMode() bool { return g.textInputMode }

// RaycastMode reports whether raycast is currently legal.
func (g *Gates) RaycastMode() bool { return g.raycastMode }

// Draft returns the viewer-held text-input draft (opaque to the server;
// this core only preserves it across a replacing request-input per §4.9).
func (g *Gates) Draft() string { return g.draft }

// SetDraft records the viewer's current draft contents. Called by the
// viewer side as the user types; never called by request-input/
// cancel-input, which must not clear it.
func (g *Gates) SetDraft(text string) { g.draft = text }

// RequestInput implements the server's `request-input` (S→C): enables
// text_input_mode. A new request-input replaces any prior one (there is
// only one outstanding request at a time) but must not clear the draft.
func (g *Gates) RequestInput() {
	g.textInputMode = true
}

// CancelInput implements `cancel-input` (S→C): disables text_input_mode.
func (g *Gates) CancelInput() {
	g.textInputMode = false
}

// SendInput implements the viewer's `send-input` (C→S): valid only while
// text_input_mode was true at submission, per §4.9. A call while the mode
// is off is a command error and must be dropped by the caller without
// ever reaching this method's success path; this method reports that so
// the dispatcher can decide.
func (g *Gates) SendInput() (text string, ok bool) {
	if !g.textInputMode {
		return "", false
	}
	g.textInputMode = false
	text, g.draft = g.draft, ""
	return text, true
}

// RaycastRequest implements `raycast-request` (S→C): idempotently enables
// raycast_mode.
func (g *Gates) RaycastRequest() {
	g.raycastMode = true
}

// RaycastCancel implements `raycast-cancel` (either direction): disables
// raycast_mode.
func (g *Gates) RaycastCancel() {
	g.raycastMode = false
}

// Raycast implements the viewer's `raycast <origin> <dir>` (C→S): valid
// only while raycast_mode is on, and dir must be non-zero (§4.9). On
// success the mode is exited, matching "false by ... the viewer emitting
// raycast".
func (g *Gates) Raycast(origin, dir wire.Vec3) error {
	if !g.raycastMode {
		return fmt.Errorf("interaction: raycast received outside raycast_mode")
	}
	if dir.IsZero() {
		return fmt.Errorf("interaction: raycast direction must be non-zero")
	}
	g.raycastMode = false
	return nil
}

// Clickable, TextInputEnabled, and Href are the per-object fields §4.9
// gates against; they live on scene.Object, so this package only exposes
// the gating predicates themselves to avoid an import cycle (scene does
// not need to know about interaction).

// CanTap reports whether a tap-object is legal for an object with the
// given clickable flag and the picked triangle's tag: clickable must be
// true and the tag non-empty (sprites always have a non-empty derived
// tag, so they are never excluded by this rule).
func CanTap(clickable bool, tag string) bool {
	return clickable && tag != ""
}

// CanTell reports whether a tell-object is legal for an object with the
// given textinput flag.
func CanTell(textInput bool) bool {
	return textInput
}

// Action enumerates the mutually-exclusive single-user-action outcomes
// of §4.9: tap, tell, and open-href cannot both fire for one action.
type Action int

const (
	ActionNone Action = iota
	ActionTap
	ActionTell
	ActionOpenHref
)

// ResolveAction picks the single interaction outcome for one user action
// against an object's gates, preferring href (a navigation confirmation
// dialog preempts in-world interaction) over tell over tap, which is an
// implementation choice among equally-valid orderings since §4.9 only
// requires the three be mutually exclusive, not prioritized.
func ResolveAction(clickable bool, tag string, textInput bool, href string) Action {
	if href != "" {
		return ActionOpenHref
	}
	if textInput {
		return ActionTell
	}
	if CanTap(clickable, tag) {
		return ActionTap
	}
	return ActionNone
}
