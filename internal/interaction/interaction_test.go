package interaction

import (
	"testing"

	"github.com/hackvr/hackvr-core/internal/wire"
)

func TestTextInputModeLifecycle(t *testing.T) {
	g := NewGates()
	if g.TextInputMode() {
		t.Fatal("text_input_mode should start false")
	}
	g.SetDraft("hello")
	g.RequestInput()
	if !g.TextInputMode() {
		t.Fatal("request-input must enable text_input_mode")
	}
	if g.Draft() != "hello" {
		t.Fatal("request-input must not clear the draft")
	}

	text, ok := g.SendInput()
	if !ok || text != "hello" {
		t.Fatalf("send-input while in mode should succeed with the draft, got %q, %v", text, ok)
	}
	if g.TextInputMode() {
		t.Fatal("send-input must exit text_input_mode")
	}

	if _, ok := g.SendInput(); ok {
		t.Fatal("send-input outside text_input_mode must fail")
	}
}

func TestCancelInput(t *testing.T) {
	g := NewGates()
	g.RequestInput()
	g.CancelInput()
	if g.TextInputMode() {
		t.Fatal("cancel-input must disable text_input_mode")
	}
}

func TestRaycastModeLifecycle(t *testing.T) {
	g := NewGates()
	if err := g.Raycast(wire.Vec3{}, wire.Vec3{Z: -1}); err == nil {
		t.Fatal("raycast outside raycast_mode must error")
	}

	g.RaycastRequest()
	g.RaycastRequest() // idempotent
	if !g.RaycastMode() {
		t.Fatal("raycast-request must enable raycast_mode")
	}

	if err := g.Raycast(wire.Vec3{}, wire.Vec3{}); err == nil {
		t.Fatal("zero-vector raycast direction must be rejected")
	}
	if !g.RaycastMode() {
		t.Fatal("a rejected raycast command must not exit raycast_mode")
	}

	if err := g.Raycast(wire.Vec3{}, wire.Vec3{Z: -1}); err != nil {
		t.Fatalf("valid raycast should succeed: %v", err)
	}
	if g.RaycastMode() {
		t.Fatal("a successful raycast must exit raycast_mode")
	}

	g.RaycastRequest()
	g.RaycastCancel()
	if g.RaycastMode() {
		t.Fatal("raycast-cancel must disable raycast_mode")
	}
}

func TestCanTap(t *testing.T) {
	if CanTap(false, "floor") {
		t.Fatal("non-clickable object must not be tappable")
	}
	if CanTap(true, "") {
		t.Fatal("empty tag must not be tappable")
	}
	if !CanTap(true, "floor") {
		t.Fatal("clickable object with a tag must be tappable")
	}
}

func TestResolveActionMutualExclusion(t *testing.T) {
	if got := ResolveAction(true, "floor", true, "https://example.com/"); got != ActionOpenHref {
		t.Fatalf("href set must win over tap/tell, got %v", got)
	}
	if got := ResolveAction(true, "floor", true, ""); got != ActionTell {
		t.Fatalf("textinput must win over tap when no href, got %v", got)
	}
	if got := ResolveAction(true, "floor", false, ""); got != ActionTap {
		t.Fatalf("tap should fire when clickable and no textinput/href, got %v", got)
	}
	if got := ResolveAction(false, "", false, ""); got != ActionNone {
		t.Fatalf("no interaction should fire for a plain object, got %v", got)
	}
}
