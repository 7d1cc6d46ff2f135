package scene

import (
	"math"
	"time"

	"github.com/hackvr/hackvr-core/internal/wire"
)

// Track implements `track-object`: applies an aimed rotation layer
// (R_track) so the object points at target. Self-tracking and tracking a
// descendant are ignored (§4.8). t is used only as the duration of a
// fresh rot-channel transition toward the object's authored rotation; the
// R_track layer itself is not eased and takes full effect at once, and
// StopTrack removes it at once.
func (s *Scene) Track(id, target string, mode wire.TrackMode, t time.Duration) error {
	if id == target || s.isDescendant(target, id) {
		return nil
	}
	if _, ok := s.objects[id]; !ok {
		return nil
	}
	// A tracking cycle (a tracks b while b, possibly transitively, tracks
	// a) would recurse without bound when resolving world transforms, so
	// it is ignored like the self/descendant cases. The walk terminates
	// because this check keeps the tracking graph acyclic.
	for cur := target; ; {
		if cur == id {
			return nil
		}
		ts, ok := s.tracking[cur]
		if !ok {
			break
		}
		cur = ts.target
	}
	s.tracking[id] = &trackState{target: target, mode: mode}
	// Restart the object's own rot-channel transition (R_local) from its
	// current interpolated value toward its authored rotation, over t.
	// This does not ease R_track.
	s.StartRot(id, s.objects[id].LocalEuler, t)
	return nil
}

func (s *Scene) StopTrack(id string) {
	delete(s.tracking, id)
}

// trackRotation computes R_track for id: identity if untracked or the
// target is currently missing (§4.8: "If target is currently missing,
// R_track = identity (no-op) until it reappears").
//
// R_track is composed underneath the parent's world rotation (see
// WorldTransform/compose), so aiming it at the target requires un-rotating
// the world-space target direction into the parent's frame first — aiming
// axisForward at the raw world-space direction would leave the object's
// actual world-space forward rotated by whatever the parent chain
// contributes, drifting off-target under any non-identity ancestor
// rotation.
func (s *Scene) trackRotation(id string) Quat {
	ts, ok := s.tracking[id]
	if !ok {
		return IdentityQuat
	}
	obj, ok := s.objects[id]
	if !ok {
		return IdentityQuat
	}
	if _, ok := s.objects[ts.target]; !ok {
		return IdentityQuat
	}

	parentWorld := Transform{Scale: Vec3{X: 1, Y: 1, Z: 1}, Rot: IdentityQuat}
	if obj.Parent != "" && obj.Parent != id {
		parentWorld = s.WorldTransform(obj.Parent)
	}

	localPos := s.transitions.currentPos(id, obj.LocalPos)
	selfPos := parentWorld.Pos.Add(parentWorld.Rot.Rotate(Vec3{
		X: localPos.X * parentWorld.Scale.X,
		Y: localPos.Y * parentWorld.Scale.Y,
		Z: localPos.Z * parentWorld.Scale.Z,
	}))

	targetWorld := s.WorldTransform(ts.target)
	toTarget := targetWorld.Pos.Sub(selfPos)
	if toTarget.IsZero() {
		return IdentityQuat
	}

	invParentRot := parentWorld.Rot.Inverse()

	switch ts.mode {
	case wire.TrackFocus:
		localTarget := invParentRot.Rotate(toTarget.Normalize())
		return rotationBetween(axisForward, localTarget.Normalize())
	default: // plane
		flat := Vec3{X: toTarget.X, Y: 0, Z: toTarget.Z}
		if flat.IsZero() {
			return IdentityQuat
		}
		localFlat := invParentRot.Rotate(flat.Normalize())
		return rotationBetween(axisForward, localFlat.Normalize())
	}
}

// rotationBetween returns the shortest-arc rotation taking unit vector
// from to unit vector to.
func rotationBetween(from, to Vec3) Quat {
	dot := from.Dot(to)
	if dot > 1-1e-9 {
		return IdentityQuat
	}
	if dot < -1+1e-9 {
		// 180 degrees: any axis orthogonal to `from` works. Prefer Up (its
		// part orthogonal to `from`), falling back to Right if `from` is
		// parallel to Up.
		axis := axisUp.Sub(from.Scale(from.Dot(axisUp)))
		if axis.IsZero() {
			axis = axisRight.Sub(from.Scale(from.Dot(axisRight)))
		}
		return AxisAngle(axis, math.Pi)
	}
	axis := from.Cross(to)
	w := 1 + dot
	return Quat{W: w, X: axis.X, Y: axis.Y, Z: axis.Z}.Normalize()
}

// EnableFreeLook implements `enable-free-look`. Disabling resets R_free
// to identity; enabling leaves whatever free-look rotation was already
// accumulated (pan/tilt, and optionally roll) until the viewer clears it.
func (s *Scene) EnableFreeLook(enabled bool) {
	s.freeLook = enabled
	if !enabled {
		s.freeLookRot = IdentityQuat
	}
}

// SetFreeLookRot sets the viewer-local R_free layer while free-look is
// enabled; a no-op otherwise.
func (s *Scene) SetFreeLookRot(panDeg, tiltDeg, rollDeg float64) {
	if !s.freeLook {
		return
	}
	s.freeLookRot = EulerToQuat(panDeg, tiltDeg, rollDeg)
}
