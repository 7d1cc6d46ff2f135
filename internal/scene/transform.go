package scene

import "math"

// Transform is a resolved world- or local-space pose: translation,
// rotation, and scale, composed per §4.8's
// T(O) = Translate(pos) ∘ R_track(O) ∘ R_local(O) ∘ Scale(scale).
type Transform struct {
	Pos   Vec3
	Rot   Quat
	Scale Vec3
}

// WorldTransform resolves id's full world-space pose by walking up the
// parent chain, applying each ancestor's translate/rotate/scale in turn.
// Tracking rotation (R_track) is included for the object itself but not
// folded into intermediate ancestor poses twice — each ancestor
// contributes its own R_track once, as the chain is walked.
func (s *Scene) WorldTransform(id string) Transform {
	obj, ok := s.objects[id]
	if !ok {
		return Transform{Scale: Vec3{X: 1, Y: 1, Z: 1}, Rot: IdentityQuat}
	}

	local := s.localTransform(obj)

	if obj.Parent == "" || obj.Parent == id {
		return local
	}
	parentWorld := s.WorldTransform(obj.Parent)
	return compose(parentWorld, local)
}

// localTransform resolves an object's pose in its parent's space,
// including its own tracking rotation, interpolated transitions, and (for
// $camera) the free-look layer on top of R_local (§4.8's camera
// composition: R_render($camera) = R_track ∘ R_local ∘ R_free).
func (s *Scene) localTransform(obj *Object) Transform {
	pos := s.transitions.currentPos(obj.ID, obj.LocalPos)
	scaleV := s.transitions.currentScale(obj.ID, obj.LocalScale)

	authoredRot := EulerToQuat(obj.LocalEuler.X, obj.LocalEuler.Y, obj.LocalEuler.Z)
	rLocal := s.transitions.rotQuat(obj.ID, authoredRot)
	rTrack := s.trackRotation(obj.ID)

	rot := rTrack.Mul(rLocal)
	if obj.ID == CameraID {
		rot = rot.Mul(s.freeLookRot)
	}

	return Transform{Pos: pos, Rot: rot, Scale: scaleV}
}

// compose applies child on top of parent: the child's local pose is
// expressed in the parent's space, then the parent's own pose is
// applied, matching (A∘B)·v = A·(B·v).
func compose(parent, child Transform) Transform {
	rotatedPos := parent.Rot.Rotate(Vec3{
		X: child.Pos.X * parent.Scale.X,
		Y: child.Pos.Y * parent.Scale.Y,
		Z: child.Pos.Z * parent.Scale.Z,
	})
	return Transform{
		Pos:   parent.Pos.Add(rotatedPos),
		Rot:   parent.Rot.Mul(child.Rot),
		Scale: Vec3{X: parent.Scale.X * child.Scale.X, Y: parent.Scale.Y * child.Scale.Y, Z: parent.Scale.Z * child.Scale.Z},
	}
}

// setLocalFromWorld recomputes obj's local pos/euler/scale so that, under
// obj's current (already-updated) Parent, its world transform equals
// target. Used by destroy-reparenting and reparent-object mode=world.
func (s *Scene) setLocalFromWorld(obj *Object, target Transform) {
	parentWorld := s.WorldTransform(obj.Parent)

	invParentRot := parentWorld.Rot.Inverse()
	delta := target.Pos.Sub(parentWorld.Pos)
	localPos := invParentRot.Rotate(delta)
	localPos = Vec3{
		X: divOrZero(localPos.X, parentWorld.Scale.X),
		Y: divOrZero(localPos.Y, parentWorld.Scale.Y),
		Z: divOrZero(localPos.Z, parentWorld.Scale.Z),
	}

	localRot := invParentRot.Mul(target.Rot)
	obj.LocalEuler = quatToEulerApprox(localRot)
	obj.LocalPos = localPos
	obj.LocalScale = Vec3{
		X: divOrZero(target.Scale.X, parentWorld.Scale.X),
		Y: divOrZero(target.Scale.Y, parentWorld.Scale.Y),
		Z: divOrZero(target.Scale.Z, parentWorld.Scale.Z),
	}

	s.transitions.forget(obj.ID)
}

func divOrZero(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// quatToEulerApprox recovers a pan/tilt/roll approximation from a
// quaternion for bookkeeping purposes after a reparent. Round-tripping
// through Euler loses no information the protocol exposes, since rot is
// always re-authored as a fresh pan/tilt/roll target by the next
// set-object-transform; this value only needs to reproduce the same
// world rotation until then.
func quatToEulerApprox(q Quat) Vec3 {
	q = q.Normalize()
	// Recover roll, tilt, pan (order exercised by EulerToQuat: Pan*Tilt*Roll)
	// via the standard quaternion-to-Euler conversion against this
	// package's fixed Right/Up/Forward basis.
	sinTilt := 2 * (q.W*q.X + q.Y*q.Z)
	cosTilt := 1 - 2*(q.X*q.X+q.Y*q.Y)
	tilt := math.Atan2(sinTilt, cosTilt)

	sinPan := 2 * (q.W*q.Y - q.Z*q.X)
	sinPan = math.Max(-1, math.Min(1, sinPan))
	pan := math.Asin(sinPan)

	sinRoll := 2 * (q.W*q.Z + q.X*q.Y)
	cosRoll := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	roll := math.Atan2(sinRoll, cosRoll)

	return Vec3{X: -pan / degToRad, Y: tilt / degToRad, Z: -roll / degToRad}
}
