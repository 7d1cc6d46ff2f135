package scene

import "math"

const degToRad = math.Pi / 180

// Quat is a unit quaternion used to store and blend rotations, avoiding
// the gimbal lock that interpolating Euler angles directly would incur
// (§4.8).
type Quat struct {
	W, X, Y, Z float64
}

// IdentityQuat is the no-rotation quaternion.
var IdentityQuat = Quat{W: 1}

// AxisAngle builds a unit quaternion rotating by angleRad radians about
// axis (which need not be normalized).
func AxisAngle(axis Vec3, angleRad float64) Quat {
	axis = axis.Normalize()
	half := angleRad / 2
	s := math.Sin(half)
	return Quat{W: math.Cos(half), X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// Mul computes the Hamilton product q*o: applying the result to a vector
// is equivalent to applying o first, then q (matches the `∘` convention
// of §4.8: (A∘B)·v = A·(B·v)).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

func (q Quat) Dot(o Quat) float64 {
	return q.W*o.W + q.X*o.X + q.Y*o.Y + q.Z*o.Z
}

func (q Quat) Length() float64 {
	return math.Sqrt(q.Dot(q))
}

func (q Quat) Normalize() Quat {
	l := q.Length()
	if l == 0 {
		return IdentityQuat
	}
	return Quat{W: q.W / l, X: q.X / l, Y: q.Y / l, Z: q.Z / l}
}

func (q Quat) Negate() Quat {
	return Quat{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Inverse returns q's inverse rotation. q is always expected to be unit
// length here, so this is just the conjugate.
func (q Quat) Inverse() Quat {
	return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Slerp performs shortest-arc spherical interpolation from a to b, per
// §4.8. When a and b point to opposite hemispheres of the double cover,
// b is negated first so the interpolation always takes the short way
// around — this is the tie-break this implementation applies at the
// gimbal-adjacent pole (an open question in the source spec).
func Slerp(a, b Quat, t float64) Quat {
	dot := a.Dot(b)
	if dot < 0 {
		b = b.Negate()
		dot = -dot
	}

	const epsilon = 1e-6
	if dot > 1-epsilon {
		// Nearly identical or antipodal-after-flip: linear interpolation
		// avoids a division by a near-zero sine.
		return Quat{
			W: a.W + (b.W-a.W)*t,
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
		}.Normalize()
	}

	theta0 := math.Acos(dot)
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	sinTheta := math.Sin(theta)

	s0 := math.Cos(theta) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return Quat{
		W: a.W*s0 + b.W*s1,
		X: a.X*s0 + b.X*s1,
		Y: a.Y*s0 + b.Y*s1,
		Z: a.Z*s0 + b.Z*s1,
	}
}

// Local axis basis this package uses before any rotation is applied.
var (
	axisRight   = Vec3{X: 1}
	axisUp      = Vec3{Y: 1}
	axisForward = Vec3{Z: -1}
)

// EulerToQuat converts pan/tilt/roll degrees (§3, §4.8) to a quaternion.
// Intrinsic rotations are applied roll, then tilt, then pan — so the
// composed quaternion is Pan * Tilt * Roll (roll is innermost, applied
// to the object first).
//
// Axes are chosen by effect, not bare right-hand-rule: pan about local
// Up turns right for positive values; tilt about local Left (-Right)
// looks up for positive values; roll about local Forward tilts the head
// right for positive values. Each sign below is derived from the
// Right=+X, Up=+Y, Forward=-Z basis this package fixes.
func EulerToQuat(panDeg, tiltDeg, rollDeg float64) Quat {
	pan := AxisAngle(axisUp, -panDeg*degToRad)
	tilt := AxisAngle(axisRight, tiltDeg*degToRad)
	roll := AxisAngle(axisForward, rollDeg*degToRad)
	return pan.Mul(tilt).Mul(roll)
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	qv := Quat{X: v.X, Y: v.Y, Z: v.Z}
	r := q.Mul(qv).Mul(Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z})
	return Vec3{X: r.X, Y: r.Y, Z: r.Z}
}
