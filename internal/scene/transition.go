package scene

import (
	"time"

	"github.com/hackvr/hackvr-core/internal/wire"
)

// Channel is one of the three independently-transitioning transform
// channels (§3, §4.8).
type Channel int

const (
	ChannelPos Channel = iota
	ChannelRot
	ChannelScale
)

// posTransition, rotTransition, scaleTransition record one channel's
// in-flight animation: the value it started from, the target, and the
// wall-clock window it plays out over. Rot is stored/blended as a
// quaternion even though the wire command authors it as Euler degrees.
type posTransition struct {
	start, target Vec3
	startTime     time.Time
	duration      time.Duration
}

type rotTransition struct {
	start, target Quat
	startTime     time.Time
	duration      time.Duration
}

type scaleTransition struct {
	start, target Vec3
	startTime     time.Time
	duration      time.Duration
}

// transitionSet tracks every object's in-flight per-channel transitions.
// An object with no entry in a given channel's map simply holds its
// authored value unchanged.
type transitionSet struct {
	pos   map[string]*posTransition
	rot   map[string]*rotTransition
	scale map[string]*scaleTransition
	now   func() time.Time
}

func newTransitionSet() *transitionSet {
	return &transitionSet{
		pos:   make(map[string]*posTransition),
		rot:   make(map[string]*rotTransition),
		scale: make(map[string]*scaleTransition),
		now:   time.Now,
	}
}

func (ts *transitionSet) forget(id string) {
	delete(ts.pos, id)
	delete(ts.rot, id)
	delete(ts.scale, id)
}

// StartPos cancels any in-flight pos transition for id and starts a new
// one from its currently-interpolated value (§4.8: "cancel any prior
// transition on that channel and start a new one from its current
// interpolated value at command-receipt time").
func (s *Scene) StartPos(id string, target Vec3, duration time.Duration) {
	obj, ok := s.objects[id]
	if !ok {
		return
	}
	start := s.transitions.currentPos(id, obj.LocalPos)
	obj.LocalPos = target // authored value once the transition completes
	if duration <= 0 {
		delete(s.transitions.pos, id)
		return
	}
	s.transitions.pos[id] = &posTransition{start: start, target: target, startTime: s.transitions.now(), duration: duration}
}

func (s *Scene) StartRot(id string, targetEuler Vec3, duration time.Duration) {
	obj, ok := s.objects[id]
	if !ok {
		return
	}
	authoredRot := EulerToQuat(obj.LocalEuler.X, obj.LocalEuler.Y, obj.LocalEuler.Z)
	start := s.transitions.rotQuat(id, authoredRot)
	target := EulerToQuat(targetEuler.X, targetEuler.Y, targetEuler.Z)
	obj.LocalEuler = targetEuler
	if duration <= 0 {
		delete(s.transitions.rot, id)
		return
	}
	s.transitions.rot[id] = &rotTransition{start: start, target: target, startTime: s.transitions.now(), duration: duration}
}

func (s *Scene) StartScale(id string, target Vec3, duration time.Duration) {
	obj, ok := s.objects[id]
	if !ok {
		return
	}
	start := s.transitions.currentScale(id, obj.LocalScale)
	obj.LocalScale = target
	if duration <= 0 {
		delete(s.transitions.scale, id)
		return
	}
	s.transitions.scale[id] = &scaleTransition{start: start, target: target, startTime: s.transitions.now(), duration: duration}
}

func (ts *transitionSet) currentPos(id string, authored Vec3) Vec3 {
	tr, ok := ts.pos[id]
	if !ok {
		return authored
	}
	t := progress(ts.now(), tr.startTime, tr.duration)
	if t >= 1 {
		delete(ts.pos, id)
		return tr.target
	}
	return tr.start.Add(tr.target.Sub(tr.start).Scale(t))
}

// rotQuat returns the object's current interpolated rotation as a
// quaternion, blending in-flight transitions via shortest-arc slerp.
func (ts *transitionSet) rotQuat(id string, authored Quat) Quat {
	tr, ok := ts.rot[id]
	if !ok {
		return authored
	}
	t := progress(ts.now(), tr.startTime, tr.duration)
	if t >= 1 {
		delete(ts.rot, id)
		return tr.target
	}
	return Slerp(tr.start, tr.target, t)
}

func (ts *transitionSet) currentScale(id string, authored Vec3) Vec3 {
	tr, ok := ts.scale[id]
	if !ok {
		return authored
	}
	t := progress(ts.now(), tr.startTime, tr.duration)
	if t >= 1 {
		delete(ts.scale, id)
		return tr.target
	}
	return tr.start.Add(tr.target.Sub(tr.start).Scale(t))
}

func progress(now, start time.Time, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	elapsed := now.Sub(start)
	t := float64(elapsed) / float64(duration)
	if t > 1 {
		return 1
	}
	if t < 0 {
		return 0
	}
	return t
}

// trackState is one object's tracking configuration (§4.8's track-object).
type trackState struct {
	target string
	mode   wire.TrackMode
}
