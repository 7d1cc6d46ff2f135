// Package scene implements the HackVR scene state engine (§3, §4.8):
// geometries, objects, the scene graph, and their properties. It is
// owned exclusively by one connection's agent goroutine and is not safe
// for concurrent use, per §5's single-threaded-per-connection model.
package scene

import (
	"fmt"

	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/wire"
)

var log = logging.L("scene")

// Vec3 and Vec2 are re-exported from the wire codec so scene math and
// wire parsing share one vector representation end to end.
type (
	Vec3 = wire.Vec3
	Vec2 = wire.Vec2
)

// Reserved object/geometry ids that always exist.
const (
	GlobalID = "$global"
	CameraID = "$camera"
)

// PredefinedIntentIDs are the only reserved intent ids §3 defines; any
// other $-prefixed intent id is not spec-defined and must be rejected by
// create-intent (§4.10's "only spec-defined values are valid").
var PredefinedIntentIDs = []string{"$forward", "$back", "$left", "$right", "$up", "$down", "$stop"}

// GeometryKind distinguishes the three geometry variants (§3). Once a
// geometry id is created with one kind it can never switch (§4.8's
// "duplicate create is ignored" combines with this to mean geometry
// variant is fixed for the id's lifetime).
type GeometryKind int

const (
	KindTriangleSoup GeometryKind = iota
	KindSprite
	KindTextSprite
)

// Triangle is one tagged triangle in a triangle-soup geometry.
type Triangle struct {
	Tag        string
	Color      wire.Color
	V0, V1, V2 Vec3
}

// Geometry is one entry in the geometry population, tagged by Kind.
type Geometry struct {
	ID   string
	Kind GeometryKind

	// KindTriangleSoup
	Triangles []Triangle

	// KindSprite / KindTextSprite
	Width, Height float64
	Anchor        wire.Anchor
	URI           string
	SHA256        string
	SizeMode      wire.SizeMode

	// KindTextSprite only
	FontURI         string
	Text            string
	TextColor       wire.Color
	BackgroundColor wire.Color
}

// Object is one entry in the scene graph (§3).
type Object struct {
	ID     string
	Parent string

	LocalPos   Vec3
	LocalEuler Vec3 // pan, tilt, roll degrees, as authored by set-object-transform
	LocalScale Vec3

	TrackTarget string
	TrackMode   wire.TrackMode

	Geometry string // attached geometry id, "" if none

	Clickable bool
	TextInput bool
	Href      string
}

// Scene holds one connection's entire server-authored world state.
type Scene struct {
	objects    map[string]*Object
	geometries map[string]*Geometry
	intents    map[string]string

	transitions *transitionSet
	tracking    map[string]*trackState
	freeLook    bool
	freeLookRot Quat
}

func New() *Scene {
	s := &Scene{
		objects:     make(map[string]*Object),
		geometries:  make(map[string]*Geometry),
		intents:     defaultIntents(),
		transitions: newTransitionSet(),
		tracking:    make(map[string]*trackState),
		freeLookRot: IdentityQuat,
	}
	s.objects[GlobalID] = &Object{ID: GlobalID, LocalScale: Vec3{X: 1, Y: 1, Z: 1}}
	s.objects[CameraID] = &Object{ID: CameraID, Parent: GlobalID, LocalScale: Vec3{X: 1, Y: 1, Z: 1}}
	s.geometries[GlobalID] = &Geometry{ID: GlobalID, Kind: KindTriangleSoup}
	return s
}

func defaultIntents() map[string]string {
	m := make(map[string]string, len(PredefinedIntentIDs))
	for _, id := range PredefinedIntentIDs {
		m[id] = id
	}
	return m
}

// ObjectIDs returns every current object id, for selector population
// queries.
func (s *Scene) ObjectIDs() []string {
	out := make([]string, 0, len(s.objects))
	for id := range s.objects {
		out = append(out, id)
	}
	return out
}

func (s *Scene) GeometryIDs() []string {
	out := make([]string, 0, len(s.geometries))
	for id := range s.geometries {
		out = append(out, id)
	}
	return out
}

// IntentIDs returns every current intent id, for selector population
// queries over the intent registry (§3).
func (s *Scene) IntentIDs() []string {
	out := make([]string, 0, len(s.intents))
	for id := range s.intents {
		out = append(out, id)
	}
	return out
}

// ObjectCount reports the current object population size, including the
// predefined $global and $camera.
func (s *Scene) ObjectCount() int {
	return len(s.objects)
}

// TriangleCount reports geomID's current triangle count; zero when the
// geometry is missing or not a triangle soup.
func (s *Scene) TriangleCount(geomID string) int {
	g, ok := s.geometries[geomID]
	if !ok || g.Kind != KindTriangleSoup {
		return 0
	}
	return len(g.Triangles)
}

// NestingDepth reports how many parent links separate id from $global.
func (s *Scene) NestingDepth(id string) int {
	depth := 0
	cur := id
	for cur != "" && cur != GlobalID {
		obj, ok := s.objects[cur]
		if !ok || obj.Parent == cur {
			break
		}
		depth++
		cur = obj.Parent
	}
	return depth
}

// SubtreeHeight reports the longest descendant chain below id; a leaf
// has height zero.
func (s *Scene) SubtreeHeight(id string) int {
	h := 0
	for _, child := range s.childrenOf(id) {
		if ch := s.SubtreeHeight(child.ID) + 1; ch > h {
			h = ch
		}
	}
	return h
}

func (s *Scene) Object(id string) (*Object, bool) {
	o, ok := s.objects[id]
	return o, ok
}

func (s *Scene) Geometry(id string) (*Geometry, bool) {
	g, ok := s.geometries[id]
	return g, ok
}

// CreateObject implements `create-object`. A duplicate create is ignored
// (§4.8): it is a no-op, not an overwrite.
func (s *Scene) CreateObject(id string) {
	if _, exists := s.objects[id]; exists {
		log.Debug("duplicate create-object ignored", logging.KeyComponent, "scene", "object", id)
		return
	}
	s.objects[id] = &Object{
		ID:         id,
		Parent:     GlobalID,
		LocalScale: Vec3{X: 1, Y: 1, Z: 1},
	}
}

// CreateGeometry implements the create-family geometry commands (one per
// Kind). Duplicate create is ignored.
func (s *Scene) CreateGeometry(id string, kind GeometryKind) {
	if _, exists := s.geometries[id]; exists {
		return
	}
	s.geometries[id] = &Geometry{ID: id, Kind: kind}
}

// DestroyObject implements `destroy-object`. $global and $camera cannot
// be destroyed. Children are reparented to $global with their world
// transform preserved.
func (s *Scene) DestroyObject(id string) error {
	if id == GlobalID || id == CameraID {
		return fmt.Errorf("scene: %s cannot be destroyed", id)
	}
	if _, ok := s.objects[id]; !ok {
		return nil // missing referenced object is a no-op, §4.10
	}

	for _, child := range s.childrenOf(id) {
		worldBefore := s.WorldTransform(child.ID)
		child.Parent = GlobalID
		s.setLocalFromWorld(child, worldBefore)
	}

	delete(s.objects, id)
	s.transitions.forget(id)
	delete(s.tracking, id)
	return nil
}

// ReparentObject implements `reparent-object`. mode=world preserves the
// world transform; mode=local keeps the local transform. Cycles and
// reparenting $global are rejected.
func (s *Scene) ReparentObject(id, newParent string, mode wire.ReparentMode) error {
	if id == GlobalID {
		return fmt.Errorf("scene: $global cannot be reparented")
	}
	obj, ok := s.objects[id]
	if !ok {
		return nil
	}
	if _, ok := s.objects[newParent]; !ok {
		return nil
	}
	if newParent == id || s.isDescendant(newParent, id) {
		return fmt.Errorf("scene: reparenting %s under %s would create a cycle", id, newParent)
	}

	switch mode {
	case wire.ReparentLocal:
		obj.Parent = newParent
	default: // world, including the zero value
		worldBefore := s.WorldTransform(id)
		obj.Parent = newParent
		s.setLocalFromWorld(obj, worldBefore)
	}
	return nil
}

// isDescendant reports whether candidate is id or a descendant of id.
func (s *Scene) isDescendant(candidate, id string) bool {
	cur := candidate
	for cur != "" {
		if cur == id {
			return true
		}
		obj, ok := s.objects[cur]
		if !ok {
			return false
		}
		if obj.Parent == cur {
			return false
		}
		cur = obj.Parent
	}
	return false
}

func (s *Scene) childrenOf(parent string) []*Object {
	var out []*Object
	for _, o := range s.objects {
		if o.ID != parent && o.Parent == parent {
			out = append(out, o)
		}
	}
	return out
}

// SetObjectProperty implements `set-object-property <obj> <prop> <value>`
// (§3's object property bag): clickable/textinput are bools, href is a
// string. An unknown property name or a malformed bool value is a
// malformed-typed-argument command error (§4.10); a missing object is a
// no-op.
func (s *Scene) SetObjectProperty(id, prop, value string) error {
	obj, ok := s.objects[id]
	if !ok {
		return nil
	}
	switch prop {
	case "clickable":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		obj.Clickable = b
	case "textinput":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		obj.TextInput = b
	case "href":
		if _, err := wire.ParseURI(value); err != nil && value != "" {
			return err
		}
		obj.Href = value
	default:
		return fmt.Errorf("scene: unknown object property %q", prop)
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("scene: invalid bool %q", s)
	}
}

// AttachGeometry and DetachGeometry implement attaching/clearing an
// object's geometry reference. A missing object or geometry is a no-op.
func (s *Scene) AttachGeometry(id, geomID string) {
	obj, ok := s.objects[id]
	if !ok {
		return
	}
	if _, ok := s.geometries[geomID]; !ok {
		return
	}
	obj.Geometry = geomID
}

func (s *Scene) DetachGeometry(id string) {
	if obj, ok := s.objects[id]; ok {
		obj.Geometry = ""
	}
}

// Intent registry (§3).
func (s *Scene) CreateIntent(id, label string) {
	s.intents[id] = label
}

func (s *Scene) DestroyIntent(id string) {
	delete(s.intents, id)
}

func (s *Scene) Intent(id string) (string, bool) {
	label, ok := s.intents[id]
	return label, ok
}
