package scene

import (
	"fmt"

	"github.com/hackvr/hackvr-core/internal/selector"
	"github.com/hackvr/hackvr-core/internal/wire"
)

// AddTriangleList implements `add-triangle-list`: each consecutive
// (color, v0, v1, v2) triple yields one triangle sharing tag.
func (s *Scene) AddTriangleList(geomID, tag string, colors []wire.Color, verts [][3]Vec3) error {
	g, err := s.soupFor(geomID)
	if err != nil {
		return err
	}
	if len(colors) != len(verts) {
		return fmt.Errorf("scene: mismatched triangle list lengths")
	}
	for i, c := range colors {
		g.Triangles = append(g.Triangles, Triangle{Tag: tag, Color: c, V0: verts[i][0], V1: verts[i][1], V2: verts[i][2]})
	}
	return nil
}

// AddTriangleStrip implements `add-triangle-strip`: the first three
// vertices seed a triangle; each subsequent vertex pos forms
// (seq[n-2], seq[n-1], pos), one shared color.
func (s *Scene) AddTriangleStrip(geomID, tag string, color wire.Color, seq []Vec3) error {
	g, err := s.soupFor(geomID)
	if err != nil {
		return err
	}
	if len(seq) < 3 {
		return nil
	}
	for n := 2; n < len(seq); n++ {
		g.Triangles = append(g.Triangles, Triangle{Tag: tag, Color: color, V0: seq[n-2], V1: seq[n-1], V2: seq[n]})
	}
	return nil
}

// AddTriangleFan implements `add-triangle-fan`: each subsequent vertex
// forms (seq[0], seq[n-1], pos), one shared color.
func (s *Scene) AddTriangleFan(geomID, tag string, color wire.Color, seq []Vec3) error {
	g, err := s.soupFor(geomID)
	if err != nil {
		return err
	}
	if len(seq) < 3 {
		return nil
	}
	for n := 2; n < len(seq); n++ {
		g.Triangles = append(g.Triangles, Triangle{Tag: tag, Color: color, V0: seq[0], V1: seq[n-1], V2: seq[n]})
	}
	return nil
}

// RemoveTriangles implements `remove-triangles <geom> <tag-selector>`:
// matches over the tagged-triangle population within geomID. Untagged
// triangles (empty tag) are never removed, since an empty tag is
// unreferenceable by any selector.
func (s *Scene) RemoveTriangles(geomID string, tagSelector string, capLimit int) error {
	g, ok := s.geometries[geomID]
	if !ok || g.Kind != KindTriangleSoup {
		return nil
	}

	tagPop := make([]string, 0, len(g.Triangles))
	seenTag := make(map[string]bool)
	for _, tri := range g.Triangles {
		if tri.Tag != "" && !seenTag[tri.Tag] {
			seenTag[tri.Tag] = true
			tagPop = append(tagPop, tri.Tag)
		}
	}

	matches, _, err := selector.Expand(tagSelector, tagPop, capLimit)
	if err != nil {
		return err
	}
	toRemove := make(map[string]bool, len(matches))
	for _, m := range matches {
		toRemove[m] = true
	}

	kept := g.Triangles[:0]
	for _, tri := range g.Triangles {
		if tri.Tag != "" && toRemove[tri.Tag] {
			continue
		}
		kept = append(kept, tri)
	}
	g.Triangles = kept
	return nil
}

func (s *Scene) soupFor(geomID string) (*Geometry, error) {
	g, ok := s.geometries[geomID]
	if !ok {
		return nil, nil // missing geometry is a no-op
	}
	if g.Kind != KindTriangleSoup {
		return nil, fmt.Errorf("scene: %s is not a triangle soup", geomID)
	}
	return g, nil
}

// CreateSprite and CreateTextSprite implement the sprite create-family
// commands. Both are exactly two triangles at render time (§4.8); this
// package stores the sprite parameters rather than materializing
// triangles, since the two-triangle rectangle is a rendering detail the
// viewer, not this core, is responsible for producing.
func (s *Scene) CreateSprite(id string, width, height float64, anchor wire.Anchor, uri, sha256 string, sizeMode wire.SizeMode) {
	if _, exists := s.geometries[id]; exists {
		return
	}
	s.geometries[id] = &Geometry{
		ID: id, Kind: KindSprite,
		Width: width, Height: height, Anchor: anchor,
		URI: uri, SHA256: sha256, SizeMode: sizeMode,
	}
}

func (s *Scene) CreateTextSprite(id string, width, height float64, anchor wire.Anchor, fontURI string, sizeMode wire.SizeMode) {
	if _, exists := s.geometries[id]; exists {
		return
	}
	s.geometries[id] = &Geometry{
		ID: id, Kind: KindTextSprite,
		Width: width, Height: height, Anchor: anchor,
		FontURI: fontURI, SizeMode: sizeMode,
	}
}

// SetTextSpriteText and SetTextSpriteColors implement the mutable
// text-sprite properties (§4.8).
func (s *Scene) SetTextSpriteText(id, text string) error {
	g, ok := s.geometries[id]
	if !ok {
		return nil
	}
	if g.Kind != KindTextSprite {
		return fmt.Errorf("scene: %s is not a text sprite", id)
	}
	g.Text = text
	return nil
}

func (s *Scene) SetTextSpriteColors(id string, text, background wire.Color) error {
	g, ok := s.geometries[id]
	if !ok {
		return nil
	}
	if g.Kind != KindTextSprite {
		return fmt.Errorf("scene: %s is not a text sprite", id)
	}
	g.TextColor = text
	g.BackgroundColor = background
	return nil
}

// PickTag derives a sprite's implicit per-pick tag "<X>-<Y>" from a pick
// position expressed as fractions of the sprite's rectangle in [0,1] on
// each axis (§4.8): X left→right, Y top→bottom, both in [0,100].
func PickTag(uFrac, vFrac float64) string {
	x := int(uFrac * 100)
	y := int(vFrac * 100)
	x = clampInt(x, 0, 100)
	y = clampInt(y, 0, 100)
	return fmt.Sprintf("%d-%d", x, y)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
