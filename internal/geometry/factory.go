// Package geometry builds procedural visuals for scene objects, releases
// their resources and hit-tests them.
package geometry

import (
	"fmt"

	"github.com/kirinyoku/stagekit/internal/domain"
)

const (
	TrussSection   = 0.3
	MarkerSize     = 0.3
	SpotIntensity  = 1.0
	PointIntensity = 0.8

	DefaultStageColor Color = 0x808080
	TrussColor        Color = 0xc0c0c0
	LayherColor       Color = 0x4682b4
	MarkerColor       Color = 0xffff00
	LightColor        Color = 0xffffff
	HighlightColor    Color = 0x333333
)

var stageColors = map[string]Color{
	"plywood_carpet_black": 0x1a1a1a,
	"plywood_carpet_red":   0x8b0000,
	"plywood_carpet_grey":  0x555555,
	"deco_tile_used":       0x8b7355,
	"deco_tile_new":        0xdeb887,
}

// StageColor returns the deck colour for a material, grey when unknown.
func StageColor(material string) Color {
	if c, ok := stageColors[material]; ok {
		return c
	}
	return DefaultStageColor
}

type Factory struct {
	alloc Allocator
}

func NewFactory(alloc Allocator) *Factory {
	return &Factory{alloc: alloc}
}

// Build creates the visual for an object and places it at transform. The
// returned root carries id as its ObjectID.
func (f *Factory) Build(id string, props domain.Properties, transform domain.Transform) (*Node, error) {
	const op = "geometry.Factory.Build"

	root := NewGroup(id)
	root.ObjectID = id
	root.Position = transform.Position
	root.Rotation = transform.Rotation

	switch p := props.(type) {
	case domain.StageProperties:
		root.Add(f.box("deck", p.Width, p.Height, p.Depth, domain.Vec3{Y: p.Height / 2}, StageColor(p.Material), false))
	case domain.ScaffoldProperties:
		root.Add(f.box("scaffold", p.Width, p.Height, p.Depth, domain.Vec3{Y: p.Height / 2}, LayherColor, false))
	case domain.TrussProperties:
		f.truss(root, p)
	case domain.LightingProperties:
		f.lighting(root, p)
	default:
		return nil, fmt.Errorf("%s:%w", op, domain.UnsupportedTypeError{})
	}

	return root, nil
}

func (f *Factory) truss(root *Node, p domain.TrussProperties) {
	hw, hd := p.Width/2, p.Depth/2
	top := p.PlatformHeight + p.Height

	corners := []domain.Vec3{
		{X: -hw, Z: -hd},
		{X: hw, Z: -hd},
		{X: hw, Z: hd},
		{X: -hw, Z: hd},
	}
	for i, c := range corners {
		c.Y = p.PlatformHeight + p.Height/2
		root.Add(f.box(fmt.Sprintf("post-%d", i), TrussSection, p.Height, TrussSection, c, TrussColor, false))
	}

	root.Add(f.box("beam-front", p.Width, TrussSection, TrussSection, domain.Vec3{Y: top, Z: -hd}, TrussColor, false))
	root.Add(f.box("beam-back", p.Width, TrussSection, TrussSection, domain.Vec3{Y: top, Z: hd}, TrussColor, false))
	root.Add(f.box("beam-left", TrussSection, TrussSection, p.Depth, domain.Vec3{X: -hw, Y: top}, TrussColor, false))
	root.Add(f.box("beam-right", TrussSection, TrussSection, p.Depth, domain.Vec3{X: hw, Y: top}, TrussColor, false))
}

func (f *Factory) lighting(root *Node, p domain.LightingProperties) {
	root.Add(f.box("marker", MarkerSize, MarkerSize, MarkerSize, domain.Vec3{}, MarkerColor, true))

	light := &Light{
		ID:        f.alloc.Allocate(ResourceLight),
		Kind:      p.Kind,
		Color:     LightColor,
		Intensity: PointIntensity,
	}
	emitter := &Node{Name: "emitter", Kind: KindLight, Light: light}
	root.Add(emitter)

	if p.Kind != domain.LightSpot {
		return
	}
	light.Intensity = SpotIntensity

	target := &Node{Name: "target", Kind: KindTarget}
	if p.Target != nil {
		target.Position = *p.Target
	} else {
		target.Position = domain.Vec3{Y: -root.Position.Y}
		root.Add(target)
	}
	light.Target = target
}

func (f *Factory) box(name string, w, h, d float64, at domain.Vec3, color Color, wireframe bool) *Node {
	return &Node{
		Name:     name,
		Kind:     KindMesh,
		Position: at,
		Geometry: &BoxGeometry{
			ID:     f.alloc.Allocate(ResourceGeometry),
			Width:  w,
			Height: h,
			Depth:  d,
		},
		Material: &Material{
			ID:        f.alloc.Allocate(ResourceMaterial),
			Color:     color,
			Wireframe: wireframe,
		},
	}
}

// Dispose detaches n from its parent and releases every geometry, material
// and light in the subtree. Missing handles are skipped; disposing twice
// is a no-op.
func (f *Factory) Dispose(n *Node) {
	if n == nil || n.disposed {
		return
	}
	if n.parent != nil {
		n.parent.Remove(n)
	}

	n.Walk(func(x *Node) {
		if x.Geometry != nil {
			f.alloc.Release(x.Geometry.ID)
			x.Geometry = nil
		}
		if x.Material != nil {
			f.alloc.Release(x.Material.ID)
			x.Material = nil
		}
		if x.Light != nil {
			f.alloc.Release(x.Light.ID)
			x.Light = nil
		}
		x.disposed = true
	})
}
