package geometry

import "github.com/kirinyoku/stagekit/internal/domain"

type NodeKind int

const (
	KindGroup NodeKind = iota
	KindMesh
	KindLight
	KindTarget
)

// Color is a packed 0xRRGGBB value.
type Color uint32

func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

type BoxGeometry struct {
	ID     ResourceID
	Width  float64
	Height float64
	Depth  float64
}

type Material struct {
	ID        ResourceID
	Color     Color
	Emissive  Color
	Wireframe bool
}

type Light struct {
	ID        ResourceID
	Kind      domain.LightKind
	Color     Color
	Intensity float64
	// Target is set for spot lights. A detached target (no parent) is a
	// fixed world point; an attached one follows the light.
	Target *Node
}

// Node is one element of a visual. Positions are local to the parent;
// world positions are translation only, Rotation is carried for the
// renderer and not used for picking.
type Node struct {
	Name     string
	Kind     NodeKind
	Position domain.Vec3
	Rotation domain.Euler

	Geometry *BoxGeometry
	Material *Material
	Light    *Light

	// ObjectID is set on the root node of an object's visual.
	ObjectID string

	parent   *Node
	children []*Node
	disposed bool
}

func NewGroup(name string) *Node {
	return &Node{Name: name, Kind: KindGroup}
}

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Children() []*Node { return n.children }

func (n *Node) Disposed() bool { return n.disposed }

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Clear detaches every child.
func (n *Node) Clear() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

func (n *Node) WorldPosition() domain.Vec3 {
	p := n.Position
	for a := n.parent; a != nil; a = a.parent {
		p = p.Add(a.Position)
	}
	return p
}

// Owner ascends the parent chain to the node carrying an object id.
func (n *Node) Owner() *Node {
	for a := n; a != nil; a = a.parent {
		if a.ObjectID != "" {
			return a
		}
	}
	return nil
}

// Walk visits n and all of its descendants depth first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// SetEmissive tints every material in the subtree.
func (n *Node) SetEmissive(c Color) {
	n.Walk(func(x *Node) {
		if x.Material != nil {
			x.Material.Emissive = c
		}
	})
}

// Highlighted reports whether any material in the subtree is tinted.
func (n *Node) Highlighted() bool {
	lit := false
	n.Walk(func(x *Node) {
		if x.Material != nil && x.Material.Emissive != 0 {
			lit = true
		}
	})
	return lit
}
