package geometry

import (
	"math"

	"github.com/kirinyoku/stagekit/internal/domain"
)

type Ray struct {
	Origin    domain.Vec3 `json:"origin"`
	Direction domain.Vec3 `json:"direction"`
}

func (r Ray) At(t float64) domain.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// IntersectPlaneY returns where the ray crosses the horizontal plane at y.
func (r Ray) IntersectPlaneY(y float64) (domain.Vec3, bool) {
	if math.Abs(r.Direction.Y) < 1e-12 {
		return domain.Vec3{}, false
	}
	t := (y - r.Origin.Y) / r.Direction.Y
	if t < 0 {
		return domain.Vec3{}, false
	}
	return r.At(t), true
}

type Hit struct {
	Node     *Node
	Owner    *Node
	Distance float64
	Point    domain.Vec3
}

// Pick returns the nearest mesh hit among the given visual roots, resolved
// to the root that owns it.
func Pick(ray Ray, roots []*Node) (Hit, bool) {
	var (
		best  Hit
		found bool
	)

	for _, root := range roots {
		root.Walk(func(n *Node) {
			if n.Kind != KindMesh || n.Geometry == nil {
				return
			}
			t, ok := intersectBox(ray, n)
			if !ok || (found && t >= best.Distance) {
				return
			}
			owner := n.Owner()
			if owner == nil {
				return
			}
			best = Hit{Node: n, Owner: owner, Distance: t, Point: ray.At(t)}
			found = true
		})
	}

	return best, found
}

// intersectBox is the slab test against the node's world-space box.
func intersectBox(ray Ray, n *Node) (float64, bool) {
	c := n.WorldPosition()
	g := n.Geometry
	minB := [3]float64{c.X - g.Width/2, c.Y - g.Height/2, c.Z - g.Depth/2}
	maxB := [3]float64{c.X + g.Width/2, c.Y + g.Height/2, c.Z + g.Depth/2}
	o := [3]float64{ray.Origin.X, ray.Origin.Y, ray.Origin.Z}
	d := [3]float64{ray.Direction.X, ray.Direction.Y, ray.Direction.Z}

	tmin, tmax := 0.0, math.Inf(1)
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if o[i] < minB[i] || o[i] > maxB[i] {
				return 0, false
			}
			continue
		}
		t1 := (minB[i] - o[i]) / d[i]
		t2 := (maxB[i] - o[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}

	return tmin, true
}
