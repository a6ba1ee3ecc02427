package interaction

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/geometry"
	"github.com/kirinyoku/stagekit/internal/scene"
)

type fakeControls struct {
	enabled bool
	toggles int
}

func (f *fakeControls) SetEnabled(enabled bool) {
	f.enabled = enabled
	f.toggles++
}

func down(x, z float64) geometry.Ray {
	return geometry.Ray{Origin: domain.Vec3{X: x, Y: 50, Z: z}, Direction: domain.Vec3{Y: -1}}
}

// setup places two stages 20 m apart along x.
func setup(t *testing.T) (*Controller, *scene.Scene, *fakeControls, []*scene.Object) {
	t.Helper()

	s := scene.New(geometry.NewFactory(geometry.NewPool()))
	a, err := s.Place(domain.StageProperties{Width: 4, Depth: 4, Height: 1, Material: "plywood_carpet_black"}, domain.Transform{})
	require.NoError(t, err)
	b, err := s.Place(domain.StageProperties{Width: 4, Depth: 4, Height: 1, Material: "deco_tile_new"}, domain.Transform{Position: domain.Vec3{X: 20}})
	require.NoError(t, err)

	controls := &fakeControls{enabled: true}
	return New(s, controls), s, controls, []*scene.Object{a, b}
}

func TestSelectHighlightsAndSwitches(t *testing.T) {
	c, _, _, objs := setup(t)

	require.Equal(t, Selected, c.PointerDown(down(0, 0)))
	c.PointerUp()
	assert.True(t, objs[0].Visual.Highlighted())

	require.Equal(t, Selected, c.PointerDown(down(20, 0)))
	c.PointerUp()
	assert.False(t, objs[0].Visual.Highlighted())
	assert.True(t, objs[1].Visual.Highlighted())

	id, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, objs[1].ID, id)
}

func TestReselectSameObjectIsNoop(t *testing.T) {
	c, _, _, objs := setup(t)

	c.PointerDown(down(0, 0))
	c.PointerUp()
	c.PointerDown(down(1, 1))
	c.PointerUp()

	assert.Equal(t, Selected, c.State())
	assert.True(t, objs[0].Visual.Highlighted())
}

func TestPointerDownOnEmptySpaceDeselects(t *testing.T) {
	c, _, _, objs := setup(t)

	c.PointerDown(down(0, 0))
	c.PointerUp()
	require.Equal(t, Idle, c.PointerDown(down(10, 10)))

	_, ok := c.Selected()
	assert.False(t, ok)
	assert.False(t, objs[0].Visual.Highlighted())
}

func TestDragSnapsAndSuspendsControls(t *testing.T) {
	c, _, controls, objs := setup(t)

	c.PointerDown(down(0, 0))
	pos, ok := c.PointerMove(down(1.234, -0.76))
	require.True(t, ok)
	assert.Equal(t, Dragging, c.State())
	assert.False(t, controls.enabled)

	assert.Equal(t, 1.2, pos.X)
	assert.Equal(t, -0.8, pos.Z)
	assert.Equal(t, 0.0, pos.Y)

	pos, ok = c.PointerMove(down(3.06, 2.04))
	require.True(t, ok)

	require.Equal(t, Selected, c.PointerUp())
	assert.True(t, controls.enabled)
	assert.Equal(t, domain.Vec3{X: 3.1, Z: 2}, objs[0].Transform.Position)
	assert.Equal(t, pos, objs[0].Visual.Position)
}

func TestDragKeepsGrabOffset(t *testing.T) {
	c, _, _, objs := setup(t)

	c.PointerDown(down(21, 1))
	_, ok := c.PointerMove(down(22, 1))
	require.True(t, ok)
	c.PointerUp()

	assert.Equal(t, domain.Vec3{X: 21}, objs[1].Transform.Position)
}

func TestMoveWithoutPressDoesNothing(t *testing.T) {
	c, _, controls, objs := setup(t)

	c.PointerDown(down(0, 0))
	c.PointerUp()
	_, ok := c.PointerMove(down(5, 5))

	assert.False(t, ok)
	assert.Equal(t, Selected, c.State())
	assert.Equal(t, 0, controls.toggles)
	assert.Equal(t, domain.Vec3{}, objs[0].Transform.Position)
}

func TestDeleteSelected(t *testing.T) {
	c, s, _, objs := setup(t)

	_, err := c.DeleteSelected()
	require.ErrorIs(t, err, ErrNothingSelected)

	c.PointerDown(down(0, 0))
	c.PointerUp()
	id, err := c.DeleteSelected()
	require.NoError(t, err)

	assert.Equal(t, objs[0].ID, id)
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 1, s.Len())
	assert.True(t, objs[0].Visual == nil)
}

func TestForgetDuringDragRestoresControls(t *testing.T) {
	c, _, controls, objs := setup(t)

	c.PointerDown(down(0, 0))
	c.PointerMove(down(1, 0))
	require.False(t, controls.enabled)

	c.Forget(objs[0].ID)
	assert.True(t, controls.enabled)
	assert.Equal(t, Idle, c.State())
}

func TestSnapIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("snapped values are grid multiples and stable", prop.ForAll(
		func(v float64) bool {
			s := Snap(v)
			steps := s * GridDivisions
			return Snap(s) == s && math.Abs(steps-math.Round(steps)) < 1e-6
		},
		gen.Float64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}

func TestSingleSelection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one object is highlighted", prop.ForAll(
		func(xs []float64) bool {
			c, s, _, _ := setup(t)
			for _, x := range xs {
				c.PointerDown(down(x, 0))
				c.PointerUp()

				lit := 0
				for _, o := range s.Objects() {
					if o.Visual.Highlighted() {
						lit++
					}
				}
				if lit > 1 {
					return false
				}
				if _, ok := c.Selected(); ok != (lit == 1) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-5, 25)),
	))

	properties.TestingRun(t)
}
