// Package interaction implements pointer selection and grid-snapped
// dragging of scene objects.
package interaction

import (
	"errors"
	"fmt"
	"math"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/geometry"
	"github.com/kirinyoku/stagekit/internal/scene"
)

// GridDivisions is the number of snap steps per meter (10 cm pitch).
const GridDivisions = 10

var ErrNothingSelected = errors.New("nothing selected")

type State int

const (
	Idle State = iota
	Selected
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Dragging:
		return "dragging"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CameraControls is the orbit/pan input that must pause during a drag.
type CameraControls interface {
	SetEnabled(enabled bool)
}

// Objects is the part of the scene the controller drives.
type Objects interface {
	Get(id string) (*scene.Object, bool)
	Visuals() []*geometry.Node
	SetPosition(id string, pos domain.Vec3) error
	Delete(id string) error
}

// Snap rounds v to the nearest grid multiple.
func Snap(v float64) float64 {
	return math.Round(v*GridDivisions) / GridDivisions
}

type Controller struct {
	objects  Objects
	controls CameraControls

	state    State
	selected string
	pressed  bool
	planeY   float64
	grab     domain.Vec3
}

func New(objects Objects, controls CameraControls) *Controller {
	return &Controller{objects: objects, controls: controls}
}

func (c *Controller) State() State { return c.state }

// Selected returns the id of the selected object, if any.
func (c *Controller) Selected() (string, bool) {
	return c.selected, c.selected != ""
}

// PointerDown selects the object under the ray, or deselects when the ray
// hits nothing.
func (c *Controller) PointerDown(ray geometry.Ray) State {
	if c.state == Dragging {
		c.PointerUp()
	}

	hit, ok := geometry.Pick(ray, c.objects.Visuals())
	if !ok {
		c.deselect()
		return c.state
	}

	id := hit.Owner.ObjectID
	c.selectObject(id)

	o, _ := c.objects.Get(id)
	c.pressed = true
	c.planeY = hit.Point.Y
	c.grab = o.Transform.Position.Sub(hit.Point)

	return c.state
}

// PointerMove drags the pressed object across the ground plane. Only x and
// z change, both snapped to the grid.
func (c *Controller) PointerMove(ray geometry.Ray) (domain.Vec3, bool) {
	if !c.pressed || c.selected == "" {
		return domain.Vec3{}, false
	}

	o, ok := c.objects.Get(c.selected)
	if !ok {
		c.Forget(c.selected)
		return domain.Vec3{}, false
	}

	if c.state != Dragging {
		c.state = Dragging
		c.setControls(false)
	}

	p, ok := ray.IntersectPlaneY(c.planeY)
	if !ok {
		return o.Transform.Position, false
	}

	pos := o.Transform.Position
	pos.X = Snap(p.X + c.grab.X)
	pos.Z = Snap(p.Z + c.grab.Z)
	if err := c.objects.SetPosition(o.ID, pos); err != nil {
		return o.Transform.Position, false
	}

	return pos, true
}

// PointerUp ends a press and, when dragging, the drag.
func (c *Controller) PointerUp() State {
	c.pressed = false
	if c.state == Dragging {
		c.state = Selected
		c.setControls(true)
	}
	return c.state
}

// DeleteSelected removes the selected object from the scene.
func (c *Controller) DeleteSelected() (string, error) {
	const op = "interaction.Controller.DeleteSelected"

	id := c.selected
	if id == "" {
		return "", fmt.Errorf("%s:%w", op, ErrNothingSelected)
	}

	c.Forget(id)
	if err := c.objects.Delete(id); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// Forget drops the selection if it refers to id, as when the object is
// removed by someone other than the controller.
func (c *Controller) Forget(id string) {
	if c.selected != id {
		return
	}
	c.reset()
}

// Reset returns to Idle, for example before a scene reload.
func (c *Controller) Reset() {
	c.deselect()
}

func (c *Controller) selectObject(id string) {
	if c.selected != "" && c.selected != id {
		c.unhighlight(c.selected)
	}
	if o, ok := c.objects.Get(id); ok && o.Visual != nil {
		o.Visual.SetEmissive(geometry.HighlightColor)
	}
	c.selected = id
	if c.state == Idle {
		c.state = Selected
	}
}

func (c *Controller) deselect() {
	if c.selected != "" {
		c.unhighlight(c.selected)
	}
	c.reset()
}

func (c *Controller) reset() {
	if c.state == Dragging {
		c.setControls(true)
	}
	c.state = Idle
	c.selected = ""
	c.pressed = false
}

func (c *Controller) unhighlight(id string) {
	if o, ok := c.objects.Get(id); ok && o.Visual != nil {
		o.Visual.SetEmissive(0)
	}
}

func (c *Controller) setControls(enabled bool) {
	if c.controls != nil {
		c.controls.SetEnabled(enabled)
	}
}
