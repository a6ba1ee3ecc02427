// Package scene holds the object collection of one configurator: identity,
// derived prices and the one live visual per object.
package scene

import (
	"fmt"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/geometry"
	"github.com/kirinyoku/stagekit/internal/pricing"
)

const (
	DefaultTrussHeight    = 3.0
	DefaultLightingHeight = 5.0
)

// Object is one placed, priced entity.
type Object struct {
	ID         string
	Type       domain.ObjectType
	Properties domain.Properties
	Price      int64
	Transform  domain.Transform
	Visual     *geometry.Node
}

type AddOptions struct {
	// StageID is the preferred stage for a truss, usually the selection.
	StageID string
}

type Scene struct {
	factory     *geometry.Factory
	root        *geometry.Node
	objects     []*Object
	counter     int64
	lastStageID string
}

func New(factory *geometry.Factory) *Scene {
	return &Scene{
		factory: factory,
		root:    geometry.NewGroup("scene"),
	}
}

// Root is the scene graph the renderer draws.
func (s *Scene) Root() *geometry.Node { return s.root }

func (s *Scene) Counter() int64 { return s.counter }

// RestoreCounter sets the id counter verbatim.
func (s *Scene) RestoreCounter(n int64) {
	s.counter = n
}

func (s *Scene) Len() int { return len(s.objects) }

// Objects returns the collection in iteration order.
func (s *Scene) Objects() []*Object {
	out := make([]*Object, len(s.objects))
	copy(out, s.objects)
	return out
}

func (s *Scene) Visuals() []*geometry.Node {
	out := make([]*geometry.Node, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o.Visual)
	}
	return out
}

func (s *Scene) Get(id string) (*Object, bool) {
	for _, o := range s.objects {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// Add places a new object of type t with its default parameters.
func (s *Scene) Add(t domain.ObjectType, opts AddOptions) (*Object, error) {
	const op = "scene.Scene.Add"

	var (
		props     domain.Properties
		transform = domain.Transform{Rotation: domain.Euler{Order: domain.DefaultRotationOrder}}
	)

	switch t {
	case domain.TypeStage:
		props = domain.StageProperties{Width: 5.46, Depth: 3.64, Height: 1.0, Material: "plywood_carpet_black"}
	case domain.TypeLayher:
		props = domain.ScaffoldProperties{Width: 2, Depth: 2, Height: 2}
	case domain.TypeLighting:
		props = domain.LightingProperties{Kind: domain.LightSpot}
		transform.Position.Y = DefaultLightingHeight
	case domain.TypeTruss:
		stage, ok := s.resolveStage(opts.StageID)
		if !ok {
			return nil, fmt.Errorf("%s:%w", op, ErrNoStage)
		}
		sp := stage.Properties.(domain.StageProperties)
		props = domain.TrussProperties{
			Width:          sp.Width,
			Depth:          sp.Depth,
			Height:         DefaultTrussHeight,
			PlatformHeight: sp.Height,
			RelatedStageID: stage.ID,
		}
		transform.Position = domain.Vec3{X: stage.Transform.Position.X, Z: stage.Transform.Position.Z}
	default:
		return nil, fmt.Errorf("%s:%w", op, domain.UnsupportedTypeError{Type: t})
	}

	return s.Place(props, transform)
}

// Place inserts an object with explicit parameters under a fresh id.
func (s *Scene) Place(props domain.Properties, transform domain.Transform) (*Object, error) {
	const op = "scene.Scene.Place"

	if err := props.Validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.counter++
	id := fmt.Sprintf("%s-%d", props.Type(), s.counter)

	o, err := s.insert(id, props, transform)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	return o, nil
}

// Insert reinserts an object under a known id, as when loading a scene.
func (s *Scene) Insert(id string, props domain.Properties, transform domain.Transform) (*Object, error) {
	const op = "scene.Scene.Insert"

	if _, ok := s.Get(id); ok {
		return nil, fmt.Errorf("%s:%w: %s", op, ErrDuplicateID, id)
	}
	if err := props.Validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	o, err := s.insert(id, props, transform)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	return o, nil
}

func (s *Scene) insert(id string, props domain.Properties, transform domain.Transform) (*Object, error) {
	if transform.Rotation.Order == "" {
		transform.Rotation.Order = domain.DefaultRotationOrder
	}

	visual, err := s.factory.Build(id, props, transform)
	if err != nil {
		return nil, err
	}

	o := &Object{
		ID:         id,
		Type:       props.Type(),
		Properties: props,
		Price:      pricing.Price(props),
		Transform:  transform,
		Visual:     visual,
	}
	s.objects = append(s.objects, o)
	s.root.Add(visual)

	if o.Type == domain.TypeStage {
		s.lastStageID = id
	}
	return o, nil
}

// ApplyEdit replaces an object's properties, regenerating its visual and
// price. The id and transform are preserved.
func (s *Scene) ApplyEdit(id string, patch domain.Patch) (*Object, error) {
	const op = "scene.Scene.ApplyEdit"

	o, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ObjectNotFoundError{ID: id})
	}

	props, err := patch.Apply(o.Properties)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	// Release the old visual first so there is never more than one live.
	highlight := o.Visual.Highlighted()
	s.factory.Dispose(o.Visual)
	o.Visual = nil

	visual, err := s.factory.Build(id, props, o.Transform)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if highlight {
		visual.SetEmissive(geometry.HighlightColor)
	}

	o.Properties = props
	o.Price = pricing.Price(props)
	o.Visual = visual
	s.root.Add(visual)

	return o, nil
}

// SetPosition moves an object without touching its properties.
func (s *Scene) SetPosition(id string, pos domain.Vec3) error {
	const op = "scene.Scene.SetPosition"

	o, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%s:%w", op, ObjectNotFoundError{ID: id})
	}

	o.Transform.Position = pos
	o.Visual.Position = pos
	return nil
}

// Delete releases the object's visual and removes it from the collection.
func (s *Scene) Delete(id string) error {
	const op = "scene.Scene.Delete"

	for i, o := range s.objects {
		if o.ID != id {
			continue
		}
		s.factory.Dispose(o.Visual)
		o.Visual = nil
		s.objects = append(s.objects[:i], s.objects[i+1:]...)
		if s.lastStageID == id {
			s.lastStageID = ""
		}
		return nil
	}

	return fmt.Errorf("%s:%w", op, ObjectNotFoundError{ID: id})
}

// Clear releases every visual and empties the collection. The returned
// channel is closed once the scene graph is empty. The id counter is kept.
func (s *Scene) Clear() <-chan struct{} {
	done := make(chan struct{})

	for _, o := range s.objects {
		s.factory.Dispose(o.Visual)
		o.Visual = nil
	}
	s.objects = nil
	s.lastStageID = ""
	s.root.Clear()

	close(done)
	return done
}

// resolveStage picks the preferred stage, else the most recently added
// stage still in the scene.
func (s *Scene) resolveStage(preferred string) (*Object, bool) {
	if preferred != "" {
		if o, ok := s.Get(preferred); ok && o.Type == domain.TypeStage {
			return o, true
		}
	}
	if s.lastStageID != "" {
		if o, ok := s.Get(s.lastStageID); ok {
			return o, true
		}
	}
	for i := len(s.objects) - 1; i >= 0; i-- {
		if s.objects[i].Type == domain.TypeStage {
			return s.objects[i], true
		}
	}
	return nil, false
}
