// Package templates holds the predefined stage sets a configurator can be
// seeded with.
package templates

import (
	"errors"
	"sort"

	"github.com/kirinyoku/stagekit/internal/domain"
)

var ErrTemplateNotFound = errors.New("template not found")

type Item struct {
	Properties domain.Properties
	Position   domain.Vec3
	Rotation   domain.Euler
}

type Template struct {
	Name        string
	Description string
	Items       []Item
}

func stage(w, d, h float64, material string, x, z float64) Item {
	return Item{
		Properties: domain.StageProperties{Width: w, Depth: d, Height: h, Material: material},
		Position:   domain.Vec3{X: x, Z: z},
	}
}

// truss builds a frame over a stage footprint placed at (x, z). The related
// stage is the stage placed most recently before it.
func truss(w, d, h, platform, x, z float64) Item {
	return Item{
		Properties: domain.TrussProperties{Width: w, Depth: d, Height: h, PlatformHeight: platform},
		Position:   domain.Vec3{X: x, Z: z},
	}
}

func layher(w, d, h, x, z float64) Item {
	return Item{
		Properties: domain.ScaffoldProperties{Width: w, Depth: d, Height: h},
		Position:   domain.Vec3{X: x, Z: z},
	}
}

func light(kind domain.LightKind, x, y, z float64) Item {
	return Item{
		Properties: domain.LightingProperties{Kind: kind},
		Position:   domain.Vec3{X: x, Y: y, Z: z},
	}
}

var all = []Template{
	{
		Name:        "seminar",
		Description: "Small seminar riser with two spots",
		Items: []Item{
			stage(3.64, 2.73, 0.4, "plywood_carpet_black", 0, 0),
			light(domain.LightSpot, -1.5, 4, 2),
			light(domain.LightSpot, 1.5, 4, 2),
		},
	},
	{
		Name:        "wedding",
		Description: "Wedding stage on new decorative tiles",
		Items: []Item{
			stage(7.28, 3.64, 0.6, "deco_tile_new", 0, 0),
			light(domain.LightPoint, 0, 4, 1),
		},
	},
	{
		Name:        "concert-small",
		Description: "Club concert stage with truss frame",
		Items: []Item{
			stage(5.46, 3.64, 1.0, "plywood_carpet_black", 0, 0),
			truss(5.46, 3.64, 3.0, 1.0, 0, 0),
			light(domain.LightSpot, -2, 5, 0),
			light(domain.LightSpot, 2, 5, 0),
		},
	},
	{
		Name:        "concert-large",
		Description: "Open air stage with wings and FOH scaffold",
		Items: []Item{
			stage(10.92, 7.28, 1.5, "plywood_carpet_black", 0, 0),
			truss(10.92, 7.28, 4.0, 1.5, 0, 0),
			layher(2, 2, 2, -8, 0),
			layher(2, 2, 2, 8, 0),
			layher(3, 3, 2.5, 0, 20),
			light(domain.LightSpot, -4, 7, 2),
			light(domain.LightSpot, 0, 7, 2),
			light(domain.LightSpot, 4, 7, 2),
		},
	},
	{
		Name:        "fashion-runway",
		Description: "Catwalk with a head stage",
		Items: []Item{
			stage(7.28, 3.64, 0.6, "plywood_carpet_red", 0, 0),
			stage(1.82, 12.74, 0.6, "plywood_carpet_red", 0, 8.2),
			light(domain.LightSpot, 0, 5, 4),
			light(domain.LightSpot, 0, 5, 10),
		},
	},
	{
		Name:        "conference",
		Description: "Conference stage with lectern riser",
		Items: []Item{
			stage(9.1, 4.55, 0.6, "plywood_carpet_grey", 0, 0),
			stage(1.82, 1.82, 0.2, "plywood_carpet_grey", 3, 1),
			light(domain.LightPoint, -3, 5, 2),
			light(domain.LightPoint, 3, 5, 2),
		},
	},
	{
		Name:        "dj-booth",
		Description: "Raised DJ booth under truss",
		Items: []Item{
			stage(3.64, 2.73, 1.2, "plywood_carpet_black", 0, 0),
			truss(3.64, 2.73, 2.5, 1.2, 0, 0),
			light(domain.LightSpot, 0, 5, 0),
		},
	},
	{
		Name:        "village-fair",
		Description: "Budget stage on used decorative tiles",
		Items: []Item{
			stage(5.46, 3.64, 0.8, "deco_tile_used", 0, 0),
			light(domain.LightPoint, 0, 4, 2),
		},
	},
	{
		Name:        "grandstand",
		Description: "Layher grandstand blocks",
		Items: []Item{
			layher(6, 3, 1, 0, 10),
			layher(6, 3, 2, 0, 13),
			layher(6, 3, 3, 0, 16),
		},
	},
	{
		Name:        "award-show",
		Description: "Award show stage with truss and side towers",
		Items: []Item{
			stage(9.1, 5.46, 1.0, "deco_tile_new", 0, 0),
			truss(9.1, 5.46, 4.0, 1.0, 0, 0),
			layher(1.5, 1.5, 4, -6, 0),
			layher(1.5, 1.5, 4, 6, 0),
			light(domain.LightSpot, -3, 6, 2),
			light(domain.LightSpot, 3, 6, 2),
		},
	},
}

// List returns every template sorted by name.
func List() []Template {
	out := make([]Template, len(all))
	copy(out, all)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func Get(name string) (Template, error) {
	for _, t := range all {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, ErrTemplateNotFound
}
