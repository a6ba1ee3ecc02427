// Package pricing maps object parameters to a price in the smallest whole
// currency unit. Every function is pure.
package pricing

import (
	"math"
	"strings"

	"github.com/kirinyoku/stagekit/internal/domain"
)

const (
	PlywoodPerSquareMeter      = 20000
	DecoTileUsedPerSquareMeter = 6173
	DecoTileNewPerSquareMeter  = 30864

	TrussPerMeter          = 15000
	LayherPerCubicMeter    = 35000
	SpotLightFlat          = 50000
	PointLightFlat         = 30000
	trussVerticalPostCount = 4
)

// Price returns the price of an object with the given properties.
func Price(props domain.Properties) int64 {
	switch p := props.(type) {
	case domain.StageProperties:
		return Stage(p.Width, p.Depth, p.Material)
	case domain.TrussProperties:
		return Truss(p.Width, p.Depth, p.Height)
	case domain.ScaffoldProperties:
		return Layher(p.Width, p.Depth, p.Height)
	case domain.LightingProperties:
		return Lighting(p.Kind)
	default:
		return 0
	}
}

// StageUnitPrice is the price per square meter of a stage deck material.
// Unknown materials price at 0.
func StageUnitPrice(material string) int64 {
	switch {
	case strings.HasPrefix(material, "plywood"):
		return PlywoodPerSquareMeter
	case material == "deco_tile_used":
		return DecoTileUsedPerSquareMeter
	case material == "deco_tile_new":
		return DecoTileNewPerSquareMeter
	default:
		return 0
	}
}

func Stage(width, depth float64, material string) int64 {
	area := width * depth
	return round(area * float64(StageUnitPrice(material)))
}

// TrussLength is the perimeter of the top frame plus the four posts.
func TrussLength(width, depth, height float64) float64 {
	return 2*(width+depth) + trussVerticalPostCount*height
}

func Truss(width, depth, height float64) int64 {
	return round(TrussLength(width, depth, height) * TrussPerMeter)
}

func Layher(width, depth, height float64) int64 {
	return round(width * depth * height * LayherPerCubicMeter)
}

func Lighting(kind domain.LightKind) int64 {
	switch kind {
	case domain.LightSpot:
		return SpotLightFlat
	case domain.LightPoint:
		return PointLightFlat
	default:
		return 0
	}
}

func round(v float64) int64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(v))
}

// Add sums two non-negative prices, saturating at math.MaxInt64.
func Add(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
