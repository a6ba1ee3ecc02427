package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type ObjectType string

const (
	TypeStage    ObjectType = "stage"
	TypeTruss    ObjectType = "truss"
	TypeLayher   ObjectType = "layher"
	TypeLighting ObjectType = "lighting"

	// Reserved for template data; not creatable yet.
	TypeLEDScreen ObjectType = "led_screen"
	TypeSpeaker   ObjectType = "speaker"
)

// Creatable reports whether objects of type t can be placed in a scene.
func (t ObjectType) Creatable() bool {
	switch t {
	case TypeStage, TypeTruss, TypeLayher, TypeLighting:
		return true
	}
	return false
}

type LightKind string

const (
	LightSpot  LightKind = "spot"
	LightPoint LightKind = "point"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

const DefaultRotationOrder = "XYZ"

type Euler struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Order string  `json:"order"`
}

type Transform struct {
	Position Vec3  `json:"position"`
	Rotation Euler `json:"rotation"`
}

// ============================================================
// Properties
// ============================================================

// Properties is the parameter record of one object variant. The set of
// implementations is closed: StageProperties, TrussProperties,
// ScaffoldProperties and LightingProperties.
type Properties interface {
	Type() ObjectType
	Validate() error
	isProperties()
}

type StageProperties struct {
	Width    float64 `json:"width"`
	Depth    float64 `json:"depth"`
	Height   float64 `json:"height"`
	Material string  `json:"material"`
}

type TrussProperties struct {
	Width          float64 `json:"width"`
	Depth          float64 `json:"depth"`
	Height         float64 `json:"height"`
	PlatformHeight float64 `json:"platformHeight"`
	RelatedStageID string  `json:"relatedStageId,omitempty"`
}

type ScaffoldProperties struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

type LightingProperties struct {
	Kind   LightKind `json:"type"`
	Target *Vec3     `json:"target,omitempty"`
}

func (StageProperties) Type() ObjectType    { return TypeStage }
func (TrussProperties) Type() ObjectType    { return TypeTruss }
func (ScaffoldProperties) Type() ObjectType { return TypeLayher }
func (LightingProperties) Type() ObjectType { return TypeLighting }

func (StageProperties) isProperties()    {}
func (TrussProperties) isProperties()    {}
func (ScaffoldProperties) isProperties() {}
func (LightingProperties) isProperties() {}

// Stage materials known to the price table and the colour table.
var StageMaterials = []string{
	"plywood_carpet_black",
	"plywood_carpet_red",
	"plywood_carpet_grey",
	"deco_tile_used",
	"deco_tile_new",
}

func (p StageProperties) Validate() error {
	if err := positive("width", p.Width); err != nil {
		return err
	}
	if err := positive("depth", p.Depth); err != nil {
		return err
	}
	if err := positive("height", p.Height); err != nil {
		return err
	}
	for _, m := range StageMaterials {
		if m == p.Material {
			return nil
		}
	}
	return InvalidPropertiesError{Field: "material", Reason: fmt.Sprintf("unknown material %q", p.Material)}
}

func (p TrussProperties) Validate() error {
	if err := positive("width", p.Width); err != nil {
		return err
	}
	if err := positive("depth", p.Depth); err != nil {
		return err
	}
	if err := positive("height", p.Height); err != nil {
		return err
	}
	if p.PlatformHeight < 0 || math.IsNaN(p.PlatformHeight) || math.IsInf(p.PlatformHeight, 0) {
		return InvalidPropertiesError{Field: "platformHeight", Reason: "must not be negative"}
	}
	if p.PlatformHeight > MaxDimension {
		return InvalidPropertiesError{Field: "platformHeight", Reason: fmt.Sprintf("must not exceed %gm", MaxDimension)}
	}
	return nil
}

func (p ScaffoldProperties) Validate() error {
	if err := positive("width", p.Width); err != nil {
		return err
	}
	if err := positive("depth", p.Depth); err != nil {
		return err
	}
	return positive("height", p.Height)
}

func (p LightingProperties) Validate() error {
	switch p.Kind {
	case LightSpot, LightPoint:
		return nil
	}
	return InvalidPropertiesError{Field: "type", Reason: fmt.Sprintf("unknown light kind %q", p.Kind)}
}

// MaxDimension bounds every length, in meters, so prices stay within int64.
const MaxDimension = 1000.0

func positive(field string, v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return InvalidPropertiesError{Field: field, Reason: "must be a positive number"}
	}
	if v > MaxDimension {
		return InvalidPropertiesError{Field: field, Reason: fmt.Sprintf("must not exceed %gm", MaxDimension)}
	}
	return nil
}

// DecodeProperties decodes a JSON properties record of the given type.
func DecodeProperties(t ObjectType, raw json.RawMessage) (Properties, error) {
	const op = "domain.DecodeProperties"

	var (
		props Properties
		err   error
	)

	switch t {
	case TypeStage:
		var p StageProperties
		err = json.Unmarshal(raw, &p)
		props = p
	case TypeTruss:
		var p TrussProperties
		err = json.Unmarshal(raw, &p)
		props = p
	case TypeLayher:
		var p ScaffoldProperties
		err = json.Unmarshal(raw, &p)
		props = p
	case TypeLighting:
		var p LightingProperties
		err = json.Unmarshal(raw, &p)
		props = p
	default:
		return nil, fmt.Errorf("%s:%w", op, UnsupportedTypeError{Type: t})
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return props, nil
}

// ============================================================
// Edits
// ============================================================

// Patch is a typed property edit. Nil fields are left unchanged; fields
// that do not apply to the target variant are rejected.
type Patch struct {
	Width    *float64   `json:"width,omitempty"`
	Depth    *float64   `json:"depth,omitempty"`
	Height   *float64   `json:"height,omitempty"`
	Material *string    `json:"material,omitempty"`
	Kind     *LightKind `json:"type,omitempty"`
	Target   *Vec3      `json:"target,omitempty"`
}

// Apply returns props with the patch applied. props is not modified.
func (p Patch) Apply(props Properties) (Properties, error) {
	var out Properties

	switch cur := props.(type) {
	case StageProperties:
		if p.Kind != nil || p.Target != nil {
			return nil, InvalidPropertiesError{Field: "type", Reason: "not a stage property"}
		}
		setIf(&cur.Width, p.Width)
		setIf(&cur.Depth, p.Depth)
		setIf(&cur.Height, p.Height)
		if p.Material != nil {
			cur.Material = strings.TrimSpace(*p.Material)
		}
		out = cur
	case TrussProperties:
		if p.Material != nil || p.Kind != nil || p.Target != nil {
			return nil, InvalidPropertiesError{Field: "material", Reason: "not a truss property"}
		}
		setIf(&cur.Width, p.Width)
		setIf(&cur.Depth, p.Depth)
		setIf(&cur.Height, p.Height)
		out = cur
	case ScaffoldProperties:
		if p.Material != nil || p.Kind != nil || p.Target != nil {
			return nil, InvalidPropertiesError{Field: "material", Reason: "not a scaffold property"}
		}
		setIf(&cur.Width, p.Width)
		setIf(&cur.Depth, p.Depth)
		setIf(&cur.Height, p.Height)
		out = cur
	case LightingProperties:
		if p.Width != nil || p.Depth != nil || p.Height != nil || p.Material != nil {
			return nil, InvalidPropertiesError{Field: "width", Reason: "not a lighting property"}
		}
		if p.Kind != nil {
			cur.Kind = *p.Kind
		}
		if p.Target != nil {
			t := *p.Target
			cur.Target = &t
		}
		out = cur
	default:
		return nil, UnsupportedTypeError{}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}

	return out, nil
}

func setIf(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// ============================================================
// Quotation
// ============================================================

type QuotationLineItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Amount      int64  `json:"amount"`
}

type Quotation struct {
	Items []QuotationLineItem `json:"items"`
	Total int64               `json:"total"`
}

// ============================================================
// Persistence
// ============================================================

type SavedObject struct {
	ID         string          `json:"id"`
	Type       ObjectType      `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Price      int64           `json:"price"`
	Position   Vec3            `json:"position"`
	Rotation   Euler           `json:"rotation"`
}

type SavedScene struct {
	Objects   []SavedObject `json:"objects"`
	IDCounter int64         `json:"idCounter"`
}
