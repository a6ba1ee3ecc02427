package httpgin

import (
	"encoding/json"
	"time"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/scene"
	"github.com/kirinyoku/stagekit/internal/templates"
)

type CreateSessionRequest struct {
	Template string `json:"template"`
}

type SessionResponse struct {
	ID        string    `json:"id"`
	Template  string    `json:"template,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type TemplateResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Objects     int    `json:"objects"`
}

type AddObjectRequest struct {
	Type domain.ObjectType `json:"type" binding:"required"`
}

type ObjectResponse struct {
	ID         string            `json:"id"`
	Type       domain.ObjectType `json:"type"`
	Properties json.RawMessage   `json:"properties" swaggertype:"object"`
	Price      int64             `json:"price"`
	Position   domain.Vec3       `json:"position"`
	Rotation   domain.Euler      `json:"rotation"`
	Selected   bool              `json:"selected"`
}

type PointerRequest struct {
	Origin    domain.Vec3 `json:"origin"`
	Direction domain.Vec3 `json:"direction"`
}

type SelectionResponse struct {
	State         string       `json:"state"`
	Selected      string       `json:"selected,omitempty"`
	Position      *domain.Vec3 `json:"position,omitempty"`
	CameraEnabled bool         `json:"camera_enabled"`
}

type ViewportRequest struct {
	Width  int `json:"width" binding:"required,gt=0"`
	Height int `json:"height" binding:"required,gt=0"`
}

type ExportResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toObjectResponse(o *scene.Object, selected string) ObjectResponse {
	props, _ := json.Marshal(o.Properties)
	return ObjectResponse{
		ID:         o.ID,
		Type:       o.Type,
		Properties: props,
		Price:      o.Price,
		Position:   o.Transform.Position,
		Rotation:   o.Transform.Rotation,
		Selected:   o.ID == selected,
	}
}

func toTemplateResponse(t templates.Template) TemplateResponse {
	return TemplateResponse{Name: t.Name, Description: t.Description, Objects: len(t.Items)}
}
