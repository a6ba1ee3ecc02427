// Package render owns the per-configurator render surface: camera,
// viewport, orbit controls and the last rendered frame.
package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/geometry"
)

const (
	DefaultWidth   = 1280
	DefaultHeight  = 720
	PixelsPerMeter = 40

	ExportFilename = "stage-design.png"
)

var (
	ErrClosed  = errors.New("render context closed")
	ErrNoFrame = errors.New("no frame rendered yet")
)

var background = color.RGBA{R: 0x20, G: 0x20, B: 0x24, A: 0xff}

type Camera struct {
	Position domain.Vec3
	Target   domain.Vec3
	FOV      float64
	Aspect   float64
	Near     float64
	Far      float64
}

// OrbitControls is the camera orbit/pan input. It is suspended while an
// object is dragged.
type OrbitControls struct {
	enabled bool
}

func (o *OrbitControls) SetEnabled(enabled bool) { o.enabled = enabled }

func (o *OrbitControls) Enabled() bool { return o.enabled }

type Context struct {
	camera   Camera
	controls *OrbitControls
	width    int
	height   int
	frame    *image.RGBA
	closed   bool
}

func NewContext(width, height int) *Context {
	c := &Context{
		camera: Camera{
			Position: domain.Vec3{X: 10, Y: 10, Z: 10},
			FOV:      75,
			Near:     0.1,
			Far:      1000,
		},
		controls: &OrbitControls{enabled: true},
	}
	c.Resize(width, height)
	return c
}

func (c *Context) Camera() Camera { return c.camera }

func (c *Context) Controls() *OrbitControls { return c.controls }

func (c *Context) Size() (int, int) { return c.width, c.height }

// Resize adjusts the viewport and camera aspect. Non-positive sizes fall
// back to the defaults.
func (c *Context) Resize(width, height int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	c.width, c.height = width, height
	c.camera.Aspect = float64(width) / float64(height)
}

// Render draws a plan view of root centred on the camera target. Meshes
// are painted bottom to top so higher parts cover lower ones.
func (c *Context) Render(root *geometry.Node) error {
	const op = "render.Context.Render"

	if c.closed {
		return fmt.Errorf("%s:%w", op, ErrClosed)
	}

	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	fill(img, img.Bounds(), background)

	var meshes []*geometry.Node
	root.Walk(func(n *geometry.Node) {
		if n.Kind == geometry.KindMesh && n.Geometry != nil && n.Material != nil {
			meshes = append(meshes, n)
		}
	})
	sort.SliceStable(meshes, func(i, j int) bool {
		return top(meshes[i]) < top(meshes[j])
	})

	for _, m := range meshes {
		rect := c.project(m)
		col := shade(m.Material)
		if m.Material.Wireframe {
			outline(img, rect, col)
			continue
		}
		fill(img, rect, col)
	}

	c.frame = img
	return nil
}

// ExportPNG encodes the last rendered frame as a PNG data URL.
func (c *Context) ExportPNG() (string, error) {
	const op = "render.Context.ExportPNG"

	if c.closed {
		return "", fmt.Errorf("%s:%w", op, ErrClosed)
	}
	if c.frame == nil {
		return "", fmt.Errorf("%s:%w", op, ErrNoFrame)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, c.frame); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Close releases the frame and stops further rendering.
func (c *Context) Close() {
	c.closed = true
	c.frame = nil
	c.controls.SetEnabled(false)
}

func (c *Context) project(n *geometry.Node) image.Rectangle {
	p := n.WorldPosition()
	g := n.Geometry
	cx := float64(c.width)/2 + (p.X-c.camera.Target.X)*PixelsPerMeter
	cy := float64(c.height)/2 + (p.Z-c.camera.Target.Z)*PixelsPerMeter
	hw := g.Width / 2 * PixelsPerMeter
	hd := g.Depth / 2 * PixelsPerMeter
	return image.Rect(int(cx-hw), int(cy-hd), int(cx+hw+0.5), int(cy+hd+0.5))
}

func top(n *geometry.Node) float64 {
	return n.WorldPosition().Y + n.Geometry.Height/2
}

func shade(m *geometry.Material) color.RGBA {
	r, g, b := m.Color.RGB()
	er, eg, eb := m.Emissive.RGB()
	return color.RGBA{R: add(r, er), G: add(g, eg), B: add(b, eb), A: 0xff}
}

func add(a, b uint8) uint8 {
	if s := int(a) + int(b); s < 0xff {
		return uint8(s)
	}
	return 0xff
}

func fill(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func outline(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	b := img.Bounds()
	for x := r.Min.X; x < r.Max.X; x++ {
		set(img, b, x, r.Min.Y, col)
		set(img, b, x, r.Max.Y-1, col)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		set(img, b, r.Min.X, y, col)
		set(img, b, r.Max.X-1, y, col)
	}
}

func set(img *image.RGBA, b image.Rectangle, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(b) {
		img.SetRGBA(x, y, col)
	}
}
