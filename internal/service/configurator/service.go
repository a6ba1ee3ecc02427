// Package configurator ties one scene to its geometry, selection, pricing,
// quotation and persistence. A Configurator is not safe for concurrent use;
// callers serialize access.
package configurator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/geometry"
	"github.com/kirinyoku/stagekit/internal/interaction"
	"github.com/kirinyoku/stagekit/internal/quotation"
	"github.com/kirinyoku/stagekit/internal/render"
	"github.com/kirinyoku/stagekit/internal/scene"
	"github.com/kirinyoku/stagekit/internal/templates"
)

const DefaultSlot = "default"

// SlotStore is a durable key-value slot holding serialized scenes.
type SlotStore interface {
	Get(ctx context.Context, slot string) (string, bool, error)
	Put(ctx context.Context, slot string, payload string) error
}

type Config struct {
	Slot   string
	Width  int
	Height int
}

type Configurator struct {
	pool       *geometry.Pool
	scene      *scene.Scene
	rc         *render.Context
	controller *interaction.Controller
	quotes     *quotation.Aggregator
	slots      SlotStore
	logger     *slog.Logger
	cfg        Config
}

func New(
	slots SlotStore,
	logger *slog.Logger,
	cfg Config,
	subscribers ...quotation.Subscriber,
) *Configurator {
	if cfg.Slot == "" {
		cfg.Slot = DefaultSlot
	}

	if logger == nil {
		logger = slog.Default()
	}

	pool := geometry.NewPool()
	sc := scene.New(geometry.NewFactory(pool))
	rc := render.NewContext(cfg.Width, cfg.Height)

	return &Configurator{
		pool:       pool,
		scene:      sc,
		rc:         rc,
		controller: interaction.New(sc, rc.Controls()),
		quotes:     quotation.New(subscribers...),
		slots:      slots,
		logger:     logger,
		cfg:        cfg,
	}
}

func (c *Configurator) Objects() []*scene.Object { return c.scene.Objects() }

func (c *Configurator) Object(id string) (*scene.Object, bool) { return c.scene.Get(id) }

func (c *Configurator) Counter() int64 { return c.scene.Counter() }

func (c *Configurator) Quotation() domain.Quotation { return c.quotes.Current() }

// LiveResources reports the GPU-side handles held by all visuals.
func (c *Configurator) LiveResources() int { return c.pool.Live() }

func (c *Configurator) Selection() (interaction.State, string) {
	id, _ := c.controller.Selected()
	return c.controller.State(), id
}

// Seed places initial objects, such as a template, and publishes one
// quotation. A truss without a related stage is tied to the stage placed
// most recently before it.
func (c *Configurator) Seed(items []templates.Item) error {
	const op = "service.configurator.Seed"

	lastStage := ""
	for _, it := range items {
		props := it.Properties
		if tp, ok := props.(domain.TrussProperties); ok && tp.RelatedStageID == "" {
			tp.RelatedStageID = lastStage
			props = tp
		}

		o, err := c.scene.Place(props, domain.Transform{Position: it.Position, Rotation: it.Rotation})
		if err != nil {
			c.recompute()
			return fmt.Errorf("%s:%w", op, err)
		}
		if o.Type == domain.TypeStage {
			lastStage = o.ID
		}
	}

	c.recompute()
	return nil
}

// Add places a new object with default parameters. A truss is tied to the
// selected stage, else the most recent one.
func (c *Configurator) Add(t domain.ObjectType) (*scene.Object, error) {
	const op = "service.configurator.Add"

	opts := scene.AddOptions{}
	if id, ok := c.controller.Selected(); ok {
		opts.StageID = id
	}

	o, err := c.scene.Add(t, opts)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	c.recompute()
	return o, nil
}

// ApplyEdit is the single entry point for property edits.
func (c *Configurator) ApplyEdit(id string, patch domain.Patch) (*scene.Object, error) {
	const op = "service.configurator.ApplyEdit"

	o, err := c.scene.ApplyEdit(id, patch)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	c.recompute()
	return o, nil
}

func (c *Configurator) Delete(id string) error {
	const op = "service.configurator.Delete"

	if _, ok := c.scene.Get(id); !ok {
		return fmt.Errorf("%s:%w", op, scene.ObjectNotFoundError{ID: id})
	}

	c.controller.Forget(id)
	if err := c.scene.Delete(id); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	c.recompute()
	return nil
}

func (c *Configurator) DeleteSelected() (string, error) {
	const op = "service.configurator.DeleteSelected"

	id, err := c.controller.DeleteSelected()
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	c.recompute()
	return id, nil
}

func (c *Configurator) PointerDown(ray geometry.Ray) interaction.State {
	return c.controller.PointerDown(ray)
}

func (c *Configurator) PointerMove(ray geometry.Ray) (domain.Vec3, bool) {
	return c.controller.PointerMove(ray)
}

func (c *Configurator) PointerUp() interaction.State {
	return c.controller.PointerUp()
}

// CameraEnabled reports whether orbit/pan input is active.
func (c *Configurator) CameraEnabled() bool { return c.rc.Controls().Enabled() }

func (c *Configurator) Resize(width, height int) { c.rc.Resize(width, height) }

// ExportImage renders the current scene and returns it as a PNG data URL.
func (c *Configurator) ExportImage() (string, error) {
	const op = "service.configurator.ExportImage"

	if err := c.rc.Render(c.scene.Root()); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	url, err := c.rc.ExportPNG()
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return url, nil
}

// Close releases every visual and the render context.
func (c *Configurator) Close() {
	c.controller.Reset()
	<-c.scene.Clear()
	c.rc.Close()
}

// ============================================================
// Persistence
// ============================================================

// Save writes a snapshot of the scene to the configured slot.
func (c *Configurator) Save(ctx context.Context) error {
	const op = "service.configurator.Save"

	snap, err := c.Snapshot()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := c.slots.Put(ctx, c.cfg.Slot, string(b)); err != nil {
		c.logger.Error("failed to save scene", "slot", c.cfg.Slot, "error", err)
		return fmt.Errorf("%s:%w: %w", op, ErrStorage, err)
	}

	c.logger.Info("scene saved", "slot", c.cfg.Slot, "objects", len(snap.Objects), "id_counter", snap.IDCounter)
	return nil
}

// Snapshot captures parameters and transforms; visuals are not persisted.
func (c *Configurator) Snapshot() (domain.SavedScene, error) {
	const op = "service.configurator.Snapshot"

	objs := c.scene.Objects()
	snap := domain.SavedScene{
		Objects:   make([]domain.SavedObject, 0, len(objs)),
		IDCounter: c.scene.Counter(),
	}

	for _, o := range objs {
		raw, err := json.Marshal(o.Properties)
		if err != nil {
			return domain.SavedScene{}, fmt.Errorf("%s:%w", op, err)
		}
		snap.Objects = append(snap.Objects, domain.SavedObject{
			ID:         o.ID,
			Type:       o.Type,
			Properties: raw,
			Price:      o.Price,
			Position:   o.Transform.Position,
			Rotation:   o.Transform.Rotation,
		})
	}

	return snap, nil
}

type restored struct {
	id        string
	props     domain.Properties
	transform domain.Transform
	price     int64
}

// Load replaces the scene with the one in the configured slot. The payload
// is decoded and validated before the current scene is cleared, so a
// failed load leaves the scene as it was. The id counter never moves
// backwards.
func (c *Configurator) Load(ctx context.Context) error {
	const op = "service.configurator.Load"

	payload, ok, err := c.slots.Get(ctx, c.cfg.Slot)
	if err != nil {
		c.logger.Error("failed to read saved scene", "slot", c.cfg.Slot, "error", err)
		return fmt.Errorf("%s:%w: %w", op, ErrStorage, err)
	}
	if !ok {
		return fmt.Errorf("%s:%w", op, ErrNothingToLoad)
	}

	entries, counter, err := c.decode(payload)
	if err != nil {
		c.logger.Error("failed to decode saved scene", "slot", c.cfg.Slot, "error", err)
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	c.controller.Reset()
	<-c.scene.Clear()

	for _, e := range entries {
		o, err := c.scene.Insert(e.id, e.props, e.transform)
		if err != nil {
			c.recompute()
			return fmt.Errorf("%s:%w", op, err)
		}
		if o.Price != e.price {
			c.logger.Warn("persisted price differs from price table", "id", o.ID, "persisted", e.price, "current", o.Price)
		}
	}
	counter = max(counter, c.scene.Counter())
	c.scene.RestoreCounter(counter)

	c.recompute()
	c.logger.Info("scene loaded", "slot", c.cfg.Slot, "objects", len(entries), "id_counter", counter)
	return nil
}

func (c *Configurator) decode(payload string) ([]restored, int64, error) {
	var saved domain.SavedScene
	if err := json.Unmarshal([]byte(payload), &saved); err != nil {
		return nil, 0, CorruptSceneError{Slot: c.cfg.Slot, Reason: err.Error()}
	}

	counter := saved.IDCounter
	seen := make(map[string]struct{}, len(saved.Objects))
	out := make([]restored, 0, len(saved.Objects))

	for _, so := range saved.Objects {
		if so.ID == "" {
			return nil, 0, CorruptSceneError{Slot: c.cfg.Slot, Reason: "object without id"}
		}
		if _, dup := seen[so.ID]; dup {
			return nil, 0, CorruptSceneError{Slot: c.cfg.Slot, Reason: "duplicate id " + so.ID}
		}
		seen[so.ID] = struct{}{}

		props, err := domain.DecodeProperties(so.Type, so.Properties)
		if err != nil {
			return nil, 0, CorruptSceneError{Slot: c.cfg.Slot, Reason: err.Error()}
		}
		if err := props.Validate(); err != nil {
			return nil, 0, CorruptSceneError{Slot: c.cfg.Slot, Reason: so.ID + ": " + err.Error()}
		}

		if n, ok := idSequence(so.ID); ok && n > counter {
			counter = n
		}

		out = append(out, restored{
			id:        so.ID,
			props:     props,
			transform: domain.Transform{Position: so.Position, Rotation: so.Rotation},
			price:     so.Price,
		})
	}

	return out, counter, nil
}

// idSequence extracts the counter value from an id of the form type-N.
func idSequence(id string) (int64, bool) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Configurator) recompute() {
	c.quotes.Recompute(c.scene.Objects())
}

// IsUserError reports whether err is a rejection the hosting page should
// show as a notice rather than a fault.
func IsUserError(err error) bool {
	return errors.Is(err, scene.ErrNoStage) ||
		errors.Is(err, ErrNothingToLoad) ||
		errors.Is(err, domain.ErrInvalidProperties)
}
