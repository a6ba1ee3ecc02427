package configurator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/geometry"
	"github.com/kirinyoku/stagekit/internal/interaction"
	"github.com/kirinyoku/stagekit/internal/scene"
	"github.com/kirinyoku/stagekit/internal/templates"
)

type memSlots struct {
	data map[string]string
	err  error
}

func newMemSlots() *memSlots { return &memSlots{data: map[string]string{}} }

func (m *memSlots) Get(_ context.Context, slot string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.data[slot]
	return v, ok, nil
}

func (m *memSlots) Put(_ context.Context, slot, payload string) error {
	if m.err != nil {
		return m.err
	}
	m.data[slot] = payload
	return nil
}

func newTestConfigurator(t *testing.T, slots SlotStore) (*Configurator, *[]domain.Quotation) {
	t.Helper()
	var published []domain.Quotation
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(slots, logger, Config{Width: 64, Height: 64}, func(q domain.Quotation) {
		published = append(published, q)
	})
	t.Cleanup(c.Close)
	return c, &published
}

func down(x, z float64) geometry.Ray {
	return geometry.Ray{Origin: domain.Vec3{X: x, Y: 50, Z: z}, Direction: domain.Vec3{Y: -1}}
}

func TestAddPublishesQuotation(t *testing.T) {
	c, published := newTestConfigurator(t, newMemSlots())

	_, err := c.Add(domain.TypeTruss)
	require.ErrorIs(t, err, scene.ErrNoStage)
	assert.Empty(t, *published)
	assert.True(t, IsUserError(err))

	stage, err := c.Add(domain.TypeStage)
	require.NoError(t, err)
	assert.Equal(t, "stage-1", stage.ID)

	truss, err := c.Add(domain.TypeTruss)
	require.NoError(t, err)
	tp := truss.Properties.(domain.TrussProperties)
	assert.Equal(t, "stage-1", tp.RelatedStageID)

	require.Len(t, *published, 2)
	q := c.Quotation()
	require.Len(t, q.Items, 2)
	assert.Equal(t, q.Items[0].Amount+q.Items[1].Amount, q.Total)
}

func TestAddTrussUsesSelectedStage(t *testing.T) {
	c, _ := newTestConfigurator(t, newMemSlots())

	_, err := c.Add(domain.TypeStage)
	require.NoError(t, err)
	second, err := c.Add(domain.TypeStage)
	require.NoError(t, err)
	_, err = c.ApplyEdit(second.ID, domain.Patch{Width: ptr(2.0)})
	require.NoError(t, err)

	// Only stage-1 reaches x=2.5 once stage-2 is narrowed.
	_, err = c.ApplyEdit("stage-1", domain.Patch{Depth: ptr(1.0)})
	require.NoError(t, err)
	state := c.PointerDown(down(2.5, 0))
	require.Equal(t, interaction.Selected, state)
	_, sel := c.Selection()
	require.Equal(t, "stage-1", sel)
	c.PointerUp()

	truss, err := c.Add(domain.TypeTruss)
	require.NoError(t, err)
	tp := truss.Properties.(domain.TrussProperties)
	assert.Equal(t, "stage-1", tp.RelatedStageID)
	assert.Equal(t, 5.46, tp.Width)
	assert.Equal(t, 1.0, tp.Depth)
}

func TestDeleteClearsSelection(t *testing.T) {
	c, published := newTestConfigurator(t, newMemSlots())

	_, err := c.Add(domain.TypeStage)
	require.NoError(t, err)
	c.PointerDown(down(0, 0))
	c.PointerUp()

	require.NoError(t, c.Delete("stage-1"))
	state, sel := c.Selection()
	assert.Equal(t, interaction.Idle, state)
	assert.Empty(t, sel)
	assert.Zero(t, c.LiveResources())
	assert.Zero(t, c.Quotation().Total)
	assert.Len(t, *published, 2)

	assert.ErrorIs(t, c.Delete("stage-1"), scene.ErrObjectNotFound)
}

func TestDragDoesNotTouchQuotation(t *testing.T) {
	c, published := newTestConfigurator(t, newMemSlots())

	_, err := c.Add(domain.TypeStage)
	require.NoError(t, err)
	before := len(*published)

	c.PointerDown(down(0, 0))
	pos, moved := c.PointerMove(down(1.23, 0.77))
	require.True(t, moved)
	assert.False(t, c.CameraEnabled())
	c.PointerUp()
	assert.True(t, c.CameraEnabled())

	assert.InDelta(t, 1.2, pos.X, 1e-9)
	assert.InDelta(t, 0.8, pos.Z, 1e-9)
	assert.Len(t, *published, before)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	slots := newMemSlots()
	c, published := newTestConfigurator(t, slots)

	tpl, err := templates.Get("concert-small")
	require.NoError(t, err)
	require.NoError(t, c.Seed(tpl.Items))
	require.Len(t, c.Objects(), 4)

	c.PointerDown(down(0, 0))
	c.PointerMove(down(3.04, -1.96))
	c.PointerUp()
	wantTotal := c.Quotation().Total
	wantLive := c.LiveResources()
	before := withoutPrices(t, c)

	require.NoError(t, c.Save(context.Background()))
	assert.Contains(t, slots.data[DefaultSlot], `"idCounter":4`)

	_, err = c.Add(domain.TypeLayher)
	require.NoError(t, err)
	require.Len(t, c.Objects(), 5)

	count := len(*published)
	require.NoError(t, c.Load(context.Background()))
	assert.Len(t, *published, count+1)

	assert.Equal(t, before, withoutPrices(t, c))
	assert.Equal(t, wantTotal, c.Quotation().Total)
	assert.Equal(t, wantLive, c.LiveResources())
	for _, o := range c.Objects() {
		require.NotNil(t, o.Visual)
	}

	state, _ := c.Selection()
	assert.Equal(t, interaction.Idle, state)

	next, err := c.Add(domain.TypeLayher)
	require.NoError(t, err)
	assert.Equal(t, "layher-6", next.ID)
}

func TestLoadNeverReissuesIDs(t *testing.T) {
	slots := newMemSlots()
	c, _ := newTestConfigurator(t, slots)

	_, err := c.Add(domain.TypeStage)
	require.NoError(t, err)
	require.NoError(t, c.Save(context.Background()))

	dropped, err := c.Add(domain.TypeLighting)
	require.NoError(t, err)
	assert.Equal(t, "lighting-2", dropped.ID)

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, int64(2), c.Counter())

	next, err := c.Add(domain.TypeLighting)
	require.NoError(t, err)
	assert.Equal(t, "lighting-3", next.ID)
}

func withoutPrices(t *testing.T, c *Configurator) []domain.SavedObject {
	t.Helper()
	snap, err := c.Snapshot()
	require.NoError(t, err)
	for i := range snap.Objects {
		snap.Objects[i].Price = 0
	}
	return snap.Objects
}

func TestLoadWithoutSave(t *testing.T) {
	c, published := newTestConfigurator(t, newMemSlots())

	_, err := c.Add(domain.TypeStage)
	require.NoError(t, err)

	err = c.Load(context.Background())
	require.ErrorIs(t, err, ErrNothingToLoad)
	assert.True(t, IsUserError(err))
	assert.Len(t, c.Objects(), 1)
	assert.Len(t, *published, 1)
}

func TestCorruptPayloadLeavesSceneIntact(t *testing.T) {
	cases := map[string]string{
		"not json":     "{",
		"unknown type": `{"objects":[{"id":"speaker-1","type":"speaker","properties":{},"price":0,"position":{"x":0,"y":0,"z":0},"rotation":{"x":0,"y":0,"z":0,"order":"XYZ"}}],"idCounter":1}`,
		"invalid":      `{"objects":[{"id":"stage-1","type":"stage","properties":{"width":-1,"depth":1,"height":1,"material":"deco_tile_new"},"price":0,"position":{"x":0,"y":0,"z":0},"rotation":{"x":0,"y":0,"z":0,"order":"XYZ"}}],"idCounter":1}`,
		"duplicate":    `{"objects":[{"id":"layher-1","type":"layher","properties":{"width":1,"depth":1,"height":1},"price":35000,"position":{"x":0,"y":0,"z":0},"rotation":{"x":0,"y":0,"z":0,"order":"XYZ"}},{"id":"layher-1","type":"layher","properties":{"width":1,"depth":1,"height":1},"price":35000,"position":{"x":0,"y":0,"z":0},"rotation":{"x":0,"y":0,"z":0,"order":"XYZ"}}],"idCounter":1}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			slots := newMemSlots()
			c, _ := newTestConfigurator(t, slots)
			_, err := c.Add(domain.TypeStage)
			require.NoError(t, err)
			live := c.LiveResources()

			slots.data[DefaultSlot] = payload
			err = c.Load(context.Background())
			require.ErrorIs(t, err, ErrCorruptScene)

			require.Len(t, c.Objects(), 1)
			assert.Equal(t, live, c.LiveResources())
		})
	}
}

func TestLoadRecomputesPrice(t *testing.T) {
	slots := newMemSlots()
	slots.data[DefaultSlot] = `{"objects":[{"id":"layher-7","type":"layher","properties":{"width":1,"depth":1,"height":1},"price":1,"position":{"x":2,"y":0,"z":3},"rotation":{"x":0,"y":0,"z":0,"order":"XYZ"}}],"idCounter":3}`
	c, _ := newTestConfigurator(t, slots)

	require.NoError(t, c.Load(context.Background()))
	o, ok := c.Object("layher-7")
	require.True(t, ok)
	assert.Equal(t, int64(35000), o.Price)
	assert.Equal(t, int64(35000), c.Quotation().Total)
	assert.Equal(t, int64(7), c.Counter())
}

func TestStorageFailure(t *testing.T) {
	slots := newMemSlots()
	c, _ := newTestConfigurator(t, slots)
	slots.err = errors.New("connection refused")

	assert.ErrorIs(t, c.Save(context.Background()), ErrStorage)
	assert.ErrorIs(t, c.Load(context.Background()), ErrStorage)
}

func TestEditRejectsOversizedDimensions(t *testing.T) {
	c, published := newTestConfigurator(t, newMemSlots())

	stage, err := c.Add(domain.TypeStage)
	require.NoError(t, err)
	price := stage.Price

	_, err = c.ApplyEdit(stage.ID, domain.Patch{Width: ptr(1e300)})
	require.ErrorIs(t, err, domain.ErrInvalidProperties)
	assert.True(t, IsUserError(err))

	o, ok := c.Object(stage.ID)
	require.True(t, ok)
	assert.Equal(t, price, o.Price)
	assert.Equal(t, price, c.Quotation().Total)
	assert.Len(t, *published, 1)

	_, err = c.ApplyEdit(stage.ID, domain.Patch{Width: ptr(domain.MaxDimension)})
	require.NoError(t, err)
	assert.Positive(t, c.Quotation().Total)
}

func TestExportImage(t *testing.T) {
	c, _ := newTestConfigurator(t, newMemSlots())
	_, err := c.Add(domain.TypeStage)
	require.NoError(t, err)

	url, err := c.ExportImage()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func ptr[T any](v T) *T { return &v }
