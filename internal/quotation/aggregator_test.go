package quotation

import (
	"bytes"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/geometry"
	"github.com/kirinyoku/stagekit/internal/scene"
)

func TestRecomputePublishesLineItems(t *testing.T) {
	s := scene.New(geometry.NewFactory(geometry.NewPool()))
	_, err := s.Add(domain.TypeStage, scene.AddOptions{})
	require.NoError(t, err)
	_, err = s.Add(domain.TypeTruss, scene.AddOptions{})
	require.NoError(t, err)

	var got []domain.Quotation
	a := New(func(q domain.Quotation) { got = append(got, q) })

	q := a.Recompute(s.Objects())
	require.Len(t, got, 1)
	assert.Equal(t, q, got[0])
	assert.Equal(t, q, a.Current())

	require.Len(t, q.Items, 2)
	assert.Equal(t, "stage-1", q.Items[0].ID)
	assert.Equal(t, 1, q.Items[0].Quantity)
	assert.Equal(t, int64(397488), q.Items[0].UnitPrice)
	assert.Equal(t, int64(397488), q.Items[0].Amount)
	assert.Equal(t, "truss-2", q.Items[1].ID)
	assert.Equal(t, int64(397488+453000), q.Total)
}

func TestEmptyQuotation(t *testing.T) {
	a := New()
	q := a.Current()
	assert.Empty(t, q.Items)
	assert.NotNil(t, q.Items)
	assert.Zero(t, q.Total)
}

func TestTotalEqualsSumAfterEveryMutation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	types := []domain.ObjectType{domain.TypeStage, domain.TypeTruss, domain.TypeLayher, domain.TypeLighting}

	properties.Property("total is the sum of live prices", prop.ForAll(
		func(ops []int) bool {
			s := scene.New(geometry.NewFactory(geometry.NewPool()))
			ok := true
			a := New(func(q domain.Quotation) {
				var sum int64
				for _, o := range s.Objects() {
					sum += o.Price
				}
				if q.Total != sum || len(q.Items) != s.Len() {
					ok = false
				}
			})

			for i, op := range ops {
				objs := s.Objects()
				switch {
				case op < 4:
					if _, err := s.Add(types[op], scene.AddOptions{}); err != nil {
						continue
					}
				case op == 4 && len(objs) > 0:
					if err := s.Delete(objs[i%len(objs)].ID); err != nil {
						return false
					}
				case op == 5 && len(objs) > 0:
					o := objs[i%len(objs)]
					patch := domain.Patch{}
					if o.Type == domain.TypeLighting {
						k := domain.LightPoint
						patch.Kind = &k
					} else {
						h := float64(i%5) + 0.5
						patch.Height = &h
					}
					if _, err := s.ApplyEdit(o.ID, patch); err != nil {
						return false
					}
				default:
					continue
				}
				a.Recompute(s.Objects())
			}
			return ok
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}

func TestBuildTotalSaturates(t *testing.T) {
	objs := []*scene.Object{
		{ID: "layher-1", Type: domain.TypeLayher, Properties: domain.ScaffoldProperties{Width: 1, Depth: 1, Height: 1}, Price: math.MaxInt64},
		{ID: "layher-2", Type: domain.TypeLayher, Properties: domain.ScaffoldProperties{Width: 1, Depth: 1, Height: 1}, Price: math.MaxInt64},
	}

	q := Build(objs)
	require.Len(t, q.Items, 2)
	assert.Equal(t, int64(math.MaxInt64), q.Total)
}

func TestWriteXLSX(t *testing.T) {
	q := domain.Quotation{
		Items: []domain.QuotationLineItem{
			{ID: "stage-1", Description: "Stage", Quantity: 1, UnitPrice: 100, Amount: 100},
			{ID: "lighting-2", Description: "Light", Quantity: 1, UnitPrice: 50, Amount: 50},
		},
		Total: 150,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, q))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "lighting-2", rows[2][0])
	assert.Equal(t, []string{"", "", "", "Total", "150"}, rows[3])
}
