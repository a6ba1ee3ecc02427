// Package quotation derives a line-itemized quotation from the live object
// collection and publishes it to subscribers.
package quotation

import (
	"fmt"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/pricing"
	"github.com/kirinyoku/stagekit/internal/scene"
)

// Subscriber receives every recomputed quotation, synchronously.
type Subscriber func(q domain.Quotation)

type Aggregator struct {
	subscribers []Subscriber
	last        domain.Quotation
}

func New(subscribers ...Subscriber) *Aggregator {
	a := &Aggregator{last: domain.Quotation{Items: []domain.QuotationLineItem{}}}
	for _, s := range subscribers {
		a.Subscribe(s)
	}
	return a
}

func (a *Aggregator) Subscribe(s Subscriber) {
	if s != nil {
		a.subscribers = append(a.subscribers, s)
	}
}

// Current returns the most recently computed quotation.
func (a *Aggregator) Current() domain.Quotation {
	return a.last
}

// Recompute rebuilds the quotation from scratch and publishes it.
func (a *Aggregator) Recompute(objects []*scene.Object) domain.Quotation {
	q := Build(objects)
	a.last = q
	for _, s := range a.subscribers {
		s(q)
	}
	return q
}

// Build derives the quotation of objects in iteration order.
func Build(objects []*scene.Object) domain.Quotation {
	q := domain.Quotation{Items: make([]domain.QuotationLineItem, 0, len(objects))}

	for _, o := range objects {
		q.Items = append(q.Items, domain.QuotationLineItem{
			ID:          o.ID,
			Description: Describe(o.Properties),
			Quantity:    1,
			UnitPrice:   o.Price,
			Amount:      o.Price,
		})
		q.Total = pricing.Add(q.Total, o.Price)
	}

	return q
}

// Describe renders a short human description of an object.
func Describe(props domain.Properties) string {
	switch p := props.(type) {
	case domain.StageProperties:
		return fmt.Sprintf("Stage %gm x %gm x %gm (%s)", p.Width, p.Depth, p.Height, p.Material)
	case domain.TrussProperties:
		return fmt.Sprintf("Truss frame %gm x %gm, %gm high", p.Width, p.Depth, p.Height)
	case domain.ScaffoldProperties:
		return fmt.Sprintf("Layher scaffold %gm x %gm x %gm", p.Width, p.Depth, p.Height)
	case domain.LightingProperties:
		return fmt.Sprintf("Lighting fixture (%s)", p.Kind)
	default:
		return "Unknown item"
	}
}
