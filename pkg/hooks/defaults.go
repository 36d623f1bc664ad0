package hooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/counters"
	"github.com/Ramsey-B/clover/pkg/envelope"
	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	UpdateCounters     = "update_counters"
	UpdateRecommenders = "update_recommenders"
)

type CounterSink interface {
	IncrementFor(ctx context.Context, key counters.Key) error
}

type RecommenderSink interface {
	Observe(ctx context.Context, user *models.User, product *models.Product) error
	ObserveActivity(ctx context.Context, user *models.User, at time.Time) error
	ObserveCategory(ctx context.Context, product *models.Product, category models.Taxon) error
	ObserveTag(ctx context.Context, product *models.Product, tag models.Taxon) error
}

// RegisterDefaults wires update_counters for every api event kind and
// update_recommenders for product views. A nil sink skips its callback.
func RegisterDefaults(r *Registry, c CounterSink, rec RecommenderSink) {
	if c != nil {
		for _, kind := range envelope.Kinds() {
			if kind.IsAPIEvent() {
				r.Register(kind, UpdateCounters, CountersHook(c))
			}
		}
	}
	if rec != nil {
		r.Register(envelope.KindProductPageView, UpdateRecommenders, RecommendersHook(rec))
	}
}

// CountersHook increments the api event counter and the product, category and tag counters of p.
// Every increment is attempted; failures are joined.
func CountersHook(c CounterSink) Func {
	return func(ctx context.Context, p *Payload) error {
		if p.Enterprise == nil {
			return errors.New("payload has no enterprise")
		}
		enterpriseID := p.Enterprise.ID

		var keys []counters.Key
		if p.APIEvent != nil {
			keys = append(keys, counters.Key{EnterpriseID: enterpriseID, Dimension: models.CounterAPIEvent, DimensionID: p.APIEvent.ID})
		}
		if p.Product != nil {
			keys = append(keys, counters.Key{EnterpriseID: enterpriseID, Dimension: models.CounterProduct, DimensionID: p.Product.ID})
		}
		for _, cat := range p.Categories {
			keys = append(keys, counters.Key{EnterpriseID: enterpriseID, Dimension: models.CounterCategory, DimensionID: cat.ID})
		}
		for _, tag := range p.Tags {
			keys = append(keys, counters.Key{EnterpriseID: enterpriseID, Dimension: models.CounterTag, DimensionID: tag.ID})
		}

		var errs []error
		for _, k := range keys {
			if err := c.IncrementFor(ctx, k); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", k.Dimension, k.DimensionID, err))
			}
		}
		return errors.Join(errs...)
	}
}

// RecommendersHook forwards the user/product view, the user's activity and the
// product's taxonomy membership to the recommender.
func RecommendersHook(rec RecommenderSink) Func {
	return func(ctx context.Context, p *Payload) error {
		if p.User == nil || p.Product == nil {
			return errors.New("payload has no user or product")
		}

		errs := []error{
			rec.Observe(ctx, p.User, p.Product),
			rec.ObserveActivity(ctx, p.User, p.At),
		}
		for _, cat := range p.Categories {
			errs = append(errs, rec.ObserveCategory(ctx, p.Product, cat))
		}
		for _, tag := range p.Tags {
			errs = append(errs, rec.ObserveTag(ctx, p.Product, tag))
		}
		return errors.Join(errs...)
	}
}
