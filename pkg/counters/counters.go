// Package counters increments the time-bucketed usage counters.
// Counters are only ever incremented, never read, by the pipeline.
package counters

import (
	"context"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Key identifies a counter dimension within an enterprise
type Key struct {
	EnterpriseID string
	Dimension    models.CounterDimension
	DimensionID  string
}

type Store interface {
	Increment(ctx context.Context, c models.Counter) error
}

type Sink struct {
	store  Store
	bucket time.Duration
	now    func() time.Time
}

// NewSink creates a counter sink. Observations are grouped into buckets of the given width.
func NewSink(store Store, bucket time.Duration) *Sink {
	if bucket <= 0 {
		bucket = time.Minute
	}
	return &Sink{
		store:  store,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IncrementFor adds one to the counter of key in the current bucket
func (s *Sink) IncrementFor(ctx context.Context, key Key) error {
	ctx, span := tracing.StartSpan(ctx, "counters.Sink.IncrementFor")
	defer span.End()

	if key.EnterpriseID == "" || key.DimensionID == "" {
		return fmt.Errorf("counter key requires enterprise and dimension id: %+v", key)
	}

	return s.store.Increment(ctx, models.Counter{
		EnterpriseID: key.EnterpriseID,
		Dimension:    key.Dimension,
		DimensionID:  key.DimensionID,
		Bucket:       s.now().Truncate(s.bucket),
		Count:        1,
	})
}
