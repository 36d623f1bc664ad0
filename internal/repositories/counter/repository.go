package counter

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles the api event registry and the time-bucketed counters
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// RegisterAPIEvent returns the registry row for (enterprise, event name), creating it on first sighting
func (r *Repository) RegisterAPIEvent(ctx context.Context, enterpriseID, eventName string) (*models.APIEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "counter.Repository.RegisterAPIEvent")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"enterprise_id": enterpriseID,
		"event_name":    eventName,
	})

	existing, err := r.getAPIEvent(ctx, enterpriseID, eventName)
	if err != nil {
		log.WithError(err).Error("Failed to get api event")
		return nil, apperrors.Storage(err, "failed to get api event %s", eventName)
	}
	if existing != nil {
		return existing, nil
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("api_events")
	ib.Cols("enterprise_id", "event_name", "id", "created_at")
	ib.Values(enterpriseID, eventName, uuid.New().String(), time.Now().UTC())
	database.OnConflictDoNothing(ib, "enterprise_id", "event_name")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create api event")
		return nil, apperrors.Storage(err, "failed to create api event %s", eventName)
	}

	created, err := r.getAPIEvent(ctx, enterpriseID, eventName)
	if err != nil || created == nil {
		if err == nil {
			err = sql.ErrNoRows
		}
		log.WithError(err).Error("Failed to re-read api event")
		return nil, apperrors.Storage(err, "failed to re-read api event %s", eventName)
	}
	return created, nil
}

func (r *Repository) getAPIEvent(ctx context.Context, enterpriseID, eventName string) (*models.APIEvent, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "enterprise_id", "event_name", "created_at")
	sb.From("api_events")
	sb.Where(sb.Equal("enterprise_id", enterpriseID), sb.Equal("event_name", eventName))

	query, args := sb.Build()
	var ev models.APIEvent
	if err := r.db.GetContext(ctx, &ev, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

// Increment adds one to the counter row of the given bucket
func (r *Repository) Increment(ctx context.Context, c models.Counter) error {
	ctx, span := tracing.StartSpan(ctx, "counter.Repository.Increment")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("counters")
	ib.Cols("enterprise_id", "dimension", "dimension_id", "bucket", "count")
	ib.Values(c.EnterpriseID, c.Dimension, c.DimensionID, c.Bucket, 1)
	ib.SQL("ON CONFLICT (enterprise_id, dimension, dimension_id, bucket) DO UPDATE SET count = counters.count + 1")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": c.EnterpriseID,
			"dimension":     c.Dimension,
			"dimension_id":  c.DimensionID,
		}).Error("Failed to increment counter")
		return apperrors.Storage(err, "failed to increment %s counter", c.Dimension)
	}
	return nil
}
