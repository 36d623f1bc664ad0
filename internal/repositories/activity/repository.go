package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles per-event user activity: app lifecycle records,
// location history and the current phone details row.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func lifecycleTable(kind models.LifecycleKind) (string, error) {
	switch kind {
	case models.LifecycleInit:
		return "app_inits", nil
	case models.LifecycleLogin:
		return "app_logins", nil
	case models.LifecycleLogout:
		return "app_logouts", nil
	}
	return "", fmt.Errorf("unknown lifecycle kind %q", kind)
}

// WriteLifecycle records an app init/login/logout. A replayed event id writes nothing.
func (r *Repository) WriteLifecycle(ctx context.Context, rec models.LifecycleRecord) error {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.WriteLifecycle")
	defer span.End()

	table, err := lifecycleTable(rec.Kind)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("event_id", "enterprise_id", "user_id", "created_at")
	ib.Values(rec.EventID, rec.EnterpriseID, rec.UserID, rec.CreatedAt)
	database.OnConflictDoNothing(ib, "event_id")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id":      rec.EventID,
			"enterprise_id": rec.EnterpriseID,
			"kind":          rec.Kind,
		}).Error("Failed to write lifecycle record")
		return apperrors.Storage(err, "failed to write %s", table)
	}
	return nil
}

// AppendLocation appends one location row keyed by the event id
func (r *Repository) AppendLocation(ctx context.Context, loc models.LocationHistory) error {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.AppendLocation")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("user_location_history")
	ib.Cols("event_id", "enterprise_id", "user_id", "latitude", "longitude", "created_at")
	ib.Values(loc.EventID, loc.EnterpriseID, loc.UserID, loc.Latitude, loc.Longitude, loc.CreatedAt)
	database.OnConflictDoNothing(ib, "event_id")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": loc.EventID,
			"user_id":  loc.UserID,
		}).Error("Failed to append location history")
		return apperrors.Storage(err, "failed to append location history")
	}
	return nil
}

// UpsertPhone overwrites the phone details row when any field changed
func (r *Repository) UpsertPhone(ctx context.Context, p models.PhoneDetails) error {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.UpsertPhone")
	defer span.End()

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("user_phone_details")
	ib.Cols("enterprise_id", "user_id", "device_id", "manufacturer", "model", "os", "updated_at")
	ib.Values(p.EnterpriseID, p.UserID, p.DeviceID, p.Manufacturer, p.Model, p.OS, p.UpdatedAt)
	database.OnConflictUpdate(ib, []string{"enterprise_id", "user_id"}, "device_id", "manufacturer", "model", "os", "updated_at")
	ib.SQL("WHERE (user_phone_details.device_id, user_phone_details.manufacturer, user_phone_details.model, user_phone_details.os) IS DISTINCT FROM (EXCLUDED.device_id, EXCLUDED.manufacturer, EXCLUDED.model, EXCLUDED.os)")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": p.EnterpriseID,
			"user_id":       p.UserID,
		}).Error("Failed to upsert phone details")
		return apperrors.Storage(err, "failed to upsert phone details")
	}
	return nil
}
