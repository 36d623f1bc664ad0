package push

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles push token and push key persistence.
// Both tables hold a single current row per identity.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// UpsertToken stores the current token of a user for a push type.
// An unchanged token leaves the row untouched.
func (r *Repository) UpsertToken(ctx context.Context, t models.PushToken) error {
	ctx, span := tracing.StartSpan(ctx, "push.Repository.UpsertToken")
	defer span.End()

	now := time.Now().UTC()
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("push_tokens")
	ib.Cols("enterprise_id", "user_id", "push_type", "token", "created_at", "updated_at")
	ib.Values(t.EnterpriseID, t.UserID, t.PushType, t.Token, now, now)
	database.OnConflictUpdate(ib, []string{"enterprise_id", "user_id", "push_type"}, "token", "updated_at")
	ib.SQL("WHERE push_tokens.token IS DISTINCT FROM EXCLUDED.token")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": t.EnterpriseID,
			"user_id":       t.UserID,
			"push_type":     t.PushType,
		}).Error("Failed to upsert push token")
		return apperrors.Storage(err, "failed to upsert push token")
	}
	return nil
}

// UpsertKey stores the current key of an enterprise for a push type
func (r *Repository) UpsertKey(ctx context.Context, k models.PushKey) error {
	ctx, span := tracing.StartSpan(ctx, "push.Repository.UpsertKey")
	defer span.End()

	now := time.Now().UTC()
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("push_keys")
	ib.Cols("enterprise_id", "push_type", "key", "created_at", "updated_at")
	ib.Values(k.EnterpriseID, k.PushType, k.Key, now, now)
	database.OnConflictUpdate(ib, []string{"enterprise_id", "push_type"}, "key", "updated_at")
	ib.SQL("WHERE push_keys.key IS DISTINCT FROM EXCLUDED.key")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": k.EnterpriseID,
			"push_type":     k.PushType,
		}).Error("Failed to upsert push key")
		return apperrors.Storage(err, "failed to upsert push key")
	}
	return nil
}
