package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "users"

// Repository handles user persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Get returns the user or nil when it does not exist
func (r *Repository) Get(ctx context.Context, enterpriseID string, id int64) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("enterprise_id", "id", "created_at")
	sb.From(table)
	sb.Where(sb.Equal("enterprise_id", enterpriseID), sb.Equal("id", id))

	query, args := sb.Build()
	var u models.User
	if err := r.db.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": enterpriseID,
			"user_id":       id,
		}).Error("Failed to get user")
		return nil, apperrors.Storage(err, "failed to get user %d", id)
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, u models.User) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Create")
	defer span.End()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("enterprise_id", "id", "created_at")
	ib.Values(u.EnterpriseID, u.ID, u.CreatedAt)
	database.OnConflictDoNothing(ib, "enterprise_id", "id")

	query, args := ib.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": u.EnterpriseID,
			"user_id":       u.ID,
		}).Error("Failed to create user")
		return false, apperrors.Storage(err, "failed to create user %d", u.ID)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
