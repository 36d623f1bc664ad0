package enterprise

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

const table = "enterprises"

// Repository handles enterprise persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new enterprise repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get returns the enterprise or nil when it does not exist
func (r *Repository) Get(ctx context.Context, id string) (*models.Enterprise, error) {
	ctx, span := tracing.StartSpan(ctx, "enterprise.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "created_at")
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var e models.Enterprise
	if err := r.db.GetContext(ctx, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": id,
		}).Error("Failed to get enterprise")
		return nil, apperrors.Storage(err, "failed to get enterprise %s", id)
	}
	return &e, nil
}

// Create inserts the enterprise unless it already exists. created is false when another writer won.
func (r *Repository) Create(ctx context.Context, e models.Enterprise) (created bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "enterprise.Repository.Create")
	defer span.End()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("id", "name", "created_at")
	ib.Values(e.ID, e.Name, e.CreatedAt)
	database.OnConflictDoNothing(ib, "id")

	query, args := ib.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": e.ID,
		}).Error("Failed to create enterprise")
		return false, apperrors.Storage(err, "failed to create enterprise %s", e.ID)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"enterprise_id": e.ID,
			"name":          e.Name,
		}).Info("Created enterprise")
	}
	return n > 0, nil
}
