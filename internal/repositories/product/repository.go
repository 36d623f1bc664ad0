package product

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

const table = "products"

var columns = []string{"enterprise_id", "id", "name", "price", "route_url", "category_ids", "tag_ids", "created_at", "updated_at"}

// Repository handles product persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new product repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get returns the product or nil when it does not exist
func (r *Repository) Get(ctx context.Context, enterpriseID, id string) (*models.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("enterprise_id", enterpriseID), sb.Equal("id", id))

	query, args := sb.Build()
	var p models.Product
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": enterpriseID,
			"product_id":    id,
		}).Error("Failed to get product")
		return nil, apperrors.Storage(err, "failed to get product %s", id)
	}
	return &p, nil
}

// Create inserts the product unless it already exists
func (r *Repository) Create(ctx context.Context, p models.Product) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(p.EnterpriseID, p.ID, p.Name, p.Price, p.RouteURL, p.CategoryIDs, p.TagIDs, p.CreatedAt, p.UpdatedAt)
	database.OnConflictDoNothing(ib, "enterprise_id", "id")

	query, args := ib.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": p.EnterpriseID,
			"product_id":    p.ID,
		}).Error("Failed to create product")
		return false, apperrors.Storage(err, "failed to create product %s", p.ID)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Update writes only the changed columns
func (r *Repository) Update(ctx context.Context, enterpriseID, id string, changes models.Changes) error {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Update")
	defer span.End()

	if changes.Empty() {
		return nil
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	assignments := make([]string, 0, len(changes)+1)
	for _, c := range changes {
		assignments = append(assignments, ub.Assign(c.Column, c.Value))
	}
	assignments = append(assignments, ub.Assign("updated_at", time.Now().UTC()))
	ub.Set(assignments...)
	ub.Where(ub.Equal("enterprise_id", enterpriseID), ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": enterpriseID,
			"product_id":    id,
			"columns":       changes.Columns(),
		}).Error("Failed to update product")
		return apperrors.Storage(err, "failed to update product %s", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"enterprise_id": enterpriseID,
		"product_id":    id,
		"columns":       changes.Columns(),
	}).Debug("Updated product")
	return nil
}
