package page

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

const table = "pages"

var columns = []string{"enterprise_id", "route_url", "category_ids", "tag_ids", "created_at", "updated_at"}

// Repository handles page persistence. Pages are keyed by route url.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Get(ctx context.Context, enterpriseID, routeURL string) (*models.Page, error) {
	ctx, span := tracing.StartSpan(ctx, "page.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("enterprise_id", enterpriseID), sb.Equal("route_url", routeURL))

	query, args := sb.Build()
	var p models.Page
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": enterpriseID,
			"route_url":     routeURL,
		}).Error("Failed to get page")
		return nil, apperrors.Storage(err, "failed to get page %s", routeURL)
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, p models.Page) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "page.Repository.Create")
	defer span.End()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(p.EnterpriseID, p.RouteURL, p.CategoryIDs, p.TagIDs, p.CreatedAt, p.UpdatedAt)
	database.OnConflictDoNothing(ib, "enterprise_id", "route_url")

	query, args := ib.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": p.EnterpriseID,
			"route_url":     p.RouteURL,
		}).Error("Failed to create page")
		return false, apperrors.Storage(err, "failed to create page %s", p.RouteURL)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repository) Update(ctx context.Context, enterpriseID, routeURL string, changes models.Changes) error {
	ctx, span := tracing.StartSpan(ctx, "page.Repository.Update")
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
	ub.Where(ub.Equal("enterprise_id", enterpriseID), ub.Equal("route_url", routeURL))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"enterprise_id": enterpriseID,
			"route_url":     routeURL,
			"columns":       changes.Columns(),
		}).Error("Failed to update page")
		return apperrors.Storage(err, "failed to update page %s", routeURL)
	}
	return nil
}
