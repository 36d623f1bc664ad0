package taxonomy

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const batchSize = 500

var forwardColumns = []string{"enterprise_id", "text", "id", "parent_id", "created_at"}

// Repository handles category and tag persistence for both the forward
// (enterprise, text) -> id table and the reverse id -> text table.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func tables(kind models.TaxonomyKind) (forward, reverse string, err error) {
	switch kind {
	case models.TaxonomyCategory:
		return "categories", "category_texts", nil
	case models.TaxonomyTag:
		return "tags", "tag_texts", nil
	}
	return "", "", fmt.Errorf("unknown taxonomy kind %q", kind)
}

// FindByTexts returns the existing taxa for the given labels in one round trip
func (r *Repository) FindByTexts(ctx context.Context, kind models.TaxonomyKind, enterpriseID string, texts []string) ([]models.Taxon, error) {
	ctx, span := tracing.StartSpan(ctx, "taxonomy.Repository.FindByTexts")
	defer span.End()

	forward, _, err := tables(kind)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(forwardColumns...)
	sb.From(forward)
	sb.Where(sb.Equal("enterprise_id", enterpriseID), sb.In("text", sqlbuilder.List(texts)))

	query, args := sb.Build()
	var found []models.Taxon
	if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"kind":          kind,
			"enterprise_id": enterpriseID,
			"labels":        len(texts),
		}).Error("Failed to select taxonomy")
		return nil, apperrors.Storage(err, "failed to select %s", forward)
	}
	for i := range found {
		found[i].Kind = kind
	}
	return found, nil
}

// InsertForward writes the forward rows in one transaction and returns the rows this call inserted.
// Rows whose (enterprise_id, text) already existed are skipped.
func (r *Repository) InsertForward(ctx context.Context, kind models.TaxonomyKind, taxa []models.Taxon) ([]models.Taxon, error) {
	ctx, span := tracing.StartSpan(ctx, "taxonomy.Repository.InsertForward")
	defer span.End()

	forward, _, err := tables(kind)
	if err != nil {
		return nil, err
	}
	if len(taxa) == 0 {
		return nil, nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var inserted []models.Taxon
	for _, batch := range chunk(taxa, batchSize) {
		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto(forward)
		ib.Cols(forwardColumns...)
		for _, t := range batch {
			ib.Values(t.EnterpriseID, t.Text, t.ID, t.ParentID, t.CreatedAt)
		}
		database.OnConflictDoNothing(ib, "enterprise_id", "text")
		ib.Returning(forwardColumns...)

		query, args := ib.Build()
		var rows []models.Taxon
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"kind":  kind,
				"count": len(batch),
			}).Error("Failed to insert taxonomy")
			return nil, apperrors.Storage(err, "failed to insert %s", forward)
		}
		inserted = append(inserted, rows...)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Storage(err, "failed to commit %s", forward)
	}

	for i := range inserted {
		inserted[i].Kind = kind
	}
	return inserted, nil
}

// InsertReverse writes id -> text rows in one transaction
func (r *Repository) InsertReverse(ctx context.Context, kind models.TaxonomyKind, taxa []models.Taxon) error {
	ctx, span := tracing.StartSpan(ctx, "taxonomy.Repository.InsertReverse")
	defer span.End()

	_, reverse, err := tables(kind)
	if err != nil {
		return err
	}
	if len(taxa) == 0 {
		return nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return apperrors.Storage(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	for _, batch := range chunk(taxa, batchSize) {
		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto(reverse)
		ib.Cols("id", "text")
		for _, t := range batch {
			ib.Values(t.ID, t.Text)
		}
		database.OnConflictDoNothing(ib, "id")

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"kind":  kind,
				"count": len(batch),
			}).Error("Failed to insert reverse taxonomy")
			return apperrors.Storage(err, "failed to insert %s", reverse)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Storage(err, "failed to commit %s", reverse)
	}
	return nil
}

type textRow struct {
	ID   string `db:"id"`
	Text string `db:"text"`
}

// TextsByIDs reads the reverse index
func (r *Repository) TextsByIDs(ctx context.Context, kind models.TaxonomyKind, ids []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "taxonomy.Repository.TextsByIDs")
	defer span.End()

	_, reverse, err := tables(kind)
	if err != nil {
		return nil, err
	}
	if ectolinq.IsEmpty(ids) {
		return map[string]string{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "text")
	sb.From(reverse)
	sb.Where(sb.In("id", sqlbuilder.List(ids)))

	query, args := sb.Build()
	var rows []textRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"kind": kind,
		}).Error("Failed to select reverse taxonomy")
		return nil, apperrors.Storage(err, "failed to select %s", reverse)
	}

	texts := make(map[string]string, len(rows))
	for _, row := range rows {
		texts[row.ID] = row.Text
	}
	return texts, nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
