// Package taxonomy resolves free-text category and tag labels to stable ids.
//
// Unknown labels get a new id and are written in two batches: the forward
// (enterprise, text) -> id rows, then the reverse id -> text rows. Each batch
// is atomic; the pair is not. A forward row without its reverse row only
// degrades display lookups.
package taxonomy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type Store interface {
	FindByTexts(ctx context.Context, kind models.TaxonomyKind, enterpriseID string, texts []string) ([]models.Taxon, error)
	InsertForward(ctx context.Context, kind models.TaxonomyKind, taxa []models.Taxon) ([]models.Taxon, error)
	InsertReverse(ctx context.Context, kind models.TaxonomyKind, taxa []models.Taxon) error
	TextsByIDs(ctx context.Context, kind models.TaxonomyKind, ids []string) (map[string]string, error)
}

type Resolver struct {
	store  Store
	cache  cache.Cache
	logger ectologger.Logger
	newID  func() string
	now    func() time.Time
}

func New(store Store, c cache.Cache, logger ectologger.Logger) *Resolver {
	if c == nil {
		c = cache.Nop{}
	}
	return &Resolver{
		store:  store,
		cache:  c,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Normalize trims labels, drops blanks and collapses duplicates, keeping first-seen order.
func Normalize(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	trimmed := ectolinq.Map(labels, strings.TrimSpace)
	return ectolinq.Filter(trimmed, func(l string) bool {
		if l == "" {
			return false
		}
		if _, dup := seen[l]; dup {
			return false
		}
		seen[l] = struct{}{}
		return true
	})
}

func cacheKey(kind models.TaxonomyKind, enterpriseID, label string) string {
	return cache.Key("taxon", string(kind), enterpriseID, label)
}

// ResolveAll maps every label to its id, creating ids for labels never seen in this enterprise.
// Repeated calls with the same labels return the same mapping.
func (r *Resolver) ResolveAll(ctx context.Context, kind models.TaxonomyKind, enterpriseID string, labels []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "taxonomy.Resolver.ResolveAll")
	defer span.End()

	if !kind.Valid() {
		return nil, fmt.Errorf("unknown taxonomy kind %q", kind)
	}

	wanted := Normalize(labels)
	resolved := make(map[string]string, len(wanted))
	if len(wanted) == 0 {
		return resolved, nil
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":          kind,
		"enterprise_id": enterpriseID,
	})

	var missing []string
	for _, label := range wanted {
		var id string
		hit, err := r.cache.Get(ctx, cacheKey(kind, enterpriseID, label), &id)
		if err != nil {
			log.WithError(err).Warn("Cache read failed, falling back to storage")
		}
		metrics.RecordCacheLookup(string(kind), hit && err == nil)
		if hit && err == nil && id != "" {
			resolved[label] = id
			continue
		}
		missing = append(missing, label)
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	found, err := r.store.FindByTexts(ctx, kind, enterpriseID, missing)
	if err != nil {
		return nil, err
	}
	r.merge(ctx, kind, enterpriseID, resolved, found)

	unknown := ectolinq.Filter(missing, func(l string) bool {
		_, ok := resolved[l]
		return !ok
	})
	if len(unknown) == 0 {
		return resolved, nil
	}

	now := r.now()
	fresh := ectolinq.Map(unknown, func(l string) models.Taxon {
		return models.Taxon{Kind: kind, EnterpriseID: enterpriseID, Text: l, ID: r.newID(), CreatedAt: now}
	})

	inserted, err := r.store.InsertForward(ctx, kind, fresh)
	if err != nil {
		return nil, err
	}
	r.merge(ctx, kind, enterpriseID, resolved, inserted)

	// labels created concurrently by another writer resolve to the winner's id
	lost := ectolinq.Filter(unknown, func(l string) bool {
		_, ok := resolved[l]
		return !ok
	})
	if len(lost) > 0 {
		winners, err := r.store.FindByTexts(ctx, kind, enterpriseID, lost)
		if err != nil {
			return nil, err
		}
		r.merge(ctx, kind, enterpriseID, resolved, winners)
		for _, l := range lost {
			if _, ok := resolved[l]; !ok {
				return nil, apperrors.Storage(fmt.Errorf("label %q not visible after insert", l), "failed to resolve %s", kind)
			}
		}
	}

	if len(inserted) > 0 {
		for range inserted {
			metrics.RecordCreated(string(kind))
		}
		if err := r.store.InsertReverse(ctx, kind, inserted); err != nil {
			log.WithError(err).WithFields(map[string]any{
				"count": len(inserted),
			}).Warn("Failed to write reverse taxonomy index")
		}
		log.WithFields(map[string]any{
			"created": len(inserted),
			"lost":    len(lost),
		}).Debug("Created taxonomy labels")
	}

	return resolved, nil
}

func (r *Resolver) merge(ctx context.Context, kind models.TaxonomyKind, enterpriseID string, into map[string]string, taxa []models.Taxon) {
	for _, t := range taxa {
		into[t.Text] = t.ID
		if err := r.cache.Set(ctx, cacheKey(kind, enterpriseID, t.Text), t.ID); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Cache write failed")
		}
	}
}

// Texts looks ids up in the reverse index. Unknown ids are absent from the result.
func (r *Resolver) Texts(ctx context.Context, kind models.TaxonomyKind, ids []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "taxonomy.Resolver.Texts")
	defer span.End()

	if !kind.Valid() {
		return nil, fmt.Errorf("unknown taxonomy kind %q", kind)
	}
	return r.store.TextsByIDs(ctx, kind, ids)
}

// Taxa turns a resolved mapping into taxa ordered by text.
func Taxa(kind models.TaxonomyKind, enterpriseID string, mapping map[string]string) []models.Taxon {
	taxa := make([]models.Taxon, 0, len(mapping))
	for text, id := range mapping {
		taxa = append(taxa, models.Taxon{Kind: kind, EnterpriseID: enterpriseID, Text: text, ID: id})
	}
	sort.Slice(taxa, func(i, j int) bool { return taxa[i].Text < taxa[j].Text })
	return taxa
}

// IDs returns the ids of a resolved mapping
func IDs(mapping map[string]string) []string {
	ids := ectolinq.Values(mapping)
	sort.Strings(ids)
	return ids
}
