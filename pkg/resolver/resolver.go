// Package resolver implements lookup-or-create for the entities an event references.
// Reads go cache first, then storage; creates are conditional inserts followed by a
// re-read, so a create that loses a race resolves to the winning row.
package resolver

import (
	"context"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type Resolver struct {
	stores Stores
	cache  cache.Cache
	logger ectologger.Logger
	now    func() time.Time
}

func New(stores Stores, c cache.Cache, logger ectologger.Logger) *Resolver {
	if c == nil {
		c = cache.Nop{}
	}
	return &Resolver{
		stores: stores,
		cache:  c,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// lookup is the read-through path shared by every entity kind. With fresh set a
// cache hit only confirms the identity and the row is read from storage anyway;
// mutable entities are diffed against that row, since another instance may have
// updated it after this instance cached it.
func lookup[T any](ctx context.Context, r *Resolver, entity, key string, fresh bool, get func(context.Context) (*T, error), create func(context.Context) (bool, error)) (*T, bool, error) {
	var cached T
	hit, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity": entity,
			"key":    key,
		}).Warn("Cache read failed, falling back to storage")
	}
	metrics.RecordCacheLookup(entity, hit && err == nil)
	if hit && err == nil && !fresh {
		return &cached, false, nil
	}

	found, err := get(ctx)
	if err != nil {
		return nil, false, err
	}

	created := false
	if found == nil {
		created, err = create(ctx)
		if err != nil {
			return nil, false, err
		}
		found, err = get(ctx)
		if err != nil {
			return nil, false, err
		}
		if found == nil {
			return nil, false, apperrors.Storage(errNotVisible, "%s %s missing after create", entity, key)
		}
		if created {
			metrics.RecordCreated(entity)
		}
	}

	r.store(ctx, entity, key, found)
	return found, created, nil
}

func (r *Resolver) store(ctx context.Context, entity, key string, v any) {
	if err := r.cache.Set(ctx, key, v); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity": entity,
			"key":    key,
		}).Warn("Cache write failed")
	}
}

// Enterprise resolves the tenant, creating it on first sighting. It is never updated.
func (r *Resolver) Enterprise(ctx context.Context, id, name string) (*models.Enterprise, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Enterprise")
	defer span.End()

	return lookup(ctx, r, "enterprise", cache.Key("enterprise", id), false,
		func(ctx context.Context) (*models.Enterprise, error) {
			return r.stores.Enterprises.Get(ctx, id)
		},
		func(ctx context.Context) (bool, error) {
			return r.stores.Enterprises.Create(ctx, models.Enterprise{ID: id, Name: name, CreatedAt: r.now()})
		})
}

// User resolves (enterpriseID, userID)
func (r *Resolver) User(ctx context.Context, enterpriseID string, userID int64) (*models.User, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.User")
	defer span.End()

	return lookup(ctx, r, "user", cache.Key("user", enterpriseID, strconv.FormatInt(userID, 10)), false,
		func(ctx context.Context) (*models.User, error) {
			return r.stores.Users.Get(ctx, enterpriseID, userID)
		},
		func(ctx context.Context) (bool, error) {
			return r.stores.Users.Create(ctx, models.User{EnterpriseID: enterpriseID, ID: userID, CreatedAt: r.now()})
		})
}

// Product resolves the product and writes only the attributes that changed
// relative to the stored row.
func (r *Resolver) Product(ctx context.Context, attrs ProductAttrs) (*models.Product, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Product")
	defer span.End()

	key := cache.Key("product", attrs.EnterpriseID, attrs.ID)
	p, created, err := lookup(ctx, r, "product", key, true,
		func(ctx context.Context) (*models.Product, error) {
			return r.stores.Products.Get(ctx, attrs.EnterpriseID, attrs.ID)
		},
		func(ctx context.Context) (bool, error) {
			now := r.now()
			return r.stores.Products.Create(ctx, models.Product{
				EnterpriseID: attrs.EnterpriseID,
				ID:           attrs.ID,
				Name:         attrs.Name,
				Price:        attrs.Price,
				RouteURL:     attrs.RouteURL,
				CategoryIDs:  IDSet(attrs.CategoryIDs),
				TagIDs:       IDSet(attrs.TagIDs),
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		})
	if err != nil {
		return nil, false, err
	}
	if created {
		return p, true, nil
	}

	changes := DiffProduct(*p, attrs)
	if changes.Empty() {
		return p, false, nil
	}
	if err := r.stores.Products.Update(ctx, attrs.EnterpriseID, attrs.ID, changes); err != nil {
		return nil, false, err
	}
	applyProduct(p, changes)
	p.UpdatedAt = r.now()
	metrics.RecordUpdated("product")
	r.store(ctx, "product", key, p)
	return p, false, nil
}

// Page resolves the page by route url with the same partial-update rule as Product.
func (r *Resolver) Page(ctx context.Context, attrs PageAttrs) (*models.Page, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Page")
	defer span.End()

	key := cache.Key("page", attrs.EnterpriseID, attrs.RouteURL)
	p, created, err := lookup(ctx, r, "page", key, true,
		func(ctx context.Context) (*models.Page, error) {
			return r.stores.Pages.Get(ctx, attrs.EnterpriseID, attrs.RouteURL)
		},
		func(ctx context.Context) (bool, error) {
			now := r.now()
			return r.stores.Pages.Create(ctx, models.Page{
				EnterpriseID: attrs.EnterpriseID,
				RouteURL:     attrs.RouteURL,
				CategoryIDs:  IDSet(attrs.CategoryIDs),
				TagIDs:       IDSet(attrs.TagIDs),
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		})
	if err != nil {
		return nil, false, err
	}
	if created {
		return p, true, nil
	}

	changes := DiffPage(*p, attrs)
	if changes.Empty() {
		return p, false, nil
	}
	if err := r.stores.Pages.Update(ctx, attrs.EnterpriseID, attrs.RouteURL, changes); err != nil {
		return nil, false, err
	}
	applyPage(p, changes)
	p.UpdatedAt = r.now()
	metrics.RecordUpdated("page")
	r.store(ctx, "page", key, p)
	return p, false, nil
}

// AppendLocation appends the event's location to the user's history
func (r *Resolver) AppendLocation(ctx context.Context, eventID string, user *models.User, phone models.Phone, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "resolver.AppendLocation")
	defer span.End()

	return r.stores.Activity.AppendLocation(ctx, models.LocationHistory{
		EventID:      eventID,
		EnterpriseID: user.EnterpriseID,
		UserID:       user.ID,
		Latitude:     phone.Latitude,
		Longitude:    phone.Longitude,
		CreatedAt:    at,
	})
}

// UpsertPhone overwrites the user's current phone details
func (r *Resolver) UpsertPhone(ctx context.Context, user *models.User, phone models.Phone) error {
	ctx, span := tracing.StartSpan(ctx, "resolver.UpsertPhone")
	defer span.End()

	return r.stores.Activity.UpsertPhone(ctx, models.PhoneDetails{
		EnterpriseID: user.EnterpriseID,
		UserID:       user.ID,
		DeviceID:     phone.DeviceID,
		Manufacturer: phone.Manufacturer,
		Model:        phone.Model,
		OS:           phone.OS,
		UpdatedAt:    r.now(),
	})
}
