package processor

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/hooks"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resolver"
)

type EntityResolver interface {
	Enterprise(ctx context.Context, id, name string) (*models.Enterprise, bool, error)
	User(ctx context.Context, enterpriseID string, userID int64) (*models.User, bool, error)
	Product(ctx context.Context, attrs resolver.ProductAttrs) (*models.Product, bool, error)
	Page(ctx context.Context, attrs resolver.PageAttrs) (*models.Page, bool, error)
	AppendLocation(ctx context.Context, eventID string, user *models.User, phone models.Phone, at time.Time) error
	UpsertPhone(ctx context.Context, user *models.User, phone models.Phone) error
}

type TaxonomyResolver interface {
	ResolveAll(ctx context.Context, kind models.TaxonomyKind, enterpriseID string, labels []string) (map[string]string, error)
}

type LifecycleStore interface {
	WriteLifecycle(ctx context.Context, rec models.LifecycleRecord) error
}

type PushStore interface {
	UpsertToken(ctx context.Context, t models.PushToken) error
	UpsertKey(ctx context.Context, k models.PushKey) error
}

type APIEventStore interface {
	RegisterAPIEvent(ctx context.Context, enterpriseID, eventName string) (*models.APIEvent, error)
}

// Breaker guards storage steps. database.Breaker satisfies it.
type Breaker interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type Dependencies struct {
	Entities  EntityResolver
	Taxonomy  TaxonomyResolver
	Lifecycle LifecycleStore
	Push      PushStore
	APIEvents APIEventStore
	Hooks     *hooks.Registry
	Breaker   Breaker
}

type passthrough struct{}

func (passthrough) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
