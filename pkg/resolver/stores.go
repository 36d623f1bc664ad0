package resolver

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Get methods return (nil, nil) when the identity does not exist.
// Create methods insert conditionally and report whether this call created the row.

type EnterpriseStore interface {
	Get(ctx context.Context, id string) (*models.Enterprise, error)
	Create(ctx context.Context, e models.Enterprise) (bool, error)
}

type UserStore interface {
	Get(ctx context.Context, enterpriseID string, id int64) (*models.User, error)
	Create(ctx context.Context, u models.User) (bool, error)
}

type ProductStore interface {
	Get(ctx context.Context, enterpriseID, id string) (*models.Product, error)
	Create(ctx context.Context, p models.Product) (bool, error)
	Update(ctx context.Context, enterpriseID, id string, changes models.Changes) error
}

type PageStore interface {
	Get(ctx context.Context, enterpriseID, routeURL string) (*models.Page, error)
	Create(ctx context.Context, p models.Page) (bool, error)
	Update(ctx context.Context, enterpriseID, routeURL string, changes models.Changes) error
}

type ActivityStore interface {
	AppendLocation(ctx context.Context, loc models.LocationHistory) error
	UpsertPhone(ctx context.Context, p models.PhoneDetails) error
}

// Stores groups the storage dependencies of a Resolver
type Stores struct {
	Enterprises EnterpriseStore
	Users       UserStore
	Products    ProductStore
	Pages       PageStore
	Activity    ActivityStore
}
