package processor

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/envelope"
	"github.com/Ramsey-B/clover/pkg/hooks"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/taxonomy"
)

// state is the per-message record threaded through a route
type state struct {
	ev         *envelope.Event
	payload    *hooks.Payload
	categories map[string]string
	tags       map[string]string
}

type step struct {
	name    string
	guarded bool
	run     func(ctx context.Context, st *state) error
}

func (p *Processor) routeTable() map[envelope.Kind][]step {
	var (
		enterprise = step{"resolve_enterprise", true, p.resolveEnterprise}
		user       = step{"resolve_user", true, p.resolveUser}
		lifecycle  = step{"write_lifecycle", true, p.writeLifecycle}
		tax        = step{"resolve_taxonomy", true, p.resolveTaxonomy}
		page       = step{"resolve_page", true, p.resolvePage}
		product    = step{"resolve_product", true, p.resolveProduct}
		location   = step{"append_location", true, p.appendLocation}
		phone      = step{"upsert_phone", true, p.upsertPhone}
		apiEvent   = step{"register_api_event", true, p.registerAPIEvent}
		fire       = step{"fire_hooks", false, p.fireHooks}
		pushToken  = step{"upsert_push_token", true, p.upsertPushToken}
		pushKey    = step{"upsert_push_key", true, p.upsertPushKey}
	)

	lifecycleRoute := []step{enterprise, user, lifecycle, location, phone, apiEvent, fire}
	return map[envelope.Kind][]step{
		envelope.KindAppInit:         lifecycleRoute,
		envelope.KindAppLogin:        lifecycleRoute,
		envelope.KindAppLogout:       lifecycleRoute,
		envelope.KindPageView:        {enterprise, user, tax, page, location, phone, apiEvent, fire},
		envelope.KindProductPageView: {enterprise, user, tax, product, location, phone, apiEvent, fire},
		envelope.KindUpdatePushToken: {enterprise, user, pushToken, pushKey},
	}
}

func (p *Processor) resolveEnterprise(ctx context.Context, st *state) error {
	e, _, err := p.deps.Entities.Enterprise(ctx, st.ev.EnterpriseID, st.ev.EnterpriseName)
	if err != nil {
		return err
	}
	st.payload.Enterprise = e
	return nil
}

func (p *Processor) resolveUser(ctx context.Context, st *state) error {
	u, _, err := p.deps.Entities.User(ctx, st.payload.Enterprise.ID, st.ev.UserID)
	if err != nil {
		return err
	}
	st.payload.User = u
	return nil
}

var lifecycleKinds = map[envelope.Kind]models.LifecycleKind{
	envelope.KindAppInit:   models.LifecycleInit,
	envelope.KindAppLogin:  models.LifecycleLogin,
	envelope.KindAppLogout: models.LifecycleLogout,
}

func (p *Processor) writeLifecycle(ctx context.Context, st *state) error {
	return p.deps.Lifecycle.WriteLifecycle(ctx, models.LifecycleRecord{
		Kind:         lifecycleKinds[st.ev.Kind],
		EventID:      st.ev.ID,
		EnterpriseID: st.payload.Enterprise.ID,
		UserID:       st.payload.User.ID,
		CreatedAt:    st.ev.ReceivedAt,
	})
}

func (p *Processor) resolveTaxonomy(ctx context.Context, st *state) error {
	var err error
	enterpriseID := st.payload.Enterprise.ID
	if st.categories, err = p.deps.Taxonomy.ResolveAll(ctx, models.TaxonomyCategory, enterpriseID, st.ev.Categories); err != nil {
		return err
	}
	if st.tags, err = p.deps.Taxonomy.ResolveAll(ctx, models.TaxonomyTag, enterpriseID, st.ev.Tags); err != nil {
		return err
	}
	return nil
}

func (p *Processor) resolvePage(ctx context.Context, st *state) error {
	page, _, err := p.deps.Entities.Page(ctx, resolver.PageAttrs{
		EnterpriseID: st.payload.Enterprise.ID,
		RouteURL:     st.ev.RouteURL,
		CategoryIDs:  taxonomy.IDs(st.categories),
		TagIDs:       taxonomy.IDs(st.tags),
	})
	if err != nil {
		return err
	}
	st.payload.Page = page
	return nil
}

func (p *Processor) resolveProduct(ctx context.Context, st *state) error {
	enterpriseID := st.payload.Enterprise.ID
	product, _, err := p.deps.Entities.Product(ctx, resolver.ProductAttrs{
		EnterpriseID: enterpriseID,
		ID:           st.ev.ProductID,
		Name:         st.ev.ProductName,
		Price:        st.ev.Price,
		HasPrice:     st.ev.HasPrice,
		RouteURL:     st.ev.RouteURL,
		CategoryIDs:  taxonomy.IDs(st.categories),
		TagIDs:       taxonomy.IDs(st.tags),
	})
	if err != nil {
		return err
	}
	st.payload.Product = product
	st.payload.Categories = taxonomy.Taxa(models.TaxonomyCategory, enterpriseID, st.categories)
	st.payload.Tags = taxonomy.Taxa(models.TaxonomyTag, enterpriseID, st.tags)
	return nil
}

func (p *Processor) appendLocation(ctx context.Context, st *state) error {
	return p.deps.Entities.AppendLocation(ctx, st.ev.ID, st.payload.User, st.ev.Phone, st.ev.ReceivedAt)
}

func (p *Processor) upsertPhone(ctx context.Context, st *state) error {
	return p.deps.Entities.UpsertPhone(ctx, st.payload.User, st.ev.Phone)
}

func (p *Processor) registerAPIEvent(ctx context.Context, st *state) error {
	ev, err := p.deps.APIEvents.RegisterAPIEvent(ctx, st.payload.Enterprise.ID, st.ev.Name)
	if err != nil {
		return err
	}
	st.payload.APIEvent = ev
	return nil
}

func (p *Processor) fireHooks(ctx context.Context, st *state) error {
	p.deps.Hooks.Fire(ctx, st.ev.Kind, st.payload)
	return nil
}

func (p *Processor) upsertPushToken(ctx context.Context, st *state) error {
	return p.deps.Push.UpsertToken(ctx, models.PushToken{
		EnterpriseID: st.payload.Enterprise.ID,
		UserID:       st.payload.User.ID,
		PushType:     st.ev.PushType,
		Token:        st.ev.PushToken,
	})
}

func (p *Processor) upsertPushKey(ctx context.Context, st *state) error {
	return p.deps.Push.UpsertKey(ctx, models.PushKey{
		EnterpriseID: st.payload.Enterprise.ID,
		PushType:     st.ev.PushType,
		Key:          st.ev.PushKey,
	})
}
