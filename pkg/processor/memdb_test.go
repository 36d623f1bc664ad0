package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resolver"
)

// memDB is an in-memory stand-in for every repository the pipeline writes to.
type memDB struct {
	mu sync.Mutex

	enterprises map[string]models.Enterprise
	users       map[string]models.User
	products    map[string]models.Product
	pages       map[string]models.Page
	taxa        map[string]models.Taxon
	reverse     map[string]string
	lifecycle   map[string]models.LifecycleRecord
	locations   map[string]models.LocationHistory
	phones      map[string]models.PhoneDetails
	tokens      map[string]models.PushToken
	keys        map[string]models.PushKey
	apiEvents   map[string]models.APIEvent

	reads          int
	writes         int
	productUpdates int
	pageUpdates    int

	failLifecycle error
}

func newMemDB() *memDB {
	return &memDB{
		enterprises: map[string]models.Enterprise{},
		users:       map[string]models.User{},
		products:    map[string]models.Product{},
		pages:       map[string]models.Page{},
		taxa:        map[string]models.Taxon{},
		reverse:     map[string]string{},
		lifecycle:   map[string]models.LifecycleRecord{},
		locations:   map[string]models.LocationHistory{},
		phones:      map[string]models.PhoneDetails{},
		tokens:      map[string]models.PushToken{},
		keys:        map[string]models.PushKey{},
		apiEvents:   map[string]models.APIEvent{},
	}
}

func k(parts ...any) string {
	return fmt.Sprint(parts...)
}

func (m *memDB) stores() resolver.Stores {
	return resolver.Stores{
		Enterprises: memEnterprises{m},
		Users:       memUsers{m},
		Products:    memProducts{m},
		Pages:       memPages{m},
		Activity:    memActivity{m},
	}
}

type memEnterprises struct{ m *memDB }

func (s memEnterprises) Get(_ context.Context, id string) (*models.Enterprise, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.reads++
	if e, ok := s.m.enterprises[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (s memEnterprises) Create(_ context.Context, e models.Enterprise) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.writes++
	if _, ok := s.m.enterprises[e.ID]; ok {
		return false, nil
	}
	s.m.enterprises[e.ID] = e
	return true, nil
}

type memUsers struct{ m *memDB }

func (s memUsers) Get(_ context.Context, enterpriseID string, id int64) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.reads++
	if u, ok := s.m.users[k(enterpriseID, "/", id)]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s memUsers) Create(_ context.Context, u models.User) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.writes++
	key := k(u.EnterpriseID, "/", u.ID)
	if _, ok := s.m.users[key]; ok {
		return false, nil
	}
	s.m.users[key] = u
	return true, nil
}

type memProducts struct{ m *memDB }

func (s memProducts) Get(_ context.Context, enterpriseID, id string) (*models.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.reads++
	if p, ok := s.m.products[k(enterpriseID, "/", id)]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s memProducts) Create(_ context.Context, p models.Product) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.writes++
	key := k(p.EnterpriseID, "/", p.ID)
	if _, ok := s.m.products[key]; ok {
		return false, nil
	}
	s.m.products[key] = p
	return true, nil
}

func (s memProducts) Update(_ context.Context, enterpriseID, id string, changes models.Changes) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.writes++
	s.m.productUpdates++
	key := k(enterpriseID, "/", id)
	p := s.m.products[key]
	for _, c := range changes {
		switch c.Column {
		case "name":
			p.Name = c.Value.(string)
		case "price":
			p.Price = c.Value.(models.Price)
		}
	}
	s.m.products[key] = p
	return nil
}

type memPages struct{ m *memDB }

func (s memPages) Get(_ context.Context, enterpriseID, routeURL string) (*models.Page, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.reads++
	if p, ok := s.m.pages[k(enterpriseID, "/", routeURL)]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s memPages) Create(_ context.Context, p models.Page) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.writes++
	key := k(p.EnterpriseID, "/", p.RouteURL)
	if _, ok := s.m.pages[key]; ok {
		return false, nil
	}
	s.m.pages[key] = p
	return true, nil
}

func (s memPages) Update(_ context.Context, _, _ string, _ models.Changes) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.writes++
	s.m.pageUpdates++
	return nil
}

type memActivity struct{ m *memDB }

func (s memActivity) AppendLocation(_ context.Context, loc models.LocationHistory) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.writes++
	if _, ok := s.m.locations[loc.EventID]; !ok {
		s.m.locations[loc.EventID] = loc
	}
	return nil
}

func (s memActivity) UpsertPhone(_ context.Context, p models.PhoneDetails) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.writes++
	s.m.phones[k(p.EnterpriseID, "/", p.UserID)] = p
	return nil
}

// taxonomy.Store

func (m *memDB) FindByTexts(_ context.Context, kind models.TaxonomyKind, enterpriseID string, texts []string) ([]models.Taxon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []models.Taxon
	for _, t := range texts {
		if taxon, ok := m.taxa[k(kind, "/", enterpriseID, "/", t)]; ok {
			out = append(out, taxon)
		}
	}
	return out, nil
}

func (m *memDB) InsertForward(_ context.Context, kind models.TaxonomyKind, taxa []models.Taxon) ([]models.Taxon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	var inserted []models.Taxon
	for _, t := range taxa {
		key := k(kind, "/", t.EnterpriseID, "/", t.Text)
		if _, ok := m.taxa[key]; ok {
			continue
		}
		m.taxa[key] = t
		inserted = append(inserted, t)
	}
	return inserted, nil
}

func (m *memDB) InsertReverse(_ context.Context, _ models.TaxonomyKind, taxa []models.Taxon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	for _, t := range taxa {
		m.reverse[t.ID] = t.Text
	}
	return nil
}

func (m *memDB) TextsByIDs(_ context.Context, _ models.TaxonomyKind, ids []string) (map[string]string, error) {
	return nil, nil
}

// LifecycleStore, PushStore and APIEventStore

func (m *memDB) WriteLifecycle(_ context.Context, rec models.LifecycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLifecycle != nil {
		return m.failLifecycle
	}
	m.writes++
	key := k(rec.Kind, "/", rec.EventID)
	if _, ok := m.lifecycle[key]; !ok {
		m.lifecycle[key] = rec
	}
	return nil
}

func (m *memDB) UpsertToken(_ context.Context, t models.PushToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.tokens[k(t.EnterpriseID, "/", t.UserID, "/", t.PushType)] = t
	return nil
}

func (m *memDB) UpsertKey(_ context.Context, key models.PushKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.keys[k(key.EnterpriseID, "/", key.PushType)] = key
	return nil
}

func (m *memDB) RegisterAPIEvent(_ context.Context, enterpriseID, eventName string) (*models.APIEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := k(enterpriseID, "/", eventName)
	if ev, ok := m.apiEvents[key]; ok {
		return &ev, nil
	}
	m.writes++
	ev := models.APIEvent{ID: uuid.New().String(), EnterpriseID: enterpriseID, EventName: eventName}
	m.apiEvents[key] = ev
	return &ev, nil
}

func (m *memDB) countTaxa(kind models.TaxonomyKind) int {
	n := 0
	for _, t := range m.taxa {
		if t.Kind == kind {
			n++
		}
	}
	return n
}
