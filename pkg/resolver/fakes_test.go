package resolver

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type memStore struct {
	mu          sync.Mutex
	enterprises map[string]models.Enterprise
	users       map[string]models.User
	products    map[string]models.Product
	pages       map[string]models.Page
	locations   map[string]models.LocationHistory
	phones      map[string]models.PhoneDetails

	creates int
	updates []models.Changes
	failGet error

	// raceWinner simulates a concurrent writer creating the row between Get and Create.
	raceWinner *models.Enterprise
}

func newMemStore() *memStore {
	return &memStore{
		enterprises: map[string]models.Enterprise{},
		users:       map[string]models.User{},
		products:    map[string]models.Product{},
		pages:       map[string]models.Page{},
		locations:   map[string]models.LocationHistory{},
		phones:      map[string]models.PhoneDetails{},
	}
}

func (m *memStore) stores() Stores {
	return Stores{
		Enterprises: enterpriseStore{m},
		Users:       userStore{m},
		Products:    productStore{m},
		Pages:       pageStore{m},
		Activity:    activityStore{m},
	}
}

type enterpriseStore struct{ m *memStore }

func (s enterpriseStore) Get(_ context.Context, id string) (*models.Enterprise, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failGet != nil {
		return nil, s.m.failGet
	}
	e, ok := s.m.enterprises[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s enterpriseStore) Create(_ context.Context, e models.Enterprise) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.raceWinner != nil {
		s.m.enterprises[s.m.raceWinner.ID] = *s.m.raceWinner
		s.m.raceWinner = nil
	}
	if _, ok := s.m.enterprises[e.ID]; ok {
		return false, nil
	}
	s.m.creates++
	s.m.enterprises[e.ID] = e
	return true, nil
}

type userStore struct{ m *memStore }

func userKey(enterpriseID string, id int64) string {
	return cache.Key(enterpriseID, strconv.FormatInt(id, 10))
}

func (s userStore) Get(_ context.Context, enterpriseID string, id int64) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failGet != nil {
		return nil, s.m.failGet
	}
	u, ok := s.m.users[userKey(enterpriseID, id)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s userStore) Create(_ context.Context, u models.User) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	k := userKey(u.EnterpriseID, u.ID)
	if _, ok := s.m.users[k]; ok {
		return false, nil
	}
	s.m.creates++
	s.m.users[k] = u
	return true, nil
}

type productStore struct{ m *memStore }

func (s productStore) Get(_ context.Context, enterpriseID, id string) (*models.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.products[cache.Key(enterpriseID, id)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s productStore) Create(_ context.Context, p models.Product) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	k := cache.Key(p.EnterpriseID, p.ID)
	if _, ok := s.m.products[k]; ok {
		return false, nil
	}
	s.m.creates++
	s.m.products[k] = p
	return true, nil
}

func (s productStore) Update(_ context.Context, enterpriseID, id string, changes models.Changes) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	k := cache.Key(enterpriseID, id)
	p, ok := s.m.products[k]
	if !ok {
		return errors.New("no such product")
	}
	applyProduct(&p, changes)
	s.m.products[k] = p
	s.m.updates = append(s.m.updates, changes)
	return nil
}

type pageStore struct{ m *memStore }

func (s pageStore) Get(_ context.Context, enterpriseID, routeURL string) (*models.Page, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.pages[cache.Key(enterpriseID, routeURL)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s pageStore) Create(_ context.Context, p models.Page) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	k := cache.Key(p.EnterpriseID, p.RouteURL)
	if _, ok := s.m.pages[k]; ok {
		return false, nil
	}
	s.m.creates++
	s.m.pages[k] = p
	return true, nil
}

func (s pageStore) Update(_ context.Context, enterpriseID, routeURL string, changes models.Changes) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	k := cache.Key(enterpriseID, routeURL)
	p := s.m.pages[k]
	applyPage(&p, changes)
	s.m.pages[k] = p
	s.m.updates = append(s.m.updates, changes)
	return nil
}

type activityStore struct{ m *memStore }

func (s activityStore) AppendLocation(_ context.Context, loc models.LocationHistory) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.locations[loc.EventID]; !ok {
		s.m.locations[loc.EventID] = loc
	}
	return nil
}

func (s activityStore) UpsertPhone(_ context.Context, p models.PhoneDetails) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.phones[userKey(p.EnterpriseID, p.UserID)] = p
	return nil
}
