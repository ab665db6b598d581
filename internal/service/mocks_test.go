package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_pickup/internal/cache"
	"github.com/fjod/go_pickup/internal/catalog"
	"github.com/fjod/go_pickup/internal/domain"
	r "github.com/fjod/go_pickup/internal/repository"
	"github.com/google/uuid"
)

// MockCatalog implements catalog.Catalog for testing
type MockCatalog struct {
	Products map[int64]*domain.Product
	Err      error
}

func (m *MockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *MockCatalog) ListProducts(_ context.Context) ([]*domain.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var products []*domain.Product
	for _, p := range m.Products {
		products = append(products, p)
	}
	return products, nil
}

// MockDraftCache implements cache.DraftCache for testing
type MockDraftCache struct {
	mu        sync.Mutex
	Drafts    map[string]*domain.Draft
	SetErr    error
	Deleted   []string
	DeleteErr error
}

func (m *MockDraftCache) Get(_ context.Context, customerID string) (*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Drafts[customerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *d
	cp.Lines = append([]domain.CartLine(nil), d.Lines...)
	return &cp, nil
}

func (m *MockDraftCache) Set(_ context.Context, customerID string, draft *domain.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Drafts == nil {
		m.Drafts = make(map[string]*domain.Draft)
	}
	m.Drafts[customerID] = draft
	return nil
}

func (m *MockDraftCache) Update(_ context.Context, customerID string, fn cache.UpdateFunc) (*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current *domain.Draft
	if d, ok := m.Drafts[customerID]; ok {
		cp := *d
		cp.Lines = append([]domain.CartLine(nil), d.Lines...)
		current = &cp
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if m.SetErr != nil {
		return nil, m.SetErr
	}
	if m.Drafts == nil {
		m.Drafts = make(map[string]*domain.Draft)
	}
	m.Drafts[customerID] = next
	return next, nil
}

func (m *MockDraftCache) Delete(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, customerID)
	delete(m.Drafts, customerID)
	return nil
}

// FailingRepository implements r.OrderRepository and fails every call
type FailingRepository struct {
	Err error
}

func (f *FailingRepository) CreateOrder(context.Context, *domain.Order) error { return f.Err }
func (f *FailingRepository) GetOrderByID(context.Context, uuid.UUID) (*domain.Order, error) {
	return nil, f.Err
}
func (f *FailingRepository) GetOrderByToken(context.Context, string) (*domain.Order, error) {
	return nil, f.Err
}
func (f *FailingRepository) ListOrdersByCustomerID(context.Context, string) ([]*domain.Order, error) {
	return nil, f.Err
}
func (f *FailingRepository) ListExpiredPending(context.Context, time.Time, int) ([]*domain.Order, error) {
	return nil, f.Err
}
func (f *FailingRepository) Transition(context.Context, domain.Transition) (*domain.Order, error) {
	return nil, f.Err
}
func (f *FailingRepository) Close() error { return nil }

var _ r.OrderRepository = (*FailingRepository)(nil)

var errBoom = errors.New("boom")

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func menu() *MockCatalog {
	return &MockCatalog{Products: map[int64]*domain.Product{
		1: {
			ID:        1,
			Name:      "Brown Sugar Milk Tea",
			BasePrice: 475,
			Sizes: []domain.SizeOption{
				{Size: domain.SizeMedium, Modifier: 0},
				{Size: domain.SizeLarge, Modifier: 75},
			},
			AddOns: []domain.AddOn{
				{ID: 1, Name: "Boba Pearls", Price: 75},
				{ID: 2, Name: "Cheese Foam", Price: 100},
			},
		},
		4: {
			ID:          4,
			Name:        "Hot Oolong",
			BasePrice:   350,
			Sizes:       []domain.SizeOption{{Size: domain.SizeMedium, Modifier: 0}},
			SugarLevels: []domain.SugarLevel{domain.SugarNone, domain.SugarQuarter, domain.SugarHalf},
			IceLevels:   []domain.IceLevel{domain.IceNone},
		},
	}}
}

func bobaLine(quantity int) domain.CartLine {
	return domain.CartLine{
		ProductID: 1,
		Customization: domain.Customization{
			Size:       domain.SizeMedium,
			SugarLevel: domain.SugarHalf,
			IceLevel:   domain.IceLess,
			AddOnIDs:   []int64{1},
			Quantity:   quantity,
		},
	}
}
