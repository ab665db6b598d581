package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
	"github.com/google/uuid"
)

// MaxCASAttempts bounds how often MemoryStore retries a transition whose snapshot went stale.
const MaxCASAttempts = 5

type versionedOrder struct {
	order   *domain.Order
	version uint64
}

// MemoryStore implements OrderRepository and OutboxRepository in memory.
// Transitions follow read, guard, compare-and-swap on a per-order version, so the
// outcome matches the conditional update of the SQL store.
type MemoryStore struct {
	mu         sync.RWMutex
	orders     map[uuid.UUID]*versionedOrder
	byToken    map[string]uuid.UUID
	byCustomer map[string][]uuid.UUID
	outbox     []*OutboxEvent
	processed  map[int64]bool
	nextEvent  int64

	encodePayload func(*domain.Order) (json.RawMessage, error)

	// beforeSwap runs between the snapshot read and the swap; tests use it to force races.
	beforeSwap func()
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:        make(map[uuid.UUID]*versionedOrder),
		byToken:       make(map[string]uuid.UUID),
		byCustomer:    make(map[string][]uuid.UUID),
		processed:     make(map[int64]bool),
		encodePayload: newOutboxPayload,
	}
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return ErrDuplicateOrder
	}
	if _, exists := s.byToken[order.QRToken]; exists {
		return ErrDuplicateToken
	}

	s.orders[order.ID] = &versionedOrder{order: order.Clone(), version: 1}
	s.byToken[order.QRToken] = order.ID
	s.byCustomer[order.CustomerID] = append(s.byCustomer[order.CustomerID], order.ID)
	return nil
}

func (s *MemoryStore) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	order, _, err := s.snapshot(id)
	return order, err
}

func (s *MemoryStore) GetOrderByToken(ctx context.Context, token string) (*domain.Order, error) {
	s.mu.RLock()
	id, exists := s.byToken[token]
	s.mu.RUnlock()
	if !exists {
		return nil, ErrOrderNotFound
	}
	return s.GetOrderByID(ctx, id)
}

// ListOrdersByCustomerID returns the customer's orders, newest first.
func (s *MemoryStore) ListOrdersByCustomerID(_ context.Context, customerID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byCustomer[customerID]
	orders := make([]*domain.Order, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		orders = append(orders, s.orders[ids[i]].order.Clone())
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*domain.Order
	for _, rec := range s.orders {
		if rec.order.Status == domain.OrderStatusPending && rec.order.IsExpired(now) {
			orders = append(orders, rec.order.Clone())
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ExpiresAt.Before(orders[j].ExpiresAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *MemoryStore) Transition(ctx context.Context, t domain.Transition) (*domain.Order, error) {
	for attempt := 0; attempt < MaxCASAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		order, version, err := s.snapshot(t.OrderID)
		if err != nil {
			return nil, err
		}
		if !t.Guard(order) {
			return nil, ErrStatusConflict
		}
		t.Apply(order)

		payload, err := s.encodePayload(order)
		if err != nil {
			return nil, fmt.Errorf("encode outbox payload: %w", err)
		}

		if s.beforeSwap != nil {
			s.beforeSwap()
		}
		if s.compareAndSwap(order, version, t.EventType(), payload) {
			return order.Clone(), nil
		}
	}
	return nil, ErrRetriesExceeded
}

func (s *MemoryStore) snapshot(id uuid.UUID) (*domain.Order, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.orders[id]
	if !exists {
		return nil, 0, ErrOrderNotFound
	}
	return rec.order.Clone(), rec.version, nil
}

func (s *MemoryStore) compareAndSwap(order *domain.Order, expected uint64, eventType string, payload json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.orders[order.ID]
	if rec.version != expected {
		return false
	}

	s.nextEvent++
	s.outbox = append(s.outbox, &OutboxEvent{
		ID:          s.nextEvent,
		AggregateID: order.ID.String(),
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   order.UpdatedAt,
	})

	rec.order = order.Clone()
	rec.version++
	return true
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*OutboxEvent
	for _, e := range s.outbox {
		if s.processed[e.ID] {
			continue
		}
		cp := *e
		events = append(events, &cp)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[id] = true
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

