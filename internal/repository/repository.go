package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrDuplicateToken  = errors.New("qr token already issued")
	ErrDuplicateOrder  = errors.New("order already exists")
	ErrStatusConflict  = errors.New("order is not in the expected state")
	ErrRetriesExceeded = errors.New("conditional update retries exceeded")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderRepository is the persistence contract of the order lifecycle.
//
// Transition is the only way an order row changes after insert. It is a conditional
// update: it succeeds only if the stored order is still pending and t.Guard holds
// against the stored row, and returns ErrStatusConflict otherwise. A successful
// transition records an outbox event in the same atomic step.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByToken(ctx context.Context, token string) (*domain.Order, error)
	ListOrdersByCustomerID(ctx context.Context, customerID string) ([]*domain.Order, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error)
	Transition(ctx context.Context, t domain.Transition) (*domain.Order, error)
	Close() error
}

// OutboxRepository feeds the publisher with committed transition events.
type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

func newOutboxPayload(order *domain.Order) (json.RawMessage, error) {
	return json.Marshal(domain.NewOrderEvent(order))
}
