package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_pickup/internal/domain"
)

// DraftCache holds carts that are still being assembled. Entries expire on idle.
type DraftCache interface {
	Get(ctx context.Context, customerID string) (*domain.Draft, error)
	Set(ctx context.Context, customerID string, draft *domain.Draft) error
	Delete(ctx context.Context, customerID string) error
	// Update applies fn to the current draft (nil when none is cached) and stores the result.
	// fn may run more than once if another writer touches the draft in between.
	Update(ctx context.Context, customerID string, fn UpdateFunc) (*domain.Draft, error)
}

type UpdateFunc func(current *domain.Draft) (*domain.Draft, error)

var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrUpdateContended = errors.New("draft update contended")
)
