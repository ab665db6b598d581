// Package sweeper moves pending orders whose pickup window has elapsed to no-show.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
	"github.com/google/uuid"
)

const DefaultBatchSize = 200

// Expirer is implemented by service.OrderService.
type Expirer interface {
	ListExpired(ctx context.Context, limit int) ([]*domain.Order, error)
	ExpireOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type Sweeper struct {
	expirer   Expirer
	interval  time.Duration
	batchSize int
}

func New(expirer Expirer, interval time.Duration) *Sweeper {
	return &Sweeper{expirer: expirer, interval: interval, batchSize: DefaultBatchSize}
}

// Run sweeps every interval until ctx is cancelled. Failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass and reports how many orders it moved to no-show.
func (s *Sweeper) Sweep(ctx context.Context) int {
	orders, err := s.expirer.ListExpired(ctx, s.batchSize)
	if err != nil {
		slog.ErrorContext(ctx, "sweep: failed to list expired orders", "error", err)
		return 0
	}

	expired := 0
	for _, order := range orders {
		applied, err := s.expirer.ExpireOrder(ctx, order.ID)
		if err != nil {
			slog.ErrorContext(ctx, "sweep: failed to expire order", "order_id", order.ID, "error", err)
			continue
		}
		if !applied {
			// redeemed, cancelled or lazily expired since the listing
			continue
		}
		expired++
		slog.InfoContext(ctx, "order marked no-show", "order_id", order.ID, "customer_id", order.CustomerID)
	}
	return expired
}
