package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

// Guarded wraps a Catalog with a per-call timeout, a circuit breaker and request coalescing.
// Lookups that fail for infrastructure reasons surface as domain.ErrInternal;
// a missing product is a normal answer and never trips the breaker.
type Guarded struct {
	next    Catalog
	timeout time.Duration
	sfg     singleflight.Group // coalesces concurrent lookups of the same product
	cb      *gobreaker.CircuitBreaker[*domain.Product]
	listCb  *gobreaker.CircuitBreaker[[]*domain.Product]
}

func NewGuarded(next Catalog, timeout time.Duration) *Guarded {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A caller giving up says nothing about catalog health; the per-call
			// timeout (DeadlineExceeded) still counts as a failure.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrProductNotFound) || errors.Is(err, context.Canceled)
			},
		}
	}
	return &Guarded{
		next:    next,
		timeout: timeout,
		cb:      gobreaker.NewCircuitBreaker[*domain.Product](settings("catalog-get")),
		listCb:  gobreaker.NewCircuitBreaker[[]*domain.Product](settings("catalog-list")),
	}
}

// GetProduct shares one lookup between concurrent callers of the same id. The lookup is
// detached from any single caller, and each caller stops waiting when its own ctx is done.
func (g *Guarded) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	ch := g.sfg.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return g.cb.Execute(func() (*domain.Product, error) {
			lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
			defer cancel()
			return g.next.GetProduct(lookupCtx, id)
		})
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, mapError(res.Err)
		}
		return res.Val.(*domain.Product), nil
	case <-ctx.Done():
		return nil, mapError(ctx.Err())
	}
}

func (g *Guarded) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := g.listCb.Execute(func() ([]*domain.Product, error) {
		listCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.next.ListProducts(listCtx)
	})
	if err != nil {
		return nil, mapError(err)
	}
	return products, nil
}

func mapError(err error) error {
	if errors.Is(err, ErrProductNotFound) {
		return err
	}
	return fmt.Errorf("%w: catalog: %w", domain.ErrInternal, err)
}
