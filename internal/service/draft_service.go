package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_pickup/internal/cache"
	"github.com/fjod/go_pickup/internal/catalog"
	"github.com/fjod/go_pickup/internal/domain"
	"github.com/fjod/go_pickup/internal/pricing"
)

// OrderCreator is the slice of OrderService a draft checkout needs.
type OrderCreator interface {
	CreateOrder(ctx context.Context, customerID string, lines []domain.CartLine) (*domain.Order, error)
}

// MaxDraftLines caps how many lines one cart may hold.
const MaxDraftLines = 20

// DraftService manages carts in progress. Drafts are session state and may vanish on idle.
type DraftService struct {
	cache   cache.DraftCache
	catalog catalog.Catalog
	orders  OrderCreator
	now     func() time.Time
}

func NewDraftService(c cache.DraftCache, cat catalog.Catalog, orders OrderCreator) *DraftService {
	return &DraftService{
		cache:   c,
		catalog: cat,
		orders:  orders,
		now:     time.Now,
	}
}

// GetDraft returns the customer's draft, or an empty one if nothing is cached.
func (s *DraftService) GetDraft(ctx context.Context, customerID string) (*domain.Draft, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.Validationf("customer id is required")
	}

	draft, err := s.cache.Get(ctx, customerID)
	if errors.Is(err, cache.ErrCacheMiss) {
		now := s.now().UTC()
		return &domain.Draft{CustomerID: customerID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, internalError("load draft", err)
	}
	return draft, nil
}

// AddLine validates the line against the catalog and appends it to the draft.
func (s *DraftService) AddLine(ctx context.Context, customerID string, line domain.CartLine) (*domain.Draft, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.Validationf("customer id is required")
	}

	product, err := s.catalog.GetProduct(ctx, line.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, line.ProductID)
	}
	if err != nil {
		return nil, internalError("resolve product", err)
	}
	if !product.OffersSugar(line.Customization.SugarLevel) {
		return nil, domain.Validationf("sugar level %q is not offered for %s", line.Customization.SugarLevel, product.Name)
	}
	if !product.OffersIce(line.Customization.IceLevel) {
		return nil, domain.Validationf("ice level %q is not offered for %s", line.Customization.IceLevel, product.Name)
	}
	if _, err := pricing.Price(product, line.Customization); err != nil {
		return nil, err
	}

	draft, err := s.cache.Update(ctx, customerID, func(current *domain.Draft) (*domain.Draft, error) {
		now := s.now().UTC()
		if current == nil {
			current = &domain.Draft{CustomerID: customerID, CreatedAt: now}
		}
		if len(current.Lines) >= MaxDraftLines {
			return nil, domain.Validationf("a cart holds at most %d lines", MaxDraftLines)
		}
		current.Lines = append(current.Lines, line)
		current.UpdatedAt = now
		return current, nil
	})
	switch {
	case err == nil:
		return draft, nil
	case errors.Is(err, domain.ErrValidation):
		return nil, err
	case errors.Is(err, cache.ErrUpdateContended):
		return nil, fmt.Errorf("%w: draft for %s", domain.ErrConflict, customerID)
	default:
		return nil, internalError("save draft", err)
	}
}

func (s *DraftService) DiscardDraft(ctx context.Context, customerID string) error {
	if err := s.cache.Delete(ctx, customerID); err != nil {
		return internalError("discard draft", err)
	}
	return nil
}

// Checkout turns the draft into a pending order. The draft is dropped only once the order exists.
func (s *DraftService) Checkout(ctx context.Context, customerID string) (*domain.Order, error) {
	draft, err := s.GetDraft(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(draft.Lines) == 0 {
		return nil, domain.Validationf("cart is empty")
	}

	order, err := s.orders.CreateOrder(ctx, customerID, draft.Lines)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, customerID); err != nil {
		slog.WarnContext(ctx, "failed to drop draft after checkout", "customer_id", customerID, "error", err)
	}
	return order, nil
}
