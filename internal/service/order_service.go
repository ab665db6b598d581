package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_pickup/internal/catalog"
	"github.com/fjod/go_pickup/internal/domain"
	"github.com/fjod/go_pickup/internal/pricing"
	r "github.com/fjod/go_pickup/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxTokenAttempts bounds re-minting after a token collision.
const maxTokenAttempts = 3

var tracer = otel.Tracer("github.com/fjod/go_pickup/internal/service")

type Options struct {
	PickupWindow   time.Duration
	RequestTimeout time.Duration
	Now            func() time.Time
	NewToken       func() string
}

type OrderService struct {
	repo     r.OrderRepository
	catalog  catalog.Catalog
	window   time.Duration
	timeout  time.Duration
	now      func() time.Time
	newToken func() string
}

func NewOrderService(repo r.OrderRepository, cat catalog.Catalog, opts Options) *OrderService {
	s := &OrderService{
		repo:     repo,
		catalog:  cat,
		window:   opts.PickupWindow,
		timeout:  opts.RequestTimeout,
		now:      opts.Now,
		newToken: opts.NewToken,
	}
	if s.window <= 0 {
		s.window = domain.DefaultPickupWindow
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newToken == nil {
		// v4 UUIDs carry 122 random bits.
		s.newToken = uuid.NewString
	}
	return s
}

func (s *OrderService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// CreateOrder prices the cart against the catalog and persists a pending order with a fresh token.
func (s *OrderService) CreateOrder(ctx context.Context, customerID string, lines []domain.CartLine) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int("lines", len(lines)),
	))
	defer span.End()

	if strings.TrimSpace(customerID) == "" {
		return nil, domain.Validationf("customer id is required")
	}
	if len(lines) == 0 {
		return nil, domain.Validationf("cart is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items := make([]domain.OrderItem, 0, len(lines))
	for i, line := range lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, line.ProductID)
		}
		if err != nil {
			return nil, internalError("resolve product", err)
		}

		if !product.OffersSugar(line.Customization.SugarLevel) {
			return nil, domain.Validationf("line %d: sugar level %q is not offered for %s", i+1, line.Customization.SugarLevel, product.Name)
		}
		if !product.OffersIce(line.Customization.IceLevel) {
			return nil, domain.Validationf("line %d: ice level %q is not offered for %s", i+1, line.Customization.IceLevel, product.Name)
		}

		item, err := pricing.Price(product, line.Customization)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		items = append(items, item)
	}

	now := s.clock()
	order := &domain.Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Items:      items,
		Status:     domain.OrderStatusPending,
		Total:      pricing.Total(items),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.window),
		UpdatedAt:  now,
	}

	for attempt := 1; ; attempt++ {
		order.QRToken = s.newToken()
		err := s.repo.CreateOrder(ctx, order)
		if err == nil {
			break
		}
		if errors.Is(err, r.ErrDuplicateToken) && attempt < maxTokenAttempts {
			slog.WarnContext(ctx, "pickup token collision, minting a new one", "order_id", order.ID)
			continue
		}
		return nil, internalError("persist order", err)
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"customer_id", customerID,
		"total", order.Total.String(),
		"expires_at", order.ExpiresAt)
	return order, nil
}

// GetOrder returns the caller's own order. Orders of other customers are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, requesterID string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, mapRepoError("get order", err)
	}
	if order.CustomerID != requesterID {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, customerID string) ([]*domain.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.Validationf("customer id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	orders, err := s.repo.ListOrdersByCustomerID(ctx, customerID)
	if err != nil {
		return nil, mapRepoError("list orders", err)
	}
	return orders, nil
}

// VerifyToken redeems a pickup token. Exactly one caller can complete a given order;
// everyone else gets a FinalizedError carrying the stored snapshot.
func (s *OrderService) VerifyToken(ctx context.Context, token string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.VerifyToken")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.Validationf("token is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	order, err := s.repo.GetOrderByToken(ctx, token)
	if err != nil {
		return nil, mapRepoError("lookup token", err)
	}
	span.SetAttributes(attribute.String("order_id", order.ID.String()))

	if order.Status != domain.OrderStatusPending {
		return nil, finalizedError(order)
	}

	now := s.clock()
	if order.IsExpired(now) {
		expired, err := s.transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusNoShow, At: now})
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "pickup window elapsed at verification", "order_id", order.ID)
		return nil, domain.NewExpiredError(expired)
	}

	completed, err := s.transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusCompleted, At: now})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "order picked up", "order_id", completed.ID, "pickup_time", now)
	return completed, nil
}

// CancelOrder moves the caller's pending order to cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, requesterID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(
		attribute.String("order_id", orderID.String()),
	))
	defer span.End()

	order, err := s.GetOrder(ctx, orderID, requesterID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, domain.NewAlreadyFinalizedError(order)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.clock()
	if order.IsExpired(now) {
		expired, err := s.transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusNoShow, At: now})
		if err != nil {
			return nil, err
		}
		return nil, domain.NewExpiredError(expired)
	}

	cancelled, err := s.transition(ctx, domain.Transition{
		OrderID:     order.ID,
		To:          domain.OrderStatusCancelled,
		At:          now,
		RequesterID: requesterID,
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "order cancelled", "order_id", cancelled.ID)
	return cancelled, nil
}

// ExpireOrder applies the no-show transition for the sweeper. A lost race reports
// applied=false without an error.
func (s *OrderService) ExpireOrder(ctx context.Context, orderID uuid.UUID) (applied bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.repo.Transition(ctx, domain.Transition{OrderID: orderID, To: domain.OrderStatusNoShow, At: s.clock()})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, r.ErrStatusConflict), errors.Is(err, r.ErrOrderNotFound):
		return false, nil
	default:
		return false, mapRepoError("expire order", err)
	}
}

// ListExpired returns pending orders whose window has elapsed, oldest first.
func (s *OrderService) ListExpired(ctx context.Context, limit int) ([]*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	orders, err := s.repo.ListExpiredPending(ctx, s.clock(), limit)
	if err != nil {
		return nil, mapRepoError("list expired orders", err)
	}
	return orders, nil
}

// transition runs the conditional update; a lost race is resolved by re-reading the stored order.
func (s *OrderService) transition(ctx context.Context, t domain.Transition) (*domain.Order, error) {
	updated, err := s.repo.Transition(ctx, t)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, r.ErrStatusConflict) && !errors.Is(err, r.ErrRetriesExceeded) {
		return nil, mapRepoError("transition order", err)
	}

	current, getErr := s.repo.GetOrderByID(ctx, t.OrderID)
	if getErr != nil {
		return nil, mapRepoError("reload order", getErr)
	}
	if current.Status == domain.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %s", domain.ErrConflict, t.OrderID)
	}
	return nil, finalizedError(current)
}

// finalizedError reports a terminal order: a no-show reads as expired, anything else as already finalized.
func finalizedError(order *domain.Order) error {
	if order.Status == domain.OrderStatusNoShow {
		return domain.NewExpiredError(order)
	}
	return domain.NewAlreadyFinalizedError(order)
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, r.ErrOrderNotFound):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, op)
	case errors.Is(err, r.ErrRetriesExceeded):
		return fmt.Errorf("%w: %s", domain.ErrConflict, op)
	default:
		return internalError(op, err)
	}
}

func internalError(op string, err error) error {
	if errors.Is(err, domain.ErrInternal) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, op, err)
}
