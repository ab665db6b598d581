package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPickupWindow is how long a pickup token stays redeemable after the order is placed.
const DefaultPickupWindow = 30 * time.Minute

type AddOnSnapshot struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        Size            `json:"size"`
	SugarLevel  SugarLevel      `json:"sugar_level"`
	IceLevel    IceLevel        `json:"ice_level"`
	AddOns      []AddOnSnapshot `json:"add_ons"`
	Quantity    int             `json:"quantity"`
	UnitPrice   Money           `json:"unit_price"`
	LineTotal   Money           `json:"line_total"`
}

// Customization is what the customer asked for on a single cart line.
type Customization struct {
	Size       Size       `json:"size"`
	SugarLevel SugarLevel `json:"sugar_level"`
	IceLevel   IceLevel   `json:"ice_level"`
	AddOnIDs   []int64    `json:"add_on_ids"`
	Quantity   int        `json:"quantity"`
}

type CartLine struct {
	ProductID     int64         `json:"product_id"`
	Customization Customization `json:"customization"`
}

type Order struct {
	ID         uuid.UUID
	CustomerID string
	Items      []OrderItem
	Status     OrderStatus
	QRToken    string
	Total      Money
	CreatedAt  time.Time
	ExpiresAt  time.Time
	PickupTime *time.Time
	UpdatedAt  time.Time
}

// IsRedeemable is the single source of truth for token validity.
func (o *Order) IsRedeemable(now time.Time) bool {
	return o.Status == OrderStatusPending && now.Before(o.ExpiresAt)
}

// IsExpired reports whether the pickup window has elapsed, regardless of status.
func (o *Order) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Clone returns a deep copy so stores can hand out snapshots without sharing memory.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.AddOns = append([]AddOnSnapshot(nil), item.AddOns...)
		c.Items[i] = item
	}
	if o.PickupTime != nil {
		t := *o.PickupTime
		c.PickupTime = &t
	}
	return &c
}

// Transition is a guarded request to move an order out of pending.
// At is the evaluation time for the expiry guard; RequesterID is only checked for cancellation.
type Transition struct {
	OrderID     uuid.UUID
	To          OrderStatus
	At          time.Time
	RequesterID string
}

// Guard evaluates the time and ownership guards of the transition table against a pending order.
func (t Transition) Guard(o *Order) bool {
	if o.Status != OrderStatusPending || !CanTransitionTo(o.Status, t.To) {
		return false
	}
	switch t.To {
	case OrderStatusCompleted:
		return t.At.Before(o.ExpiresAt)
	case OrderStatusNoShow:
		return !t.At.Before(o.ExpiresAt)
	case OrderStatusCancelled:
		return t.RequesterID != "" && t.RequesterID == o.CustomerID
	default:
		return false
	}
}

// Apply mutates o into the target state. Callers must have checked Guard.
func (t Transition) Apply(o *Order) {
	o.Status = t.To
	o.UpdatedAt = t.At
	if t.To == OrderStatusCompleted {
		at := t.At
		o.PickupTime = &at
	}
}

// EventType names the outbox event emitted for a successful transition.
func (t Transition) EventType() string {
	switch t.To {
	case OrderStatusCompleted:
		return EventOrderCompleted
	case OrderStatusNoShow:
		return EventOrderNoShow
	case OrderStatusCancelled:
		return EventOrderCancelled
	default:
		return ""
	}
}

const (
	EventOrderCompleted = "order.completed"
	EventOrderNoShow    = "order.no_show"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is the payload published for every committed transition.
type OrderEvent struct {
	OrderID    string     `json:"order_id"`
	CustomerID string     `json:"customer_id"`
	Status     string     `json:"status"`
	Total      Money      `json:"total"`
	PickupTime *time.Time `json:"pickup_time,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func NewOrderEvent(o *Order) OrderEvent {
	return OrderEvent{
		OrderID:    o.ID.String(),
		CustomerID: o.CustomerID,
		Status:     o.Status.String(),
		Total:      o.Total,
		PickupTime: o.PickupTime,
		OccurredAt: o.UpdatedAt,
	}
}
