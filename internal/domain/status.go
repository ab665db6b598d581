package domain

import "fmt"

// OrderStatus is the lifecycle state of an order. The zero value is not a valid status.
type OrderStatus uint8

const (
	OrderStatusPending OrderStatus = iota + 1
	OrderStatusCompleted
	OrderStatusNoShow
	OrderStatusCancelled
)

var statusNames = map[OrderStatus]string{
	OrderStatusPending:   "pending",
	OrderStatusCompleted: "completed",
	OrderStatusNoShow:    "no-show",
	OrderStatusCancelled: "cancelled",
}

// ParseOrderStatus converts the persisted representation back into a status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", s)
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusNoShow, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// String representation (for logging and storage)
func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", uint8(s))
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid order status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CanTransitionTo reports whether the state machine has an edge from -> to.
// Only pending has outgoing edges; every terminal state is final.
func CanTransitionTo(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		switch to {
		case OrderStatusCompleted, OrderStatusNoShow, OrderStatusCancelled:
			return true
		}
		return false
	case OrderStatusCompleted, OrderStatusNoShow, OrderStatusCancelled:
		return false
	default:
		return false
	}
}
