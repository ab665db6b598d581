// Package accounts keeps the per-customer no-show tally that the order lifecycle feeds.
// What to do once a customer crosses a threshold is decided by whoever reads the tally.
package accounts

import (
	"context"
	"errors"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")

type Account struct {
	CustomerID   string    `bson:"_id" json:"customer_id"`
	NoShowCount  int       `bson:"no_show_count" json:"no_show_count"`
	NoShowOrders []string  `bson:"no_show_orders" json:"no_show_orders"`
	LastNoShowAt time.Time `bson:"last_no_show_at" json:"last_no_show_at"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// AccountRepository records no-shows. RecordNoShow counts a given order at most once and
// reports whether this call was the one that counted it.
type AccountRepository interface {
	RecordNoShow(ctx context.Context, customerID, orderID string, at time.Time) (bool, error)
	GetAccount(ctx context.Context, customerID string) (*Account, error)
}
