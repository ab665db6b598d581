package domain

import "time"

// Draft is a customer's cart in progress. Drafts are session state: they expire on idle
// and do not survive a cache flush.
type Draft struct {
	CustomerID string     `json:"customer_id"`
	Lines      []CartLine `json:"lines"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
