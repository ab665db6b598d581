package http

import (
	"time"

	"github.com/fjod/go_pickup/internal/domain"
)

type OrderDTO struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customer_id"`
	Status     string             `json:"status"`
	QRToken    string             `json:"qr_token,omitempty"`
	Items      []domain.OrderItem `json:"items"`
	Total      domain.Money       `json:"total"`
	Currency   string             `json:"currency"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	PickupTime *time.Time         `json:"pickup_time,omitempty"`
}

type OrdersResponse struct {
	Orders []OrderDTO `json:"orders"`
}

// LineRequest is one cart line as sent by the client.
type LineRequest struct {
	ProductID  int64             `json:"product_id"`
	Size       domain.Size       `json:"size"`
	SugarLevel domain.SugarLevel `json:"sugar_level"`
	IceLevel   domain.IceLevel   `json:"ice_level"`
	AddOnIDs   []int64           `json:"add_on_ids"`
	Quantity   int               `json:"quantity"`
}

func (l LineRequest) toCartLine() domain.CartLine {
	return domain.CartLine{
		ProductID: l.ProductID,
		Customization: domain.Customization{
			Size:       l.Size,
			SugarLevel: l.SugarLevel,
			IceLevel:   l.IceLevel,
			AddOnIDs:   l.AddOnIDs,
			Quantity:   l.Quantity,
		},
	}
}

type CreateOrderRequest struct {
	Items []LineRequest `json:"items"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}

type DraftResponse struct {
	CustomerID string            `json:"customer_id"`
	Lines      []domain.CartLine `json:"lines"`
	UpdatedAt  *time.Time        `json:"updated_at,omitempty"`
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
}

// toOrderDTO hides the token unless the caller owns it; staff views never echo it back.
func toOrderDTO(o *domain.Order, includeToken bool) OrderDTO {
	dto := OrderDTO{
		ID:         o.ID.String(),
		CustomerID: o.CustomerID,
		Status:     o.Status.String(),
		Items:      o.Items,
		Total:      o.Total,
		Currency:   domain.Currency,
		CreatedAt:  o.CreatedAt,
		ExpiresAt:  o.ExpiresAt,
		PickupTime: o.PickupTime,
	}
	if includeToken {
		dto.QRToken = o.QRToken
	}
	if dto.Items == nil {
		dto.Items = []domain.OrderItem{}
	}
	return dto
}

func toDraftResponse(d *domain.Draft) DraftResponse {
	resp := DraftResponse{CustomerID: d.CustomerID, Lines: d.Lines}
	if resp.Lines == nil {
		resp.Lines = []domain.CartLine{}
	}
	if !d.UpdatedAt.IsZero() {
		updated := d.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
