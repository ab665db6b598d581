// Package pricing computes order line prices from a catalog snapshot.
// Everything here is a pure function of its inputs so the same cart always prices the same way.
package pricing

import (
	"github.com/fjod/go_pickup/internal/domain"
)

// MaxQuantity caps a single line so totals stay far away from int64 overflow.
const MaxQuantity = 99

// Price resolves one customization against the product snapshot.
// unitPrice = basePrice + sizeModifier(size) + sum(addOnPrice), lineTotal = unitPrice * quantity.
func Price(product *domain.Product, c domain.Customization) (domain.OrderItem, error) {
	if product == nil {
		return domain.OrderItem{}, domain.Validationf("product snapshot is required")
	}
	if c.Quantity <= 0 {
		return domain.OrderItem{}, domain.Validationf("quantity must be positive, got %d", c.Quantity)
	}
	if c.Quantity > MaxQuantity {
		return domain.OrderItem{}, domain.Validationf("quantity must be at most %d, got %d", MaxQuantity, c.Quantity)
	}

	modifier, ok := product.SizeModifier(c.Size)
	if !ok {
		return domain.OrderItem{}, domain.Validationf("size %q is not offered for product %d", c.Size, product.ID)
	}

	unitPrice := product.BasePrice + modifier
	addOns := make([]domain.AddOnSnapshot, 0, len(c.AddOnIDs))
	seen := make(map[int64]struct{}, len(c.AddOnIDs))
	for _, id := range c.AddOnIDs {
		if _, dup := seen[id]; dup {
			return domain.OrderItem{}, domain.Validationf("add-on %d requested twice", id)
		}
		seen[id] = struct{}{}

		addOn, ok := product.AddOn(id)
		if !ok {
			return domain.OrderItem{}, domain.Validationf("add-on %d is not offered for product %d", id, product.ID)
		}
		unitPrice += addOn.Price
		addOns = append(addOns, domain.AddOnSnapshot{ID: addOn.ID, Name: addOn.Name, Price: addOn.Price})
	}

	return domain.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Size:        c.Size,
		SugarLevel:  c.SugarLevel,
		IceLevel:    c.IceLevel,
		AddOns:      addOns,
		Quantity:    c.Quantity,
		UnitPrice:   unitPrice,
		LineTotal:   unitPrice.Times(c.Quantity),
	}, nil
}

// Total sums line totals in insertion order.
func Total(items []domain.OrderItem) domain.Money {
	var total domain.Money
	for _, item := range items {
		total += item.LineTotal
	}
	return total
}
