package domain

import "github.com/google/uuid"

// Product is the catalog projection the settlement core reads at checkout.
type Product struct {
	ID       uuid.UUID `json:"id"`
	SellerID uuid.UUID `json:"seller_id"`
	Price    int64     `json:"price"`
	Discount int64     `json:"discount"`
	Category string    `json:"category"`
}

// GrossAmount is what the buyer pays.
func (p *Product) GrossAmount() int64 {
	return p.Price - p.Discount
}
