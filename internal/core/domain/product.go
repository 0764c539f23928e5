package domain

import "time"

type Product struct {
	ID              string
	SellerID        string
	Title           string
	Stock           int
	IsActive        bool
	IsSold          bool
	OriginalPrice   int64 // minor units
	DiscountedPrice *int64
	ArchivedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UnitPrice is the price frozen onto order items: the discounted price
// when one is set, else the original.
func (p Product) UnitPrice() int64 {
	if p.DiscountedPrice != nil {
		return *p.DiscountedPrice
	}
	return p.OriginalPrice
}
