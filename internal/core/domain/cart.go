package domain

import "time"

// CartLine is advisory: quantity may exceed current stock. Hard
// validation happens at checkout, never here.
type CartLine struct {
	UserID    string
	ProductID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}
