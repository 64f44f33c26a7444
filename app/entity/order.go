package entity

import "time"

const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

type Order struct {
	ID uint64

	Number      string
	CustomerRef string

	Total    string
	Currency string

	Status string

	PaymentRequestID *string
	PaymentID        *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderNote struct {
	ID uint64

	OrderID uint64
	Note    string

	CreatedAt time.Time
}
