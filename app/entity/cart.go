package entity

import "time"

type Cart struct {
	ID uint64

	CustomerRef string
	Items       map[string]int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
