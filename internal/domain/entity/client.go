package entity

import "time"

// Client representa un cliente al que se le emiten comprobantes.
type Client struct {
	ID        string
	Name      string
	TaxID     string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
