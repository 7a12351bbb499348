package dto

// CreateClientRequest body para POST /api/clients.
type CreateClientRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	TaxID string `json:"tax_id,omitempty" validate:"max=40"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"max=40"`
}

// ClientResponse cliente en respuestas.
type ClientResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"tax_id,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
