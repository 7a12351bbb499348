package dto

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit" validate:"min=0,max=500"`
	Offset int `query:"offset" validate:"min=0"`
}

// ErrorResponse cuerpo de error HTTP.
// Code es estable (VALIDATION, LIFECYCLE_VIOLATION, DUPLICATE_NUMBER, STORE_UNAVAILABLE, ...);
// Reason detalla la regla violada cuando aplica (INVOICE_ALREADY_SETTLED, ...).
type ErrorResponse struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}
