package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssueDocumentRequest body para POST /api/documents.
// Para Receipt / CreditNote las líneas se copian de la factura relacionada; items se ignora.
type IssueDocumentRequest struct {
	Type              string            `json:"type" validate:"required,oneof=Invoice Receipt CreditNote"`
	ClientName        string            `json:"client_name" validate:"required_if=Type Invoice,max=200"`
	Month             string            `json:"month,omitempty" validate:"omitempty,len=7"`
	Items             []LineItemRequest `json:"items" validate:"required_if=Type Invoice,dive"`
	RelatedDocumentID string            `json:"related_document_id,omitempty" validate:"required_unless=Type Invoice"`
	DueDays           int               `json:"due_days,omitempty" validate:"omitempty,min=5,max=7"`
	PaymentDate       string            `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// LineItemRequest línea del comprobante.
type LineItemRequest struct {
	Description  string          `json:"description" validate:"required,max=500"`
	Month        string          `json:"month,omitempty" validate:"omitempty,len=7"`
	Quantity     int             `json:"quantity" validate:"min=1"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
}

// NextNumberResponse respuesta de GET /api/documents/next-number.
type NextNumberResponse struct {
	Number string `json:"number"`
}

// TotalsResponse montos de un comprobante.
type TotalsResponse struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discounts decimal.Decimal `json:"discounts"`
	Total     decimal.Decimal `json:"total"`
}

// DocumentResponse comprobante en respuestas.
// Subtotal/Discounts/Total son los montos guardados (negativos en RC/NC sobre factura);
// Display son los montos a mostrar, siempre positivos.
type DocumentResponse struct {
	ID                string             `json:"id"`
	Number            string             `json:"number"`
	Type              string             `json:"type"`
	ClientName        string             `json:"client_name"`
	IssuedAt          time.Time          `json:"issued_at"`
	DueAt             *time.Time         `json:"due_at,omitempty"`
	PaidAt            *time.Time         `json:"paid_at,omitempty"`
	Month             string             `json:"month"`
	Items             []LineItemResponse `json:"items,omitempty"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	Discounts         decimal.Decimal    `json:"discounts"`
	Total             decimal.Decimal    `json:"total"`
	Display           TotalsResponse     `json:"display"`
	RelatedDocumentID string             `json:"related_document_id,omitempty"`
	State             string             `json:"state,omitempty"` // solo facturas: Pending|Settled|Cancelled
}

// LineItemResponse línea en la respuesta.
type LineItemResponse struct {
	Description  string          `json:"description"`
	Month        string          `json:"month,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// DocumentListResponse listado paginado.
type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Page      PageResponse       `json:"page"`
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PendingReportResponse montos aún adeudados (facturas sin recibo ni nota de crédito).
type PendingReportResponse struct {
	Count    int                `json:"count"`
	Total    decimal.Decimal    `json:"total"`
	Invoices []DocumentResponse `json:"invoices"`
}
