package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType tipo de comprobante contable.
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "Invoice"    // Factura
	DocumentTypeReceipt    DocumentType = "Receipt"    // Recibo
	DocumentTypeCreditNote DocumentType = "CreditNote" // Nota de Crédito
)

// DocumentTypes lista los tipos válidos en orden estable.
var DocumentTypes = []DocumentType{DocumentTypeInvoice, DocumentTypeReceipt, DocumentTypeCreditNote}

// ParseDocumentType valida el string recibido (API, Excel) contra los tipos conocidos.
func ParseDocumentType(s string) (DocumentType, error) {
	for _, t := range DocumentTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("tipo de documento desconocido: %q", s)
}

// Prefix prefijo de dos letras usado solo para mostrar el número (FC1001, RC1002, NC1003).
func (t DocumentType) Prefix() string {
	switch t {
	case DocumentTypeInvoice:
		return "FC"
	case DocumentTypeReceipt:
		return "RC"
	case DocumentTypeCreditNote:
		return "NC"
	default:
		return ""
	}
}

// ActsOnInvoice indica si el tipo liquida o anula una factura (requiere documento relacionado).
func (t DocumentType) ActsOnInvoice() bool {
	return t == DocumentTypeReceipt || t == DocumentTypeCreditNote
}

// FormatNumber compone el número visible: prefijo + consecutivo.
func (t DocumentType) FormatNumber(n int64) string {
	return fmt.Sprintf("%s%d", t.Prefix(), n)
}

// LineItem línea de un comprobante. Cantidad entera; precio y descuento unitarios.
type LineItem struct {
	ID           string
	DocumentID   string
	Position     int
	Description  string
	Month        string // "YYYY-MM" o vacío
	Quantity     int
	UnitPrice    decimal.Decimal
	UnitDiscount decimal.Decimal
}

// Document cabecera de Factura, Recibo o Nota de Crédito.
// Los montos guardados de un Recibo / Nota de Crédito sobre una factura son negativos.
type Document struct {
	ID                string
	Number            string
	Type              DocumentType
	ClientName        string // copia del nombre del cliente al momento de emitir
	IssuedAt          time.Time
	DueAt             *time.Time // solo Factura
	PaidAt            *time.Time // solo Recibo
	Month             string     // "YYYY-MM"
	Items             []LineItem
	Subtotal          decimal.Decimal
	Discounts         decimal.Decimal
	Total             decimal.Decimal
	RelatedDocumentID string // Recibo / Nota de Crédito → Factura
	CreatedAt         time.Time
}

// HasRelated indica si el documento actúa sobre otro.
func (d *Document) HasRelated() bool {
	return d.RelatedDocumentID != ""
}

// ParseNumber separa el consecutivo de un número con el prefijo del tipo (FC1001 → 1001).
// false si el número no sigue ese formato.
func (t DocumentType) ParseNumber(number string) (int64, bool) {
	p := t.Prefix()
	if p == "" || !strings.HasPrefix(number, p) {
		return 0, false
	}
	n, err := strconv.ParseInt(number[len(p):], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
