// Package lifecycle deriva el estado de liquidación de una factura a partir de los
// recibos y notas de crédito que la referencian, y aplica las reglas que impiden
// combinaciones inválidas. Todo es función pura del contenido del almacén.
package lifecycle

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
)

// Derivation resultado de analizar una factura y sus documentos relacionados.
type Derivation struct {
	InvoiceID   string
	State       entity.InvoiceState
	Receipts    int
	CreditNotes int
	// Ambiguous: más de una nota de crédito apunta a la misma factura.
	// No se considera anulada; el llamador debe registrarlo.
	Ambiguous bool
}

// Derive calcula el estado de la factura. related puede contener cualquier documento;
// solo cuentan los que tienen RelatedDocumentID == invoiceID.
//
// Prioridad: Cancelled (exactamente una NC) > Settled (exactamente un RC) > Pending.
func Derive(invoiceID string, related []*entity.Document) Derivation {
	d := Derivation{InvoiceID: invoiceID}
	for _, doc := range related {
		if doc == nil || doc.RelatedDocumentID != invoiceID {
			continue
		}
		switch doc.Type {
		case entity.DocumentTypeReceipt:
			d.Receipts++
		case entity.DocumentTypeCreditNote:
			d.CreditNotes++
		}
	}
	d.Ambiguous = d.CreditNotes > 1
	switch {
	case d.CreditNotes == 1:
		d.State = entity.InvoiceStateCancelled
	case d.Receipts == 1:
		d.State = entity.InvoiceStateSettled
	default:
		d.State = entity.InvoiceStatePending
	}
	return d
}

// Untouched: ningún recibo ni nota de crédito. Es el predicado del reporte de pendientes.
func (d Derivation) Untouched() bool {
	return d.Receipts == 0 && d.CreditNotes == 0
}

// GuardCreditNote valida que se pueda anular la factura.
// Una factura pagada o ya anulada no se puede anular otra vez.
func GuardCreditNote(d Derivation) error {
	if d.CreditNotes > 0 {
		return domain.ErrAlreadyCancelled(d.InvoiceID)
	}
	if d.Receipts > 0 {
		return domain.ErrAlreadySettled(d.InvoiceID)
	}
	return nil
}

// GuardReceipt valida que se pueda pagar la factura.
// No se paga una factura anulada, y una factura admite un solo recibo.
func GuardReceipt(d Derivation) error {
	if d.CreditNotes > 0 {
		return domain.ErrAlreadyCancelled(d.InvoiceID)
	}
	if d.Receipts > 0 {
		return domain.ErrAlreadySettled(d.InvoiceID)
	}
	return nil
}

// Guard despacha según el tipo del documento a emitir.
func Guard(docType entity.DocumentType, d Derivation) error {
	switch docType {
	case entity.DocumentTypeCreditNote:
		return GuardCreditNote(d)
	case entity.DocumentTypeReceipt:
		return GuardReceipt(d)
	default:
		return nil
	}
}

// DeriveAll agrupa related por factura y deriva el estado de cada una.
func DeriveAll(invoices []*entity.Document, related []*entity.Document) map[string]Derivation {
	byInvoice := make(map[string][]*entity.Document, len(invoices))
	for _, doc := range related {
		if doc != nil && doc.RelatedDocumentID != "" {
			byInvoice[doc.RelatedDocumentID] = append(byInvoice[doc.RelatedDocumentID], doc)
		}
	}
	out := make(map[string]Derivation, len(invoices))
	for _, inv := range invoices {
		if inv == nil || inv.Type != entity.DocumentTypeInvoice {
			continue
		}
		out[inv.ID] = Derive(inv.ID, byInvoice[inv.ID])
	}
	return out
}

// PendingAmount suma el total de las facturas sin recibo ni nota de crédito.
// Devuelve también las facturas incluidas, en el orden recibido.
func PendingAmount(invoices []*entity.Document, related []*entity.Document) (decimal.Decimal, []*entity.Document) {
	states := DeriveAll(invoices, related)
	sum := decimal.Zero
	var pending []*entity.Document
	for _, inv := range invoices {
		d, ok := states[inv.ID]
		if !ok || !d.Untouched() {
			continue
		}
		sum = sum.Add(inv.Total)
		pending = append(pending, inv)
	}
	return sum, pending
}
