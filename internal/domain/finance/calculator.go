// Package finance contiene la aritmética de comprobantes: subtotal, descuentos, total,
// convención de signo para documentos que liquidan o anulan una factura y vencimientos.
// Funciones puras, sin I/O.
package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
)

// Días de vencimiento permitidos para una factura.
const (
	MinDueDays     = 5
	MaxDueDays     = 7
	DefaultDueDays = 6
)

// Totals montos de un comprobante. Total = Subtotal - Discounts.
type Totals struct {
	Subtotal  decimal.Decimal
	Discounts decimal.Decimal
	Total     decimal.Decimal
}

// LineTotal = (UnitPrice - UnitDiscount) * Quantity.
func LineTotal(item entity.LineItem) decimal.Decimal {
	return item.UnitPrice.Sub(item.UnitDiscount).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Subtotal = Σ UnitPrice * Quantity.
func Subtotal(items []entity.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Discounts = Σ UnitDiscount * Quantity.
func Discounts(items []entity.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitDiscount.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// DisplayTotals montos en magnitud positiva, recalculados desde las líneas.
// Es lo que se imprime en el documento, sin importar cómo se guardó.
func DisplayTotals(items []entity.LineItem) Totals {
	sub := Subtotal(items).Round(2)
	disc := Discounts(items).Round(2)
	return Totals{Subtotal: sub, Discounts: disc, Total: sub.Sub(disc)}
}

// StoredTotals montos a persistir. Un Recibo o Nota de Crédito que actúa sobre una factura
// se guarda en negativo para que los reportes puedan netear; el resto se guarda tal cual.
func StoredTotals(docType entity.DocumentType, hasRelated bool, items []entity.LineItem) Totals {
	t := DisplayTotals(items)
	if docType.ActsOnInvoice() && hasRelated {
		return t.Negate()
	}
	return t
}

// Negate invierte el signo de los tres montos.
func (t Totals) Negate() Totals {
	return Totals{Subtotal: t.Subtotal.Neg(), Discounts: t.Discounts.Neg(), Total: t.Total.Neg()}
}

// Abs magnitud positiva de los tres montos.
func (t Totals) Abs() Totals {
	return Totals{Subtotal: t.Subtotal.Abs(), Discounts: t.Discounts.Abs(), Total: t.Total.Abs()}
}

// ValidDueDays indica si days está en el rango permitido {5,6,7}.
func ValidDueDays(days int) bool {
	return days >= MinDueDays && days <= MaxDueDays
}

// DueDate = issuedAt + days. Si days es 0 usa DefaultDueDays.
func DueDate(issuedAt time.Time, days int) time.Time {
	if days == 0 {
		days = DefaultDueDays
	}
	return issuedAt.AddDate(0, 0, days)
}
