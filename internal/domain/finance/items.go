package finance

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
)

// Límites de lo que se puede guardar: precios NUMERIC(14,4), montos NUMERIC(14,2),
// cantidad INT.
const (
	MaxUnitDecimals = 4
	MaxQuantity     = math.MaxInt32
)

var (
	maxUnitAmount     = decimal.New(1, 10) // 10^10
	maxDocumentAmount = decimal.New(1, 12) // 10^12
)

// ValidateItems revisa la forma de las líneas antes de calcular montos.
// Devuelve *domain.ValidationError con el índice de la primera línea inválida.
func ValidateItems(items []entity.LineItem) error {
	if len(items) == 0 {
		return domain.NewValidationError("items", "debe incluir al menos una línea")
	}
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.Description) == "" {
			return domain.NewValidationError(field+".description", "requerida")
		}
		if it.Month != "" && !ValidMonth(it.Month) {
			return domain.NewValidationError(field+".month", "formato esperado YYYY-MM")
		}
		if it.Quantity < 1 {
			return domain.NewValidationError(field+".quantity", "debe ser mayor o igual a 1")
		}
		if it.Quantity > MaxQuantity {
			return domain.NewValidationError(field+".quantity", fmt.Sprintf("no puede superar %d", MaxQuantity))
		}
		if err := validateUnitAmount(field+".unit_price", it.UnitPrice); err != nil {
			return err
		}
		if err := validateUnitAmount(field+".unit_discount", it.UnitDiscount); err != nil {
			return err
		}
	}
	// Los montos se redondean a 2 decimales al guardar; se compara ya redondeado.
	if Subtotal(items).Round(2).GreaterThanOrEqual(maxDocumentAmount) {
		return domain.NewValidationError("items", "el subtotal excede el máximo permitido")
	}
	if Discounts(items).Round(2).GreaterThanOrEqual(maxDocumentAmount) {
		return domain.NewValidationError("items", "los descuentos exceden el máximo permitido")
	}
	return nil
}

// validateUnitAmount: no negativo, a lo sumo 4 decimales y menor a 10^10. Con más
// decimales el valor guardado no sería el mismo con el que se calcularon los totales.
func validateUnitAmount(field string, v decimal.Decimal) error {
	switch {
	case v.IsNegative():
		return domain.NewValidationError(field, "no puede ser negativo")
	case !v.Equal(v.Round(MaxUnitDecimals)):
		return domain.NewValidationError(field, fmt.Sprintf("admite a lo sumo %d decimales", MaxUnitDecimals))
	case v.GreaterThanOrEqual(maxUnitAmount):
		return domain.NewValidationError(field, "excede el máximo permitido")
	}
	return nil
}

// CopyItems copia las líneas de una factura para un Recibo o Nota de Crédito.
// Se limpian ID y DocumentID; descripción, mes, cantidad y precios quedan idénticos.
func CopyItems(src []entity.LineItem) []entity.LineItem {
	out := make([]entity.LineItem, len(src))
	for i, it := range src {
		out[i] = entity.LineItem{
			Position:     i,
			Description:  it.Description,
			Month:        it.Month,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			UnitDiscount: it.UnitDiscount,
		}
	}
	return out
}
