package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrValidation         = errors.New("entrada inválida")
	ErrLifecycleViolation = errors.New("operación no permitida por el estado de la factura")
	ErrDuplicateNumber    = errors.New("el número de documento ya existe")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrStoreUnavailable   = errors.New("almacenamiento no disponible")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
)

// Códigos estables para clientes de la API (machine-readable).
const (
	CodeValidation       = "VALIDATION"
	CodeLifecycle        = "LIFECYCLE_VIOLATION"
	CodeDuplicateNumber  = "DUPLICATE_NUMBER"
	CodeDuplicate        = "DUPLICATE"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInternal         = "INTERNAL"
)

// Motivos de rechazo del ciclo de vida. Cada uno tiene su propio mensaje.
const (
	ReasonAlreadySettled   = "INVOICE_ALREADY_SETTLED"
	ReasonAlreadyCancelled = "INVOICE_ALREADY_CANCELLED"
)

// ValidationError detalla qué campo de la entrada es inválido.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError construye el error para el campo dado.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LifecycleError indica qué regla del ciclo Factura → Recibo / Nota de Crédito se violó.
type LifecycleError struct {
	Code      string // ReasonAlreadySettled | ReasonAlreadyCancelled
	InvoiceID string
	Message   string
}

func (e *LifecycleError) Error() string {
	return e.Message
}

func (e *LifecycleError) Unwrap() error { return ErrLifecycleViolation }

// ErrAlreadySettled la factura ya tiene un recibo.
func ErrAlreadySettled(invoiceID string) *LifecycleError {
	return &LifecycleError{
		Code:      ReasonAlreadySettled,
		InvoiceID: invoiceID,
		Message:   "la factura ya está pagada (tiene un recibo asociado)",
	}
}

// ErrAlreadyCancelled la factura ya tiene una nota de crédito.
func ErrAlreadyCancelled(invoiceID string) *LifecycleError {
	return &LifecycleError{
		Code:      ReasonAlreadyCancelled,
		InvoiceID: invoiceID,
		Message:   "la factura ya está anulada (tiene una nota de crédito asociada)",
	}
}

// Kind devuelve el código estable asociado al error (para respuestas HTTP y logs).
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrLifecycleViolation):
		return CodeLifecycle
	case errors.Is(err, ErrDuplicateNumber):
		return CodeDuplicateNumber
	case errors.Is(err, ErrDuplicate):
		return CodeDuplicate
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}
