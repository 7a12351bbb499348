package entity

// InvoiceState estado de liquidación derivado de una factura.
type InvoiceState string

const (
	InvoiceStatePending   InvoiceState = "Pending"   // sin recibo ni nota de crédito
	InvoiceStateSettled   InvoiceState = "Settled"   // pagada con un recibo
	InvoiceStateCancelled InvoiceState = "Cancelled" // anulada con una nota de crédito
)
