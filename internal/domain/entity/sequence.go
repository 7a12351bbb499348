package entity

import "time"

// MinSequenceNumber valor mínimo de LastNumber para cualquier secuencia.
const MinSequenceNumber int64 = 1000

// Sequence contador persistente por tipo de documento.
// El siguiente número asignado es siempre LastNumber + 1.
type Sequence struct {
	Type       DocumentType
	LastNumber int64
	UpdatedAt  time.Time
}
