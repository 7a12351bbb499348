package repository

import (
	"context"

	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
)

// SequenceRepository define el puerto de persistencia para los contadores por tipo de documento.
// Debe usarse dentro de una transacción: GetForUpdate bloquea la fila hasta el commit.
type SequenceRepository interface {
	// GetForUpdate lee la secuencia del tipo y bloquea la fila (SELECT ... FOR UPDATE).
	// Devuelve domain.ErrNotFound si la secuencia no fue inicializada.
	GetForUpdate(ctx context.Context, docType entity.DocumentType) (*entity.Sequence, error)
	// SetLastNumber guarda el nuevo último número asignado.
	SetLastNumber(ctx context.Context, docType entity.DocumentType, lastNumber int64) error
}
