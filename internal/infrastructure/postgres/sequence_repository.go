package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
)

var _ repository.SequenceRepository = (*SequenceRepo)(nil)

// SequenceRepo contadores por tipo de documento (tabla document_sequences).
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador. Debe recibir una tx para que el bloqueo tenga efecto.
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// GetForUpdate lee y bloquea la fila del tipo. Otra transacción que pida la misma fila
// espera hasta el commit o rollback de ésta.
func (r *SequenceRepo) GetForUpdate(ctx context.Context, docType entity.DocumentType) (*entity.Sequence, error) {
	const q = `
		SELECT doc_type, last_number, updated_at
		FROM document_sequences
		WHERE doc_type = $1
		FOR UPDATE`
	var seq entity.Sequence
	var t string
	err := r.q.QueryRow(ctx, q, string(docType)).Scan(&t, &seq.LastNumber, &seq.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("secuencia %s: %w", docType, domain.ErrNotFound)
		}
		return nil, wrapErr("get sequence for update", err)
	}
	seq.Type = entity.DocumentType(t)
	return &seq, nil
}

func (r *SequenceRepo) SetLastNumber(ctx context.Context, docType entity.DocumentType, lastNumber int64) error {
	const q = `
		UPDATE document_sequences
		SET last_number = $2, updated_at = now()
		WHERE doc_type = $1`
	tag, err := r.q.Exec(ctx, q, string(docType), lastNumber)
	if err != nil {
		return wrapErr("update sequence", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("secuencia %s: %w", docType, domain.ErrNotFound)
	}
	return nil
}

// Seed asegura que exista una fila por tipo con LastNumber = start. No toca filas existentes.
func (r *SequenceRepo) Seed(ctx context.Context, start int64) error {
	if start < entity.MinSequenceNumber {
		start = entity.MinSequenceNumber
	}
	const q = `
		INSERT INTO document_sequences (doc_type, last_number, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (doc_type) DO NOTHING`
	for _, t := range entity.DocumentTypes {
		if _, err := r.q.Exec(ctx, q, string(t), start); err != nil {
			return wrapErr("seed sequence", err)
		}
	}
	return nil
}
