package billing

import (
	"context"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

// SequenceGenerator asigna el siguiente número de un tipo de documento.
// Cada llamada es una transacción propia: lee la fila con bloqueo, incrementa y guarda.
// Dos llamadas concurrentes del mismo tipo se serializan sobre esa fila; tipos distintos
// usan filas distintas y no se bloquean entre sí.
type SequenceGenerator struct {
	txRunner DocumentTxRunner
	log      *logger.Logger
}

// NewSequenceGenerator construye el generador.
func NewSequenceGenerator(txRunner DocumentTxRunner, log *logger.Logger) *SequenceGenerator {
	return &SequenceGenerator{txRunner: txRunner, log: log.WithComponent("sequence")}
}

// Allocate devuelve LastNumber+1 y lo deja persistido. Si la transacción falla no se
// asigna nada (rollback).
func (g *SequenceGenerator) Allocate(ctx context.Context, docType entity.DocumentType) (int64, error) {
	if docType.Prefix() == "" {
		return 0, domain.NewValidationError("type", "tipo de documento desconocido")
	}
	var next int64
	err := g.txRunner.RunDocuments(ctx, func(seqRepo repository.SequenceRepository, _ repository.DocumentRepository) error {
		seq, err := seqRepo.GetForUpdate(ctx, docType)
		if err != nil {
			return err
		}
		next = seq.LastNumber + 1
		return seqRepo.SetLastNumber(ctx, docType, next)
	})
	if err != nil {
		g.log.Error().Err(err).Str("type", string(docType)).Msg("no se pudo asignar número")
		return 0, err
	}
	g.log.Debug().Str("type", string(docType)).Int64("number", next).Msg("número asignado")
	return next, nil
}

// NextNumber asigna un número y lo devuelve con el prefijo del tipo (FC1001).
func (g *SequenceGenerator) NextNumber(ctx context.Context, docType entity.DocumentType) (string, error) {
	n, err := g.Allocate(ctx, docType)
	if err != nil {
		return "", err
	}
	return docType.FormatNumber(n), nil
}

// Advance sube LastNumber hasta n si está por debajo. La importación lo usa para que los
// números explícitos no choquen después con la secuencia. Nunca retrocede.
func (g *SequenceGenerator) Advance(ctx context.Context, docType entity.DocumentType, n int64) error {
	if docType.Prefix() == "" {
		return domain.NewValidationError("type", "tipo de documento desconocido")
	}
	return g.txRunner.RunDocuments(ctx, func(seqRepo repository.SequenceRepository, _ repository.DocumentRepository) error {
		seq, err := seqRepo.GetForUpdate(ctx, docType)
		if err != nil {
			return err
		}
		if n <= seq.LastNumber {
			return nil
		}
		g.log.Info().Str("type", string(docType)).Int64("from", seq.LastNumber).Int64("to", n).Msg("secuencia adelantada")
		return seqRepo.SetLastNumber(ctx, docType, n)
	})
}
