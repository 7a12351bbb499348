package repository

import (
	"context"

	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
)

// DocumentFilter filtros del listado de documentos. Campos vacíos no filtran.
type DocumentFilter struct {
	ClientName string
	Type       entity.DocumentType
	Month      string
	Limit      int
	Offset     int
}

// DocumentRepository define el puerto de persistencia para comprobantes y sus líneas.
type DocumentRepository interface {
	// Create persiste cabecera y líneas. Número repetido → domain.ErrDuplicateNumber;
	// segundo documento sobre la misma factura → domain.ErrLifecycleViolation.
	Create(ctx context.Context, doc *entity.Document) error
	// GetByID devuelve nil, nil si no existe. Incluye las líneas.
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	// GetByIDForUpdate igual que GetByID pero bloquea la fila hasta el commit.
	GetByIDForUpdate(ctx context.Context, id string) (*entity.Document, error)
	GetByNumber(ctx context.Context, number string) (*entity.Document, error)
	// ListRelated devuelve los documentos cuyo RelatedDocumentID es invoiceID (sin líneas).
	ListRelated(ctx context.Context, invoiceID string) ([]*entity.Document, error)
	// ListRelatedTo igual que ListRelated para varias facturas a la vez.
	ListRelatedTo(ctx context.Context, invoiceIDs []string) ([]*entity.Document, error)
	// List devuelve cabeceras (sin líneas) ordenadas por fecha de emisión descendente.
	List(ctx context.Context, filter DocumentFilter) ([]*entity.Document, error)
	// Delete elimina el documento y sus líneas. No repara referencias colgantes.
	Delete(ctx context.Context, id string) error
}
