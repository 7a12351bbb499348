package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `
	id, number, doc_type, client_name, issued_at, due_at, paid_at, month,
	subtotal, discounts, total, related_document_id, created_at`

// Create persiste cabecera y líneas. Debe llamarse dentro de una tx para que sea atómico.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	// El conflicto sobre related_document_id no aborta la tx: así se puede consultar
	// qué documento ya ocupa la factura y devolver el mismo error que el guard.
	const q = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (related_document_id) WHERE related_document_id IS NOT NULL DO NOTHING`
	tag, err := r.q.Exec(ctx, q,
		doc.ID, doc.Number, string(doc.Type), doc.ClientName, doc.IssuedAt, doc.DueAt, doc.PaidAt, doc.Month,
		doc.Subtotal.Round(2), doc.Discounts.Round(2), doc.Total.Round(2),
		nullIfEmpty(doc.RelatedDocumentID), doc.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == constraintDocumentNumber {
				return fmt.Errorf("número %s: %w", doc.Number, domain.ErrDuplicateNumber)
			}
			return fmt.Errorf("insert document: %w", domain.ErrDuplicate)
		}
		return wrapErr("insert document", err)
	}
	if tag.RowsAffected() == 0 {
		return r.relatedConflict(ctx, doc.RelatedDocumentID)
	}

	const qi = `
		INSERT INTO document_items (id, document_id, position, description, month, quantity, unit_price, unit_discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i := range doc.Items {
		it := &doc.Items[i]
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		it.DocumentID = doc.ID
		it.Position = i
		if _, err := r.q.Exec(ctx, qi,
			it.ID, it.DocumentID, it.Position, it.Description, nullIfEmpty(it.Month),
			it.Quantity, it.UnitPrice, it.UnitDiscount,
		); err != nil {
			return wrapErr("insert document item", err)
		}
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

// GetByIDForUpdate bloquea la fila de la factura: dos RC/NC concurrentes sobre la misma
// factura se serializan aquí y el segundo ve al primero al re-derivar el estado.
func (r *DocumentRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
}

func (r *DocumentRepo) GetByNumber(ctx context.Context, number string) (*entity.Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE number = $1`, number)
}

func (r *DocumentRepo) getOne(ctx context.Context, query, arg string) (*entity.Document, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get document", err)
	}
	items, err := r.items(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Items = items
	return doc, nil
}

func (r *DocumentRepo) items(ctx context.Context, documentID string) ([]entity.LineItem, error) {
	const q = `
		SELECT id, document_id, position, description, COALESCE(month, ''), quantity, unit_price, unit_discount
		FROM document_items WHERE document_id = $1 ORDER BY position`
	rows, err := r.q.Query(ctx, q, documentID)
	if err != nil {
		return nil, wrapErr("list document items", err)
	}
	defer rows.Close()
	var list []entity.LineItem
	for rows.Next() {
		var it entity.LineItem
		if err := rows.Scan(&it.ID, &it.DocumentID, &it.Position, &it.Description, &it.Month,
			&it.Quantity, &it.UnitPrice, &it.UnitDiscount); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

func (r *DocumentRepo) ListRelated(ctx context.Context, invoiceID string) ([]*entity.Document, error) {
	if _, err := uuid.Parse(invoiceID); err != nil {
		return nil, nil
	}
	return r.ListRelatedTo(ctx, []string{invoiceID})
}

func (r *DocumentRepo) ListRelatedTo(ctx context.Context, invoiceIDs []string) ([]*entity.Document, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}
	const q = `SELECT ` + documentColumns + `
		FROM documents
		WHERE related_document_id = ANY($1::uuid[])
		ORDER BY issued_at DESC, number DESC`
	return r.list(ctx, q, invoiceIDs)
}

// List cabeceras filtradas, más recientes primero.
func (r *DocumentRepo) List(ctx context.Context, f repository.DocumentFilter) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE true`
	var args []any
	pos := 1
	if f.ClientName != "" {
		query += fmt.Sprintf(" AND lower(client_name) = lower($%d)", pos)
		args = append(args, f.ClientName)
		pos++
	}
	if f.Type != "" {
		query += fmt.Sprintf(" AND doc_type = $%d", pos)
		args = append(args, string(f.Type))
		pos++
	}
	if f.Month != "" {
		query += fmt.Sprintf(" AND month = $%d", pos)
		args = append(args, f.Month)
		pos++
	}
	query += " ORDER BY issued_at DESC, number DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", pos)
		args = append(args, f.Limit)
		pos++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", pos)
		args = append(args, f.Offset)
	}
	return r.list(ctx, query, args...)
}

func (r *DocumentRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Document, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list documents", err)
	}
	defer rows.Close()
	var list []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list documents rows", err)
	}
	return list, nil
}

// Delete elimina el documento; las líneas caen por ON DELETE CASCADE.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// relatedConflict traduce el conflicto del índice único parcial al error del ciclo de vida
// según el tipo del documento que ya referencia la factura.
func (r *DocumentRepo) relatedConflict(ctx context.Context, invoiceID string) error {
	var docType string
	err := r.q.QueryRow(ctx,
		`SELECT doc_type FROM documents WHERE related_document_id = $1 LIMIT 1`, invoiceID,
	).Scan(&docType)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("factura %s ya tiene un documento asociado: %w", invoiceID, domain.ErrLifecycleViolation)
	case err != nil:
		return wrapErr("get related document", err)
	case entity.DocumentType(docType) == entity.DocumentTypeCreditNote:
		return domain.ErrAlreadyCancelled(invoiceID)
	default:
		return domain.ErrAlreadySettled(invoiceID)
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar scanDocument.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row pgxScanner) (*entity.Document, error) {
	var doc entity.Document
	var docType string
	var related *string
	err := row.Scan(
		&doc.ID, &doc.Number, &docType, &doc.ClientName, &doc.IssuedAt, &doc.DueAt, &doc.PaidAt, &doc.Month,
		&doc.Subtotal, &doc.Discounts, &doc.Total, &related, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Type = entity.DocumentType(docType)
	doc.RelatedDocumentID = derefStr(related)
	return &doc, nil
}
