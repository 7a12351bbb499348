package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/comprobantes-api/internal/application/dto"
	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/finance"
	"github.com/jhoicas/comprobantes-api/internal/domain/lifecycle"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	// pendingScanLimit tope de facturas que revisa el reporte de pendientes.
	pendingScanLimit = 10000
)

// ListQuery filtros del listado.
type ListQuery struct {
	ClientName string
	Type       string
	Month      string
	Limit      int
	Offset     int
}

// PendingQuery filtros del reporte de pendientes.
type PendingQuery struct {
	ClientName string
	Month      string
}

// Get devuelve el documento con sus líneas. Si es factura, incluye su estado derivado.
func (s *DocumentService) Get(ctx context.Context, id string) (*dto.DocumentResponse, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	var state entity.InvoiceState
	if doc.Type == entity.DocumentTypeInvoice {
		related, err := s.docRepo.ListRelated(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		state = s.derive(doc.ID, related).State
	}
	return toDocumentResponse(doc, state), nil
}

// List devuelve cabeceras filtradas; cada factura lleva su estado derivado.
// Con caché configurada el resultado se sirve desde allí hasta la próxima emisión o eliminación.
func (s *DocumentService) List(ctx context.Context, q ListQuery) (*dto.DocumentListResponse, error) {
	filter, err := s.listFilter(q)
	if err != nil {
		return nil, err
	}

	key := listCacheKey(filter)
	var version int64
	cacheOK := false
	if s.cache != nil {
		var cached dto.DocumentListResponse
		v, hit, err := s.cache.Get(ctx, key, &cached)
		version, cacheOK = v, err == nil
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("caché de listados no disponible")
		} else if hit {
			return &cached, nil
		}
	}

	docs, err := s.docRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	states, err := s.statesFor(ctx, docs)
	if err != nil {
		return nil, err
	}

	out := &dto.DocumentListResponse{
		Documents: make([]dto.DocumentResponse, 0, len(docs)),
		Page:      dto.PageResponse{Limit: filter.Limit, Offset: filter.Offset},
	}
	for _, doc := range docs {
		var state entity.InvoiceState
		if d, ok := states[doc.ID]; ok {
			state = d.State
		}
		out.Documents = append(out.Documents, *toDocumentResponse(doc, state))
	}

	if cacheOK {
		if err := s.cache.Set(ctx, key, version, out); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("no se pudo guardar en caché")
		}
	}
	return out, nil
}

// PendingReport suma lo adeudado: facturas sin ningún recibo ni nota de crédito.
func (s *DocumentService) PendingReport(ctx context.Context, q PendingQuery) (*dto.PendingReportResponse, error) {
	if q.Month != "" && !finance.ValidMonth(q.Month) {
		return nil, domain.NewValidationError("month", "formato esperado YYYY-MM")
	}
	invoices, err := s.docRepo.List(ctx, repository.DocumentFilter{
		ClientName: strings.TrimSpace(q.ClientName),
		Type:       entity.DocumentTypeInvoice,
		Month:      q.Month,
		Limit:      pendingScanLimit,
	})
	if err != nil {
		return nil, err
	}
	related, err := s.docRepo.ListRelatedTo(ctx, documentIDs(invoices))
	if err != nil {
		return nil, err
	}
	total, pending := lifecycle.PendingAmount(invoices, related)

	out := &dto.PendingReportResponse{
		Count:    len(pending),
		Total:    total.Round(2),
		Invoices: make([]dto.DocumentResponse, 0, len(pending)),
	}
	for _, inv := range pending {
		out.Invoices = append(out.Invoices, *toDocumentResponse(inv, entity.InvoiceStatePending))
	}
	return out, nil
}

// Delete elimina un documento sin condiciones (solo admin, lo controla la capa HTTP).
// Los recibos o notas de crédito que apuntaban a una factura eliminada quedan colgando.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return domain.ErrNotFound
	}
	if err := s.docRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.observer.DocumentDeleted(ctx, id)
	return nil
}

func (s *DocumentService) listFilter(q ListQuery) (repository.DocumentFilter, error) {
	f := repository.DocumentFilter{
		ClientName: strings.TrimSpace(q.ClientName),
		Month:      q.Month,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if q.Type != "" {
		t, err := entity.ParseDocumentType(q.Type)
		if err != nil {
			return f, domain.NewValidationError("type", err.Error())
		}
		f.Type = t
	}
	if f.Month != "" && !finance.ValidMonth(f.Month) {
		return f, domain.NewValidationError("month", "formato esperado YYYY-MM")
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

// statesFor deriva el estado de las facturas de la página con una sola consulta de relacionados.
func (s *DocumentService) statesFor(ctx context.Context, docs []*entity.Document) (map[string]lifecycle.Derivation, error) {
	var invoices []*entity.Document
	for _, doc := range docs {
		if doc.Type == entity.DocumentTypeInvoice {
			invoices = append(invoices, doc)
		}
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	related, err := s.docRepo.ListRelatedTo(ctx, documentIDs(invoices))
	if err != nil {
		return nil, err
	}
	states := lifecycle.DeriveAll(invoices, related)
	for id, d := range states {
		if d.Ambiguous {
			s.log.Warn().Str("invoice_id", id).Int("credit_notes", d.CreditNotes).Msg("factura con más de una nota de crédito")
		}
	}
	return states, nil
}

func (s *DocumentService) derive(invoiceID string, related []*entity.Document) lifecycle.Derivation {
	d := lifecycle.Derive(invoiceID, related)
	if d.Ambiguous {
		s.log.Warn().Str("invoice_id", invoiceID).Int("credit_notes", d.CreditNotes).Msg("factura con más de una nota de crédito")
	}
	return d
}

func listCacheKey(f repository.DocumentFilter) string {
	return fmt.Sprintf("documents:list:%s:%s:%s:%d:%d",
		strings.ToLower(f.ClientName), f.Type, f.Month, f.Limit, f.Offset)
}

func documentIDs(docs []*entity.Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}
