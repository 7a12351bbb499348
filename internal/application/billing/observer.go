package billing

import (
	"context"

	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

// Observers reparte cada notificación a todos los observadores, en orden.
type Observers []DocumentObserver

var _ DocumentObserver = Observers(nil)

func (o Observers) DocumentIssued(ctx context.Context, doc *entity.Document) {
	for _, obs := range o {
		if obs != nil {
			obs.DocumentIssued(ctx, doc)
		}
	}
}

func (o Observers) DocumentDeleted(ctx context.Context, id string) {
	for _, obs := range o {
		if obs != nil {
			obs.DocumentDeleted(ctx, id)
		}
	}
}

// AuditLogObserver deja constancia en el log de cada emisión y eliminación.
type AuditLogObserver struct {
	log *logger.Logger
}

// NewAuditLogObserver construye el observador de auditoría.
func NewAuditLogObserver(log *logger.Logger) *AuditLogObserver {
	return &AuditLogObserver{log: log.WithComponent("audit")}
}

func (a *AuditLogObserver) DocumentIssued(_ context.Context, doc *entity.Document) {
	ev := a.log.Info().
		Str("document_id", doc.ID).
		Str("number", doc.Number).
		Str("type", string(doc.Type)).
		Str("client", doc.ClientName).
		Str("total", doc.Total.StringFixed(2))
	if doc.RelatedDocumentID != "" {
		ev = ev.Str("related_document_id", doc.RelatedDocumentID)
	}
	ev.Msg("documento emitido")
}

func (a *AuditLogObserver) DocumentDeleted(_ context.Context, id string) {
	a.log.Warn().Str("document_id", id).Msg("documento eliminado")
}
