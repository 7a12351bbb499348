package billing

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

// ImportLockKey clave del lock distribuido que impide dos importaciones simultáneas.
const ImportLockKey = "lock:documents-import"

// Estados por fila del resultado de importación.
const (
	ImportStatusIssued = "issued"
	ImportStatusValid  = "valid" // simulación: se emitiría
	ImportStatusFailed = "failed"
)

// ImportDocument un documento leído de la planilla, con su número ya asignado.
// RelatedNumber es el número de la factura (FC...) sobre la que actúa un RC/NC.
type ImportDocument struct {
	Row           int
	Number        string
	Type          entity.DocumentType
	ClientName    string
	IssuedAt      time.Time
	Month         string
	Items         []entity.LineItem
	RelatedNumber string
	DueDays       int
	PaymentDate   *time.Time
}

// ImportResult resultado de una fila (o grupo de filas con el mismo número).
type ImportResult struct {
	Row        int    `json:"row"`
	Number     string `json:"number,omitempty"`
	Status     string `json:"status"`
	DocumentID string `json:"document_id,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ImportLocker obtiene un lock exclusivo; release lo libera.
type ImportLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// ImportSummary totales de la corrida.
type ImportSummary struct {
	Issued  int            `json:"issued"`
	Valid   int            `json:"valid"`
	Failed  int            `json:"failed"`
	Results []ImportResult `json:"results"`
}

// AddFailures antepone resultados fallidos producidos antes de importar (lectura de la planilla).
func (s *ImportSummary) AddFailures(failed []ImportResult) {
	if len(failed) == 0 {
		return
	}
	s.Failed += len(failed)
	s.Results = append(append(make([]ImportResult, 0, len(failed)+len(s.Results)), failed...), s.Results...)
}

// DocumentImporter carga documentos con número explícito (migración desde planillas).
// Sin confirmación solo valida; con confirmación emite por el mismo camino que la API.
type DocumentImporter struct {
	svc       *DocumentService
	sequences *SequenceGenerator
	docRepo   repository.DocumentRepository
	locker    ImportLocker
	lockTTL   time.Duration
	log       *logger.Logger
}

// NewDocumentImporter construye el importador. locker puede ser nil (sin Redis).
func NewDocumentImporter(svc *DocumentService, sequences *SequenceGenerator, docRepo repository.DocumentRepository, locker ImportLocker, log *logger.Logger) *DocumentImporter {
	return &DocumentImporter{
		svc:       svc,
		sequences: sequences,
		docRepo:   docRepo,
		locker:    locker,
		lockTTL:   10 * time.Minute,
		log:       log.WithComponent("import"),
	}
}

// Import procesa los documentos: primero facturas, luego recibos y notas de crédito,
// para que las referencias por número resuelvan. Un fallo en un documento no detiene el resto.
func (im *DocumentImporter) Import(ctx context.Context, docs []ImportDocument, confirm bool) (*ImportSummary, error) {
	if confirm && im.locker != nil {
		release, err := im.locker.Obtain(ctx, ImportLockKey, im.lockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	ordered := make([]ImportDocument, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return typeRank(ordered[i].Type) < typeRank(ordered[j].Type)
	})

	summary := &ImportSummary{Results: make([]ImportResult, 0, len(ordered))}
	run := newImportRun()
	maxNumber := make(map[entity.DocumentType]int64)

	for _, doc := range ordered {
		res := ImportResult{Row: doc.Row, Number: doc.Number}
		id, err := im.importOne(ctx, doc, confirm, run)
		switch {
		case err != nil:
			res.Status = ImportStatusFailed
			res.Kind = domain.Kind(err)
			res.Message = err.Error()
			summary.Failed++
			im.log.Warn().Int("row", doc.Row).Str("number", doc.Number).Str("kind", res.Kind).Msg(res.Message)
		case confirm:
			res.Status = ImportStatusIssued
			res.DocumentID = id
			summary.Issued++
		default:
			res.Status = ImportStatusValid
			summary.Valid++
		}
		if err == nil {
			if n, ok := doc.Type.ParseNumber(doc.Number); ok && n > maxNumber[doc.Type] {
				maxNumber[doc.Type] = n
			}
		}
		summary.Results = append(summary.Results, res)
	}

	if confirm {
		for _, t := range entity.DocumentTypes {
			if n, ok := maxNumber[t]; ok {
				if err := im.sequences.Advance(ctx, t, n); err != nil {
					return summary, err
				}
			}
		}
	}
	im.log.Info().
		Bool("confirm", confirm).
		Int("issued", summary.Issued).
		Int("valid", summary.Valid).
		Int("failed", summary.Failed).
		Msg("importación finalizada")
	return summary, nil
}

func (im *DocumentImporter) importOne(ctx context.Context, doc ImportDocument, confirm bool, run *importRun) (string, error) {
	number := strings.TrimSpace(doc.Number)
	if number == "" {
		return "", domain.NewValidationError("numero", "requerido")
	}
	existing, err := im.docRepo.GetByNumber(ctx, number)
	if err != nil {
		return "", err
	}
	if existing != nil || run.numbers[number] {
		return "", domain.ErrDuplicateNumber
	}

	issuedAt := doc.IssuedAt
	cmd := IssueCommand{
		Type:           doc.Type,
		ClientName:     doc.ClientName,
		Month:          doc.Month,
		Items:          doc.Items,
		DueDays:        doc.DueDays,
		PaymentDate:    doc.PaymentDate,
		IssuedAt:       &issuedAt,
		ExplicitNumber: number,
	}

	if doc.Type.ActsOnInvoice() {
		ref := strings.TrimSpace(doc.RelatedNumber)
		if ref == "" {
			return "", domain.NewValidationError("factura_relacionada", "requerida para recibos y notas de crédito")
		}
		inv, err := im.docRepo.GetByNumber(ctx, ref)
		if err != nil {
			return "", err
		}
		switch {
		case inv != nil:
			cmd.RelatedDocumentID = inv.ID
		case run.invoices[ref] != nil:
			// La factura se emitiría en esta misma corrida (solo ocurre en simulación).
			cmd.RelatedDocumentID = run.invoices[ref].ID
		default:
			return "", domain.NewValidationError("factura_relacionada", "no existe la factura "+ref)
		}
	}

	if !confirm {
		prepared, err := im.svc.prepareWith(ctx, cmd, run.lookup(im.svc))
		if err != nil {
			return "", err
		}
		prepared.Number = number
		run.add(prepared)
		return "", nil
	}
	resp, err := im.svc.Issue(ctx, cmd)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// importRun lo que una simulación habría emitido hasta ahora. Con esto el guard de un
// RC/NC ve las facturas y documentos previos de la misma planilla, igual que en la
// corrida confirmada.
type importRun struct {
	numbers  map[string]bool
	invoices map[string]*entity.Document   // número → factura
	byID     map[string]*entity.Document   // id → factura
	related  map[string][]*entity.Document // id factura → RC/NC
}

func newImportRun() *importRun {
	return &importRun{
		numbers:  make(map[string]bool),
		invoices: make(map[string]*entity.Document),
		byID:     make(map[string]*entity.Document),
		related:  make(map[string][]*entity.Document),
	}
}

func (r *importRun) add(doc *entity.Document) {
	r.numbers[doc.Number] = true
	if doc.Type == entity.DocumentTypeInvoice {
		r.invoices[doc.Number] = doc
		r.byID[doc.ID] = doc
	}
	if doc.HasRelated() {
		r.related[doc.RelatedDocumentID] = append(r.related[doc.RelatedDocumentID], doc)
	}
}

// lookup busca primero entre las facturas simuladas y luego en el almacén, sumando
// los RC/NC simulados a los ya guardados.
func (r *importRun) lookup(svc *DocumentService) invoiceLookup {
	return func(ctx context.Context, id string) (*entity.Document, []*entity.Document, error) {
		if inv, ok := r.byID[id]; ok {
			return inv, r.related[id], nil
		}
		inv, related, err := svc.storedInvoice(ctx, id)
		if err != nil || inv == nil {
			return inv, related, err
		}
		all := make([]*entity.Document, 0, len(related)+len(r.related[id]))
		all = append(append(all, related...), r.related[id]...)
		return inv, all, nil
	}
}

func typeRank(t entity.DocumentType) int {
	if t == entity.DocumentTypeInvoice {
		return 0
	}
	return 1
}

// ErrImportLocked otra importación tiene el lock.
var ErrImportLocked = errors.New("hay otra importación en curso")
