package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/comprobantes-api/internal/application/dto"
	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/finance"
	"github.com/jhoicas/comprobantes-api/internal/domain/lifecycle"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

const maxExplicitNumberLen = 32

// IssueCommand datos para emitir un comprobante.
// ExplicitNumber e IssuedAt solo los usa la importación confirmada desde Excel;
// la API siempre asigna número desde la secuencia y emite con la hora actual.
type IssueCommand struct {
	Type              entity.DocumentType
	ClientName        string
	Month             string
	Items             []entity.LineItem
	RelatedDocumentID string
	DueDays           int
	PaymentDate       *time.Time
	IssuedAt          *time.Time
	ExplicitNumber    string
}

// DocumentServiceConfig parámetros de negocio configurables.
type DocumentServiceConfig struct {
	DefaultDueDays int
}

// DocumentService orquesta la emisión: valida, aplica las reglas del ciclo de vida,
// calcula montos, asigna número y persiste cabecera + líneas en una sola transacción.
type DocumentService struct {
	txRunner   DocumentTxRunner
	sequences  *SequenceGenerator
	docRepo    repository.DocumentRepository
	clientRepo repository.ClientRepository
	observer   DocumentObserver
	cache      ListCache
	cfg        DocumentServiceConfig
	log        *logger.Logger
	now        func() time.Time
}

// NewDocumentService construye el servicio. observer y cache pueden ser nil.
func NewDocumentService(
	txRunner DocumentTxRunner,
	sequences *SequenceGenerator,
	docRepo repository.DocumentRepository,
	clientRepo repository.ClientRepository,
	observer DocumentObserver,
	cache ListCache,
	cfg DocumentServiceConfig,
	log *logger.Logger,
) *DocumentService {
	if cfg.DefaultDueDays == 0 {
		cfg.DefaultDueDays = finance.DefaultDueDays
	}
	if observer == nil {
		observer = Observers(nil)
	}
	return &DocumentService{
		txRunner:   txRunner,
		sequences:  sequences,
		docRepo:    docRepo,
		clientRepo: clientRepo,
		observer:   observer,
		cache:      cache,
		cfg:        cfg,
		log:        log.WithComponent("documents"),
		now:        time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *DocumentService) WithClock(now func() time.Time) *DocumentService {
	s.now = now
	return s
}

// Issue emite un comprobante.
//
// Pasos: 1) validar forma; 2) para RC/NC cargar la factura y aplicar el guard;
// 3) calcular montos con la convención de signo; 4) asignar número (transacción propia,
// salvo número explícito); 5) persistir re-validando el guard con la factura bloqueada.
// Un fallo en 1–4 no escribe documentos. Si 5 falla, el número asignado en 4 se pierde.
func (s *DocumentService) Issue(ctx context.Context, cmd IssueCommand) (*dto.DocumentResponse, error) {
	doc, err := s.prepare(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if cmd.ExplicitNumber != "" {
		doc.Number = strings.TrimSpace(cmd.ExplicitNumber)
	} else {
		number, err := s.sequences.NextNumber(ctx, doc.Type)
		if err != nil {
			return nil, err
		}
		doc.Number = number
	}

	var state entity.InvoiceState
	if doc.Type == entity.DocumentTypeInvoice {
		state = entity.InvoiceStatePending
	}

	err = s.txRunner.RunDocuments(ctx, func(_ repository.SequenceRepository, docRepo repository.DocumentRepository) error {
		if doc.HasRelated() {
			// Bloquear la factura cierra la carrera entre dos RC/NC concurrentes.
			inv, err := docRepo.GetByIDForUpdate(ctx, doc.RelatedDocumentID)
			if err != nil {
				return err
			}
			if inv == nil {
				return domain.NewValidationError("related_document_id", "la factura relacionada ya no existe")
			}
			related, err := docRepo.ListRelated(ctx, inv.ID)
			if err != nil {
				return err
			}
			if err := lifecycle.Guard(doc.Type, lifecycle.Derive(inv.ID, related)); err != nil {
				return err
			}
		}
		return docRepo.Create(ctx, doc)
	})
	if err != nil {
		ev := s.log.Warn()
		if !isBusinessError(err) {
			ev = s.log.Error()
		}
		ev.Err(err).
			Str("kind", domain.Kind(err)).
			Str("type", string(doc.Type)).
			Str("number", doc.Number).
			Msg("emisión rechazada")
		return nil, err
	}

	s.observer.DocumentIssued(ctx, doc)
	return toDocumentResponse(doc, state), nil
}

// invoiceLookup resuelve la factura relacionada y los documentos que ya la referencian.
// Devuelve nil si la factura no existe.
type invoiceLookup func(ctx context.Context, id string) (*entity.Document, []*entity.Document, error)

// prepare valida la entrada y arma el documento completo, sin número.
func (s *DocumentService) prepare(ctx context.Context, cmd IssueCommand) (*entity.Document, error) {
	return s.prepareWith(ctx, cmd, s.storedInvoice)
}

func (s *DocumentService) storedInvoice(ctx context.Context, id string) (*entity.Document, []*entity.Document, error) {
	inv, err := s.docRepo.GetByID(ctx, id)
	if err != nil || inv == nil {
		return nil, nil, err
	}
	related, err := s.docRepo.ListRelated(ctx, inv.ID)
	if err != nil {
		return nil, nil, err
	}
	return inv, related, nil
}

// prepareWith es prepare con otra fuente para la factura relacionada (simulación de importación).
func (s *DocumentService) prepareWith(ctx context.Context, cmd IssueCommand, lookup invoiceLookup) (*entity.Document, error) {
	if cmd.Type.Prefix() == "" {
		return nil, domain.NewValidationError("type", "tipo de documento desconocido")
	}
	if cmd.ExplicitNumber != "" {
		n := strings.TrimSpace(cmd.ExplicitNumber)
		if n == "" || len(n) > maxExplicitNumberLen {
			return nil, domain.NewValidationError("number", "número explícito inválido")
		}
		// Un número con otro prefijo no avanza su secuencia y chocaría con una emisión futura.
		if _, ok := cmd.Type.ParseNumber(n); !ok {
			return nil, domain.NewValidationError("number", "debe ser "+cmd.Type.Prefix()+" seguido del consecutivo")
		}
	}
	if cmd.Month != "" && !finance.ValidMonth(cmd.Month) {
		return nil, domain.NewValidationError("month", "formato esperado YYYY-MM")
	}

	issuedAt := s.now()
	if cmd.IssuedAt != nil {
		issuedAt = *cmd.IssuedAt
	}
	doc := &entity.Document{
		ID:        uuid.New().String(),
		Type:      cmd.Type,
		IssuedAt:  issuedAt,
		Month:     cmd.Month,
		CreatedAt: s.now(),
	}

	var err error
	if cmd.Type == entity.DocumentTypeInvoice {
		err = s.prepareInvoice(ctx, cmd, doc)
	} else {
		err = s.prepareSettlement(ctx, cmd, doc, lookup)
	}
	if err != nil {
		return nil, err
	}
	if doc.Month == "" {
		doc.Month = finance.MonthOf(issuedAt)
	}

	totals := finance.StoredTotals(doc.Type, doc.HasRelated(), doc.Items)
	doc.Subtotal, doc.Discounts, doc.Total = totals.Subtotal, totals.Discounts, totals.Total
	return doc, nil
}

func (s *DocumentService) prepareInvoice(ctx context.Context, cmd IssueCommand, doc *entity.Document) error {
	if cmd.RelatedDocumentID != "" {
		return domain.NewValidationError("related_document_id", "una factura no referencia otro documento")
	}
	if cmd.PaymentDate != nil {
		return domain.NewValidationError("payment_date", "solo aplica a recibos")
	}
	if err := finance.ValidateItems(cmd.Items); err != nil {
		return err
	}
	name := strings.TrimSpace(cmd.ClientName)
	if name == "" {
		return domain.NewValidationError("client_name", "requerido")
	}
	client, err := s.clientRepo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if client == nil {
		return domain.NewValidationError("client_name", "cliente desconocido")
	}

	days := cmd.DueDays
	if days == 0 {
		days = s.cfg.DefaultDueDays
	}
	if !finance.ValidDueDays(days) {
		return domain.NewValidationError("due_days", "debe ser 5, 6 o 7")
	}
	due := finance.DueDate(doc.IssuedAt, days)

	doc.ClientName = client.Name
	doc.DueAt = &due
	doc.Items = make([]entity.LineItem, len(cmd.Items))
	for i, it := range cmd.Items {
		it.Position = i
		it.Description = strings.TrimSpace(it.Description)
		doc.Items[i] = it
	}
	return nil
}

// prepareSettlement arma un Recibo o Nota de Crédito a partir de su factura.
func (s *DocumentService) prepareSettlement(ctx context.Context, cmd IssueCommand, doc *entity.Document, lookup invoiceLookup) error {
	if cmd.RelatedDocumentID == "" {
		return domain.NewValidationError("related_document_id", "requerido para recibos y notas de crédito")
	}
	if _, err := uuid.Parse(cmd.RelatedDocumentID); err != nil {
		return domain.NewValidationError("related_document_id", "identificador inválido")
	}
	if cmd.DueDays != 0 {
		return domain.NewValidationError("due_days", "solo aplica a facturas")
	}
	if cmd.Type == entity.DocumentTypeCreditNote && cmd.PaymentDate != nil {
		return domain.NewValidationError("payment_date", "solo aplica a recibos")
	}

	inv, related, err := lookup(ctx, cmd.RelatedDocumentID)
	if err != nil {
		return err
	}
	if inv == nil {
		return domain.NewValidationError("related_document_id", "la factura relacionada no existe")
	}
	if inv.Type != entity.DocumentTypeInvoice {
		return domain.NewValidationError("related_document_id", "el documento relacionado debe ser una factura")
	}
	if name := strings.TrimSpace(cmd.ClientName); name != "" && !strings.EqualFold(name, inv.ClientName) {
		return domain.NewValidationError("client_name", "no coincide con el cliente de la factura")
	}

	if err := lifecycle.Guard(cmd.Type, s.derive(inv.ID, related)); err != nil {
		return err
	}

	doc.RelatedDocumentID = inv.ID
	doc.ClientName = inv.ClientName
	doc.Items = finance.CopyItems(inv.Items)
	if doc.Month == "" {
		doc.Month = inv.Month
	}
	if cmd.Type == entity.DocumentTypeReceipt {
		paid := doc.IssuedAt
		if cmd.PaymentDate != nil {
			paid = *cmd.PaymentDate
		}
		doc.PaidAt = &paid
	}
	return nil
}

// isBusinessError errores esperables que no indican fallo de infraestructura.
func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrLifecycleViolation) ||
		errors.Is(err, domain.ErrDuplicateNumber)
}

func toDocumentResponse(doc *entity.Document, state entity.InvoiceState) *dto.DocumentResponse {
	resp := &dto.DocumentResponse{
		ID:                doc.ID,
		Number:            doc.Number,
		Type:              string(doc.Type),
		ClientName:        doc.ClientName,
		IssuedAt:          doc.IssuedAt,
		DueAt:             doc.DueAt,
		PaidAt:            doc.PaidAt,
		Month:             doc.Month,
		Subtotal:          doc.Subtotal,
		Discounts:         doc.Discounts,
		Total:             doc.Total,
		RelatedDocumentID: doc.RelatedDocumentID,
		State:             string(state),
	}
	var display finance.Totals
	if len(doc.Items) > 0 {
		display = finance.DisplayTotals(doc.Items)
		resp.Items = make([]dto.LineItemResponse, 0, len(doc.Items))
		for _, it := range doc.Items {
			resp.Items = append(resp.Items, dto.LineItemResponse{
				Description:  it.Description,
				Month:        it.Month,
				Quantity:     it.Quantity,
				UnitPrice:    it.UnitPrice,
				UnitDiscount: it.UnitDiscount,
				LineTotal:    finance.LineTotal(it),
			})
		}
	} else {
		// Listados sin líneas: la magnitud guardada es la misma que la recalculada.
		display = finance.Totals{Subtotal: doc.Subtotal, Discounts: doc.Discounts, Total: doc.Total}.Abs()
	}
	resp.Display = dto.TotalsResponse{Subtotal: display.Subtotal, Discounts: display.Discounts, Total: display.Total}
	return resp
}
