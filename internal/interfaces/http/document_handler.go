package http

import (
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/comprobantes-api/internal/application/billing"
	"github.com/jhoicas/comprobantes-api/internal/application/dto"
	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

// handlerBase comparte el logger para respondError.
type handlerBase struct {
	log *logger.Logger
}

// ImportParser lee una planilla subida. Lo implementa *excel.Parser.
type ImportParser interface {
	ParseImport(r io.Reader) ([]billing.ImportDocument, []billing.ImportResult, error)
}

// DocumentHandler maneja las peticiones HTTP de comprobantes (protegido).
type DocumentHandler struct {
	handlerBase
	svc       *billing.DocumentService
	sequences *billing.SequenceGenerator
	importer  *billing.DocumentImporter
	parser    ImportParser
}

// NewDocumentHandler construye el handler. importer y parser pueden ser nil (sin importación HTTP).
func NewDocumentHandler(svc *billing.DocumentService, sequences *billing.SequenceGenerator, importer *billing.DocumentImporter, parser ImportParser, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		handlerBase: handlerBase{log: log.WithComponent("http")},
		svc:         svc,
		sequences:   sequences,
		importer:    importer,
		parser:      parser,
	}
}

// NextNumber asigna y devuelve el siguiente número del tipo.
// GET /api/documents/next-number?type=Invoice
func (h *DocumentHandler) NextNumber(c *fiber.Ctx) error {
	t, err := entity.ParseDocumentType(c.Query("type"))
	if err != nil {
		return h.respondError(c, domain.NewValidationError("type", "debe ser Invoice, Receipt o CreditNote"))
	}
	number, err := h.sequences.NextNumber(c.Context(), t)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.NextNumberResponse{Number: number})
}

// Issue emite un comprobante.
// POST /api/documents
func (h *DocumentHandler) Issue(c *fiber.Ctx) error {
	var in dto.IssueDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	// Recibos y notas copian las líneas de la factura; las recibidas no se validan.
	if in.Type != string(entity.DocumentTypeInvoice) {
		in.Items = nil
	}
	if err := validateStruct(&in); err != nil {
		return h.respondError(c, err)
	}
	cmd, err := issueCommand(in)
	if err != nil {
		return h.respondError(c, err)
	}
	doc, err := h.svc.Issue(c.Context(), cmd)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// List GET /api/documents?client=&type=&month=&limit=&offset=
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return h.respondError(c, domain.NewValidationError("limit", "limit y offset deben ser enteros"))
	}
	if err := validateStruct(&page); err != nil {
		return h.respondError(c, err)
	}
	list, err := h.svc.List(c.Context(), billing.ListQuery{
		ClientName: c.Query("client"),
		Type:       c.Query("type"),
		Month:      c.Query("month"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(list)
}

// Pending GET /api/documents/pending?client=&month=
func (h *DocumentHandler) Pending(c *fiber.Ctx) error {
	report, err := h.svc.PendingReport(c.Context(), billing.PendingQuery{
		ClientName: c.Query("client"),
		Month:      c.Query("month"),
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(report)
}

// GetByID GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	doc, err := h.svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(doc)
}

// Delete DELETE /api/documents/:id (solo admin)
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.svc.Delete(c.Context(), id); err != nil {
		return h.respondError(c, err)
	}
	h.log.Info().Str("document_id", id).Str("user_id", GetUserID(c)).Msg("documento eliminado por usuario")
	return c.SendStatus(fiber.StatusNoContent)
}

// Import carga una planilla .xlsx (campo multipart "file"). Sin confirm=true solo valida.
// POST /api/documents/import?confirm=true (solo admin)
func (h *DocumentHandler) Import(c *fiber.Ctx) error {
	if h.importer == nil || h.parser == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "IMPORT_DISABLED", Message: "importación no habilitada"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return h.respondError(c, domain.NewValidationError("file", "archivo .xlsx requerido"))
	}
	f, err := fh.Open()
	if err != nil {
		return invalidBody(c)
	}
	defer f.Close()

	docs, failed, err := h.parser.ParseImport(f)
	if err != nil {
		return h.respondError(c, domain.NewValidationError("file", err.Error()))
	}
	summary, err := h.importer.Import(c.Context(), docs, c.QueryBool("confirm"))
	if err != nil {
		return h.respondError(c, err)
	}
	summary.AddFailures(failed)
	return c.JSON(summary)
}

func issueCommand(in dto.IssueDocumentRequest) (billing.IssueCommand, error) {
	t, err := entity.ParseDocumentType(in.Type)
	if err != nil {
		return billing.IssueCommand{}, domain.NewValidationError("type", err.Error())
	}
	cmd := billing.IssueCommand{
		Type:              t,
		ClientName:        in.ClientName,
		Month:             in.Month,
		RelatedDocumentID: strings.TrimSpace(in.RelatedDocumentID),
		DueDays:           in.DueDays,
	}
	if in.PaymentDate != "" {
		paid, err := time.Parse("2006-01-02", in.PaymentDate)
		if err != nil {
			return cmd, domain.NewValidationError("payment_date", "formato esperado YYYY-MM-DD")
		}
		cmd.PaymentDate = &paid
	}
	// Recibos y notas de crédito copian las líneas de la factura.
	if t == entity.DocumentTypeInvoice {
		cmd.Items = make([]entity.LineItem, 0, len(in.Items))
		for _, it := range in.Items {
			cmd.Items = append(cmd.Items, entity.LineItem{
				Description:  it.Description,
				Month:        it.Month,
				Quantity:     it.Quantity,
				UnitPrice:    it.UnitPrice,
				UnitDiscount: it.UnitDiscount,
			})
		}
	}
	return cmd, nil
}
