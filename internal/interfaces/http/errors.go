package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/comprobantes-api/internal/application/billing"
	"github.com/jhoicas/comprobantes-api/internal/application/dto"
	"github.com/jhoicas/comprobantes-api/internal/domain"
)

var statusByCode = map[string]int{
	domain.CodeValidation:       fiber.StatusBadRequest,
	domain.CodeLifecycle:        fiber.StatusUnprocessableEntity,
	domain.CodeDuplicateNumber:  fiber.StatusConflict,
	domain.CodeDuplicate:        fiber.StatusConflict,
	domain.CodeStoreUnavailable: fiber.StatusServiceUnavailable,
	domain.CodeNotFound:         fiber.StatusNotFound,
	domain.CodeUnauthorized:     fiber.StatusUnauthorized,
	domain.CodeForbidden:        fiber.StatusForbidden,
}

// respondError traduce un error de dominio a status + ErrorResponse.
// Los errores internos no exponen el detalle; se registran en el log.
func (h *handlerBase) respondError(c *fiber.Ctx, err error) error {
	code := domain.Kind(err)
	body := dto.ErrorResponse{Code: code, Message: err.Error()}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Message = ve.Reason
	}
	var le *domain.LifecycleError
	if errors.As(err, &le) {
		body.Reason = le.Code
		body.Message = le.Message
	}
	if errors.Is(err, billing.ErrImportLocked) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IMPORT_LOCKED", Message: err.Error()})
	}

	status, ok := statusByCode[code]
	if !ok {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: domain.CodeInternal, Message: "error interno"})
	}
	if status == fiber.StatusServiceUnavailable {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("almacenamiento no disponible")
		body.Message = domain.ErrStoreUnavailable.Error()
	}
	return c.Status(status).JSON(body)
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
