package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/comprobantes-api/internal/application/billing"
	"github.com/jhoicas/comprobantes-api/pkg/jwt"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Documents *billing.DocumentService
	Sequences *billing.SequenceGenerator
	Importer  *billing.DocumentImporter // opcional
	Parser    ImportParser              // opcional
	ClientUC  *billing.ClientUseCase
	JWTSecret string
	Log       *logger.Logger
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	issuers := RequireRole(jwt.RoleAdmin, jwt.RoleFacturador)
	readers := RequireRole(jwt.RoleAdmin, jwt.RoleFacturador, jwt.RoleLector)
	admins := RequireRole(jwt.RoleAdmin)

	// Documents
	documents := api.Group("/documents")
	documentHandler := NewDocumentHandler(deps.Documents, deps.Sequences, deps.Importer, deps.Parser, deps.Log)
	// Rutas fijas antes de /:id
	documents.Get("/next-number", issuers, documentHandler.NextNumber)
	documents.Get("/pending", readers, documentHandler.Pending)
	documents.Post("/import", admins, documentHandler.Import)
	documents.Post("/", issuers, documentHandler.Issue)
	documents.Get("/", readers, documentHandler.List)
	documents.Get("/:id", readers, documentHandler.GetByID)
	documents.Delete("/:id", admins, documentHandler.Delete)

	// Clients
	clients := api.Group("/clients")
	clientHandler := NewClientHandler(deps.ClientUC, deps.Log)
	clients.Post("/", issuers, clientHandler.Create)
	clients.Get("/", readers, clientHandler.List)
}
