package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/comprobantes-api/internal/application/billing"
	"github.com/jhoicas/comprobantes-api/internal/application/dto"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/excel"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/comprobantes-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/comprobantes-api/pkg/jwt"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

type testAPI struct {
	t     *testing.T
	app   *fiber.App
	store *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logger.Nop()
	store := memory.New(1000)
	seq := billing.NewSequenceGenerator(store, log)
	svc := billing.NewDocumentService(store, seq, store.Documents(), store.Clients(), nil, nil, billing.DocumentServiceConfig{}, log)
	clientUC := billing.NewClientUseCase(store.Clients())
	_, err := clientUC.Create(context.Background(), dto.CreateClientRequest{Name: "Acme"})
	require.NoError(t, err)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Documents: svc,
		Sequences: seq,
		Importer:  billing.NewDocumentImporter(svc, seq, store.Documents(), nil, log),
		Parser:    excel.NewParser(nil),
		ClientUC:  clientUC,
		JWTSecret: testJWTSecret,
		Log:       log,
	})
	return &testAPI{t: t, app: app, store: store}
}

func (a *testAPI) do(method, path, role string, body any) (*http.Response, []byte) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return a.send(req, role)
}

func (a *testAPI) send(req *http.Request, role string) (*http.Response, []byte) {
	a.t.Helper()
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(a.t, role))
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, raw
}

func (a *testAPI) issueInvoice() dto.DocumentResponse {
	a.t.Helper()
	resp, raw := a.do(http.MethodPost, "/api/documents", pkgjwt.RoleFacturador, map[string]any{
		"type":        "Invoice",
		"client_name": "Acme",
		"items": []map[string]any{
			{"description": "Hosting", "quantity": 2, "unit_price": "100", "unit_discount": "7.5"},
		},
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode, string(raw))
	var doc dto.DocumentResponse
	require.NoError(a.t, json.Unmarshal(raw, &doc))
	return doc
}

func decodeError(t *testing.T, raw []byte) dto.ErrorResponse {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &e), string(raw))
	return e
}

func TestDocuments_FlujoFacturaReciboNota(t *testing.T) {
	api := newTestAPI(t)

	inv := api.issueInvoice()
	assert.Equal(t, "FC1001", inv.Number)
	assert.Equal(t, "Pending", inv.State)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("185")))

	resp, raw := api.do(http.MethodPost, "/api/documents", pkgjwt.RoleFacturador, map[string]any{
		"type": "Receipt", "related_document_id": inv.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var rc dto.DocumentResponse
	require.NoError(t, json.Unmarshal(raw, &rc))
	assert.Equal(t, "RC1001", rc.Number)
	assert.True(t, rc.Total.Equal(decimal.RequireFromString("-185")))
	assert.True(t, rc.Display.Total.Equal(decimal.RequireFromString("185")))

	resp, raw = api.do(http.MethodPost, "/api/documents", pkgjwt.RoleFacturador, map[string]any{
		"type": "CreditNote", "related_document_id": inv.ID,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	e := decodeError(t, raw)
	assert.Equal(t, "LIFECYCLE_VIOLATION", e.Code)
	assert.Equal(t, "INVOICE_ALREADY_SETTLED", e.Reason)

	resp, raw = api.do(http.MethodGet, "/api/documents/"+inv.ID, pkgjwt.RoleLector, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got dto.DocumentResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Settled", got.State)
	require.Len(t, got.Items, 1)

	resp, raw = api.do(http.MethodGet, "/api/documents/pending", pkgjwt.RoleLector, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report dto.PendingReportResponse
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Zero(t, report.Count)

	resp, raw = api.do(http.MethodGet, "/api/documents?type=Invoice", pkgjwt.RoleLector, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list dto.DocumentListResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Documents, 1)
	assert.Equal(t, "Settled", list.Documents[0].State)
}

func TestDocuments_Validacion400(t *testing.T) {
	api := newTestAPI(t)

	resp, raw := api.do(http.MethodPost, "/api/documents", pkgjwt.RoleAdmin, map[string]any{"type": "Boleta"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeError(t, raw)
	assert.Equal(t, "VALIDATION", e.Code)
	assert.Equal(t, "type", e.Field)

	resp, raw = api.do(http.MethodPost, "/api/documents", pkgjwt.RoleAdmin, map[string]any{
		"type": "Invoice", "client_name": "Acme",
		"items": []map[string]any{{"description": "", "quantity": 1, "unit_price": "10"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "items[0].description", decodeError(t, raw).Field)

	resp, raw = api.do(http.MethodPost, "/api/documents", pkgjwt.RoleAdmin, map[string]any{
		"type": "Invoice", "client_name": "Nadie",
		"items": []map[string]any{{"description": "x", "quantity": 1, "unit_price": "10"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "client_name", decodeError(t, raw).Field)

	req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewReader([]byte("{no json")))
	req.Header.Set("Content-Type", "application/json")
	resp, raw = api.send(req, pkgjwt.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BODY", decodeError(t, raw).Code)
}

func TestDocuments_LectorNoEmite(t *testing.T) {
	api := newTestAPI(t)
	resp, _ := api.do(http.MethodPost, "/api/documents", pkgjwt.RoleLector, map[string]any{"type": "Invoice"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = api.do(http.MethodGet, "/api/documents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDocuments_NextNumber(t *testing.T) {
	api := newTestAPI(t)

	resp, raw := api.do(http.MethodGet, "/api/documents/next-number?type=CreditNote", pkgjwt.RoleFacturador, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.NextNumberResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "NC1001", out.Number)

	resp, _ = api.do(http.MethodGet, "/api/documents/next-number?type=NC", pkgjwt.RoleFacturador, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(http.MethodGet, "/api/documents/next-number?type=Invoice", pkgjwt.RoleLector, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDocuments_DeleteSoloAdmin(t *testing.T) {
	api := newTestAPI(t)
	inv := api.issueInvoice()

	resp, _ := api.do(http.MethodDelete, "/api/documents/"+inv.ID, pkgjwt.RoleFacturador, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = api.do(http.MethodDelete, "/api/documents/"+inv.ID, pkgjwt.RoleAdmin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, raw := api.do(http.MethodGet, "/api/documents/"+inv.ID, pkgjwt.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeError(t, raw).Code)
}

func TestDocuments_AlmacenNoDisponible503(t *testing.T) {
	api := newTestAPI(t)
	api.store.SetUnavailable(true)

	resp, raw := api.do(http.MethodGet, "/api/documents/next-number?type=Invoice", pkgjwt.RoleAdmin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "STORE_UNAVAILABLE", decodeError(t, raw).Code)
}

func TestClients_CrearYListar(t *testing.T) {
	api := newTestAPI(t)

	resp, raw := api.do(http.MethodPost, "/api/clients", pkgjwt.RoleFacturador, map[string]any{"name": "Beta", "email": "b@beta.test"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = api.do(http.MethodPost, "/api/clients", pkgjwt.RoleFacturador, map[string]any{"name": "ACME"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE", decodeError(t, raw).Code)

	resp, raw = api.do(http.MethodPost, "/api/clients", pkgjwt.RoleFacturador, map[string]any{"name": "Gamma", "email": "no-es-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email", decodeError(t, raw).Field)

	resp, raw = api.do(http.MethodGet, "/api/clients", pkgjwt.RoleLector, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []dto.ClientResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Acme", list[0].Name)
}

func TestDocuments_ImportarPlanilla(t *testing.T) {
	api := newTestAPI(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Numero", "Tipo", "Cliente", "Fecha", "Mes", "Descripcion", "Cantidad", "Precio"},
		{"FC5001", "FC", "Acme", "2024-01-10", "2024-01", "Servicio", 1, "100"},
		{"FC5002", "Boleta", "Acme", "2024-01-10", "2024-01", "Servicio", 1, "100"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	upload := func(path, role string) (*http.Response, []byte) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("file", "comprobantes.xlsx")
		require.NoError(t, err)
		_, err = part.Write(xlsx.Bytes())
		require.NoError(t, err)
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, path, &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		return api.send(req, role)
	}

	resp, _ := upload("/api/documents/import", pkgjwt.RoleFacturador)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw := upload("/api/documents/import?confirm=true", pkgjwt.RoleAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var summary billing.ImportSummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.Issued)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "FC5002", summary.Results[0].Number)
	assert.Equal(t, "VALIDATION", summary.Results[0].Kind)

	resp, raw = api.do(http.MethodGet, "/api/documents/next-number?type=Invoice", pkgjwt.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var next dto.NextNumberResponse
	require.NoError(t, json.Unmarshal(raw, &next))
	assert.Equal(t, "FC5002", next.Number, "la secuencia sigue al mayor número importado")
}

func TestDocuments_ReciboIgnoraLineasRecibidas(t *testing.T) {
	api := newTestAPI(t)
	inv := api.issueInvoice()

	resp, raw := api.do(http.MethodPost, "/api/documents", pkgjwt.RoleFacturador, map[string]any{
		"type":                "Receipt",
		"related_document_id": inv.ID,
		"items":               []map[string]any{{"description": "", "quantity": 0, "unit_price": "1"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var rc dto.DocumentResponse
	require.NoError(t, json.Unmarshal(raw, &rc))
	require.Len(t, rc.Items, 1)
	assert.Equal(t, "Hosting", rc.Items[0].Description, "las líneas vienen de la factura")
}

func TestDocuments_LineasFueraDeLoAlmacenable_400(t *testing.T) {
	api := newTestAPI(t)
	cases := []struct {
		name  string
		item  map[string]any
		field string
	}{
		{"precio con 5 decimales", map[string]any{"description": "x", "quantity": 1, "unit_price": "0.00499"}, "items[0].unit_price"},
		{"cantidad mayor a int32", map[string]any{"description": "x", "quantity": 3000000000, "unit_price": "1"}, "items[0].quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := api.do(http.MethodPost, "/api/documents", pkgjwt.RoleFacturador, map[string]any{
				"type": "Invoice", "client_name": "Acme", "items": []map[string]any{tc.item},
			})
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))
			e := decodeError(t, raw)
			assert.Equal(t, "VALIDATION", e.Code)
			assert.Equal(t, tc.field, e.Field)
		})
	}
}
