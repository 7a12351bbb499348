package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/finance"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestIssue_FacturaPendiente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.invoice(t)
	assert.Equal(t, "FC1001", inv.Number)
	assert.Equal(t, string(entity.InvoiceStatePending), inv.State)
	assert.True(t, inv.Total.Equal(dec("185")))
	assert.True(t, inv.Subtotal.Equal(dec("200")))
	assert.True(t, inv.Discounts.Equal(dec("15")))
	assert.Equal(t, "2024-03", inv.Month)
	require.NotNil(t, inv.DueAt)
	assert.Equal(t, finance.DueDate(fixedNow, finance.DefaultDueDays), *inv.DueAt)

	report, err := f.svc.PendingReport(ctx, PendingQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count)
	assert.True(t, report.Total.Equal(dec("185")))
	assert.Equal(t, []string{"FC1001"}, f.observed.issued)
}

func TestIssue_ReciboLiquidaFactura(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)

	rc, err := f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeReceipt, RelatedDocumentID: inv.ID})
	require.NoError(t, err)
	assert.Equal(t, "RC1001", rc.Number)
	assert.True(t, rc.Total.Equal(dec("-185")), "guardado en negativo: %s", rc.Total)
	assert.True(t, rc.Display.Total.Equal(dec("185")))
	assert.Equal(t, "Acme", rc.ClientName)
	require.Len(t, rc.Items, 1)
	require.NotNil(t, rc.PaidAt)
	assert.Equal(t, fixedNow, *rc.PaidAt)
	assert.Empty(t, rc.State)

	got, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.InvoiceStateSettled), got.State)

	report, err := f.svc.PendingReport(ctx, PendingQuery{})
	require.NoError(t, err)
	assert.Zero(t, report.Count)
	assert.True(t, report.Total.IsZero())
}

func TestIssue_NotaDeCreditoSobreFacturaPagada_Rechazada(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)
	_, err := f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeReceipt, RelatedDocumentID: inv.ID})
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeCreditNote, RelatedDocumentID: inv.ID})
	require.ErrorIs(t, err, domain.ErrLifecycleViolation)
	var le *domain.LifecycleError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, domain.ReasonAlreadySettled, le.Code)

	related, err := f.store.Documents().ListRelated(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, entity.DocumentTypeReceipt, related[0].Type)
}

func TestIssue_NotaDeCreditoAnula_YNoAdmiteRecibo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)

	nc, err := f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeCreditNote, RelatedDocumentID: inv.ID})
	require.NoError(t, err)
	assert.True(t, nc.Total.Equal(dec("-185")))
	assert.Nil(t, nc.PaidAt)

	got, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.InvoiceStateCancelled), got.State)

	_, err = f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeReceipt, RelatedDocumentID: inv.ID})
	var le *domain.LifecycleError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, domain.ReasonAlreadyCancelled, le.Code)

	_, err = f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeCreditNote, RelatedDocumentID: inv.ID})
	require.True(t, errors.As(err, &le))
	assert.Equal(t, domain.ReasonAlreadyCancelled, le.Code)
}

func TestIssue_ReciboYNotaConcurrentes_SoloUnoGana(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, rejected := 0, 0
	for i := 0; i < n; i++ {
		docType := entity.DocumentTypeReceipt
		if i%2 == 1 {
			docType = entity.DocumentTypeCreditNote
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Issue(ctx, IssueCommand{Type: docType, RelatedDocumentID: inv.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrLifecycleViolation):
				rejected++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, rejected)
	related, err := f.store.Documents().ListRelated(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, related, 1)
}

func TestIssue_NumeroYaUsado_SeQuemaYSigue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Un documento cargado con número explícito ocupa el siguiente de la secuencia.
	_, err := f.svc.Issue(ctx, IssueCommand{
		Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185(), ExplicitNumber: "FC1001",
	})
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185()})
	require.ErrorIs(t, err, domain.ErrDuplicateNumber)

	next := f.invoice(t)
	assert.Equal(t, "FC1002", next.Number)
}

func TestIssue_AlmacenNoDisponible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.SetUnavailable(true)
	_, err := f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185()})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, domain.CodeStoreUnavailable, domain.Kind(err))

	f.store.SetUnavailable(false)
	list, err := f.svc.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, list.Documents)
	assert.Empty(t, f.observed.issued)
}

func TestIssue_Validaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)
	rc, err := f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeReceipt, RelatedDocumentID: inv.ID})
	require.NoError(t, err)
	paid := fixedNow

	cases := []struct {
		name  string
		cmd   IssueCommand
		field string
	}{
		{"tipo desconocido", IssueCommand{Type: "Boleta"}, "type"},
		{"cliente desconocido", IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Nadie", Items: items185()}, "client_name"},
		{"cliente vacío", IssueCommand{Type: entity.DocumentTypeInvoice, Items: items185()}, "client_name"},
		{"vencimiento fuera de rango", IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185(), DueDays: 8}, "due_days"},
		{"mes inválido", IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185(), Month: "2024-13"}, "month"},
		{"factura con relacionado", IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185(), RelatedDocumentID: inv.ID}, "related_document_id"},
		{"recibo sin factura", IssueCommand{Type: entity.DocumentTypeReceipt}, "related_document_id"},
		{"recibo con id inválido", IssueCommand{Type: entity.DocumentTypeReceipt, RelatedDocumentID: "xyz"}, "related_document_id"},
		{"nota sobre un recibo", IssueCommand{Type: entity.DocumentTypeCreditNote, RelatedDocumentID: rc.ID}, "related_document_id"},
		{"nota con fecha de pago", IssueCommand{Type: entity.DocumentTypeCreditNote, RelatedDocumentID: inv.ID, PaymentDate: &paid}, "payment_date"},
		{"recibo con vencimiento", IssueCommand{Type: entity.DocumentTypeReceipt, RelatedDocumentID: inv.ID, DueDays: 5}, "due_days"},
		{"recibo de otro cliente", IssueCommand{Type: entity.DocumentTypeReceipt, RelatedDocumentID: inv.ID, ClientName: "Otro"}, "client_name"},
		{"precio con más de 4 decimales", IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme",
			Items: []entity.LineItem{{Description: "x", Quantity: 1, UnitPrice: dec("0.00499")}}}, "items[0].unit_price"},
		{"cantidad fuera de rango", IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme",
			Items: []entity.LineItem{{Description: "x", Quantity: 1 << 31, UnitPrice: dec("1")}}}, "items[0].quantity"},
		{"número explícito con prefijo de otro tipo", IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185(), ExplicitNumber: "RC2000"}, "number"},
		{"número explícito sin consecutivo", IssueCommand{Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185(), ExplicitNumber: "FC"}, "number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Issue(ctx, tc.cmd)
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve), "err = %v", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	// Ningún intento fallido consumió números de factura.
	next := f.invoice(t)
	assert.Equal(t, "FC1002", next.Number)
}

func TestIssue_LineasInvalidas(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Issue(context.Background(), IssueCommand{
		Type:       entity.DocumentTypeInvoice,
		ClientName: "Acme",
		Items:      []entity.LineItem{{Description: "x", Quantity: 0, UnitPrice: dec("10")}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIssue_ClienteSinDistinguirMayusculas_GuardaNombreCanonico(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Issue(context.Background(), IssueCommand{
		Type: entity.DocumentTypeInvoice, ClientName: "  ACME ", Items: items185(), DueDays: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", resp.ClientName)
	assert.Equal(t, finance.DueDate(fixedNow, 7), *resp.DueAt)
}

func TestIssue_ReciboConFechaDePagoYMesDeLaFactura(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.svc.Issue(ctx, IssueCommand{
		Type: entity.DocumentTypeInvoice, ClientName: "Acme", Items: items185(), Month: "2024-02",
	})
	require.NoError(t, err)

	paid := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	rc, err := f.svc.Issue(ctx, IssueCommand{Type: entity.DocumentTypeReceipt, RelatedDocumentID: inv.ID, PaymentDate: &paid})
	require.NoError(t, err)
	assert.Equal(t, paid, *rc.PaidAt)
	assert.Equal(t, "2024-02", rc.Month)
}
