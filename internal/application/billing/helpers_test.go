package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-api/internal/application/dto"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/memory"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	seq      *SequenceGenerator
	svc      *DocumentService
	clients  *ClientUseCase
	observed *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	store := memory.New(1000)
	seq := NewSequenceGenerator(store, log)
	rec := &recorder{}
	svc := NewDocumentService(store, seq, store.Documents(), store.Clients(), rec, nil, DocumentServiceConfig{}, log).
		WithClock(func() time.Time { return fixedNow })
	f := &fixture{store: store, seq: seq, svc: svc, clients: NewClientUseCase(store.Clients()), observed: rec}
	_, err := f.clients.Create(context.Background(), dto.CreateClientRequest{Name: "Acme"})
	require.NoError(t, err)
	return f
}

// items185 dos líneas: 2×100 con 7.50 de descuento unitario → total 185.00.
func items185() []entity.LineItem {
	return []entity.LineItem{
		{Description: "Hosting", Quantity: 2, UnitPrice: decimal.RequireFromString("100"), UnitDiscount: decimal.RequireFromString("7.50")},
	}
}

func (f *fixture) invoice(t *testing.T) *dto.DocumentResponse {
	t.Helper()
	resp, err := f.svc.Issue(context.Background(), IssueCommand{
		Type:       entity.DocumentTypeInvoice,
		ClientName: "Acme",
		Items:      items185(),
	})
	require.NoError(t, err)
	return resp
}

type recorder struct {
	mu      sync.Mutex
	issued  []string
	deleted []string
}

func (r *recorder) DocumentIssued(_ context.Context, doc *entity.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, doc.Number)
}

func (r *recorder) DocumentDeleted(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

// memCache caché versionada en memoria, con la misma semántica que la de Redis.
type memCache struct {
	mu   sync.Mutex
	gen  int64
	data map[string][]byte
	hits int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest any) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[c.versioned(key, c.gen)]
	if !ok {
		return c.gen, false, nil
	}
	c.hits++
	return c.gen, true, json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, version int64, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[c.versioned(key, version)] = raw
	return nil
}

func (c *memCache) versioned(key string, v int64) string {
	return fmt.Sprintf("%s:v%d", key, v)
}

func (c *memCache) DocumentIssued(context.Context, *entity.Document) { c.bump() }
func (c *memCache) DocumentDeleted(context.Context, string)          { c.bump() }

func (c *memCache) bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
}
