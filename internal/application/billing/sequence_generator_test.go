package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/memory"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

func TestSequenceGenerator_PrimerNumero(t *testing.T) {
	gen := NewSequenceGenerator(memory.New(1000), logger.Nop())
	n, err := gen.NextNumber(context.Background(), entity.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, "FC1001", n)
}

func TestSequenceGenerator_Concurrente_SinRepetidosNiHuecos(t *testing.T) {
	gen := NewSequenceGenerator(memory.New(1000), logger.Nop())

	const n = 50
	var mu sync.Mutex
	got := make(map[int64]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := gen.Allocate(context.Background(), entity.DocumentTypeInvoice)
			assert.NoError(t, err)
			mu.Lock()
			got[num]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, got, n)
	for i := int64(1001); i <= 1000+n; i++ {
		assert.Equal(t, 1, got[i], "número %d", i)
	}
}

func TestSequenceGenerator_TiposIndependientes(t *testing.T) {
	gen := NewSequenceGenerator(memory.New(1000), logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := gen.Allocate(ctx, entity.DocumentTypeInvoice)
		require.NoError(t, err)
	}
	rc, err := gen.NextNumber(ctx, entity.DocumentTypeReceipt)
	require.NoError(t, err)
	nc, err := gen.NextNumber(ctx, entity.DocumentTypeCreditNote)
	require.NoError(t, err)
	assert.Equal(t, "RC1001", rc)
	assert.Equal(t, "NC1001", nc)
}

func TestSequenceGenerator_TipoDesconocido(t *testing.T) {
	gen := NewSequenceGenerator(memory.New(1000), logger.Nop())
	_, err := gen.Allocate(context.Background(), entity.DocumentType("Boleta"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSequenceGenerator_AlmacenCaido_NoAsigna(t *testing.T) {
	store := memory.New(1000)
	gen := NewSequenceGenerator(store, logger.Nop())
	ctx := context.Background()

	store.SetUnavailable(true)
	_, err := gen.Allocate(ctx, entity.DocumentTypeInvoice)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	store.SetUnavailable(false)
	n, err := gen.Allocate(ctx, entity.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), n)
}

func TestSequenceGenerator_Advance_NuncaRetrocede(t *testing.T) {
	gen := NewSequenceGenerator(memory.New(1000), logger.Nop())
	ctx := context.Background()

	require.NoError(t, gen.Advance(ctx, entity.DocumentTypeInvoice, 1500))
	require.NoError(t, gen.Advance(ctx, entity.DocumentTypeInvoice, 1200))

	n, err := gen.Allocate(ctx, entity.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(1501), n)
}
