package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-api/internal/application/dto"
	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/memory"
)

func TestClientUseCase_Create_DuplicadoSinMayusculas(t *testing.T) {
	uc := NewClientUseCase(memory.New(1000).Clients())
	ctx := context.Background()

	c, err := uc.Create(ctx, dto.CreateClientRequest{Name: "  Acme ", Email: "pagos@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)
	assert.NotEmpty(t, c.ID)

	_, err = uc.Create(ctx, dto.CreateClientRequest{Name: "ACME"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = uc.Create(ctx, dto.CreateClientRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestClientUseCase_List(t *testing.T) {
	uc := NewClientUseCase(memory.New(1000).Clients())
	ctx := context.Background()
	for _, name := range []string{"Beta", "Acme", "Gamma"} {
		_, err := uc.Create(ctx, dto.CreateClientRequest{Name: name})
		require.NoError(t, err)
	}

	list, err := uc.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Acme", list[0].Name)

	page, err := uc.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Gamma", page[0].Name)
}
