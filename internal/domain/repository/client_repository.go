package repository

import (
	"context"

	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
)

// ClientRepository define el puerto de persistencia para Client.
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, id string) (*entity.Client, error)
	// GetByName busca por nombre sin distinguir mayúsculas. nil, nil si no existe.
	GetByName(ctx context.Context, name string) (*entity.Client, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Client, error)
}
