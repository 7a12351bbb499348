package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
)

var _ repository.ClientRepository = (*ClientRepo)(nil)

// ClientRepo implementación de ClientRepository (usable con pool o tx).
type ClientRepo struct {
	q Querier
}

// NewClientRepository construye el adaptador. Pasar pool o tx (Querier).
func NewClientRepository(q Querier) *ClientRepo {
	return &ClientRepo{q: q}
}

func (r *ClientRepo) Create(ctx context.Context, c *entity.Client) error {
	const q = `
		INSERT INTO clients (id, name, tax_id, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, q,
		c.ID, c.Name, nullIfEmpty(c.TaxID), nullIfEmpty(c.Email), nullIfEmpty(c.Phone),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == constraintClientName {
				return fmt.Errorf("cliente %q: %w", c.Name, domain.ErrDuplicate)
			}
			return fmt.Errorf("insert client: %w", domain.ErrDuplicate)
		}
		return wrapErr("insert client", err)
	}
	return nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id string) (*entity.Client, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	const q = `
		SELECT id, name, tax_id, email, phone, created_at, updated_at
		FROM clients WHERE id = $1`
	return r.getOne(ctx, q, id)
}

// GetByName usa el índice sobre lower(name).
func (r *ClientRepo) GetByName(ctx context.Context, name string) (*entity.Client, error) {
	const q = `
		SELECT id, name, tax_id, email, phone, created_at, updated_at
		FROM clients WHERE lower(name) = lower($1)`
	return r.getOne(ctx, q, name)
}

func (r *ClientRepo) List(ctx context.Context, limit, offset int) ([]*entity.Client, error) {
	const q = `
		SELECT id, name, tax_id, email, phone, created_at, updated_at
		FROM clients
		ORDER BY lower(name)
		LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, wrapErr("list clients", err)
	}
	defer rows.Close()
	list := []*entity.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *ClientRepo) getOne(ctx context.Context, query, arg string) (*entity.Client, error) {
	c, err := scanClient(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get client", err)
	}
	return c, nil
}

func scanClient(row pgxScanner) (*entity.Client, error) {
	var c entity.Client
	var taxID, email, phone *string
	if err := row.Scan(&c.ID, &c.Name, &taxID, &email, &phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.TaxID = derefStr(taxID)
	c.Email = derefStr(email)
	c.Phone = derefStr(phone)
	return &c, nil
}
