// Package cache implementa la caché de listados sobre Redis y el lock de importación.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/comprobantes-api/internal/application/billing"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

// generationKey contador que versiona todas las entradas de listados.
// Invalidar es incrementarlo: las entradas de versiones anteriores dejan de leerse y expiran por TTL.
const generationKey = "documents:list:generation"

var (
	_ billing.ListCache        = (*ListCache)(nil)
	_ billing.DocumentObserver = (*ListCache)(nil)
)

// ListCache caché read-through de listados de documentos. Nunca guarda números de secuencia.
type ListCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
	log *logger.Logger
}

// NewListCache construye la caché. ttl <= 0 usa 5 minutos.
func NewListCache(rdb redis.UniversalClient, ttl time.Duration, log *logger.Logger) *ListCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ListCache{rdb: rdb, ttl: ttl, log: log.WithComponent("cache")}
}

func (c *ListCache) Get(ctx context.Context, key string, dest any) (int64, bool, error) {
	version, err := c.version(ctx)
	if err != nil {
		return 0, false, err
	}
	val, err := c.rdb.Get(ctx, versionedKey(key, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return version, false, nil
		}
		return version, false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		// Entrada corrupta: se trata como ausente y se reescribe.
		c.log.Warn().Err(err).Str("key", key).Msg("entrada de caché ilegible")
		return version, false, nil
	}
	return version, true, nil
}

func (c *ListCache) Set(ctx context.Context, key string, version int64, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.rdb.Set(ctx, versionedKey(key, version), raw, c.ttl).Err()
}

// Invalidate descarta todos los listados cacheados.
func (c *ListCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, generationKey).Err()
}

// DocumentIssued invalida: el nuevo documento y el estado de su factura cambian los listados.
func (c *ListCache) DocumentIssued(ctx context.Context, _ *entity.Document) {
	c.invalidate(ctx)
}

func (c *ListCache) DocumentDeleted(ctx context.Context, _ string) {
	c.invalidate(ctx)
}

func (c *ListCache) invalidate(ctx context.Context) {
	if err := c.Invalidate(ctx); err != nil {
		c.log.Error().Err(err).Msg("no se pudo invalidar la caché de listados")
	}
}

func (c *ListCache) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func versionedKey(key string, version int64) string {
	return fmt.Sprintf("%s:v%d", key, version)
}
