package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/comprobantes-api/internal/application/billing"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

var _ billing.ImportLocker = (*ImportLock)(nil)

// ImportLock lock distribuido con redislock para que no corran dos importaciones a la vez.
type ImportLock struct {
	locker *redislock.Client
	log    *logger.Logger
}

// NewImportLock construye el lock sobre el cliente Redis.
func NewImportLock(rdb redis.UniversalClient, log *logger.Logger) *ImportLock {
	return &ImportLock{locker: redislock.New(rdb), log: log.WithComponent("lock")}
}

// Obtain toma el lock o devuelve billing.ErrImportLocked si lo tiene otro proceso.
// Si Redis no responde se continúa sin lock: el índice único de números sigue protegiendo los datos.
func (l *ImportLock) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, billing.ErrImportLocked
	}
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("redis no disponible; se continúa sin lock")
		return func() {}, nil
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn().Err(err).Str("key", key).Msg("no se pudo liberar el lock")
		}
	}, nil
}
