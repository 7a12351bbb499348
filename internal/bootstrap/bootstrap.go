// Package bootstrap arma las dependencias compartidas por cmd/api y cmd/comprobantes:
// almacén (Postgres o memoria), Redis opcional, observadores y servicios.
package bootstrap

import (
	"context"
	"time"

	"github.com/jhoicas/comprobantes-api/internal/application/billing"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/cache"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/memory"
	"github.com/jhoicas/comprobantes-api/internal/infrastructure/postgres"
	"github.com/jhoicas/comprobantes-api/pkg/config"
	"github.com/jhoicas/comprobantes-api/pkg/logger"
)

// Container servicios listos para usar. Close libera conexiones.
type Container struct {
	Sequences *billing.SequenceGenerator
	Documents *billing.DocumentService
	Clients   *billing.ClientUseCase
	Importer  *billing.DocumentImporter

	closers []func()
}

// Close cierra en orden inverso al de apertura.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

type store struct {
	tx      billing.DocumentTxRunner
	docs    repository.DocumentRepository
	clients repository.ClientRepository
}

// Build conecta el almacén según STORE_DRIVER, aplica migraciones si corresponde y arma los servicios.
// Redis es opcional: sin REDIS_ADDR no hay caché de listados ni lock de importación.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{}

	st, err := c.openStore(ctx, cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	observers := billing.Observers{billing.NewAuditLogObserver(log)}
	var listCache billing.ListCache
	var locker billing.ImportLocker
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			// Sin Redis se sigue funcionando: la caché es solo de lectura.
			log.Warn().Err(err).Msg("redis no disponible; sin caché de listados ni lock de importación")
		} else {
			c.closers = append(c.closers, func() { _ = rdb.Close() })
			lc := cache.NewListCache(rdb, time.Duration(cfg.Redis.TTLSeconds)*time.Second, log)
			listCache = lc
			observers = append(observers, lc)
			locker = cache.NewImportLock(rdb, log)
		}
	}

	c.Sequences = billing.NewSequenceGenerator(st.tx, log)
	c.Documents = billing.NewDocumentService(
		st.tx, c.Sequences, st.docs, st.clients, observers, listCache,
		billing.DocumentServiceConfig{DefaultDueDays: cfg.Billing.DefaultDueDays},
		log,
	)
	c.Clients = billing.NewClientUseCase(st.clients)
	c.Importer = billing.NewDocumentImporter(c.Documents, c.Sequences, st.docs, locker, log)
	return c, nil
}

func (c *Container) openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store, error) {
	if cfg.App.StoreDriver == "memory" {
		log.Warn().Msg("almacén en memoria: los datos se pierden al reiniciar")
		m := memory.New(cfg.Billing.SequenceStart)
		return &store{tx: m, docs: m.Documents(), clients: m.Clients()}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, pool.Close)
	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, cfg.Billing.SequenceStart, log); err != nil {
			return nil, err
		}
	}
	return &store{
		tx:      postgres.NewTxRunner(pool),
		docs:    postgres.NewDocumentRepository(pool),
		clients: postgres.NewClientRepository(pool),
	}, nil
}
