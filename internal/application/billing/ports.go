package billing

import (
	"context"

	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
)

// DocumentTxRunner ejecuta fn dentro de una transacción, con repositorios atados a esa tx.
// Si fn retorna error se hace rollback; si no, commit. Un fallo al iniciar o confirmar la
// transacción se reporta como domain.ErrStoreUnavailable.
type DocumentTxRunner interface {
	RunDocuments(ctx context.Context, fn func(
		seqRepo repository.SequenceRepository,
		docRepo repository.DocumentRepository,
	) error) error
}

// DocumentObserver recibe notificaciones después del commit. Lo provee quien arma la
// aplicación (cmd/api); el núcleo no guarda listeners globales.
type DocumentObserver interface {
	DocumentIssued(ctx context.Context, doc *entity.Document)
	DocumentDeleted(ctx context.Context, id string)
}

// ListCache caché de lectura para listados. La invalidación llega por DocumentObserver.
type ListCache interface {
	// Get carga en dest el valor de key. Devuelve la versión vigente de la caché, que debe
	// pasarse a Set: un valor calculado antes de una invalidación nunca se vuelve visible.
	Get(ctx context.Context, key string, dest any) (version int64, hit bool, err error)
	Set(ctx context.Context, key string, version int64, value any) error
}
