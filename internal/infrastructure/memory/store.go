// Package memory implementa los puertos de persistencia en proceso.
// Se usa con STORE_DRIVER=memory y en los tests de aplicación y HTTP.
//
// Las transacciones se serializan con un único mutex (equivale a que cada transacción
// bloquee todas las filas que toca) y los cambios se aplican al confirmar.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/repository"
)

var (
	_ repository.DocumentRepository = (*DocumentRepo)(nil)
	_ repository.SequenceRepository = (*SequenceRepo)(nil)
	_ repository.ClientRepository   = (*ClientRepo)(nil)
)

// Store almacén en memoria.
type Store struct {
	mu          sync.Mutex
	sequences   map[entity.DocumentType]int64
	docs        map[string]*entity.Document
	clients     map[string]*entity.Client
	unavailable atomic.Bool
}

// New crea el almacén con las secuencias inicializadas en start (mínimo 1000).
func New(start int64) *Store {
	if start < entity.MinSequenceNumber {
		start = entity.MinSequenceNumber
	}
	s := &Store{
		sequences: make(map[entity.DocumentType]int64, len(entity.DocumentTypes)),
		docs:      make(map[string]*entity.Document),
		clients:   make(map[string]*entity.Client),
	}
	for _, t := range entity.DocumentTypes {
		s.sequences[t] = start
	}
	return s
}

// SetUnavailable simula una caída del almacén: toda operación devuelve ErrStoreUnavailable.
func (s *Store) SetUnavailable(v bool) {
	s.unavailable.Store(v)
}

// Documents repositorio fuera de transacción (cada operación confirma sola).
func (s *Store) Documents() *DocumentRepo {
	return &DocumentRepo{s: s}
}

// Sequences repositorio de secuencias fuera de transacción.
func (s *Store) Sequences() *SequenceRepo {
	return &SequenceRepo{s: s}
}

// Clients repositorio de clientes.
func (s *Store) Clients() *ClientRepo {
	return &ClientRepo{s: s}
}

// RunDocuments ejecuta fn en una transacción. Si fn devuelve error no se aplica nada.
func (s *Store) RunDocuments(ctx context.Context, fn func(
	seqRepo repository.SequenceRepository,
	docRepo repository.DocumentRepository,
) error) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.begin()
	if err := fn(&SequenceRepo{s: s, tx: tx}, &DocumentRepo{s: s, tx: tx}); err != nil {
		return err
	}
	if s.unavailable.Load() {
		return domain.ErrStoreUnavailable
	}
	tx.commit()
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.unavailable.Load() {
		return domain.ErrStoreUnavailable
	}
	return nil
}

// autocommit ejecuta fn en una transacción propia. tx != nil reutiliza la del llamador.
func (s *Store) autocommit(ctx context.Context, tx *txState, fn func(tx *txState) error) error {
	if tx != nil {
		return fn(tx)
	}
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx = s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ── transacción ───────────────────────────────────────────────────────────────

type txState struct {
	s         *Store
	sequences map[entity.DocumentType]int64
	created   map[string]*entity.Document
	deleted   map[string]bool
}

func (s *Store) begin() *txState {
	return &txState{
		s:         s,
		sequences: make(map[entity.DocumentType]int64),
		created:   make(map[string]*entity.Document),
		deleted:   make(map[string]bool),
	}
}

func (tx *txState) commit() {
	for t, n := range tx.sequences {
		tx.s.sequences[t] = n
	}
	for id := range tx.deleted {
		delete(tx.s.docs, id)
	}
	for id, doc := range tx.created {
		tx.s.docs[id] = doc
	}
}

func (tx *txState) sequence(t entity.DocumentType) (int64, bool) {
	if n, ok := tx.sequences[t]; ok {
		return n, true
	}
	n, ok := tx.s.sequences[t]
	return n, ok
}

func (tx *txState) get(id string) *entity.Document {
	if doc, ok := tx.created[id]; ok {
		return doc
	}
	if tx.deleted[id] {
		return nil
	}
	return tx.s.docs[id]
}

// each recorre todos los documentos visibles en la transacción.
func (tx *txState) each(fn func(doc *entity.Document)) {
	for id, doc := range tx.s.docs {
		if tx.deleted[id] {
			continue
		}
		if _, ok := tx.created[id]; ok {
			continue
		}
		fn(doc)
	}
	for _, doc := range tx.created {
		fn(doc)
	}
}

// ── secuencias ────────────────────────────────────────────────────────────────

// SequenceRepo implementa repository.SequenceRepository.
type SequenceRepo struct {
	s  *Store
	tx *txState
}

func (r *SequenceRepo) GetForUpdate(ctx context.Context, docType entity.DocumentType) (*entity.Sequence, error) {
	var out *entity.Sequence
	err := r.s.autocommit(ctx, r.tx, func(tx *txState) error {
		n, ok := tx.sequence(docType)
		if !ok {
			return domain.ErrNotFound
		}
		out = &entity.Sequence{Type: docType, LastNumber: n}
		return nil
	})
	return out, err
}

func (r *SequenceRepo) SetLastNumber(ctx context.Context, docType entity.DocumentType, lastNumber int64) error {
	return r.s.autocommit(ctx, r.tx, func(tx *txState) error {
		if _, ok := tx.sequence(docType); !ok {
			return domain.ErrNotFound
		}
		if lastNumber < entity.MinSequenceNumber {
			return domain.NewValidationError("last_number", "menor al mínimo permitido")
		}
		tx.sequences[docType] = lastNumber
		return nil
	})
}

// ── documentos ────────────────────────────────────────────────────────────────

// DocumentRepo implementa repository.DocumentRepository.
type DocumentRepo struct {
	s  *Store
	tx *txState
}

func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	return r.s.autocommit(ctx, r.tx, func(tx *txState) error {
		if tx.get(doc.ID) != nil {
			return domain.ErrDuplicate
		}
		var conflict error
		tx.each(func(other *entity.Document) {
			if conflict != nil {
				return
			}
			if other.Number == doc.Number {
				conflict = domain.ErrDuplicateNumber
				return
			}
			// Igual que el índice único parcial sobre related_document_id.
			if doc.HasRelated() && other.RelatedDocumentID == doc.RelatedDocumentID {
				if other.Type == entity.DocumentTypeCreditNote {
					conflict = domain.ErrAlreadyCancelled(doc.RelatedDocumentID)
				} else {
					conflict = domain.ErrAlreadySettled(doc.RelatedDocumentID)
				}
			}
		})
		if conflict != nil {
			return conflict
		}
		stored := cloneDocument(doc)
		for i := range stored.Items {
			stored.Items[i].DocumentID = stored.ID
		}
		tx.created[stored.ID] = stored
		return nil
	})
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	var out *entity.Document
	err := r.s.autocommit(ctx, r.tx, func(tx *txState) error {
		if doc := tx.get(id); doc != nil {
			out = cloneDocument(doc)
		}
		return nil
	})
	return out, err
}

// GetByIDForUpdate: el mutex de la transacción ya da exclusión.
func (r *DocumentRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	return r.GetByID(ctx, id)
}

func (r *DocumentRepo) GetByNumber(ctx context.Context, number string) (*entity.Document, error) {
	var out *entity.Document
	err := r.s.autocommit(ctx, r.tx, func(tx *txState) error {
		tx.each(func(doc *entity.Document) {
			if out == nil && doc.Number == number {
				out = cloneDocument(doc)
			}
		})
		return nil
	})
	return out, err
}

func (r *DocumentRepo) ListRelated(ctx context.Context, invoiceID string) ([]*entity.Document, error) {
	return r.ListRelatedTo(ctx, []string{invoiceID})
}

func (r *DocumentRepo) ListRelatedTo(ctx context.Context, invoiceIDs []string) ([]*entity.Document, error) {
	want := make(map[string]bool, len(invoiceIDs))
	for _, id := range invoiceIDs {
		want[id] = true
	}
	var out []*entity.Document
	err := r.s.autocommit(ctx, r.tx, func(tx *txState) error {
		tx.each(func(doc *entity.Document) {
			if doc.HasRelated() && want[doc.RelatedDocumentID] {
				out = append(out, cloneHeader(doc))
			}
		})
		return nil
	})
	sortDocuments(out)
	return out, err
}

func (r *DocumentRepo) List(ctx context.Context, f repository.DocumentFilter) ([]*entity.Document, error) {
	var out []*entity.Document
	err := r.s.autocommit(ctx, r.tx, func(tx *txState) error {
		tx.each(func(doc *entity.Document) {
			if f.ClientName != "" && !strings.EqualFold(doc.ClientName, f.ClientName) {
				return
			}
			if f.Type != "" && doc.Type != f.Type {
				return
			}
			if f.Month != "" && doc.Month != f.Month {
				return
			}
			out = append(out, cloneHeader(doc))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortDocuments(out)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	return r.s.autocommit(ctx, r.tx, func(tx *txState) error {
		if tx.get(id) == nil {
			return domain.ErrNotFound
		}
		delete(tx.created, id)
		tx.deleted[id] = true
		return nil
	})
}

// sortDocuments fecha de emisión descendente; a igual fecha, número descendente.
func sortDocuments(docs []*entity.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].IssuedAt.Equal(docs[j].IssuedAt) {
			return docs[i].IssuedAt.After(docs[j].IssuedAt)
		}
		return docs[i].Number > docs[j].Number
	})
}

func cloneHeader(doc *entity.Document) *entity.Document {
	c := *doc
	c.Items = nil
	return &c
}

func cloneDocument(doc *entity.Document) *entity.Document {
	c := *doc
	if doc.Items != nil {
		c.Items = make([]entity.LineItem, len(doc.Items))
		copy(c.Items, doc.Items)
	}
	return &c
}

// ── clientes ──────────────────────────────────────────────────────────────────

// ClientRepo implementa repository.ClientRepository.
type ClientRepo struct {
	s *Store
}

func (r *ClientRepo) Create(ctx context.Context, client *entity.Client) error {
	if err := r.s.check(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.clients {
		if strings.EqualFold(c.Name, client.Name) {
			return domain.ErrDuplicate
		}
	}
	c := *client
	r.s.clients[c.ID] = &c
	return nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id string) (*entity.Client, error) {
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *ClientRepo) GetByName(ctx context.Context, name string) (*entity.Client, error) {
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	name = strings.TrimSpace(name)
	for _, c := range r.s.clients {
		if strings.EqualFold(c.Name, name) {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (r *ClientRepo) List(ctx context.Context, limit, offset int) ([]*entity.Client, error) {
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	out := make([]*entity.Client, 0, len(r.s.clients))
	for _, c := range r.s.clients {
		cc := *c
		out = append(out, &cc)
	}
	r.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	if offset >= len(out) {
		return []*entity.Client{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
