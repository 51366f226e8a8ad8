package schema

import (
	"context"
	"sync"
	"sync/atomic"
)

// Supplier delivers raw metadata documents. Implementations return
// ErrDocumentNotFound (possibly wrapped) when a document does not exist.
type Supplier interface {
	FieldDocument(ctx context.Context, db, origin string) ([]byte, error)
	JoinDocument(ctx context.Context, db string) ([]byte, error)
	AliasDocument(ctx context.Context) ([]byte, error)
	CategoryDocument(ctx context.Context, db string) ([]byte, error)
}

// MemorySupplier is a Supplier backed by maps. It is safe for concurrent use
// and counts document fetches, which makes it suitable for tests and for
// staging documents before they are written to a store.
type MemorySupplier struct {
	mu         sync.RWMutex
	fields     map[string][]byte
	joins      map[string][]byte
	categories map[string][]byte
	aliases    []byte
	fetches    atomic.Int64
}

// NewMemorySupplier creates an empty MemorySupplier.
func NewMemorySupplier() *MemorySupplier {
	return &MemorySupplier{
		fields:     make(map[string][]byte),
		joins:      make(map[string][]byte),
		categories: make(map[string][]byte),
	}
}

func fieldKey(db, origin string) string {
	return db + "\x00" + origin
}

// SetFieldDocument stores the field document for db/origin.
func (m *MemorySupplier) SetFieldDocument(db, origin string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[fieldKey(db, origin)] = raw
}

// SetJoinDocument stores the join document for db.
func (m *MemorySupplier) SetJoinDocument(db string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joins[db] = raw
}

// SetAliasDocument stores the alias document.
func (m *MemorySupplier) SetAliasDocument(raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases = raw
}

// SetCategoryDocument stores the analysis category document for db.
func (m *MemorySupplier) SetCategoryDocument(db string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[db] = raw
}

// Fetches returns the number of documents served so far.
func (m *MemorySupplier) Fetches() int64 {
	return m.fetches.Load()
}

func (m *MemorySupplier) FieldDocument(_ context.Context, db, origin string) ([]byte, error) {
	return m.lookup(m.fields, fieldKey(db, origin))
}

func (m *MemorySupplier) JoinDocument(_ context.Context, db string) ([]byte, error) {
	return m.lookup(m.joins, db)
}

func (m *MemorySupplier) CategoryDocument(_ context.Context, db string) ([]byte, error) {
	return m.lookup(m.categories, db)
}

func (m *MemorySupplier) AliasDocument(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.aliases == nil {
		return nil, ErrDocumentNotFound
	}
	m.fetches.Add(1)
	return m.aliases, nil
}

func (m *MemorySupplier) lookup(docs map[string][]byte, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := docs[key]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	m.fetches.Add(1)
	return raw, nil
}
