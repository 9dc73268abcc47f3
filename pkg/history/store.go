// Package history persists source text to translation pairs across runs.
// Every backend is append-only; when a source appears more than once the
// latest record wins.
package history

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
)

// Store is an append-only translation history
type Store interface {
	// Load returns every record in append order
	Load(ctx context.Context) ([]overlay.TranslationRecord, error)
	// Append durably adds one record
	Append(ctx context.Context, rec overlay.TranslationRecord) error
	Close() error
}

// Open selects a backend from dsn: redis:// and rediss:// URLs use Redis,
// postgres:// and postgresql:// URLs use PostgreSQL, "memory:" keeps records
// in process and anything else is a JSON Lines file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return NewRedisStore(ctx, dsn)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn)
	case dsn == "memory:":
		return NewMemoryStore(), nil
	case dsn == "":
		return nil, fmt.Errorf("history DSN is empty")
	default:
		return NewFileStore(strings.TrimPrefix(dsn, "file://"))
	}
}

// MemoryStore keeps records for the lifetime of the process
type MemoryStore struct {
	mu      sync.Mutex
	records []overlay.TranslationRecord
}

func NewMemoryStore(records ...overlay.TranslationRecord) *MemoryStore {
	return &MemoryStore{records: records}
}

func (m *MemoryStore) Load(ctx context.Context) ([]overlay.TranslationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]overlay.TranslationRecord(nil), m.records...), nil
}

func (m *MemoryStore) Append(ctx context.Context, rec overlay.TranslationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
