package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/lib/pq"
)

const defaultTable = "translation_history"

// PostgresStore appends rows to a translation_history table
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore opens databaseURL and creates the table if needed
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStoreFromDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreFromDB uses an existing connection pool
func NewPostgresStoreFromDB(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db, table: pq.QuoteIdentifier(defaultTable)}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		source_text TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.table)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]overlay.TranslationRecord, error) {
	query := fmt.Sprintf(`SELECT source_text, translated_text, created_at FROM %s ORDER BY id`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var records []overlay.TranslationRecord
	for rows.Next() {
		var rec overlay.TranslationRecord
		if err := rows.Scan(&rec.SourceText, &rec.TranslatedText, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Append(ctx context.Context, rec overlay.TranslationRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := fmt.Sprintf(`INSERT INTO %s (source_text, translated_text, created_at) VALUES ($1, $2, $3)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, rec.SourceText, rec.TranslatedText, createdAt); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
