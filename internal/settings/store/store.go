package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/babyresell/babyresell/internal/settings"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetOrCreate relies on the unique singleton column: racing inserts collapse
// into one row and every caller reads that row back.
func (s *Store) GetOrCreate(ctx context.Context) (*settings.Record, error) {
	insert := `
		INSERT INTO settings (singleton, data, created_at, updated_at)
		VALUES (TRUE, '{}', NOW(), NOW())
		ON CONFLICT (singleton) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, insert); err != nil {
		return nil, fmt.Errorf("creating settings: %w", err)
	}

	query := `SELECT id, data, updated_at FROM settings WHERE singleton`

	var (
		rec  settings.Record
		data []byte
	)

	if err := s.db.QueryRowContext(ctx, query).Scan(&rec.ID, &data, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("settings row missing after insert: %w", err)
		}

		return nil, fmt.Errorf("getting settings: %w", err)
	}

	rec.Data = json.RawMessage(data)

	return &rec, nil
}

func (s *Store) Save(ctx context.Context, id uuid.UUID, data json.RawMessage) (time.Time, error) {
	query := `
		UPDATE settings
		SET data = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	var updatedAt time.Time
	if err := s.db.QueryRowContext(ctx, query, id, string(data)).Scan(&updatedAt); err != nil {
		return time.Time{}, fmt.Errorf("saving settings: %w", err)
	}

	return updatedAt, nil
}
