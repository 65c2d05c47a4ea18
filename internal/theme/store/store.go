package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/babyresell/babyresell/internal/theme"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// Expected column order matches selectThemeColumns.
func scanTheme(s scanner) (*theme.Theme, error) {
	var (
		t       theme.Theme
		palette []byte
	)

	if err := s.Scan(&t.ID, &t.Name, &t.Description, &palette, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(palette, &t.Palette); err != nil {
		return nil, fmt.Errorf("decoding palette: %w", err)
	}

	return &t, nil
}

const selectThemeColumns = `id, name, description, palette, active, created_at, updated_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *Store) CreateTheme(ctx context.Context, t *theme.Theme) error {
	palette, err := json.Marshal(t.Palette)
	if err != nil {
		return fmt.Errorf("encoding palette: %w", err)
	}

	query := `
		INSERT INTO themes (name, description, palette, active, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query, t.Name, t.Description, string(palette)).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return theme.ErrNameTaken
		}

		return fmt.Errorf("creating theme: %w", err)
	}

	return nil
}

func (s *Store) getOne(ctx context.Context, where string, args ...any) (*theme.Theme, error) {
	query := `SELECT ` + selectThemeColumns + ` FROM themes WHERE ` + where

	t, err := scanTheme(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, theme.ErrNotFound
		}

		return nil, fmt.Errorf("getting theme: %w", err)
	}

	return t, nil
}

func (s *Store) GetTheme(ctx context.Context, id uuid.UUID) (*theme.Theme, error) {
	return s.getOne(ctx, "id = $1", id)
}

func (s *Store) GetThemeByName(ctx context.Context, name string) (*theme.Theme, error) {
	return s.getOne(ctx, "name = $1", name)
}

func (s *Store) GetActive(ctx context.Context) (*theme.Theme, error) {
	t, err := s.getOne(ctx, "active")
	if errors.Is(err, theme.ErrNotFound) {
		return nil, theme.ErrNoActiveTheme
	}

	return t, err
}

func (s *Store) ListThemes(ctx context.Context) ([]*theme.Theme, error) {
	query := `SELECT ` + selectThemeColumns + ` FROM themes ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	defer rows.Close()

	var themes []*theme.Theme

	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning theme: %w", err)
		}

		themes = append(themes, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating themes: %w", err)
	}

	return themes, nil
}

func (s *Store) UpdateTheme(ctx context.Context, t *theme.Theme) error {
	palette, err := json.Marshal(t.Palette)
	if err != nil {
		return fmt.Errorf("encoding palette: %w", err)
	}

	query := `
		UPDATE themes
		SET name = $1, description = $2, palette = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`

	err = s.db.QueryRowContext(ctx, query, t.Name, t.Description, string(palette), t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return theme.ErrNotFound
		case isUniqueViolation(err):
			return theme.ErrNameTaken
		}

		return fmt.Errorf("updating theme: %w", err)
	}

	return nil
}

func (s *Store) DeleteTheme(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM themes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting theme: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting theme: %w", err)
	}

	if n == 0 {
		return theme.ErrNotFound
	}

	return nil
}

// activationLockKey serialises concurrent activations so the second waits
// for the first instead of tripping the single-active index.
func activationLockKey() int64 {
	h := fnv.New64a()
	h.Write([]byte("themes.active"))

	return int64(h.Sum64())
}

func (s *Store) Activate(ctx context.Context, id uuid.UUID) (*theme.Theme, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", activationLockKey()); err != nil {
		return nil, fmt.Errorf("acquiring activation lock: %w", err)
	}

	deactivate := `UPDATE themes SET active = FALSE, updated_at = NOW() WHERE active AND id <> $1`
	if _, err := dbTx.ExecContext(ctx, deactivate, id); err != nil {
		return nil, fmt.Errorf("deactivating current theme: %w", err)
	}

	activate := `
		UPDATE themes SET active = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + selectThemeColumns

	t, err := scanTheme(dbTx.QueryRowContext(ctx, activate, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, theme.ErrNotFound
		}

		return nil, fmt.Errorf("activating theme: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing activation: %w", err)
	}

	return t, nil
}

func (s *Store) Deactivate(ctx context.Context, id uuid.UUID) (*theme.Theme, error) {
	query := `
		UPDATE themes SET active = FALSE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + selectThemeColumns

	t, err := scanTheme(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, theme.ErrNotFound
		}

		return nil, fmt.Errorf("deactivating theme: %w", err)
	}

	return t, nil
}
