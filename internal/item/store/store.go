package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/babyresell/babyresell/internal/item"
)

type Store struct {
	db   *sql.DB
	tmap *pgtype.Map
}

func New(db *sql.DB) *Store {
	return &Store{db: db, tmap: pgtype.NewMap()}
}

type scanner interface {
	Scan(dest ...any) error
}

// Expected column order matches selectItemColumns.
func (s *Store) scanItem(sc scanner) (*item.Item, error) {
	var (
		it                item.Item
		condition, status string
		imageURLs         []string
	)

	if err := sc.Scan(
		&it.ID, &it.SellerID, &it.Title, &it.Description, &it.Category, &condition,
		&it.Price, &it.Currency, &status, s.tmap.SQLScanner(&imageURLs),
		&it.CreatedAt, &it.UpdatedAt, &it.DeletedAt,
	); err != nil {
		return nil, err
	}

	it.Condition = item.Condition(condition)
	it.Status = item.Status(status)
	it.ImageURLs = imageURLs

	return &it, nil
}

const selectItemColumns = `
	id, seller_id, title, description, category, condition,
	price, currency, status, image_urls, created_at, updated_at, deleted_at
`

const insertItem = `
	INSERT INTO items (seller_id, title, description, category, condition, price, currency, status, image_urls, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	RETURNING id, created_at
`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insert(ctx context.Context, q queryRower, it *item.Item) error {
	urls := it.ImageURLs
	if urls == nil {
		urls = []string{}
	}

	return q.QueryRowContext(ctx, insertItem,
		it.SellerID, it.Title, it.Description, it.Category, it.Condition,
		it.Price, it.Currency, it.Status, urls,
	).Scan(&it.ID, &it.CreatedAt)
}

func (s *Store) CreateItem(ctx context.Context, it *item.Item) error {
	if err := insert(ctx, s.db, it); err != nil {
		return fmt.Errorf("creating item: %w", err)
	}

	return nil
}

func (s *Store) CreateItems(ctx context.Context, items []*item.Item) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	for _, it := range items {
		if err := insert(ctx, dbTx, it); err != nil {
			return fmt.Errorf("creating item %q: %w", it.Title, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing items: %w", err)
	}

	return nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*item.Item, error) {
	query := `SELECT ` + selectItemColumns + `
		FROM items
		WHERE id = $1 AND deleted_at IS NULL`

	it, err := s.scanItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, item.ErrNotFound
		}

		return nil, fmt.Errorf("getting item: %w", err)
	}

	return it, nil
}

func (s *Store) ListItems(ctx context.Context, filter item.ListFilter) ([]*item.Item, error) {
	query := `SELECT ` + selectItemColumns + `
		FROM items
		WHERE deleted_at IS NULL`

	var args []any

	argIdx := 1

	if filter.SellerID != nil {
		query += fmt.Sprintf(" AND seller_id = $%d", argIdx)

		args = append(args, *filter.SellerID)
		argIdx++
	}

	if filter.Category != nil {
		query += fmt.Sprintf(" AND category = $%d", argIdx)

		args = append(args, *filter.Category)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.Query != "" {
		query += fmt.Sprintf(" AND (title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", argIdx, argIdx)

		args = append(args, filter.Query)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []*item.Item

	for rows.Next() {
		it, err := s.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}

		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}

	return items, nil
}

func (s *Store) UpdateItem(ctx context.Context, it *item.Item) error {
	query := `
		UPDATE items
		SET title = $1, description = $2, category = $3, condition = $4, price = $5, image_urls = $6, updated_at = NOW()
		WHERE id = $7 AND deleted_at IS NULL
	`

	urls := it.ImageURLs
	if urls == nil {
		urls = []string{}
	}

	_, err := s.db.ExecContext(ctx, query,
		it.Title, it.Description, it.Category, it.Condition, it.Price, urls, it.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE items
		SET deleted_at = NOW()
		WHERE id = $1
	`

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}

	return nil
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to item.Status) error {
	query := `
		UPDATE items
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND deleted_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("updating item status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating item status: %w", err)
	}

	if n == 0 {
		return item.ErrStatusChanged
	}

	return nil
}
