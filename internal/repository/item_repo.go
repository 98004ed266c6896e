package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"schoolmail/internal/model"
	"schoolmail/pkg/metrics"
)

type ItemRepository struct {
	db DBTX
}

func NewItemRepository(db DBTX) *ItemRepository {
	return &ItemRepository{db: db}
}

// Insert persists a new current item.
func (r *ItemRepository) Insert(ctx context.Context, item *model.Item) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "items", time.Since(start)) }()

	query := `
        INSERT INTO items (id, email_id, content, date_start, date_end, external_urls, is_current, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
    `
	_, err := r.db.Exec(ctx, query,
		item.ID, item.EmailID, item.Content, item.DateStart, item.DateEnd, item.ExternalURLs)
	return err
}

// ListCurrent returns every item with is_current = true, the only set that
// reconciliation matches against.
func (r *ItemRepository) ListCurrent(ctx context.Context) ([]model.Item, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("list_current", "items", time.Since(start)) }()

	query, args, err := psql.
		Select("id", "email_id", "content", "date_start", "date_end", "external_urls", "is_current", "superseded_by", "created_at").
		From("items").
		Where(sq.Eq{"is_current": true}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanItems(rows)
}

// Find loads one item by id, current or not.
func (r *ItemRepository) Find(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	query := `
        SELECT id, email_id, content, date_start, date_end, external_urls, is_current, superseded_by, created_at
        FROM items
        WHERE id = $1
    `
	var item model.Item
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.EmailID, &item.Content, &item.DateStart, &item.DateEnd,
		&item.ExternalURLs, &item.IsCurrent, &item.SupersededBy, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SupersedeIfCurrent claims the supersession of oldID by newID. The WHERE
// clause on is_current makes the claim conditional: two racing reconcile
// calls cannot both supersede the same item, the loser sees false.
func (r *ItemRepository) SupersedeIfCurrent(ctx context.Context, oldID, newID uuid.UUID) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("supersede", "items", time.Since(start)) }()

	query := `
        UPDATE items
        SET is_current = FALSE, superseded_by = $2
        WHERE id = $1 AND is_current = TRUE
    `
	tag, err := r.db.Exec(ctx, query, oldID, newID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanItems(rows pgx.Rows) ([]model.Item, error) {
	items := []model.Item{}
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(
			&item.ID, &item.EmailID, &item.Content, &item.DateStart, &item.DateEnd,
			&item.ExternalURLs, &item.IsCurrent, &item.SupersededBy, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
