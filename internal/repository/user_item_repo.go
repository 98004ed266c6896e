package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"schoolmail/internal/model"
	"schoolmail/pkg/metrics"
)

type UserItemRepository struct {
	db DBTX
}

func NewUserItemRepository(db DBTX) *UserItemRepository {
	return &UserItemRepository{db: db}
}

// UpsertStatus writes the (user, item) status row. The unique constraint on
// (user_id, item_id) plus ON CONFLICT makes concurrent calls from the same
// user collapse into one row, last write wins.
func (r *UserItemRepository) UpsertStatus(ctx context.Context, s *model.UserItemStatus) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("upsert", "user_items", time.Since(start)) }()

	query := `
        INSERT INTO user_items (user_id, item_id, status, remind_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (user_id, item_id)
        DO UPDATE SET status = EXCLUDED.status, remind_at = EXCLUDED.remind_at, updated_at = NOW()
    `
	_, err := r.db.Exec(ctx, query, s.UserID, s.ItemID, s.Status, s.RemindAt)
	return err
}

// ListCurrentForUser returns every current item joined with the source
// email's received time and this user's status row. Items without a row come
// back as implicit inbox. View filtering and ordering happen in the triage
// service.
func (r *UserItemRepository) ListCurrentForUser(ctx context.Context, userID int) ([]model.ItemView, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("list_for_user", "user_items", time.Since(start)) }()

	query, args, err := psql.
		Select(
			"i.id", "i.email_id", "i.content", "i.date_start", "i.date_end",
			"i.external_urls", "i.is_current", "i.superseded_by", "i.created_at",
			"e.received_at",
			"COALESCE(ui.status, 'inbox')", "ui.remind_at",
		).
		From("items i").
		Join("emails e ON e.id = i.email_id").
		LeftJoin("user_items ui ON ui.item_id = i.id AND ui.user_id = ?", userID).
		Where(sq.Eq{"i.is_current": true}).
		OrderBy("e.received_at DESC", "i.created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []model.ItemView{}
	for rows.Next() {
		var v model.ItemView
		if err := rows.Scan(
			&v.ID, &v.EmailID, &v.Content, &v.DateStart, &v.DateEnd,
			&v.ExternalURLs, &v.IsCurrent, &v.SupersededBy, &v.CreatedAt,
			&v.EmailReceivedAt,
			&v.Status, &v.RemindAt); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
