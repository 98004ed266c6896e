package repository

import (
	"context"
	"time"

	"schoolmail/internal/model"
	"schoolmail/pkg/metrics"
)

type EmailRepository struct {
	db DBTX
}

func NewEmailRepository(db DBTX) *EmailRepository {
	return &EmailRepository{db: db}
}

// ExistsByGmailID is the idempotence guard: a gmail id that is already
// recorded (tombstoned or not) must never be processed again.
func (r *EmailRepository) ExistsByGmailID(ctx context.Context, gmailID string) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("exists", "emails", time.Since(start)) }()

	query := `SELECT EXISTS (SELECT 1 FROM emails WHERE gmail_id = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, gmailID).Scan(&exists)
	return exists, err
}

// InsertEmail persists a full email record with privacy_check_passed = true.
func (r *EmailRepository) InsertEmail(ctx context.Context, e *model.Email) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "emails", time.Since(start)) }()

	query := `
        INSERT INTO emails (id, gmail_id, from_address, subject, received_at, body, privacy_check_passed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
    `
	_, err := r.db.Exec(ctx, query,
		e.ID, e.GmailID, e.FromAddress, e.Subject, e.ReceivedAt, e.Body)
	return err
}

// InsertTombstone records a privacy-failed email: identifier and fail flag
// only, no body, no subject. The row keeps the gmail id from ever being
// extracted again.
func (r *EmailRepository) InsertTombstone(ctx context.Context, gmailID string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert_tombstone", "emails", time.Since(start)) }()

	query := `
        INSERT INTO emails (id, gmail_id, privacy_check_passed, created_at)
        VALUES (gen_random_uuid(), $1, FALSE, NOW())
        ON CONFLICT (gmail_id) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query, gmailID)
	return err
}

// LatestReceivedAt returns the watermark candidate: the most recent
// received_at among fully processed emails. Nil when the table is empty.
func (r *EmailRepository) LatestReceivedAt(ctx context.Context) (*time.Time, error) {
	query := `SELECT max(received_at) FROM emails WHERE received_at IS NOT NULL`
	var ts *time.Time
	if err := r.db.QueryRow(ctx, query).Scan(&ts); err != nil {
		return nil, err
	}
	return ts, nil
}
