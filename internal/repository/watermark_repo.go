package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolmail/pkg/metrics"
)

// WatermarkRepository persists the per-pipeline sync watermark. The stored
// value is the contiguous committed prefix a run reached, which is what the
// next run may safely start from; max(received_at) over emails is not, since
// a later email can commit while an earlier one failed.
type WatermarkRepository struct {
	db DBTX
}

func NewWatermarkRepository(db DBTX) *WatermarkRepository {
	return &WatermarkRepository{db: db}
}

// Load returns the saved watermark, or nil when none was ever saved.
func (r *WatermarkRepository) Load(ctx context.Context, name string) (*time.Time, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "ingest_watermarks", time.Since(start)) }()

	query := `SELECT ts FROM ingest_watermarks WHERE name = $1`
	var ts time.Time
	err := r.db.QueryRow(ctx, query, name).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// Save records the watermark a run reached. The row only ever moves forward;
// a backdated run (explicit -since override) cannot regress it.
func (r *WatermarkRepository) Save(ctx context.Context, name string, ts time.Time) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("upsert", "ingest_watermarks", time.Since(start)) }()

	query := `
        INSERT INTO ingest_watermarks (name, ts, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (name) DO UPDATE SET ts = EXCLUDED.ts, updated_at = NOW()
        WHERE ingest_watermarks.ts < EXCLUDED.ts
    `
	_, err := r.db.Exec(ctx, query, name, ts)
	return err
}
