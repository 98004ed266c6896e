package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"schoolmail/internal/model"
	"schoolmail/pkg/metrics"
)

type AttachmentRepository struct {
	db DBTX
}

func NewAttachmentRepository(db DBTX) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// InsertAttachments persists the metadata rows for one email's attachments.
func (r *AttachmentRepository) InsertAttachments(ctx context.Context, atts []model.Attachment) error {
	if len(atts) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "attachments", time.Since(start)) }()

	query := `
        INSERT INTO attachments (id, email_id, filename, mime_type, size_bytes, provider_ref, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
    `
	for _, a := range atts {
		_, err := r.db.Exec(ctx, query,
			a.ID, a.EmailID, a.Filename, a.MimeType, a.SizeBytes, a.ProviderRef)
		if err != nil {
			return err
		}
	}
	return nil
}

// LinkToItem points one attachment row at the item that references it.
func (r *AttachmentRepository) LinkToItem(ctx context.Context, attachmentID, itemID uuid.UUID) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("link", "attachments", time.Since(start)) }()

	query := `UPDATE attachments SET item_id = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, attachmentID, itemID)
	return err
}
