package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"schoolmail/internal/model"
	"schoolmail/internal/ports"
)

// Store glues the repositories to the pipeline's transaction boundary.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EmailExists(ctx context.Context, gmailID string) (bool, error) {
	return NewEmailRepository(s.pool).ExistsByGmailID(ctx, gmailID)
}

func (s *Store) InsertTombstone(ctx context.Context, gmailID string) error {
	return NewEmailRepository(s.pool).InsertTombstone(ctx, gmailID)
}

// WithinTx runs fn with repositories bound to one transaction. Commit only
// when fn returns nil; any error rolls the whole email back.
func (s *Store) WithinTx(ctx context.Context, fn func(ports.TxStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) InsertEmail(ctx context.Context, e *model.Email) error {
	return NewEmailRepository(t.tx).InsertEmail(ctx, e)
}

func (t *txStore) InsertAttachments(ctx context.Context, atts []model.Attachment) error {
	return NewAttachmentRepository(t.tx).InsertAttachments(ctx, atts)
}

func (t *txStore) LinkAttachment(ctx context.Context, attachmentID, itemID uuid.UUID) error {
	return NewAttachmentRepository(t.tx).LinkToItem(ctx, attachmentID, itemID)
}

func (t *txStore) Items() ports.ItemStore {
	return NewItemRepository(t.tx)
}
