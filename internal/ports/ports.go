// Package ports declares the narrow interfaces the pipeline and the triage
// services consume. Infrastructure adapters (gmail client, oracle client,
// pgx repositories, rabbitmq publisher, redis locks) implement them; tests
// substitute deterministic fakes.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"schoolmail/internal/model"
)

// MailSource supplies messages received strictly after since.
type MailSource interface {
	FetchSince(ctx context.Context, since time.Time) ([]model.SourceMessage, error)
}

// PrivacyClassifier decides whether a message is broadly distributable.
// The verdict is binary and it is the sole gate for persisting body text.
type PrivacyClassifier interface {
	ClassifyPrivacy(ctx context.Context, subject, body string) (*model.PrivacyResult, error)
}

// ItemExtractor turns subject+body into candidate items. Attachment
// filenames are offered so candidates can reference them. Malformed oracle
// output surfaces as *oracle.SchemaError.
type ItemExtractor interface {
	ExtractItems(ctx context.Context, subject, body string, attachmentNames []string) ([]model.CandidateItem, error)
}

// EventPublisher pushes item events for downstream consumers. Publishing is
// best-effort after commit, a failure never rolls the email back.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// RunLocker serializes ingestion runs.
type RunLocker interface {
	Acquire(ctx context.Context) bool
	Release(ctx context.Context)
}

// RetryCounter tracks consecutive failures per external message id across
// runs, so permanently malformed oracle responses get escalated.
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// ItemStore is the item arena reconciliation works against.
type ItemStore interface {
	Insert(ctx context.Context, item *model.Item) error
	ListCurrent(ctx context.Context) ([]model.Item, error)
	Find(ctx context.Context, id uuid.UUID) (*model.Item, error)
	SupersedeIfCurrent(ctx context.Context, oldID, newID uuid.UUID) (bool, error)
}

// TxStore is the transaction-scoped view the per-email commit runs in:
// email insert, attachment metadata and item reconciliation, all-or-nothing.
type TxStore interface {
	InsertEmail(ctx context.Context, e *model.Email) error
	InsertAttachments(ctx context.Context, atts []model.Attachment) error
	LinkAttachment(ctx context.Context, attachmentID, itemID uuid.UUID) error
	Items() ItemStore
}

// IngestStore is the persistence surface of the ingestion controller.
type IngestStore interface {
	EmailExists(ctx context.Context, gmailID string) (bool, error)
	InsertTombstone(ctx context.Context, gmailID string) error
	WithinTx(ctx context.Context, fn func(TxStore) error) error
}

// TriageStore is the persistence surface of the triage state store.
type TriageStore interface {
	UpsertStatus(ctx context.Context, s *model.UserItemStatus) error
	ListCurrentForUser(ctx context.Context, userID int) ([]model.ItemView, error)
}

// UserStore backs registration and login.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (int, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}
