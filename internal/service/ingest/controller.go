// Package ingest orchestrates one batch run of the pipeline:
// fetch → privacy gate → extract → reconcile → persist, per email,
// with idempotent incremental sync driven by an explicit watermark.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "schoolmail/contracts/mq"
	"schoolmail/internal/model"
	"schoolmail/internal/oracle"
	"schoolmail/internal/ports"
	"schoolmail/internal/service/dedup"
	"schoolmail/pkg/logger"
	"schoolmail/pkg/metrics"
	"schoolmail/pkg/mq"
	"schoolmail/pkg/trace"
	"schoolmail/pkg/util"
)

// ErrRunInProgress means another ingestion run holds the run lock.
var ErrRunInProgress = errors.New("ingestion run already in progress")

const defaultOracleWorkers = 4

type Config struct {
	// OracleWorkers bounds the fan-out of oracle calls across emails.
	OracleWorkers int
	// MaxSchemaRetries is how many runs a schema-violating email may fail
	// before the controller logs an escalation for manual intervention.
	MaxSchemaRetries int64
}

type Controller struct {
	source     ports.MailSource
	classifier ports.PrivacyClassifier
	extractor  ports.ItemExtractor
	store      ports.IngestStore
	engine     *dedup.Engine
	publisher  ports.EventPublisher
	lock       ports.RunLocker
	retries    ports.RetryCounter
	cfg        Config
	logger     *zap.Logger
}

func NewController(
	source ports.MailSource,
	classifier ports.PrivacyClassifier,
	extractor ports.ItemExtractor,
	store ports.IngestStore,
	engine *dedup.Engine,
	publisher ports.EventPublisher,
	lock ports.RunLocker,
	retries ports.RetryCounter,
	cfg Config,
	logger *zap.Logger,
) *Controller {
	if cfg.OracleWorkers <= 0 {
		cfg.OracleWorkers = defaultOracleWorkers
	}
	return &Controller{
		source:     source,
		classifier: classifier,
		extractor:  extractor,
		store:      store,
		engine:     engine,
		publisher:  publisher,
		lock:       lock,
		retries:    retries,
		cfg:        cfg,
		logger:     logger,
	}
}

// oracleOutcome is the side-effect-free result of the oracle stage for one
// message. Persistence happens later, in ascending order.
type oracleOutcome struct {
	privacy    *model.PrivacyResult
	candidates []model.CandidateItem
	err        error
}

// Run executes one ingestion batch over all messages received strictly after
// since. The returned report carries the new watermark: the received time of
// the last email in the contiguous committed prefix. Runs are serialized by
// the run lock; a second concurrent call returns ErrRunInProgress.
func (c *Controller) Run(ctx context.Context, since time.Time) (model.IngestReport, error) {
	report := model.IngestReport{Watermark: since}

	ctx = trace.WithContext(ctx, trace.GenerateTraceID())
	runLog := logger.WithTrace(ctx, c.logger)

	if !c.lock.Acquire(ctx) {
		return report, ErrRunInProgress
	}
	defer c.lock.Release(ctx)

	messages, err := c.source.FetchSince(ctx, since)
	if err != nil {
		return report, fmt.Errorf("failed to fetch messages: %w", err)
	}
	report.Fetched = len(messages)

	// The provider gives messages in no particular order; watermark
	// advancement needs ascending received time.
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].ReceivedAt.Equal(messages[j].ReceivedAt) {
			return messages[i].GmailID < messages[j].GmailID
		}
		return messages[i].ReceivedAt.Before(messages[j].ReceivedAt)
	})

	// Idempotence guard first, so already-recorded ids (tombstones included)
	// never reach the oracle again.
	pending := make([]model.SourceMessage, 0, len(messages))
	for _, msg := range messages {
		exists, err := c.store.EmailExists(ctx, msg.GmailID)
		if err != nil {
			return report, fmt.Errorf("failed to check email existence: %w", err)
		}
		if exists {
			report.Skipped++
			metrics.IncrementEmailProcessed("skipped")
			continue
		}
		pending = append(pending, msg)
	}

	outcomes := c.runOracleStage(ctx, pending)

	// Commit stage: strictly ascending, one transaction per email. The
	// watermark only advances across the contiguous committed prefix, so a
	// failed email is re-fetched (and re-attempted) on the next run while
	// later successes stay committed and are skipped by the gmail_id guard.
	watermarkBlocked := false
	for i, msg := range pending {
		msg := msg // per-iteration copy; email.Body aliases msg.Body
		ok := c.commitMessage(ctx, &msg, outcomes[i], &report, runLog)
		if !ok {
			watermarkBlocked = true
			continue
		}
		if !watermarkBlocked {
			report.Watermark = msg.ReceivedAt
		}
	}

	runLog.Info("Ingestion run finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("skipped", report.Skipped),
		zap.Int("tombstoned", report.Tombstoned),
		zap.Int("ingested", report.Ingested),
		zap.Int("failed", report.Failed),
		zap.Time("watermark", report.Watermark),
	)

	return report, nil
}

// runOracleStage fans the classify+extract calls out over a bounded worker
// pool. The stage has no side effects, so order does not matter here.
func (c *Controller) runOracleStage(ctx context.Context, pending []model.SourceMessage) []oracleOutcome {
	outcomes := make([]oracleOutcome, len(pending))
	sem := make(chan struct{}, c.cfg.OracleWorkers)
	done := make(chan struct{})

	for i := range pending {
		sem <- struct{}{}
		go func(i int) {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			outcomes[i] = c.consultOracle(ctx, &pending[i])
		}(i)
	}
	for range pending {
		<-done
	}

	return outcomes
}

func (c *Controller) consultOracle(ctx context.Context, msg *model.SourceMessage) oracleOutcome {
	privacy, err := c.classifier.ClassifyPrivacy(ctx, msg.Subject, msg.Body)
	if err != nil {
		return oracleOutcome{err: fmt.Errorf("privacy classification: %w", err)}
	}
	if !privacy.Passed {
		return oracleOutcome{privacy: privacy}
	}

	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}

	candidates, err := c.extractor.ExtractItems(ctx, msg.Subject, msg.Body, names)
	if err != nil {
		return oracleOutcome{privacy: privacy, err: fmt.Errorf("item extraction: %w", err)}
	}
	return oracleOutcome{privacy: privacy, candidates: candidates}
}

// commitMessage persists one message's outcome. Returns false when the email
// failed and the watermark must stop before it.
func (c *Controller) commitMessage(ctx context.Context, msg *model.SourceMessage, outcome oracleOutcome, report *model.IngestReport, runLog *zap.Logger) bool {
	log := runLog.With(
		zap.String("gmail_id", msg.GmailID),
		zap.String("subject", msg.Subject),
	)

	if outcome.err != nil {
		c.recordFailure(ctx, msg, outcome.err, log)
		report.Failed++
		metrics.IncrementEmailProcessed("failed")
		return false
	}

	if !outcome.privacy.Passed {
		// Terminal classification, not an error. Only the identifier and the
		// fail flag are persisted; the body is never stored anywhere.
		if err := c.store.InsertTombstone(ctx, msg.GmailID); err != nil {
			log.Error("Failed to write privacy tombstone", zap.Error(err))
			report.Failed++
			metrics.IncrementEmailProcessed("failed")
			return false
		}
		log.Info("Privacy check failed, tombstone recorded",
			zap.String("reason", outcome.privacy.Reason),
		)
		report.Tombstoned++
		metrics.IncrementEmailProcessed("tombstoned")
		return true
	}

	var result *dedup.Result
	email := &model.Email{
		ID:          uuid.New(),
		GmailID:     msg.GmailID,
		FromAddress: msg.From,
		Subject:     msg.Subject,
		ReceivedAt:  msg.ReceivedAt,
		Body:        &msg.Body,
	}

	attachments := make([]model.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, model.Attachment{
			ID:          uuid.New(),
			EmailID:     email.ID,
			Filename:    a.Filename,
			MimeType:    a.MimeType,
			SizeBytes:   a.SizeBytes,
			ProviderRef: a.ProviderRef,
		})
	}

	err := c.store.WithinTx(ctx, func(tx ports.TxStore) error {
		if err := tx.InsertEmail(ctx, email); err != nil {
			return fmt.Errorf("failed to insert email: %w", err)
		}
		if err := tx.InsertAttachments(ctx, attachments); err != nil {
			return fmt.Errorf("failed to insert attachments: %w", err)
		}
		var reconcileErr error
		result, reconcileErr = c.engine.Reconcile(ctx, tx.Items(), email.ID, outcome.candidates)
		if reconcileErr != nil {
			return reconcileErr
		}
		return linkAttachments(ctx, tx, attachments, result.Inserted)
	})
	if err != nil {
		c.recordFailure(ctx, msg, err, log)
		report.Failed++
		metrics.IncrementEmailProcessed("failed")
		return false
	}

	// Commit succeeded; clear any schema-failure escalation state.
	if err := c.retries.Reset(ctx, util.FormatRetryKey("ingest", msg.GmailID)); err != nil {
		log.Warn("Failed to reset retry counter", zap.Error(err))
	}

	c.publishItemEvents(email.ID, result, log)

	report.Ingested++
	report.ItemsCreated += len(result.Inserted)
	report.ItemsSuperseded += len(result.Superseded)
	report.ItemsDiscarded += result.Discarded
	metrics.IncrementEmailProcessed("ingested")

	log.Info("Email ingested",
		zap.Int("items_created", len(result.Inserted)),
		zap.Int("items_superseded", len(result.Superseded)),
		zap.Int("items_discarded", result.Discarded),
	)
	return true
}

// linkAttachments points attachment rows at the inserted items that name
// them. An unknown filename from the oracle is ignored, the attachment rows
// are the authority on what exists.
func linkAttachments(ctx context.Context, tx ports.TxStore, attachments []model.Attachment, inserted []model.Item) error {
	if len(attachments) == 0 {
		return nil
	}

	byName := make(map[string]uuid.UUID, len(attachments))
	for _, a := range attachments {
		if _, ok := byName[a.Filename]; !ok {
			byName[a.Filename] = a.ID
		}
	}

	for _, item := range inserted {
		for _, name := range item.AttachmentFilenames {
			attID, ok := byName[name]
			if !ok {
				continue
			}
			if err := tx.LinkAttachment(ctx, attID, item.ID); err != nil {
				return fmt.Errorf("failed to link attachment: %w", err)
			}
		}
	}
	return nil
}

// recordFailure logs one email's failure with its retryability class. Schema
// violations additionally bump the cross-run counter and escalate past the
// cap, since they stay broken until a human fixes prompt or content.
func (c *Controller) recordFailure(ctx context.Context, msg *model.SourceMessage, err error, log *zap.Logger) {
	var schemaErr *oracle.SchemaError
	if errors.As(err, &schemaErr) {
		count, counterErr := c.retries.IncrementAndGet(ctx, util.FormatRetryKey("ingest", msg.GmailID))
		if counterErr != nil {
			log.Warn("Failed to bump schema retry counter", zap.Error(counterErr))
		}
		if c.cfg.MaxSchemaRetries > 0 && count > c.cfg.MaxSchemaRetries {
			log.Error("Oracle schema violation persists, manual intervention needed",
				zap.Int64("attempts", count),
				zap.Error(err),
			)
			return
		}
		log.Warn("Oracle schema violation, will retry next run",
			zap.Int64("attempts", count),
			zap.Error(err),
		)
		return
	}

	retryable, errType := util.IsRetryableError(err)
	log.Error("Failed to process email",
		zap.String("error_type", errType),
		zap.Bool("retryable", retryable),
		zap.Error(err),
	)
}

// publishItemEvents notifies downstream consumers after commit. Best-effort:
// the item rows are the source of truth, a failed publish is logged and
// counted but never fails the email.
func (c *Controller) publishItemEvents(emailID uuid.UUID, result *dedup.Result, log *zap.Logger) {
	for _, item := range result.Inserted {
		payload := mqcontracts.ItemCreatedPayload{
			ItemID:    item.ID,
			EmailID:   emailID,
			Content:   item.Content,
			DateStart: item.DateStart,
			DateEnd:   item.DateEnd,
			CreatedAt: item.CreatedAt,
		}
		if err := c.publisher.Publish(mq.RoutingKeyItemCreated, payload); err != nil {
			log.Warn("Failed to publish item.created", zap.Error(err))
			metrics.IncrementEventPublished(mq.RoutingKeyItemCreated, "error")
			continue
		}
		metrics.IncrementEventPublished(mq.RoutingKeyItemCreated, "ok")
	}

	for _, pair := range result.Superseded {
		payload := mqcontracts.ItemSupersededPayload{
			OldItemID: pair.OldID,
			NewItemID: pair.NewID,
			EmailID:   emailID,
		}
		if err := c.publisher.Publish(mq.RoutingKeyItemSuperseded, payload); err != nil {
			log.Warn("Failed to publish item.superseded", zap.Error(err))
			metrics.IncrementEventPublished(mq.RoutingKeyItemSuperseded, "error")
			continue
		}
		metrics.IncrementEventPublished(mq.RoutingKeyItemSuperseded, "ok")
	}
}
