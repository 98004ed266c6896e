package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"schoolmail/internal/config"
	"schoolmail/internal/mailsource"
	"schoolmail/internal/oracle"
	"schoolmail/internal/repository"
	"schoolmail/internal/service/dedup"
	"schoolmail/internal/service/ingest"
	"schoolmail/pkg/db"
	"schoolmail/pkg/logger"
	"schoolmail/pkg/mq"
	pkgredis "schoolmail/pkg/redis"
	"schoolmail/pkg/util"
)

func main() {
	var (
		configDir = flag.String("config", "config", "config directory")
		sinceFlag = flag.String("since", "", "override watermark (RFC3339); defaults to the latest stored email")
	)
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configDir)
	if err != nil {
		panic(err)
	}

	logger := logger.NewLogger()
	defer logger.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis (run lock + schema retry counters)
	rdb := pkgredis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	lockTTL := time.Duration(cfg.Ingest.RunLockTTLSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	runLock := util.NewRunLock(rdb, "ingest:run", lockTTL, logger)
	retryCounter := util.NewRetryCounter(rdb, 7*24*time.Hour)

	// Init RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("MQ initialization failed", zap.Error(err))
	}
	defer publisher.Close()

	// Init adapters
	source := mailsource.NewGmailSource(cfg.Mail.BaseURL, cfg.Mail.Token, cfg.Mail.AllowedSenders, logger)

	oracleTimeout := time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second
	if oracleTimeout <= 0 {
		oracleTimeout = 60 * time.Second
	}
	oracleClient := oracle.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model, oracleTimeout, logger)

	store := repository.NewStore(dbConn)
	engine := dedup.NewEngine(cfg.Ingest.SimilarityThreshold, logger)

	controller := ingest.NewController(
		source,
		oracleClient,
		oracleClient,
		store,
		engine,
		publisher,
		runLock,
		retryCounter,
		ingest.Config{
			OracleWorkers:    cfg.Ingest.OracleWorkers,
			MaxSchemaRetries: cfg.Ingest.MaxSchemaRetries,
		},
		logger,
	)

	ctx := context.Background()

	watermarks := repository.NewWatermarkRepository(dbConn)
	emails := repository.NewEmailRepository(dbConn)

	since, err := resolveSince(ctx, *sinceFlag, watermarks, emails)
	if err != nil {
		logger.Fatal("Failed to resolve watermark", zap.Error(err))
	}

	logger.Info("Starting ingestion run", zap.Time("since", since))
	report, err := controller.Run(ctx, since)
	if err != nil {
		logger.Fatal("Ingestion run failed", zap.Error(err))
	}

	// The report's watermark is the contiguous committed prefix; persist it so
	// the next run resumes there and a mid-batch failure gets refetched.
	if err := watermarks.Save(ctx, watermarkName, report.Watermark); err != nil {
		logger.Error("Failed to save watermark", zap.Error(err))
	}

	logger.Info("Ingestion run complete",
		zap.Int("fetched", report.Fetched),
		zap.Int("ingested", report.Ingested),
		zap.Int("tombstoned", report.Tombstoned),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("items_created", report.ItemsCreated),
		zap.Int("items_superseded", report.ItemsSuperseded),
		zap.Int("items_discarded", report.ItemsDiscarded),
		zap.Time("watermark", report.Watermark),
	)
}

const watermarkName = "ingest"

type watermarkLoader interface {
	Load(ctx context.Context, name string) (*time.Time, error)
}

type emailHistory interface {
	LatestReceivedAt(ctx context.Context) (*time.Time, error)
}

// resolveSince picks the run's starting watermark: the explicit flag when
// given, otherwise the watermark the previous run saved, otherwise the
// received time of the newest stored email (database predating the watermark
// table), otherwise a 30 day backfill window for a fresh database.
// max(received_at) alone is never enough once a watermark was saved: a later
// email can be committed while an earlier one still needs a retry.
func resolveSince(ctx context.Context, flagValue string, watermarks watermarkLoader, emails emailHistory) (time.Time, error) {
	if flagValue != "" {
		return time.Parse(time.RFC3339, flagValue)
	}

	saved, err := watermarks.Load(ctx, watermarkName)
	if err != nil {
		return time.Time{}, err
	}
	if saved != nil {
		return *saved, nil
	}

	latest, err := emails.LatestReceivedAt(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil {
		return *latest, nil
	}
	return time.Now().AddDate(0, 0, -30), nil
}
