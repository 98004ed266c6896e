package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"schoolmail/pkg/metrics"
)

type traceCtxKey string

const (
	queryStartKey traceCtxKey = "query_start_time"
	querySQLKey   traceCtxKey = "query_sql"
)

// SlowQueryTracer 慢查询监控 Tracer
type SlowQueryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration // 慢查询阈值，默认 100ms
}

// NewSlowQueryTracer 创建慢查询 Tracer
func NewSlowQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *SlowQueryTracer {
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &SlowQueryTracer{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

// TraceQueryStart 查询开始时的钩子
func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx = context.WithValue(ctx, queryStartKey, time.Now())
	ctx = context.WithValue(ctx, querySQLKey, data.SQL)
	return ctx
}

// TraceQueryEnd 查询结束时的钩子
func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	startTime, ok := ctx.Value(queryStartKey).(time.Time)
	if !ok {
		return
	}

	duration := time.Since(startTime)

	// 如果查询时间超过阈值，记录警告日志和指标
	if duration > t.slowThreshold {
		sql, _ := ctx.Value(querySQLKey).(string)
		if sql == "" {
			sql = "unknown"
		}

		// 截断 SQL 语句（避免日志过长）
		if len(sql) > 200 {
			sql = sql[:200] + "..."
		}

		t.logger.Warn("slow-query",
			zap.String("sql", sql),
			zap.Duration("took", duration),
			zap.String("command_tag", data.CommandTag.String()),
		)

		metrics.IncrementSlowQuery()
	}
}
