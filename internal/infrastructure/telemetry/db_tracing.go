package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in spans (never in production)
	SlowQueryThresh time.Duration // default 200ms
	DBName          string
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm and marks slow or failed statements on their span
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerSlowQueryCallbacks(db, cfg.SlowQueryThresh); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func registerSlowQueryCallbacks(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateStatement(tx, threshold) }

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("connhub:start_create", before); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("connhub:mark_create", after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("connhub:start_query", before); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("connhub:mark_query", after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("connhub:start_update", before); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("connhub:mark_update", after); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("connhub:start_raw", before); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("connhub:mark_raw", after)
}

func annotateStatement(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
