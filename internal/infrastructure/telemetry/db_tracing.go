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

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound variables in db.statement
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns a disabled config that never records query
// variables.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin registers otelgorm and marks slow or failed statements on
// the span otelgorm opened.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh == 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs the plugin on db. It is a no-op when disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerTiming(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) registerTiming(db *gorm.DB) error {
	cb := db.Callback()
	// annotate must see the span before otelgorm ends it
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("clinic_timing:before_create", markQueryStart) },
		func() error { return cb.Query().Before("gorm:query").Register("clinic_timing:before_query", markQueryStart) },
		func() error { return cb.Update().Before("gorm:update").Register("clinic_timing:before_update", markQueryStart) },
		func() error { return cb.Delete().Before("gorm:delete").Register("clinic_timing:before_delete", markQueryStart) },
		func() error { return cb.Row().Before("gorm:row").Register("clinic_timing:before_row", markQueryStart) },
		func() error { return cb.Raw().Before("gorm:raw").Register("clinic_timing:before_raw", markQueryStart) },
		func() error { return cb.Create().After("gorm:create").Before("otel:after:create").Register("clinic_timing:after_create", p.annotate) },
		func() error { return cb.Query().After("gorm:query").Before("otel:after:query").Register("clinic_timing:after_query", p.annotate) },
		func() error { return cb.Update().After("gorm:update").Before("otel:after:update").Register("clinic_timing:after_update", p.annotate) },
		func() error { return cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("clinic_timing:after_delete", p.annotate) },
		func() error { return cb.Row().After("gorm:row").Before("otel:after:row").Register("clinic_timing:after_row", p.annotate) },
		func() error { return cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("clinic_timing:after_raw", p.annotate) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

type contextKey string

const queryStartTimeKey contextKey = "clinic_query_start_time"

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotate runs after each statement. It adds table and row counts to the
// current span, records real errors and flags statements slower than the
// threshold.
func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
