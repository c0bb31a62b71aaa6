package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures database spans and query metrics.
type DBTracingConfig struct {
	Enabled          bool
	DBName           string
	SlowQueryThresh  time.Duration
	WithoutVariables bool
}

// DefaultDBTracingConfig hides query variables and flags queries over 200ms.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		DBName:           "retailops",
		SlowQueryThresh:  200 * time.Millisecond,
		WithoutVariables: true,
	}
}

// DBTracingPlugin installs otelgorm plus a timing callback that marks slow
// queries on the active span and feeds the query duration histogram.
type DBTracingPlugin struct {
	config   DBTracingConfig
	logger   *zap.Logger
	duration *Histogram
}

// NewDBTracingPlugin builds the plugin. meter may be nil, in which case no
// query histogram is recorded.
func NewDBTracingPlugin(cfg DBTracingConfig, meter metric.Meter, logger *zap.Logger) (*DBTracingPlugin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &DBTracingPlugin{config: cfg, logger: logger}
	if meter != nil {
		h, err := NewHistogram(meter, HistogramOpts{
			Name:        "retail_db_query_duration_seconds",
			Description: "Database query duration",
			Unit:        "s",
			Boundaries:  DBDurationBuckets,
		})
		if err != nil {
			return nil, err
		}
		p.duration = h
	}
	return p, nil
}

// Register installs the plugin on db. It is a no-op when disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBName)}
	if p.config.WithoutVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	hooks := []struct {
		op            string
		before, after callbackRegistrar
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}
	for _, h := range hooks {
		if err := h.before.Register("retail_timing:before_"+h.op, p.start); err != nil {
			return err
		}
		if err := h.after.Register("retail_timing:after_"+h.op, p.finish(h.op)); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.String("db_name", p.config.DBName),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

type queryStartKey struct{}

func (p *DBTracingPlugin) start(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (p *DBTracingPlugin) finish(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		started, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(started)
		if p.duration != nil {
			p.duration.RecordDuration(ctx, elapsed,
				AttrDBOperation.String(op),
				AttrDBTable.String(db.Statement.Table),
			)
		}

		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			RecordError(span, db.Error)
		}
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
