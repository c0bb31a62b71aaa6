package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/retailops/internal/infrastructure/config"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps the GORM handle shared by the repositories and the unit of work.
type Database struct {
	DB *gorm.DB
}

// Options tune how NewDatabase opens the pool.
type Options struct {
	Logger   *zap.Logger
	LogLevel gormlogger.LogLevel
	Tracing  *telemetry.DBTracingPlugin
}

// NewDatabase opens a postgres pool with the given configuration. Query logs
// go through zap; tracing is installed when opts.Tracing is set.
func NewDatabase(cfg *config.DatabaseConfig, opts Options) (*Database, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = gormlogger.Silent
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 logger.NewGormLogger(opts.Logger, opts.LogLevel, logger.WithSlowThreshold(200*time.Millisecond)),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if opts.Tracing != nil {
		if err := opts.Tracing.Register(db); err != nil {
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

func (d *Database) sqlDB() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}

// Close closes the pool.
func (d *Database) Close() error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping is the readiness check for the ledger database.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats reports pool usage for the system info endpoint.
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return ConnectionStats{}, err
	}
	s := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}
