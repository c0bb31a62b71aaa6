package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func stmt(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	log, logs := observed()
	gl := NewGormLogger(log, gormlogger.Info, WithSlowThreshold(50*time.Millisecond))
	ctx := context.Background()

	gl.Trace(ctx, time.Now(), stmt("SELECT 1", 1), nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), stmt("SELECT pg_sleep(1)", 1), nil)
	gl.Trace(ctx, time.Now(), stmt("INSERT INTO stock_movements", 0), errors.New("duplicate key"))
	gl.Trace(ctx, time.Now(), stmt("SELECT * FROM batches", 0), gormlogger.ErrRecordNotFound)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "gorm", entries[0].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "Slow SQL", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "INSERT INTO stock_movements", entries[2].ContextMap()["sql"])
}

func TestGormLogger_Levels(t *testing.T) {
	log, logs := observed()
	gl := NewGormLogger(log, gormlogger.Silent)
	ctx := context.Background()

	gl.Trace(ctx, time.Now(), stmt("SELECT 1", 1), errors.New("ignored"))
	gl.Info(ctx, "ignored %d", 1)
	assert.Zero(t, logs.Len())

	warn := gl.LogMode(gormlogger.Warn)
	warn.Info(ctx, "ignored")
	warn.Warn(ctx, "pool %s", "exhausted")
	warn.Error(ctx, "connection %s", "lost")
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "pool exhausted", logs.All()[0].Message)
	assert.Zero(t, logs.FilterMessage("ignored").Len(), "LogMode returns a copy")

	gl.Warn(ctx, "still silent")
	assert.Equal(t, 2, logs.Len())
}

func TestGormLogger_UsesRequestLogger(t *testing.T) {
	base, baseLogs := observed()
	reqLog, reqLogs := observed()
	gl := NewGormLogger(base, gormlogger.Info)

	ctx := WithRequestID(WithContext(context.Background(), reqLog), "req-3")
	gl.Trace(ctx, time.Now(), stmt("SELECT 1", 1), nil)

	assert.Zero(t, baseLogs.Len())
	require.Equal(t, 1, reqLogs.Len())
	assert.Equal(t, "req-3", reqLogs.All()[0].ContextMap()["request_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
