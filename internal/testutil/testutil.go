// Package testutil holds helpers shared by package tests: database doubles,
// event recorders and a fully wired in-memory ledger.
package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockDB is a GORM handle over sqlmock speaking the postgres dialect.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens a MockDB and closes it when the test ends.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err, "create sqlmock")
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       conn,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open gorm over sqlmock")

	return &MockDB{DB: db, Mock: mock, SqlDB: conn}
}

// ExpectationsWereMet fails the test on unmet expectations.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet database expectations")
}

// NewSQLiteDB opens a private in-memory sqlite database shared by the
// connections of one pool.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "open sqlite")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewTestUUID returns a UUID derived from seed, stable across runs.
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
}

// RequireEventually polls condition until it holds or timeout passes.
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	require.Fail(t, "condition not met within timeout", msgAndArgs...)
}
