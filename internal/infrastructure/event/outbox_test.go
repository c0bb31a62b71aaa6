package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/persistence/models"
	"github.com/erp/retailops/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))
	return db
}

func newEntry(t *testing.T, s *EventSerializer) *shared.OutboxEntry {
	t.Helper()
	e := testutil.NewTestEvent("TestEvent", uuid.New())
	payload, err := s.Serialize(e)
	require.NoError(t, err)
	return shared.NewOutboxEntry(e, payload)
}

func testSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register("TestEvent", &testutil.TestEvent{})
	return s
}

func TestOutboxEntry_Lifecycle(t *testing.T) {
	entry := newEntry(t, testSerializer())
	assert.Equal(t, shared.OutboxPending, entry.Status)
	assert.Equal(t, shared.DefaultOutboxMaxAttempts, entry.MaxAttempts)

	require.NoError(t, entry.Claim())
	assert.Equal(t, shared.OutboxProcessing, entry.Status)
	assert.Error(t, entry.Claim(), "already processing")

	entry.MarkFailed("timeout")
	assert.Equal(t, shared.OutboxFailed, entry.Status)
	require.NotNil(t, entry.NextAttemptAt)
	first := entry.NextAttemptAt.Sub(entry.UpdatedAt)

	require.NoError(t, entry.Claim())
	entry.MarkFailed("timeout")
	assert.Equal(t, 2*first, entry.NextAttemptAt.Sub(entry.UpdatedAt), "backoff doubles")

	for entry.Status != shared.OutboxDead {
		require.NoError(t, entry.Claim())
		entry.MarkFailed("timeout")
	}
	assert.Equal(t, entry.MaxAttempts, entry.Attempts)
	assert.Nil(t, entry.NextAttemptAt)
	assert.Error(t, entry.Claim(), "dead entries stay dead")
}

func TestOutboxPublisher_WritesInsideTransaction(t *testing.T) {
	db := newOutboxDB(t)
	s := testSerializer()
	w := NewOutboxPublisher(s)
	ctx := context.Background()

	e1 := testutil.NewTestEvent("TestEvent", uuid.New())
	e2 := testutil.NewTestEvent("TestEvent", uuid.New())
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return w.Write(ctx, tx, e1, e2)
	}))

	boom := errors.New("rollback")
	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, w.Write(ctx, tx, testutil.NewTestEvent("TestEvent", uuid.New())))
		return boom
	})
	require.ErrorIs(t, err, boom)

	var rows []models.OutboxEntryModel
	require.NoError(t, db.Order("created_at").Find(&rows).Error)
	require.Len(t, rows, 2, "rolled back events are not stored")
	ids := []uuid.UUID{rows[0].EventID, rows[1].EventID}
	assert.ElementsMatch(t, []uuid.UUID{e1.EventID(), e2.EventID()}, ids)
	assert.Contains(t, []uuid.UUID{e1.TenantID(), e2.TenantID()}, rows[0].TenantID)
}

func TestGormOutboxRepository_ClaimDue(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	s := testSerializer()
	ctx := context.Background()
	now := time.Now()

	pending := newEntry(t, s)
	due := newEntry(t, s)
	due.Status = shared.OutboxFailed
	past := now.Add(-time.Minute)
	due.NextAttemptAt = &past
	later := newEntry(t, s)
	later.Status = shared.OutboxFailed
	future := now.Add(time.Hour)
	later.NextAttemptAt = &future
	require.NoError(t, repo.Save(ctx, pending, due, later))

	claimed, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	got := make([]uuid.UUID, len(claimed))
	for i, e := range claimed {
		got[i] = e.ID
		assert.Equal(t, shared.OutboxProcessing, e.Status)
	}
	assert.ElementsMatch(t, []uuid.UUID{pending.ID, due.ID}, got)

	again, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "claimed entries are not handed out twice")

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[shared.OutboxProcessing])
	assert.Equal(t, int64(1), counts[shared.OutboxFailed])
}

func TestGormOutboxRepository_ClaimDueSkipsLockedRows(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	repo := NewGormOutboxRepository(mdb.DB)
	now := time.Now()

	mdb.Mock.ExpectBegin()
	mdb.Mock.ExpectQuery(`SELECT \* FROM "outbox_events" WHERE .* FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "event_type", "status", "attempts", "max_attempts", "created_at", "updated_at"}).
			AddRow(uuid.NewString(), uuid.NewString(), "TestEvent", string(shared.OutboxPending), 0, 5, now, now))
	mdb.Mock.ExpectExec(`UPDATE "outbox_events" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mdb.Mock.ExpectCommit()

	claimed, err := repo.ClaimDue(context.Background(), now, 50)

	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, shared.OutboxProcessing, claimed[0].Status)
	mdb.ExpectationsWereMet(t)
}

func TestGormOutboxRepository_DeleteSentBefore(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	s := testSerializer()
	ctx := context.Background()

	old, fresh, open := newEntry(t, s), newEntry(t, s), newEntry(t, s)
	require.NoError(t, repo.Save(ctx, old, fresh, open))

	old.MarkSent()
	sentAt := time.Now().Add(-48 * time.Hour)
	old.SentAt = &sentAt
	require.NoError(t, repo.Update(ctx, old))
	fresh.MarkSent()
	require.NoError(t, repo.Update(ctx, fresh))

	deleted, err := repo.DeleteSentBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func TestOutboxProcessor_ProcessBatch(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	s := testSerializer()
	ctx := context.Background()
	published := testutil.NewRecordingPublisher()

	good := newEntry(t, s)
	unknown := newEntry(t, s)
	unknown.EventType = "Unregistered"
	require.NoError(t, repo.Save(ctx, good, unknown))

	p := NewOutboxProcessor(repo, published, s, DefaultOutboxProcessorConfig(), zap.NewNop())
	sent := p.ProcessBatch(ctx)

	assert.Equal(t, 1, sent)
	require.Len(t, published.Events(), 1)
	assert.Equal(t, good.EventID, published.Events()[0].EventID())

	var rows []models.OutboxEntryModel
	require.NoError(t, db.Find(&rows).Error)
	byID := map[uuid.UUID]models.OutboxEntryModel{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	assert.Equal(t, shared.OutboxSent, byID[good.ID].Status)
	assert.NotNil(t, byID[good.ID].SentAt)
	assert.Equal(t, shared.OutboxFailed, byID[unknown.ID].Status)
	assert.Equal(t, 1, byID[unknown.ID].Attempts)
	assert.Contains(t, byID[unknown.ID].LastError, "unknown event type")
}

func TestOutboxProcessor_PublisherFailureSchedulesRetry(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	s := testSerializer()
	ctx := context.Background()
	published := testutil.NewRecordingPublisher()
	published.SetError(errors.New("broker down"))

	entry := newEntry(t, s)
	require.NoError(t, repo.Save(ctx, entry))

	p := NewOutboxProcessor(repo, published, s, DefaultOutboxProcessorConfig(), zap.NewNop())
	assert.Zero(t, p.ProcessBatch(ctx))
	assert.Zero(t, p.ProcessBatch(ctx), "not due until the backoff passes")

	p.now = func() time.Time { return time.Now().Add(time.Minute) }
	published.Reset()
	assert.Equal(t, 1, p.ProcessBatch(ctx))
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	s := testSerializer()
	published := testutil.NewRecordingPublisher()
	require.NoError(t, repo.Save(context.Background(), newEntry(t, s)))

	cfg := DefaultOutboxProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.CleanupInterval = 10 * time.Millisecond
	p := NewOutboxProcessor(repo, published, s, cfg, zap.NewNop())
	require.NoError(t, p.Start(context.Background()))

	testutil.RequireEventually(t, func() bool { return len(published.Events()) == 1 },
		2*time.Second, 10*time.Millisecond, "entry relayed")

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
}

func TestGormOutboxRepository_RequeueDead(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	s := testSerializer()
	ctx := context.Background()

	dead, live := newEntry(t, s), newEntry(t, s)
	require.NoError(t, repo.Save(ctx, dead, live))
	for dead.Status != shared.OutboxDead {
		require.NoError(t, dead.Claim())
		dead.MarkFailed("broker down")
	}
	require.NoError(t, repo.Update(ctx, dead))

	moved, err := repo.RequeueDead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	var row models.OutboxEntryModel
	require.NoError(t, db.First(&row, "id = ?", dead.ID).Error)
	assert.Equal(t, shared.OutboxPending, row.Status)
	assert.Zero(t, row.Attempts)
	assert.Empty(t, row.LastError)

	claimed, err := repo.ClaimDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, claimed, 2, "requeued entries are claimable again")
}
