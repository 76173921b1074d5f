package worker

import (
	"context"
	"errors"
	"testing"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppender struct {
	appended []*core.Record
	err      error
}

func (f *fakeAppender) AppendRecord(_ context.Context, rec *core.Record) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, rec)
	return nil
}

func newWorkerFixture(t *testing.T) (*storage.SQLiteRepository, *fakeAppender, *ExportWorker, int64) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	user, err := repo.CreateUser(ctx, "Alice", "alice@example.com", "hash", core.RoleUser)
	require.NoError(t, err)

	appender := &fakeAppender{}
	return repo, appender, NewExportWorker(repo, appender), user.ID
}

func TestHandleRecordEventCreated(t *testing.T) {
	repo, appender, w, userID := newWorkerFixture(t)
	ctx := context.Background()

	rec, err := repo.CreateRecord(ctx, core.Record{
		Kind:     core.KindIncome,
		Category: "SALARY",
		Amount:   core.Money{Cents: 10000},
		Date:     core.NewDate(2025, 1, 10),
		UserID:   userID,
	})
	require.NoError(t, err)

	err = w.HandleRecordEvent(ctx, amqp.NewRecordEventMessage(core.KindIncome, amqp.ActionCreated, rec.ID))
	require.NoError(t, err)

	require.Len(t, appender.appended, 1)
	assert.Equal(t, rec.ID, appender.appended[0].ID)
	assert.Equal(t, "SALARY", appender.appended[0].Category)
}

func TestHandleRecordEventSkipsUpdatesAndDeletes(t *testing.T) {
	_, appender, w, _ := newWorkerFixture(t)
	ctx := context.Background()

	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEventMessage(core.KindIncome, amqp.ActionUpdated, 1)))
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordEventMessage(core.KindIncome, amqp.ActionDeleted, 1)))
	assert.Empty(t, appender.appended)
}

func TestHandleRecordEventMissingRecord(t *testing.T) {
	_, appender, w, _ := newWorkerFixture(t)

	// Record already deleted. The event is acknowledged, not retried.
	err := w.HandleRecordEvent(context.Background(), amqp.NewRecordEventMessage(core.KindIncome, amqp.ActionCreated, 999))
	require.NoError(t, err)
	assert.Empty(t, appender.appended)
}

func TestHandleRecordEventAppendFailure(t *testing.T) {
	repo, appender, w, userID := newWorkerFixture(t)
	ctx := context.Background()

	rec, err := repo.CreateRecord(ctx, core.Record{
		Kind:     core.KindExpense,
		Category: "FOOD",
		Amount:   core.Money{Cents: 1500},
		Date:     core.NewDate(2025, 4, 1),
		UserID:   userID,
	})
	require.NoError(t, err)

	appender.err = errors.New("sheet unavailable")
	err = w.HandleRecordEvent(ctx, amqp.NewRecordEventMessage(core.KindExpense, amqp.ActionCreated, rec.ID))
	assert.Error(t, err, "append failures propagate so the message is requeued")
}
