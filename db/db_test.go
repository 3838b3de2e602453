package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"siteflow/db"
	"siteflow/models"
)

func newMockStorage(t *testing.T) (*db.Storage, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return db.NewStorage(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func entityColumns() []string {
	return []string{
		"id", "kind", "current_state", "title", "description",
		"raised_by", "assigned_to", "question", "response",
		"issued_by", "awarded_to", "budget", "deadline",
		"created_at", "updated_at",
	}
}

func TestApplyTransitionCommitsUpdateAndAuditTogether(t *testing.T) {
	store, mock := newMockStorage(t)

	rec := &models.TransitionRecord{
		ID: "11111111-2222-3333-4444-555555555555", EntityID: 1,
		FromState: models.StateReview, ToState: models.StateApproved,
		Action: models.ActionApprove, ActorID: "bob",
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE entities").
		WithArgs(string(rec.ToState), rec.EntityID, string(rec.FromState)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO transitions").
		WithArgs(rec.ID, rec.EntityID, string(rec.FromState), string(rec.ToState),
			string(rec.Action), rec.ActorID, rec.Notes).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	applied, err := store.ApplyTransition(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, applied)
	require.False(t, rec.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionGuardFailurePersistsNothing(t *testing.T) {
	store, mock := newMockStorage(t)

	rec := &models.TransitionRecord{
		ID: "11111111-2222-3333-4444-555555555555", EntityID: 1,
		FromState: models.StateReview, ToState: models.StateApproved,
		Action: models.ActionApprove, ActorID: "bob",
	}

	// The conditional update matches no row: another writer moved the
	// entity first. No transition row is inserted.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE entities").
		WithArgs(string(rec.ToState), rec.EntityID, string(rec.FromState)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	applied, err := store.ApplyTransition(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestTransitionReturnsNewestRecord(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{
		"id", "entity_id", "from_state", "to_state", "action", "actor_id", "notes", "created_at",
	}).AddRow(
		"11111111-2222-3333-4444-555555555555", 1,
		"review", "approved", "approve", "bob", "", time.Now(),
	)
	mock.ExpectQuery(`SELECT \* FROM transitions`).WithArgs(1).WillReturnRows(rows)

	rec, err := store.LatestTransition(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, models.StateApproved, rec.ToState)
	require.Equal(t, models.ActionApprove, rec.Action)
	require.Equal(t, "bob", rec.ActorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEntityRejectsUnknownStateAtTheBoundary(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows(entityColumns()).AddRow(
		1, "request", "SHIPPED", "clarify slab thickness", "",
		"alice", "bob", "", "",
		"", "", 0.0, nil,
		time.Now(), time.Now(),
	)
	mock.ExpectQuery(`SELECT \* FROM entities`).WithArgs(1).WillReturnRows(rows)

	_, err := store.GetEntity(context.Background(), 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptBidIsAConditionalSetOperation(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE bid").
		WithArgs(3, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AcceptBid(context.Background(), 10, 3))
	require.NoError(t, mock.ExpectationsWereMet())

	// Re-applying matches zero rows and still succeeds.
	mock.ExpectExec("UPDATE bid").
		WithArgs(3, 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.AcceptBid(context.Background(), 10, 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectOtherBidsSparesTheWinner(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE bid").
		WithArgs(10, 3).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.RejectOtherBids(context.Background(), 10, 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleReminderIgnoresDuplicates(t *testing.T) {
	store, mock := newMockStorage(t)

	rem := &models.Reminder{
		EntityID: 1, State: models.StateReview,
		TransitionID: "11111111-2222-3333-4444-555555555555",
		Kind:         models.ReminderFirst, DueAt: time.Now().AddDate(0, 0, 3),
	}

	mock.ExpectExec("INSERT INTO reminder").
		WithArgs(rem.EntityID, string(rem.State), rem.TransitionID, string(rem.Kind), rem.DueAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.ScheduleReminder(context.Background(), rem))
	require.NoError(t, mock.ExpectationsWereMet())
}
