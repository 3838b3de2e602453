package sideeffects

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"siteflow/internal/notify"
	"siteflow/models"
)

type fakeSchedStore struct {
	mu        sync.Mutex
	entities  map[int]*models.WorkflowEntity
	reminders []models.Reminder
	sent      []int
}

func (f *fakeSchedStore) GetEntity(_ context.Context, id int) (*models.WorkflowEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.entities[id]
	return &cp, nil
}

func (f *fakeSchedStore) DueReminders(_ context.Context, now time.Time, _ int) ([]models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []models.Reminder
	for _, r := range f.reminders {
		if r.SentAt == nil && !r.DueAt.After(now) {
			due = append(due, r)
		}
	}
	return due, nil
}

func (f *fakeSchedStore) MarkReminderSent(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for i := range f.reminders {
		if f.reminders[i].ID == id {
			f.reminders[i].SentAt = &now
		}
	}
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeSchedStore) PendingAwardReconciliations(_ context.Context, _ int) ([]models.AwardReconciliation, error) {
	return nil, nil
}

type captureNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return nil
}

func TestSweepRemindersNotifiesAssignee(t *testing.T) {
	store := &fakeSchedStore{
		entities: map[int]*models.WorkflowEntity{
			1: {ID: 1, Kind: models.KindRequest, CurrentState: models.StateReview,
				RaisedBy: "alice", AssignedTo: "bob"},
		},
		reminders: []models.Reminder{
			{ID: 7, EntityID: 1, State: models.StateReview,
				Kind: models.ReminderFirst, DueAt: time.Now().Add(-time.Hour)},
		},
	}
	notifier := &captureNotifier{}
	s := NewScheduler(store, notifier, nil, nil)

	s.sweepReminders()

	require.Len(t, notifier.got, 1)
	require.Equal(t, "bob", notifier.got[0].UserID)
	require.Equal(t, notify.KindReminderDue, notifier.got[0].Kind)
	require.Equal(t, []int{7}, store.sent)

	// A second sweep has nothing left to deliver.
	s.sweepReminders()
	require.Len(t, notifier.got, 1)
}

func TestSweepRemindersRetiresStaleReminderSilently(t *testing.T) {
	store := &fakeSchedStore{
		entities: map[int]*models.WorkflowEntity{
			1: {ID: 1, Kind: models.KindRequest, CurrentState: models.StateApproved,
				RaisedBy: "alice", AssignedTo: "bob"},
		},
		reminders: []models.Reminder{
			{ID: 7, EntityID: 1, State: models.StateReview,
				Kind: models.ReminderFirst, DueAt: time.Now().Add(-time.Hour)},
		},
	}
	notifier := &captureNotifier{}
	s := NewScheduler(store, notifier, nil, nil)

	s.sweepReminders()

	// The request left review before the reminder fired; no nag is sent but
	// the reminder is retired.
	require.Empty(t, notifier.got)
	require.Equal(t, []int{7}, store.sent)
}

func TestSweepRemindersFallsBackToOwner(t *testing.T) {
	store := &fakeSchedStore{
		entities: map[int]*models.WorkflowEntity{
			1: {ID: 1, Kind: models.KindRequest, CurrentState: models.StateReview,
				RaisedBy: "alice"},
		},
		reminders: []models.Reminder{
			{ID: 9, EntityID: 1, State: models.StateReview,
				Kind: models.ReminderEscalation, DueAt: time.Now().Add(-time.Minute)},
		},
	}
	notifier := &captureNotifier{}
	s := NewScheduler(store, notifier, nil, nil)

	s.sweepReminders()

	require.Len(t, notifier.got, 1)
	require.Equal(t, "alice", notifier.got[0].UserID)
}
