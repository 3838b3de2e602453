package sideeffects

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"siteflow/internal/notify"
	"siteflow/internal/workflow"
	"siteflow/models"
)

// SchedulerStore is the persistence surface for the periodic sweeps.
type SchedulerStore interface {
	GetEntity(ctx context.Context, id int) (*models.WorkflowEntity, error)
	DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error)
	MarkReminderSent(ctx context.Context, reminderID int) error
	PendingAwardReconciliations(ctx context.Context, limit int) ([]models.AwardReconciliation, error)
}

const sweepBatch = 100

// Scheduler runs the two background loops: delivering due reminders and
// replaying parked award reconciliations until they converge.
type Scheduler struct {
	cron     *cron.Cron
	store    SchedulerStore
	notifier notify.Notifier
	awards   *workflow.AwardCoordinator
	logger   *slog.Logger
}

func NewScheduler(store SchedulerStore, notifier notify.Notifier, awards *workflow.AwardCoordinator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		store:    store,
		notifier: notifier,
		awards:   awards,
		logger:   logger,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.sweepReminders); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 30s", s.sweepReconciliations); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the loops; running sweeps finish first.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	due, err := s.store.DueReminders(ctx, time.Now(), sweepBatch)
	if err != nil {
		s.logger.Error("list due reminders", "error", err)
		return
	}
	for _, rem := range due {
		if err := s.deliverReminder(ctx, rem); err != nil {
			// Left unsent; picked up again on the next sweep.
			s.logger.Warn("deliver reminder", "reminder_id", rem.ID, "error", err)
		}
	}
}

func (s *Scheduler) deliverReminder(ctx context.Context, rem models.Reminder) error {
	entity, err := s.store.GetEntity(ctx, rem.EntityID)
	if err != nil {
		return err
	}
	// The entity moved on since the reminder was scheduled; nothing to nag
	// about, retire the reminder silently.
	if entity.CurrentState != rem.State {
		return s.store.MarkReminderSent(ctx, rem.ID)
	}

	target := entity.AssignedTo
	if target == "" {
		target = entity.Owner()
	}
	err = s.notifier.Notify(ctx, notify.Notification{
		UserID:   target,
		Kind:     notify.KindReminderDue,
		EntityID: entity.ID,
		Payload:  map[string]any{"state": entity.CurrentState, "reminder": rem.Kind},
	})
	if err != nil {
		return err
	}
	return s.store.MarkReminderSent(ctx, rem.ID)
}

func (s *Scheduler) sweepReconciliations() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pending, err := s.store.PendingAwardReconciliations(ctx, sweepBatch)
	if err != nil {
		s.logger.Error("list pending award reconciliations", "error", err)
		return
	}
	for _, rec := range pending {
		if err := s.awards.Reconcile(ctx, rec); err != nil {
			// Replayed on the next sweep; the writes are idempotent.
			s.logger.Warn("award reconciliation attempt failed",
				"tender_id", rec.TenderID, "error", err)
		}
	}
}
