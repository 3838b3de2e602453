// Package sideeffects runs the non-authoritative follow-up work triggered by
// state entry: reminders, notifications and reviewer auto-assignment. It is
// decoupled from the transition path by a message bus with retry and a poison
// (dead-letter) topic, so a slow or failing side effect never blocks or fails
// a committed transition.
package sideeffects

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"siteflow/internal/notify"
	"siteflow/models"
)

const (
	TopicStateEntered = "workflow.state_entered"
	TopicPoison       = "workflow.state_entered.poison"
)

// StateEnteredEvent is the message published after every committed
// transition. TransitionID doubles as the idempotency key: handlers that
// persist work key it by (entity, state, transition).
type StateEnteredEvent struct {
	EntityID     int               `json:"entityId"`
	Kind         models.EntityKind `json:"kind"`
	State        models.State      `json:"state"`
	TransitionID string            `json:"transitionId"`
	Actor        string            `json:"actor"`
	RaisedBy     string            `json:"raisedBy,omitempty"`
	AssignedTo   string            `json:"assignedTo,omitempty"`
	IssuedBy     string            `json:"issuedBy,omitempty"`
}

// Publisher implements the executor's Dispatcher: it enqueues the
// state-entered event and returns. A publish failure is logged, never
// propagated; the transition is already committed.
type Publisher struct {
	pub    message.Publisher
	logger *slog.Logger
}

func NewPublisher(pub message.Publisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{pub: pub, logger: logger}
}

func (p *Publisher) StateEntered(entity *models.WorkflowEntity, rec *models.TransitionRecord) {
	ev := StateEnteredEvent{
		EntityID:     entity.ID,
		Kind:         entity.Kind,
		State:        rec.ToState,
		TransitionID: rec.ID,
		Actor:        rec.ActorID,
		RaisedBy:     entity.RaisedBy,
		AssignedTo:   entity.AssignedTo,
		IssuedBy:     entity.IssuedBy,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal state-entered event", "entity_id", entity.ID, "error", err)
		return
	}
	msg := message.NewMessage(rec.ID, payload)
	if err := p.pub.Publish(TopicStateEntered, msg); err != nil {
		p.logger.Error("publish state-entered event",
			"entity_id", entity.ID, "state", rec.ToState, "error", err)
	}
}

// Store is the persistence surface the handlers need. Side effects never
// re-enter the transition executor; they write through these calls directly.
type Store interface {
	ScheduleReminder(ctx context.Context, rem *models.Reminder) error
	AssignReviewer(ctx context.Context, entityID int, username string) (bool, error)
	LeastLoadedReviewer(ctx context.Context) (string, error)
	ListBidsForTender(ctx context.Context, tenderID int) ([]models.Bid, error)
}

// Config tunes the mapped behaviors.
type Config struct {
	AutoAssign             bool
	FirstReminderDays      int
	EscalationReminderDays int
}

func (c Config) withDefaults() Config {
	if c.FirstReminderDays <= 0 {
		c.FirstReminderDays = 3
	}
	if c.EscalationReminderDays <= 0 {
		c.EscalationReminderDays = 7
	}
	return c
}

// Handlers maps entered states to their follow-up work.
type Handlers struct {
	store    Store
	notifier notify.Notifier
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandlers(store Store, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:    store,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// HandleStateEntered is the single bus handler. States with no mapped side
// effect ack immediately.
func (h *Handlers) HandleStateEntered(msg *message.Message) error {
	var ev StateEnteredEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("decode state-entered event: %w", err)
	}
	ctx := msg.Context()

	switch ev.State {
	case models.StateReview:
		return h.onReview(ctx, ev)
	case models.StateAdditionalInput:
		return h.onAdditionalInput(ctx, ev)
	case models.StateAwarded:
		return h.onAwarded(ctx, ev)
	}
	return nil
}

func (h *Handlers) onReview(ctx context.Context, ev StateEnteredEvent) error {
	now := h.now()
	reminders := []models.Reminder{
		{
			EntityID: ev.EntityID, State: ev.State, TransitionID: ev.TransitionID,
			Kind: models.ReminderFirst, DueAt: now.AddDate(0, 0, h.cfg.FirstReminderDays),
		},
		{
			EntityID: ev.EntityID, State: ev.State, TransitionID: ev.TransitionID,
			Kind: models.ReminderEscalation, DueAt: now.AddDate(0, 0, h.cfg.EscalationReminderDays),
		},
	}
	for i := range reminders {
		if err := h.store.ScheduleReminder(ctx, &reminders[i]); err != nil {
			return fmt.Errorf("schedule %s reminder for entity %d: %w",
				reminders[i].Kind, ev.EntityID, err)
		}
	}

	if h.cfg.AutoAssign && ev.Kind == models.KindRequest && ev.AssignedTo == "" {
		reviewer, err := h.store.LeastLoadedReviewer(ctx)
		if err != nil {
			return fmt.Errorf("pick reviewer for entity %d: %w", ev.EntityID, err)
		}
		assigned, err := h.store.AssignReviewer(ctx, ev.EntityID, reviewer)
		if err != nil {
			return fmt.Errorf("assign reviewer %q to entity %d: %w", reviewer, ev.EntityID, err)
		}
		if assigned {
			h.logger.Info("auto-assigned reviewer",
				"entity_id", ev.EntityID, "reviewer", reviewer)
		}
	}
	return nil
}

// onAdditionalInput notifies whichever party did not request the input.
func (h *Handlers) onAdditionalInput(ctx context.Context, ev StateEnteredEvent) error {
	target := ev.RaisedBy
	if ev.Actor == ev.RaisedBy {
		target = ev.AssignedTo
	}
	if target == "" {
		return nil
	}
	err := h.notifier.Notify(ctx, notify.Notification{
		UserID:   target,
		Kind:     notify.KindInputRequired,
		EntityID: ev.EntityID,
		Payload:  map[string]any{"requestedBy": ev.Actor},
	})
	if err != nil {
		return fmt.Errorf("notify %q of input request on entity %d: %w", target, ev.EntityID, err)
	}
	return nil
}

func (h *Handlers) onAwarded(ctx context.Context, ev StateEnteredEvent) error {
	bids, err := h.store.ListBidsForTender(ctx, ev.EntityID)
	if err != nil {
		return fmt.Errorf("list bids for awarded tender %d: %w", ev.EntityID, err)
	}
	for _, b := range bids {
		err := h.notifier.Notify(ctx, notify.Notification{
			UserID:   b.Bidder,
			Kind:     notify.KindAwardResult,
			EntityID: ev.EntityID,
			Payload:  map[string]any{"bidId": b.ID, "status": b.Status},
		})
		if err != nil {
			return fmt.Errorf("notify bidder %q of award on tender %d: %w", b.Bidder, ev.EntityID, err)
		}
	}
	return nil
}

// NewRouter wires the handlers to the bus with retries and a poison topic.
// A message that still fails after the retries is parked on TopicPoison
// instead of blocking the stream.
func NewRouter(sub message.Subscriber, pub message.Publisher, h *Handlers, logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, err
	}

	poison, err := middleware.PoisonQueue(pub, TopicPoison)
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(
		poison,
		middleware.Retry{
			MaxRetries:      5,
			InitialInterval: 100 * time.Millisecond,
			Multiplier:      2,
			Logger:          logger,
		}.Middleware,
		middleware.Recoverer,
	)

	router.AddNoPublisherHandler(
		"state_entered_side_effects",
		TopicStateEntered,
		sub,
		h.HandleStateEntered,
	)
	return router, nil
}
