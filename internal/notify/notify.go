// Package notify delivers fire-and-forget user notifications. Delivery
// transport guarantees are out of scope for the engine; a failed send is
// logged, never surfaced to the transition that triggered it.
package notify

import (
	"context"
	"log/slog"
)

// Kind names the notification templates the engine emits.
type Kind string

const (
	KindInputRequired Kind = "input_required"
	KindReminderDue   Kind = "reminder_due"
	KindAwardResult   Kind = "award_result"
)

// Notification is the payload handed to the transport.
type Notification struct {
	UserID   string         `json:"userId"`
	Kind     Kind           `json:"kind"`
	EntityID int            `json:"entityId"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Notifier is the outbound transport.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. Used in development
// and in tests when no broker is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"user_id", n.UserID,
		"kind", n.Kind,
		"entity_id", n.EntityID)
	return nil
}
