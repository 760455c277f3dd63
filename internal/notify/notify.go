// Package notify delivers pipeline lifecycle events to external channels.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Event describes a pipeline milestone worth telling someone about.
type Event struct {
	RunID    string        `json:"run_id"`
	Kind     string        `json:"kind"` // stage_done, stage_failed, run_done, run_failed
	Stage    string        `json:"stage,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Places   int           `json:"places,omitempty"`
	Enriched int           `json:"enriched,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	At       time.Time     `json:"at"`
}

// Event kinds.
const (
	KindStageDone   = "stage_done"
	KindStageFailed = "stage_failed"
	KindRunDone     = "run_done"
	KindRunFailed   = "run_failed"
)

// Notifier delivers one event. Delivery is best-effort; the pipeline never
// fails because a notification could not be sent.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Noop discards events.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, Event) error { return nil }

// Multi fans one event out to several notifiers, logging per-channel
// failures and continuing.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMulti builds a fan-out notifier.
func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{notifiers: notifiers, logger: logger}
}

// Notify sends the event to every channel.
func (m *Multi) Notify(ctx context.Context, event Event) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			m.logger.Warn("Notification delivery failed",
				zap.String("kind", event.Kind),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Text renders the event as a short human-readable message.
func (e Event) Text() string {
	ts := e.At.Format("15:04:05")
	switch e.Kind {
	case KindStageDone:
		msg := fmt.Sprintf("✅ <b>%s</b> done (%s)", e.Stage, ts)
		if e.Detail != "" {
			msg += "\n" + e.Detail
		}
		return msg
	case KindStageFailed:
		msg := fmt.Sprintf("🔴 <b>%s</b> FAILED (%s)", e.Stage, ts)
		if e.Detail != "" {
			detail := e.Detail
			if len(detail) > 500 {
				detail = detail[:500]
			}
			msg += fmt.Sprintf("\n<code>%s</code>", detail)
		}
		return msg
	case KindRunDone:
		return fmt.Sprintf(
			"🏁 <b>Pipeline done</b>\n📍 Places: %d\n📱 Enriched: %d\n⏱ Took: %.1f min",
			e.Places, e.Enriched, e.Duration.Minutes(),
		)
	case KindRunFailed:
		return fmt.Sprintf("🔴 <b>Pipeline FAILED</b> (%s)\n<code>%s</code>", ts, e.Detail)
	default:
		return fmt.Sprintf("%s (%s)", e.Kind, ts)
	}
}
