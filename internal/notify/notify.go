// Package notify delivers Foreman events to users. Every notification is
// persisted as an outbox row; delivery to chat platforms is best-effort and
// never fails the transition that produced the event.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/haldane/foreman/internal/faults"
	"github.com/haldane/foreman/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// pushTimeout bounds a single platform delivery attempt.
const pushTimeout = 10 * time.Second

// Payload carries the human-facing content of a notification.
type Payload struct {
	ItemIDs []string
	Subject string
	Body    string
}

// Gateway is the event sink consumed by the tracker, sweeper, and review
// pipeline.
type Gateway interface {
	Notify(recipient string, kind models.NotificationKind, p Payload) error
}

// Pusher delivers a persisted notification to one chat platform.
type Pusher interface {
	Name() string
	Push(ctx context.Context, n *models.Notification) error
}

// Outbox is the default Gateway: it writes a Notification row, then pushes
// to each configured platform. Push failures are logged and swallowed.
type Outbox struct {
	db      *gorm.DB
	pushers []Pusher
}

// NewOutbox creates an Outbox over db with zero or more platform pushers.
func NewOutbox(db *gorm.DB, pushers ...Pusher) *Outbox {
	return &Outbox{db: db, pushers: pushers}
}

// Notify persists the notification and fans it out.
func (o *Outbox) Notify(recipient string, kind models.NotificationKind, p Payload) error {
	n := models.Notification{
		Recipient: recipient,
		Kind:      kind,
		ItemIDs:   strings.Join(p.ItemIDs, ","),
		Subject:   p.Subject,
		Body:      p.Body,
	}
	if err := o.db.Create(&n).Error; err != nil {
		return faults.Transient(err, "notify: persist %s for %s", kind, recipient)
	}

	delivered := false
	for _, pusher := range o.pushers {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := pusher.Push(ctx, &n)
		cancel()
		if err != nil {
			log.Warn().Err(err).
				Str("platform", pusher.Name()).
				Str("recipient", recipient).
				Str("kind", string(kind)).
				Msg("notification push failed")
			continue
		}
		delivered = true
	}

	if delivered {
		if err := o.db.Model(&models.Notification{}).Where("id = ?", n.ID).
			Update("delivered", true).Error; err != nil {
			log.Warn().Err(err).Uint("id", n.ID).Msg("mark notification delivered failed")
		}
	}
	return nil
}

// Recorder is a test Gateway that records every call.
type Recorder struct {
	Events []RecordedEvent
}

// RecordedEvent is one captured Notify call.
type RecordedEvent struct {
	Recipient string
	Kind      models.NotificationKind
	Payload   Payload
}

func (r *Recorder) Notify(recipient string, kind models.NotificationKind, p Payload) error {
	r.Events = append(r.Events, RecordedEvent{Recipient: recipient, Kind: kind, Payload: p})
	return nil
}

// ByKind returns recorded events of one kind.
func (r *Recorder) ByKind(kind models.NotificationKind) []RecordedEvent {
	var out []RecordedEvent
	for _, e := range r.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
