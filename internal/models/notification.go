package models

import "time"

// NotificationKind classifies outbound notifications.
type NotificationKind string

const (
	KindAlert                NotificationKind = "alert"
	KindAutoPause            NotificationKind = "auto_pause"
	KindAutoClose            NotificationKind = "auto_close"
	KindQaApproved           NotificationKind = "qa_approved"
	KindQaRejected           NotificationKind = "qa_rejected"
	KindLeadApproved         NotificationKind = "lead_approved"
	KindLeadChangesRequested NotificationKind = "lead_changes_requested"
)

// Notification is a persisted outbox row. Delivery to chat platforms is
// best-effort; the row is the durable record either way.
type Notification struct {
	ID        uint             `gorm:"primaryKey;autoIncrement"`
	Recipient string           `gorm:"size:64;not null;index"`
	Kind      NotificationKind `gorm:"size:32;not null;index"`
	ItemIDs   string           `gorm:"size:512"` // comma-separated WorkItem IDs
	Subject   string           `gorm:"size:256"`
	Body      string           `gorm:"type:text"`
	Delivered bool             `gorm:"default:false"`
	CreatedAt time.Time
}
