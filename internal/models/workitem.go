package models

import "time"

// ItemType distinguishes WorkItem variants.
type ItemType string

const (
	TypeTask ItemType = "task"
	TypeBug  ItemType = "bug"
)

// Status is the developer-track lifecycle state of a WorkItem.
type Status string

const (
	StatusTodo         Status = "todo"
	StatusInProgress   Status = "in_progress"
	StatusReadyForTest Status = "ready_for_test"
	StatusInReview     Status = "in_review"
	StatusRejected     Status = "rejected"
	StatusDone         Status = "done"
)

// QaStatus is the QA-track sub-state of a WorkItem.
type QaStatus string

const (
	QaNone            QaStatus = "none"
	QaReadyForTest    QaStatus = "ready_for_test"
	QaTesting         QaStatus = "testing"
	QaTestingPaused   QaStatus = "testing_paused"
	QaTestingFinished QaStatus = "testing_finished"
	QaApproved        QaStatus = "approved"
	QaRejected        QaStatus = "rejected"
)

// ApprovalStatus tracks post-close approval for auto-closed items.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = "none"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Cause identifies why a session was paused or closed without the owner
// asking for it.
type Cause string

const (
	CauseNone       Cause = ""
	CauseManual     Cause = "manual"
	CauseAlertLimit Cause = "alert_limit"     // auto-paused after repeated unanswered alerts
	CauseWorkLimit  Cause = "work_hour_limit" // auto-closed after the continuous-work ceiling
)

// WorkItem is the core entity: a task or bug tracked through the work
// session and review lifecycle.
//
// Session invariant: IsWorking implies WorkStartedAt is set and AutoPaused
// is false. TotalTimeSeconds only ever grows, by elapsed wall-clock time
// credited at pause/finish/auto transitions.
type WorkItem struct {
	ID          string   `gorm:"primaryKey;size:32"`
	Title       string   `gorm:"not null"`
	Description string   `gorm:"type:text"`
	Type        ItemType `gorm:"size:16;default:task"`
	Status      Status   `gorm:"size:16;default:todo;index"`
	Project     string   `gorm:"size:64;index"`
	Owner       string   `gorm:"size:64;index"`
	CreatedBy   string   `gorm:"size:64"`

	IsWorking        bool `gorm:"default:false;index"`
	WorkStartedAt    *time.Time
	TotalTimeSeconds int64 `gorm:"default:0"`

	AlertCount     int `gorm:"default:0"`
	LastAlertAt    *time.Time
	AutoPaused     bool `gorm:"default:false"`
	AutoPausedAt   *time.Time
	AutoPauseCause Cause `gorm:"size:16"`
	AutoClosedAt   *time.Time
	CloseCause     Cause `gorm:"size:16"`
	ActualFinish   *time.Time
	ApprovalStatus ApprovalStatus `gorm:"size:16;default:none"`

	QaStatus            QaStatus `gorm:"size:16;default:none;index"`
	QaAssignedTo        string   `gorm:"size:64;index"`
	QaTestingStartedAt  *time.Time
	QaTestingPausedAt   *time.Time
	QaTestingFinishedAt *time.Time
	QaReviewedBy        string `gorm:"size:64"`
	QaReviewedAt        *time.Time
	QaNotes             string `gorm:"type:text"`

	LeadFinalApproval    bool   `gorm:"default:false"`
	LeadRequestedChanges bool   `gorm:"default:false"`
	LeadReviewedBy       string `gorm:"size:64"`
	LeadReviewedAt       *time.Time
	LeadNotes            string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// QaActive reports whether the item holds its QA reviewer's single active
// testing slot.
func (w *WorkItem) QaActive() bool {
	return w.QaStatus == QaTesting || w.QaStatus == QaTestingPaused
}
