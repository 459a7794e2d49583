// Package session implements the work session tracker: per-item start,
// pause, resume, and finish with cumulative time bookkeeping.
package session

import (
	"fmt"
	"time"

	"github.com/haldane/foreman/internal/auth"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/faults"
	"github.com/haldane/foreman/internal/item"
	"github.com/haldane/foreman/internal/models"
	"gorm.io/gorm"
)

// startable lists statuses from which a work session may begin.
var startable = map[models.Status]bool{
	models.StatusTodo:       true,
	models.StatusInProgress: true,
	models.StatusRejected:   true,
}

// Elapsed returns the wall-clock seconds to credit for a running session,
// never negative. Returns 0 when the item is not working.
func Elapsed(wi *models.WorkItem, now time.Time) int64 {
	if !wi.IsWorking || wi.WorkStartedAt == nil {
		return 0
	}
	secs := int64(now.Sub(*wi.WorkStartedAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// Start begins a work session. The actor must own the item; the item must
// not already be working.
func Start(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := item.Get(db, itemID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(actor, wi); err != nil {
		return nil, err
	}
	if wi.IsWorking {
		return nil, faults.InvalidState("session: item %s is already being worked on", wi.ID)
	}
	if !startable[wi.Status] {
		return nil, faults.InvalidState("session: cannot start work on item %s in status %s", wi.ID, wi.Status)
	}

	now := clk.Now()
	return apply(db, wi, map[string]interface{}{
		"status":           models.StatusInProgress,
		"is_working":       true,
		"work_started_at":  now,
		"auto_paused":      false,
		"auto_paused_at":   nil,
		"auto_pause_cause": models.CauseNone,
		"alert_count":      0,
		"last_alert_at":    nil,
	})
}

// Pause suspends a work session, crediting elapsed time. Pausing an item
// that is not working is a safe no-op.
func Pause(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := item.Get(db, itemID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(actor, wi); err != nil {
		return nil, err
	}
	if !wi.IsWorking {
		return wi, nil
	}

	now := clk.Now()
	return apply(db, wi, map[string]interface{}{
		"total_time_seconds": wi.TotalTimeSeconds + Elapsed(wi, now),
		"is_working":         false,
		"work_started_at":    nil,
	})
}

// Resume restarts a paused session. Like Start, and additionally clears any
// auto-pause marker and acknowledges outstanding alerts.
func Resume(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := item.Get(db, itemID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(actor, wi); err != nil {
		return nil, err
	}
	if wi.IsWorking {
		return nil, faults.InvalidState("session: item %s is already being worked on", wi.ID)
	}
	if wi.Status != models.StatusInProgress && !startable[wi.Status] {
		return nil, faults.InvalidState("session: cannot resume item %s in status %s", wi.ID, wi.Status)
	}

	now := clk.Now()
	return apply(db, wi, map[string]interface{}{
		"status":           models.StatusInProgress,
		"is_working":       true,
		"work_started_at":  now,
		"auto_paused":      false,
		"auto_paused_at":   nil,
		"auto_pause_cause": models.CauseNone,
		"alert_count":      0,
		"last_alert_at":    nil,
	})
}

// Finish completes the developer's work: credits elapsed time (zero if
// already paused) and advances the item to ready_for_test, resetting the
// review sub-state so the QA track starts fresh.
func Finish(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := item.Get(db, itemID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(actor, wi); err != nil {
		return nil, err
	}
	switch wi.Status {
	case models.StatusDone:
		return nil, faults.InvalidState("session: item %s is already done", wi.ID)
	case models.StatusInReview:
		return nil, faults.InvalidState("session: item %s is in review", wi.ID)
	}
	if wi.QaActive() {
		return nil, faults.InvalidState("session: item %s is being tested by %s", wi.ID, wi.QaAssignedTo)
	}

	now := clk.Now()
	return apply(db, wi, map[string]interface{}{
		"total_time_seconds":     wi.TotalTimeSeconds + Elapsed(wi, now),
		"is_working":             false,
		"work_started_at":        nil,
		"auto_paused":            false,
		"auto_paused_at":         nil,
		"auto_pause_cause":       models.CauseNone,
		"alert_count":            0,
		"last_alert_at":          nil,
		"status":                 models.StatusReadyForTest,
		"qa_status":              models.QaReadyForTest,
		"qa_assigned_to":         "",
		"qa_testing_started_at":  nil,
		"qa_testing_paused_at":   nil,
		"qa_testing_finished_at": nil,
		"qa_reviewed_by":         "",
		"qa_reviewed_at":         nil,
		"qa_notes":               "",
		"lead_final_approval":    false,
		"lead_requested_changes": false,
		"lead_reviewed_by":       "",
		"lead_reviewed_at":       nil,
		"lead_notes":             "",
	})
}

// apply persists a field set atomically and returns the re-read item.
func apply(db *gorm.DB, wi *models.WorkItem, updates map[string]interface{}) (*models.WorkItem, error) {
	if err := db.Model(&models.WorkItem{}).Where("id = ?", wi.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("session: update %s: %w", wi.ID, err)
	}
	return item.Get(db, wi.ID)
}
