// Package sweep implements the escalation sweeper: a periodic scan of
// active work sessions that auto-closes marathon sessions, alerts users
// whose sessions have run long, and auto-pauses everything a user has
// running once alerts go unanswered.
//
// The sweeper owns no schedule; it is invoked with an explicit "now" by
// external infrastructure (the sweepd daemon, the CLI, or the API). Every
// mutation flips the condition that triggered it, so re-running a sweep
// within the same tick neither double-charges time nor double-alerts.
package sweep

import (
	"fmt"
	"sort"
	"time"

	"github.com/haldane/foreman/internal/models"
	"github.com/haldane/foreman/internal/notify"
	"github.com/haldane/foreman/internal/session"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Thresholds holds the escalation policy parameters.
type Thresholds struct {
	AlertAfter    time.Duration // first alert once a user's longest session exceeds this
	AlertInterval time.Duration // minimum gap between alerts per user
	MaxAlerts     int           // auto-pause once this many alerts went unanswered
	CloseAfter    time.Duration // auto-close an item at this much continuous work
}

// DefaultThresholds returns the stock policy: alert at 2h, at most one
// alert per 2h, pause after 3 alerts, close at 12h.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AlertAfter:    2 * time.Hour,
		AlertInterval: 2 * time.Hour,
		MaxAlerts:     3,
		CloseAfter:    12 * time.Hour,
	}
}

// Report summarizes one sweep.
type Report struct {
	Scanned  int
	Closed   int
	Alerted  int // users alerted this sweep
	Paused   int // items auto-paused this sweep
	Failures int
}

// userEscalation is the per-user aggregate computed over a user's active
// items: the longest-running session and the shared alert state.
type userEscalation struct {
	userID     string
	items      []models.WorkItem
	earliestAt time.Time
	alertCount int
	lastAlert  *time.Time
}

// Run executes one sweep with the default thresholds.
func Run(db *gorm.DB, now time.Time, gw notify.Gateway) (Report, error) {
	return RunWith(db, now, gw, DefaultThresholds())
}

// RunWith executes one sweep at the given instant. Per-item failures are
// logged and counted; they never abort the rest of the sweep.
func RunWith(db *gorm.DB, now time.Time, gw notify.Gateway, th Thresholds) (Report, error) {
	var report Report

	active, err := activeItems(db)
	if err != nil {
		return report, err
	}
	report.Scanned = len(active)

	// Close pass: items past the continuous-work ceiling leave the active
	// set before the alert pass considers them.
	var remaining []models.WorkItem
	for i := range active {
		wi := &active[i]
		if now.Sub(*wi.WorkStartedAt) >= th.CloseAfter {
			if err := closeItem(db, wi, now, gw, th); err != nil {
				log.Error().Err(err).Str("item", wi.ID).Msg("sweep: auto-close failed")
				report.Failures++
				continue
			}
			report.Closed++
			continue
		}
		remaining = append(remaining, *wi)
	}

	// Alert pass: grouped per user over the still-active items.
	for _, esc := range groupByUser(remaining) {
		if now.Sub(esc.earliestAt) < th.AlertAfter {
			continue
		}
		if esc.lastAlert != nil && now.Sub(*esc.lastAlert) < th.AlertInterval {
			continue
		}

		if esc.alertCount >= th.MaxAlerts {
			paused, failed := pauseAll(db, esc, now, gw, th)
			report.Paused += paused
			report.Failures += failed
			continue
		}

		if err := alertUser(db, esc, now, gw, th); err != nil {
			log.Error().Err(err).Str("user", esc.userID).Msg("sweep: alert failed")
			report.Failures++
			continue
		}
		report.Alerted++
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("closed", report.Closed).
		Int("alerted", report.Alerted).
		Int("paused", report.Paused).
		Int("failures", report.Failures).
		Time("now", now).
		Msg("sweep complete")

	return report, nil
}

// activeItems loads every item with a running work session.
func activeItems(db *gorm.DB) ([]models.WorkItem, error) {
	var items []models.WorkItem
	err := db.Where("is_working = ? AND work_started_at IS NOT NULL AND status = ? AND auto_paused = ?",
		true, models.StatusInProgress, false).
		Order("work_started_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("sweep: load active items: %w", err)
	}
	return items, nil
}

// groupByUser builds the per-user escalation aggregates, ordered by user ID
// for deterministic processing. Items without an owner cannot be alerted
// and are skipped.
func groupByUser(items []models.WorkItem) []userEscalation {
	byUser := make(map[string]*userEscalation)
	for _, wi := range items {
		if wi.Owner == "" {
			log.Debug().Str("item", wi.ID).Msg("sweep: active item has no owner, skipping alert check")
			continue
		}
		esc, ok := byUser[wi.Owner]
		if !ok {
			esc = &userEscalation{userID: wi.Owner, earliestAt: *wi.WorkStartedAt}
			byUser[wi.Owner] = esc
		}
		esc.items = append(esc.items, wi)
		if wi.WorkStartedAt.Before(esc.earliestAt) {
			esc.earliestAt = *wi.WorkStartedAt
		}
		if wi.AlertCount > esc.alertCount {
			esc.alertCount = wi.AlertCount
		}
		if wi.LastAlertAt != nil && (esc.lastAlert == nil || wi.LastAlertAt.After(*esc.lastAlert)) {
			esc.lastAlert = wi.LastAlertAt
		}
	}

	keys := make([]string, 0, len(byUser))
	for k := range byUser {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]userEscalation, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byUser[k])
	}
	return out
}

// closeItem auto-closes one item: credits elapsed time, marks it done with
// approval pending, and notifies the owner.
func closeItem(db *gorm.DB, wi *models.WorkItem, now time.Time, gw notify.Gateway, th Thresholds) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	updates := map[string]interface{}{
		"total_time_seconds": wi.TotalTimeSeconds + session.Elapsed(wi, now),
		"is_working":         false,
		"work_started_at":    nil,
		"status":             models.StatusDone,
		"actual_finish":      today,
		"approval_status":    models.ApprovalPending,
		"auto_closed_at":     now,
		"close_cause":        models.CauseWorkLimit,
	}
	if err := db.Model(&models.WorkItem{}).Where("id = ?", wi.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("sweep: close %s: %w", wi.ID, err)
	}

	if wi.Owner != "" {
		err := gw.Notify(wi.Owner, models.KindAutoClose, notify.Payload{
			ItemIDs: []string{wi.ID},
			Subject: fmt.Sprintf("Item %s auto-closed", wi.ID),
			Body:    fmt.Sprintf("Auto-closed after %d hours of continuous work. The item is done pending approval.", int(th.CloseAfter.Hours())),
		})
		if err != nil {
			log.Warn().Err(err).Str("item", wi.ID).Msg("sweep: auto-close notification failed")
		}
	}
	return nil
}

// pauseAll auto-pauses every active item of one user and sends a single
// AutoPauseUser notification listing them. Returns paused and failed counts.
func pauseAll(db *gorm.DB, esc userEscalation, now time.Time, gw notify.Gateway, th Thresholds) (paused, failed int) {
	var pausedIDs []string
	for i := range esc.items {
		wi := &esc.items[i]
		updates := map[string]interface{}{
			"total_time_seconds": wi.TotalTimeSeconds + session.Elapsed(wi, now),
			"is_working":         false,
			"work_started_at":    nil,
			"auto_paused":        true,
			"auto_paused_at":     now,
			"auto_pause_cause":   models.CauseAlertLimit,
		}
		if err := db.Model(&models.WorkItem{}).Where("id = ?", wi.ID).Updates(updates).Error; err != nil {
			log.Error().Err(err).Str("item", wi.ID).Msg("sweep: auto-pause failed")
			failed++
			continue
		}
		paused++
		pausedIDs = append(pausedIDs, wi.ID)
	}

	if len(pausedIDs) > 0 {
		err := gw.Notify(esc.userID, models.KindAutoPause, notify.Payload{
			ItemIDs: pausedIDs,
			Subject: fmt.Sprintf("Work auto-paused for %s", esc.userID),
			Body:    fmt.Sprintf("Auto-paused after %d alerts without response. Resume each item to continue.", th.MaxAlerts),
		})
		if err != nil {
			log.Warn().Err(err).Str("user", esc.userID).Msg("sweep: auto-pause notification failed")
		}
	}
	return paused, failed
}

// alertUser bumps the shared alert counter on every active item of one user
// and sends a single AlertUser notification. The counter and rate-limit
// timestamp are written identically to each item so the aggregate cannot
// drift.
func alertUser(db *gorm.DB, esc userEscalation, now time.Time, gw notify.Gateway, th Thresholds) error {
	newCount := esc.alertCount + 1
	ids := make([]string, 0, len(esc.items))
	for _, wi := range esc.items {
		ids = append(ids, wi.ID)
	}

	err := db.Model(&models.WorkItem{}).Where("id IN ?", ids).Updates(map[string]interface{}{
		"alert_count":   newCount,
		"last_alert_at": now,
	}).Error
	if err != nil {
		return fmt.Errorf("sweep: record alert for %s: %w", esc.userID, err)
	}

	hours := now.Sub(esc.earliestAt).Hours()
	nerr := gw.Notify(esc.userID, models.KindAlert, notify.Payload{
		ItemIDs: ids,
		Subject: fmt.Sprintf("Long work session alert %d/%d", newCount, th.MaxAlerts),
		Body:    fmt.Sprintf("You have been working for %.1f hours. Pause or finish, or work will be auto-paused after %d alerts.", hours, th.MaxAlerts),
	})
	if nerr != nil {
		log.Warn().Err(nerr).Str("user", esc.userID).Msg("sweep: alert notification failed")
	}
	return nil
}
