// Package review implements the two sequential review gates that follow
// developer completion: the QA track and the team-leader track.
package review

import (
	"fmt"

	"github.com/haldane/foreman/internal/auth"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/faults"
	"github.com/haldane/foreman/internal/item"
	"github.com/haldane/foreman/internal/models"
	"github.com/haldane/foreman/internal/notify"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Assign claims a ready_for_test item for a QA user and starts testing.
// The actor may assign themselves, or a team leader may assign another QA
// user. Fails Conflict if the QA user already holds an active testing slot.
func Assign(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor, qaUserID string) (*models.WorkItem, error) {
	wi, err := item.Get(db, itemID)
	if err != nil {
		return nil, err
	}
	if qaUserID == "" {
		qaUserID = actor.ID
	}

	if qaUserID == actor.ID {
		if err := auth.RequireRole(actor, wi, models.RoleQa); err != nil {
			return nil, err
		}
	} else {
		if err := auth.RequireRole(actor, wi, models.RoleTeamLeader); err != nil {
			return nil, err
		}
		qa, err := auth.Resolve(db, qaUserID)
		if err != nil {
			return nil, err
		}
		if !qa.HasRole(wi.Project, models.RoleQa) {
			return nil, faults.Forbidden("review: %s lacks role qa in project %s", qaUserID, wi.Project)
		}
	}

	if wi.QaStatus != models.QaReadyForTest {
		return nil, faults.InvalidState("review: item %s has qa status %s, want %s", wi.ID, wi.QaStatus, models.QaReadyForTest)
	}

	now := clk.Now()
	return claimSlot(db, wi, qaUserID, models.QaReadyForTest, map[string]interface{}{
		"qa_assigned_to":        qaUserID,
		"qa_status":             models.QaTesting,
		"qa_testing_started_at": now,
	})
}

// StartTesting is the self-claim form of Assign.
func StartTesting(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	return Assign(db, clk, itemID, actor, actor.ID)
}

// PauseTesting suspends an active testing session. The item keeps its
// reviewer's single active slot while paused.
func PauseTesting(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := loadForReviewer(db, itemID, actor)
	if err != nil {
		return nil, err
	}
	if wi.QaStatus != models.QaTesting {
		return nil, faults.InvalidState("review: item %s has qa status %s, want %s", wi.ID, wi.QaStatus, models.QaTesting)
	}

	now := clk.Now()
	return apply(db, wi.ID, map[string]interface{}{
		"qa_status":            models.QaTestingPaused,
		"qa_testing_paused_at": now,
	})
}

// ResumeTesting restarts a paused testing session, re-checking the
// single-active-session constraint.
func ResumeTesting(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := loadForReviewer(db, itemID, actor)
	if err != nil {
		return nil, err
	}
	if wi.QaStatus != models.QaTestingPaused {
		return nil, faults.InvalidState("review: item %s has qa status %s, want %s", wi.ID, wi.QaStatus, models.QaTestingPaused)
	}

	return claimSlot(db, wi, actor.ID, models.QaTestingPaused, map[string]interface{}{
		"qa_status": models.QaTesting,
	})
}

// FinishTesting records that testing is complete. No decision is made yet;
// Approve or Reject follows.
func FinishTesting(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := loadForReviewer(db, itemID, actor)
	if err != nil {
		return nil, err
	}
	if wi.QaStatus != models.QaTesting {
		return nil, faults.InvalidState("review: item %s has qa status %s, want %s", wi.ID, wi.QaStatus, models.QaTesting)
	}

	now := clk.Now()
	return apply(db, wi.ID, map[string]interface{}{
		"qa_status":              models.QaTestingFinished,
		"qa_testing_finished_at": now,
	})
}

// Approve records QA approval and hands the item to the team-leader track.
// Only the assigned reviewer may approve, and only from testing_finished.
func Approve(db *gorm.DB, clk clock.Clock, gw notify.Gateway, itemID string, actor *auth.Actor, notes string) (*models.WorkItem, error) {
	wi, err := loadForReviewer(db, itemID, actor)
	if err != nil {
		return nil, err
	}
	if wi.QaStatus != models.QaTestingFinished {
		return nil, faults.InvalidState("review: item %s has qa status %s, want %s", wi.ID, wi.QaStatus, models.QaTestingFinished)
	}

	now := clk.Now()
	updated, err := apply(db, wi.ID, map[string]interface{}{
		"qa_status":      models.QaApproved,
		"qa_reviewed_by": actor.ID,
		"qa_reviewed_at": now,
		"qa_notes":       notes,
		"status":         models.StatusInReview,
	})
	if err != nil {
		return nil, err
	}

	notifyApproval(db, gw, updated, actor.ID)
	return updated, nil
}

// Reject records QA rejection and reopens the item for the developer. Any
// project QA may reject from testing_finished.
func Reject(db *gorm.DB, clk clock.Clock, gw notify.Gateway, itemID string, actor *auth.Actor, reason string) (*models.WorkItem, error) {
	wi, err := item.Get(db, itemID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRole(actor, wi, models.RoleQa); err != nil {
		return nil, err
	}
	if wi.QaStatus != models.QaTestingFinished {
		return nil, faults.InvalidState("review: item %s has qa status %s, want %s", wi.ID, wi.QaStatus, models.QaTestingFinished)
	}

	now := clk.Now()
	updated, err := apply(db, wi.ID, map[string]interface{}{
		"qa_status":      models.QaRejected,
		"qa_reviewed_by": actor.ID,
		"qa_reviewed_at": now,
		"qa_notes":       reason,
		"status":         models.StatusInProgress,
	})
	if err != nil {
		return nil, err
	}

	if updated.Owner != "" {
		nerr := gw.Notify(updated.Owner, models.KindQaRejected, notify.Payload{
			ItemIDs: []string{updated.ID},
			Subject: fmt.Sprintf("Item %s rejected by QA", updated.ID),
			Body:    reason,
		})
		if nerr != nil {
			log.Warn().Err(nerr).Str("item", updated.ID).Msg("qa rejection notification failed")
		}
	}
	return updated, nil
}

// activeQaStates are the qa statuses that occupy a reviewer's single
// testing slot.
var activeQaStates = []models.QaStatus{models.QaTesting, models.QaTestingPaused}

// claimSlot moves the item into the QA user's single active testing slot.
// The single-active-session constraint is enforced inside the UPDATE itself:
// the statement only matches when the item is still in from and the user
// holds no other active item, so two racing claims cannot both succeed; the
// loser sees zero rows affected and returns Conflict.
func claimSlot(db *gorm.DB, wi *models.WorkItem, qaUserID string, from models.QaStatus, updates map[string]interface{}) (*models.WorkItem, error) {
	// The busy subquery is wrapped in a derived table so MySQL accepts a
	// self-referencing guard on the updated table.
	res := db.Model(&models.WorkItem{}).
		Where("id = ? AND qa_status = ?", wi.ID, from).
		Where("NOT EXISTS (SELECT 1 FROM (SELECT id FROM work_items WHERE qa_assigned_to = ? AND qa_status IN ? AND id <> ?) AS busy)",
			qaUserID, activeQaStates, wi.ID).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("review: claim %s for %s: %w", wi.ID, qaUserID, res.Error)
	}
	if res.RowsAffected == 0 {
		cur, err := item.Get(db, wi.ID)
		if err != nil {
			return nil, err
		}
		if cur.QaStatus != from {
			return nil, faults.InvalidState("review: item %s has qa status %s, want %s", cur.ID, cur.QaStatus, from)
		}
		return nil, faults.Conflict("review: %s already has an active testing session", qaUserID)
	}
	return item.Get(db, wi.ID)
}

// loadForReviewer loads an item and verifies the actor is its assigned QA
// reviewer with the QA role.
func loadForReviewer(db *gorm.DB, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := item.Get(db, itemID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRole(actor, wi, models.RoleQa); err != nil {
		return nil, err
	}
	if wi.QaAssignedTo != actor.ID {
		return nil, faults.Forbidden("review: item %s is assigned to %s, not %s", wi.ID, wi.QaAssignedTo, actor.ID)
	}
	return wi, nil
}

// notifyApproval tells the developer and every project team leader that QA
// signed off. Best-effort.
func notifyApproval(db *gorm.DB, gw notify.Gateway, wi *models.WorkItem, reviewer string) {
	recipients := []string{}
	if wi.Owner != "" {
		recipients = append(recipients, wi.Owner)
	}

	var leads []models.Membership
	if err := db.Where("project = ? AND role = ?", wi.Project, models.RoleTeamLeader).Find(&leads).Error; err != nil {
		log.Warn().Err(err).Str("project", wi.Project).Msg("load team leaders for notification failed")
	}
	for _, m := range leads {
		if m.UserID != wi.Owner {
			recipients = append(recipients, m.UserID)
		}
	}

	for _, r := range recipients {
		err := gw.Notify(r, models.KindQaApproved, notify.Payload{
			ItemIDs: []string{wi.ID},
			Subject: fmt.Sprintf("Item %s approved by QA", wi.ID),
			Body:    fmt.Sprintf("QA reviewer %s approved; awaiting team leader review.", reviewer),
		})
		if err != nil {
			log.Warn().Err(err).Str("item", wi.ID).Str("recipient", r).Msg("qa approval notification failed")
		}
	}
}

// apply persists a field set atomically and returns the re-read item.
func apply(db *gorm.DB, itemID string, updates map[string]interface{}) (*models.WorkItem, error) {
	if err := db.Model(&models.WorkItem{}).Where("id = ?", itemID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("review: update %s: %w", itemID, err)
	}
	return item.Get(db, itemID)
}
