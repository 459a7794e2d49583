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

// FinalApprove grants the team leader's final sign-off. Terminal: the item
// moves to done and no further review decision is possible.
func FinalApprove(db *gorm.DB, clk clock.Clock, gw notify.Gateway, itemID string, actor *auth.Actor, notes string) (*models.WorkItem, error) {
	wi, err := loadForLeader(db, itemID, actor)
	if err != nil {
		return nil, err
	}

	now := clk.Now()
	updated, err := apply(db, wi.ID, map[string]interface{}{
		"lead_final_approval": true,
		"lead_reviewed_by":    actor.ID,
		"lead_reviewed_at":    now,
		"lead_notes":          notes,
		"status":              models.StatusDone,
		"actual_finish":       now,
	})
	if err != nil {
		return nil, err
	}

	if updated.Owner != "" {
		nerr := gw.Notify(updated.Owner, models.KindLeadApproved, notify.Payload{
			ItemIDs: []string{updated.ID},
			Subject: fmt.Sprintf("Item %s approved", updated.ID),
			Body:    fmt.Sprintf("Team leader %s granted final approval.", actor.ID),
		})
		if nerr != nil {
			log.Warn().Err(nerr).Str("item", updated.ID).Msg("final approval notification failed")
		}
	}
	return updated, nil
}

// RequestChanges sends the item back to the developer. The status reverts
// to in_progress; after rework the item re-enters the QA track from
// ready_for_test.
func RequestChanges(db *gorm.DB, clk clock.Clock, gw notify.Gateway, itemID string, actor *auth.Actor, notes string) (*models.WorkItem, error) {
	wi, err := loadForLeader(db, itemID, actor)
	if err != nil {
		return nil, err
	}

	now := clk.Now()
	updated, err := apply(db, wi.ID, map[string]interface{}{
		"lead_requested_changes": true,
		"lead_reviewed_by":       actor.ID,
		"lead_reviewed_at":       now,
		"lead_notes":             notes,
		"status":                 models.StatusInProgress,
	})
	if err != nil {
		return nil, err
	}

	if updated.Owner != "" {
		nerr := gw.Notify(updated.Owner, models.KindLeadChangesRequested, notify.Payload{
			ItemIDs: []string{updated.ID},
			Subject: fmt.Sprintf("Changes requested on item %s", updated.ID),
			Body:    notes,
		})
		if nerr != nil {
			log.Warn().Err(nerr).Str("item", updated.ID).Msg("request-changes notification failed")
		}
	}
	return updated, nil
}

// loadForLeader loads an item and verifies the leader role and the
// team-leader track entry condition: QA approved and no prior final
// decision.
func loadForLeader(db *gorm.DB, itemID string, actor *auth.Actor) (*models.WorkItem, error) {
	wi, err := item.Get(db, itemID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRole(actor, wi, models.RoleTeamLeader); err != nil {
		return nil, err
	}
	if wi.QaStatus != models.QaApproved {
		return nil, faults.InvalidState("review: item %s has qa status %s, want %s", wi.ID, wi.QaStatus, models.QaApproved)
	}
	if wi.LeadFinalApproval {
		return nil, faults.InvalidState("review: item %s already has final approval", wi.ID)
	}
	if wi.LeadRequestedChanges {
		return nil, faults.InvalidState("review: changes were already requested on item %s", wi.ID)
	}
	return wi, nil
}
