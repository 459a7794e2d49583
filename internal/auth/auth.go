// Package auth resolves users into capability sets and provides the pure
// predicate checks every operation authorizes against.
package auth

import (
	"errors"
	"fmt"

	"github.com/haldane/foreman/internal/faults"
	"github.com/haldane/foreman/internal/models"
	"gorm.io/gorm"
)

// Actor is the capability set for one request: who is acting and what roles
// they hold in which projects. Resolved once, then checked with pure
// predicates.
type Actor struct {
	ID          string
	Name        string
	Memberships []models.Membership
}

// Resolve loads a user and their memberships into an Actor.
func Resolve(db *gorm.DB, userID string) (*Actor, error) {
	if userID == "" {
		return nil, faults.Forbidden("auth: actor id is required")
	}

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.NotFound("auth: user %s", userID)
		}
		return nil, fmt.Errorf("auth: load user %s: %w", userID, err)
	}
	if !user.Active {
		return nil, faults.Forbidden("auth: user %s is inactive", userID)
	}

	var memberships []models.Membership
	if err := db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("auth: load memberships for %s: %w", userID, err)
	}

	return &Actor{ID: user.ID, Name: user.Name, Memberships: memberships}, nil
}

// HasRole reports whether the actor holds role in project.
func (a *Actor) HasRole(project string, role models.Role) bool {
	for _, m := range a.Memberships {
		if m.Project == project && m.Role == role {
			return true
		}
	}
	return false
}

// InProject reports whether the actor holds any role in project.
func (a *Actor) InProject(project string) bool {
	for _, m := range a.Memberships {
		if m.Project == project {
			return true
		}
	}
	return false
}

// RequireOwner fails Forbidden unless the actor owns the item and is a
// member of its project.
func RequireOwner(actor *Actor, item *models.WorkItem) error {
	if !actor.InProject(item.Project) {
		return faults.Forbidden("auth: %s is not a member of project %s", actor.ID, item.Project)
	}
	if item.Owner != actor.ID {
		return faults.Forbidden("auth: %s does not own item %s", actor.ID, item.ID)
	}
	return nil
}

// RequireRole fails Forbidden unless the actor holds role in the item's
// project.
func RequireRole(actor *Actor, item *models.WorkItem, role models.Role) error {
	if !actor.InProject(item.Project) {
		return faults.Forbidden("auth: %s is not a member of project %s", actor.ID, item.Project)
	}
	if !actor.HasRole(item.Project, role) {
		return faults.Forbidden("auth: %s lacks role %s in project %s", actor.ID, role, item.Project)
	}
	return nil
}
