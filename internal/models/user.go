package models

import "time"

// Role names used in memberships.
type Role string

const (
	RoleDeveloper  Role = "developer"
	RoleQa         Role = "qa"
	RoleTeamLeader Role = "team_leader"
)

// User is a person known to Foreman. Users are seeded from config, not
// managed through this system.
type User struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128"`
	Email     string `gorm:"size:128"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership binds a user to a project with a role. A user may hold several
// roles in the same project via multiple rows.
type Membership struct {
	UserID  string `gorm:"primaryKey;size:64"`
	Project string `gorm:"primaryKey;size:64"`
	Role    Role   `gorm:"primaryKey;size:16"`
}
