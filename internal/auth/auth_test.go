package auth

import (
	"testing"

	"github.com/haldane/foreman/internal/faults"
	"github.com/haldane/foreman/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Membership{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string, active bool, memberships ...models.Membership) {
	t.Helper()
	if err := db.Create(&models.User{ID: id, Name: id, Active: active}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	for _, m := range memberships {
		m.UserID = id
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed membership: %v", err)
		}
	}
}

func TestResolve_BuildsCapabilitySet(t *testing.T) {
	db := testDB(t)
	seedUser(t, db, "alice", true,
		models.Membership{Project: "backend", Role: models.RoleDeveloper},
		models.Membership{Project: "backend", Role: models.RoleTeamLeader},
		models.Membership{Project: "mobile", Role: models.RoleQa},
	)

	actor, err := Resolve(db, "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if actor.ID != "alice" {
		t.Errorf("id = %s, want alice", actor.ID)
	}
	if !actor.HasRole("backend", models.RoleDeveloper) || !actor.HasRole("backend", models.RoleTeamLeader) {
		t.Error("missing backend roles")
	}
	if actor.HasRole("mobile", models.RoleDeveloper) {
		t.Error("has developer role in mobile, want qa only")
	}
	if !actor.InProject("mobile") || actor.InProject("payments") {
		t.Error("project membership predicates wrong")
	}
}

func TestResolve_UnknownUser_NotFound(t *testing.T) {
	db := testDB(t)

	_, err := Resolve(db, "ghost")
	if !faults.IsNotFound(err) {
		t.Fatalf("error = %v, want NotFound", err)
	}
}

func TestResolve_InactiveUser_Forbidden(t *testing.T) {
	db := testDB(t)
	seedUser(t, db, "dormant", false)

	_, err := Resolve(db, "dormant")
	if !faults.IsForbidden(err) {
		t.Fatalf("error = %v, want Forbidden", err)
	}
}

func TestResolve_EmptyID_Forbidden(t *testing.T) {
	db := testDB(t)

	_, err := Resolve(db, "")
	if !faults.IsForbidden(err) {
		t.Fatalf("error = %v, want Forbidden", err)
	}
}

func TestRequireOwner(t *testing.T) {
	item := &models.WorkItem{ID: "wi-00001", Project: "backend", Owner: "alice"}
	member := models.Membership{UserID: "alice", Project: "backend", Role: models.RoleDeveloper}

	if err := RequireOwner(&Actor{ID: "alice", Memberships: []models.Membership{member}}, item); err != nil {
		t.Errorf("owner with membership: %v", err)
	}
	if err := RequireOwner(&Actor{ID: "alice"}, item); !faults.IsForbidden(err) {
		t.Errorf("owner without membership = %v, want Forbidden", err)
	}
	bob := models.Membership{UserID: "bob", Project: "backend", Role: models.RoleDeveloper}
	if err := RequireOwner(&Actor{ID: "bob", Memberships: []models.Membership{bob}}, item); !faults.IsForbidden(err) {
		t.Errorf("non-owner = %v, want Forbidden", err)
	}
}

func TestRequireRole(t *testing.T) {
	item := &models.WorkItem{ID: "wi-00001", Project: "backend"}
	qa := &Actor{ID: "quinn", Memberships: []models.Membership{
		{UserID: "quinn", Project: "backend", Role: models.RoleQa},
	}}

	if err := RequireRole(qa, item, models.RoleQa); err != nil {
		t.Errorf("qa role check: %v", err)
	}
	if err := RequireRole(qa, item, models.RoleTeamLeader); !faults.IsForbidden(err) {
		t.Errorf("missing role = %v, want Forbidden", err)
	}
}
