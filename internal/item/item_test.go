package item

import (
	"strings"
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
	if err := db.AutoMigrate(&models.WorkItem{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestGenerateID_Format(t *testing.T) {
	id, err := GenerateID()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(id, "wi-") || len(id) != 8 {
		t.Errorf("id = %q, want wi- prefix and 8 chars", id)
	}
}

func TestCreate_Defaults(t *testing.T) {
	db := testDB(t)

	wi, err := Create(db, CreateOpts{
		Title:     "Fix login redirect",
		Project:   "backend",
		Owner:     "alice",
		CreatedBy: "lara",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if wi.Type != models.TypeTask {
		t.Errorf("type = %s, want task default", wi.Type)
	}
	if wi.Status != models.StatusTodo {
		t.Errorf("status = %s, want todo", wi.Status)
	}
	if wi.QaStatus != models.QaNone {
		t.Errorf("qa status = %s, want none", wi.QaStatus)
	}
	if wi.IsWorking || wi.TotalTimeSeconds != 0 {
		t.Error("new item has session state")
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testDB(t)

	if _, err := Create(db, CreateOpts{Project: "backend"}); err == nil {
		t.Error("missing title accepted")
	}
	if _, err := Create(db, CreateOpts{Title: "x"}); err == nil {
		t.Error("missing project accepted")
	}
	if _, err := Create(db, CreateOpts{Title: "x", Project: "backend", Type: "epic"}); err == nil {
		t.Error("unknown type accepted")
	}
}

func TestGet(t *testing.T) {
	db := testDB(t)
	wi, err := Create(db, CreateOpts{Title: "Investigate crash", Project: "backend", Type: models.TypeBug})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := Get(db, wi.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Investigate crash" || got.Type != models.TypeBug {
		t.Errorf("got %s/%s", got.Title, got.Type)
	}

	if _, err := Get(db, "wi-zzzzz"); !faults.IsNotFound(err) {
		t.Errorf("error = %v, want NotFound", err)
	}
}

func TestList_Filters(t *testing.T) {
	db := testDB(t)
	mk := func(title, project, owner string, st models.Status) {
		t.Helper()
		wi, err := Create(db, CreateOpts{Title: title, Project: project, Owner: owner})
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		if st != models.StatusTodo {
			if err := db.Model(&models.WorkItem{}).Where("id = ?", wi.ID).
				Update("status", st).Error; err != nil {
				t.Fatalf("set status: %v", err)
			}
		}
	}
	mk("a", "backend", "alice", models.StatusTodo)
	mk("b", "backend", "alice", models.StatusInProgress)
	mk("c", "backend", "bob", models.StatusInProgress)
	mk("d", "mobile", "alice", models.StatusTodo)

	all, err := List(db, ListFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("unfiltered = %d, want 4", len(all))
	}

	backend, _ := List(db, ListFilters{Project: "backend"})
	if len(backend) != 3 {
		t.Errorf("backend = %d, want 3", len(backend))
	}

	got, _ := List(db, ListFilters{Project: "backend", Owner: "alice", Status: models.StatusInProgress})
	if len(got) != 1 || got[0].Title != "b" {
		t.Errorf("combined filter = %v", got)
	}
}
