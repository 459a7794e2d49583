package review

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haldane/foreman/internal/auth"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/faults"
	"github.com/haldane/foreman/internal/models"
	"github.com/haldane/foreman/internal/notify"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with all required tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.WorkItem{}, &models.User{}, &models.Membership{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedItem(t *testing.T, db *gorm.DB, wi models.WorkItem) *models.WorkItem {
	t.Helper()
	if wi.Title == "" {
		wi.Title = "test item"
	}
	if wi.Project == "" {
		wi.Project = "backend"
	}
	if wi.Type == "" {
		wi.Type = models.TypeTask
	}
	if err := db.Create(&wi).Error; err != nil {
		t.Fatalf("seed item %s: %v", wi.ID, err)
	}
	return &wi
}

// readyItem seeds an item waiting for QA.
func readyItem(t *testing.T, db *gorm.DB, id string) *models.WorkItem {
	t.Helper()
	return seedItem(t, db, models.WorkItem{
		ID:       id,
		Owner:    "alice",
		Status:   models.StatusReadyForTest,
		QaStatus: models.QaReadyForTest,
	})
}

func actorWith(id string, roles ...models.Role) *auth.Actor {
	a := &auth.Actor{ID: id}
	for _, r := range roles {
		a.Memberships = append(a.Memberships, models.Membership{UserID: id, Project: "backend", Role: r})
	}
	return a
}

func qaActor(id string) *auth.Actor   { return actorWith(id, models.RoleQa) }
func leadActor(id string) *auth.Actor { return actorWith(id, models.RoleTeamLeader) }

var testClock = clock.Fixed{T: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)}

func TestAssign_SelfClaim(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")

	wi, err := Assign(db, testClock, "wi-00001", qaActor("quinn"), "")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if wi.QaStatus != models.QaTesting {
		t.Errorf("qa_status = %s, want %s", wi.QaStatus, models.QaTesting)
	}
	if wi.QaAssignedTo != "quinn" {
		t.Errorf("qa_assigned_to = %s, want quinn", wi.QaAssignedTo)
	}
	if wi.QaTestingStartedAt == nil {
		t.Error("qa_testing_started_at not set")
	}
}

func TestAssign_LeaderAssignsQaUser(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	// The target QA user must exist for capability resolution.
	if err := db.Create(&models.User{ID: "quinn", Active: true}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := db.Create(&models.Membership{UserID: "quinn", Project: "backend", Role: models.RoleQa}).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	wi, err := Assign(db, testClock, "wi-00001", leadActor("lara"), "quinn")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if wi.QaAssignedTo != "quinn" {
		t.Errorf("qa_assigned_to = %s, want quinn", wi.QaAssignedTo)
	}
}

func TestAssign_NonQaActor_Forbidden(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")

	_, err := Assign(db, testClock, "wi-00001", actorWith("dev", models.RoleDeveloper), "")
	if !faults.IsForbidden(err) {
		t.Fatalf("error = %v, want Forbidden", err)
	}
}

func TestAssign_WrongQaStatus_InvalidState(t *testing.T) {
	db := testDB(t)
	seedItem(t, db, models.WorkItem{ID: "wi-00001", Status: models.StatusInProgress, QaStatus: models.QaNone})

	_, err := Assign(db, testClock, "wi-00001", qaActor("quinn"), "")
	if !faults.IsInvalidState(err) {
		t.Fatalf("error = %v, want InvalidState", err)
	}
}

func TestAssign_SecondActiveItem_Conflict(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	readyItem(t, db, "wi-00002")

	if _, err := Assign(db, testClock, "wi-00001", qaActor("quinn"), ""); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	_, err := Assign(db, testClock, "wi-00002", qaActor("quinn"), "")
	if !faults.IsConflict(err) {
		t.Fatalf("error = %v, want Conflict", err)
	}
	if !strings.Contains(err.Error(), "quinn") {
		t.Errorf("error = %q, want to name the QA user", err.Error())
	}
}

func TestAssign_PausedItemStillHoldsSlot(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	readyItem(t, db, "wi-00002")
	quinn := qaActor("quinn")

	if _, err := Assign(db, testClock, "wi-00001", quinn, ""); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := PauseTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("pause: %v", err)
	}

	_, err := Assign(db, testClock, "wi-00002", quinn, "")
	if !faults.IsConflict(err) {
		t.Fatalf("error = %v, want Conflict (paused item holds the slot)", err)
	}
}

func TestPauseResumeTesting_Toggle(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	quinn := qaActor("quinn")

	if _, err := StartTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("start testing: %v", err)
	}

	wi, err := PauseTesting(db, testClock, "wi-00001", quinn)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if wi.QaStatus != models.QaTestingPaused {
		t.Errorf("qa_status = %s, want %s", wi.QaStatus, models.QaTestingPaused)
	}
	if wi.QaTestingPausedAt == nil {
		t.Error("qa_testing_paused_at not set")
	}

	wi, err = ResumeTesting(db, testClock, "wi-00001", quinn)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if wi.QaStatus != models.QaTesting {
		t.Errorf("qa_status = %s, want %s", wi.QaStatus, models.QaTesting)
	}
}

func TestPauseTesting_NotAssignedReviewer_Forbidden(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")

	if _, err := StartTesting(db, testClock, "wi-00001", qaActor("quinn")); err != nil {
		t.Fatalf("start testing: %v", err)
	}
	_, err := PauseTesting(db, testClock, "wi-00001", qaActor("rory"))
	if !faults.IsForbidden(err) {
		t.Fatalf("error = %v, want Forbidden", err)
	}
}

func TestFinishTesting_RecordsNoDecision(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	quinn := qaActor("quinn")

	if _, err := StartTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("start testing: %v", err)
	}
	wi, err := FinishTesting(db, testClock, "wi-00001", quinn)
	if err != nil {
		t.Fatalf("finish testing: %v", err)
	}
	if wi.QaStatus != models.QaTestingFinished {
		t.Errorf("qa_status = %s, want %s", wi.QaStatus, models.QaTestingFinished)
	}
	if wi.QaTestingFinishedAt == nil {
		t.Error("qa_testing_finished_at not set")
	}
	if wi.QaReviewedBy != "" {
		t.Errorf("qa_reviewed_by = %q, want empty (no decision yet)", wi.QaReviewedBy)
	}
}

func TestApprove_FromTesting_InvalidState(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	quinn := qaActor("quinn")
	rec := &notify.Recorder{}

	if _, err := StartTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("start testing: %v", err)
	}
	_, err := Approve(db, testClock, rec, "wi-00001", quinn, "lgtm")
	if !faults.IsInvalidState(err) {
		t.Fatalf("error = %v, want InvalidState", err)
	}
}

func TestApprove_HandsOffToLeaderTrack(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	quinn := qaActor("quinn")
	rec := &notify.Recorder{}

	// A team leader in the project should be notified.
	if err := db.Create(&models.Membership{UserID: "lara", Project: "backend", Role: models.RoleTeamLeader}).Error; err != nil {
		t.Fatalf("seed lead membership: %v", err)
	}

	if _, err := StartTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("start testing: %v", err)
	}
	if _, err := FinishTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("finish testing: %v", err)
	}

	wi, err := Approve(db, testClock, rec, "wi-00001", quinn, "all scenarios pass")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if wi.QaStatus != models.QaApproved {
		t.Errorf("qa_status = %s, want %s", wi.QaStatus, models.QaApproved)
	}
	if wi.Status != models.StatusInReview {
		t.Errorf("status = %s, want %s", wi.Status, models.StatusInReview)
	}
	if wi.QaReviewedBy != "quinn" || wi.QaNotes != "all scenarios pass" {
		t.Errorf("review record = %q/%q", wi.QaReviewedBy, wi.QaNotes)
	}

	approvals := rec.ByKind(models.KindQaApproved)
	recipients := map[string]bool{}
	for _, e := range approvals {
		recipients[e.Recipient] = true
	}
	if !recipients["alice"] || !recipients["lara"] {
		t.Errorf("approval recipients = %v, want developer and team leader", recipients)
	}
}

func TestApprove_NotAssignedReviewer_Forbidden(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	quinn := qaActor("quinn")
	rec := &notify.Recorder{}

	if _, err := StartTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("start testing: %v", err)
	}
	if _, err := FinishTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("finish testing: %v", err)
	}
	_, err := Approve(db, testClock, rec, "wi-00001", qaActor("rory"), "")
	if !faults.IsForbidden(err) {
		t.Fatalf("error = %v, want Forbidden", err)
	}
}

func TestReject_ReopensForDeveloper(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	quinn := qaActor("quinn")
	rec := &notify.Recorder{}

	if _, err := StartTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("start testing: %v", err)
	}
	if _, err := FinishTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("finish testing: %v", err)
	}

	wi, err := Reject(db, testClock, rec, "wi-00001", quinn, "crashes on empty input")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if wi.QaStatus != models.QaRejected {
		t.Errorf("qa_status = %s, want %s", wi.QaStatus, models.QaRejected)
	}
	if wi.Status != models.StatusInProgress {
		t.Errorf("status = %s, want %s (reopened)", wi.Status, models.StatusInProgress)
	}

	rejections := rec.ByKind(models.KindQaRejected)
	if len(rejections) != 1 || rejections[0].Recipient != "alice" {
		t.Fatalf("rejection notifications = %+v, want 1 to the developer", rejections)
	}
}

func TestReject_FromTesting_InvalidState(t *testing.T) {
	db := testDB(t)
	readyItem(t, db, "wi-00001")
	quinn := qaActor("quinn")
	rec := &notify.Recorder{}

	if _, err := StartTesting(db, testClock, "wi-00001", quinn); err != nil {
		t.Fatalf("start testing: %v", err)
	}
	_, err := Reject(db, testClock, rec, "wi-00001", quinn, "")
	if !faults.IsInvalidState(err) {
		t.Fatalf("error = %v, want InvalidState", err)
	}
}

// TestAssign_ConcurrentClaims_SingleSlot races paired claims for one QA
// user over a file-backed database, where writes really interleave. Only
// one claim per round may win; the loser gets Conflict.
func TestAssign_ConcurrentClaims_SingleSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.WorkItem{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	for round := 0; round < 50; round++ {
		ids := []string{
			fmt.Sprintf("wi-a%04d", round),
			fmt.Sprintf("wi-b%04d", round),
		}
		for _, id := range ids {
			readyItem(t, db, id)
		}

		errs := make([]error, len(ids))
		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				_, errs[i] = Assign(db, testClock, id, qaActor("quinn"), "")
			}(i, id)
		}
		wg.Wait()

		var active int64
		err := db.Model(&models.WorkItem{}).
			Where("qa_assigned_to = ? AND qa_status IN ?", "quinn", activeQaStates).
			Count(&active).Error
		if err != nil {
			t.Fatalf("round %d: count active: %v", round, err)
		}
		if active > 1 {
			t.Fatalf("round %d: %d active testing sessions for one user", round, active)
		}

		wins := 0
		for i, e := range errs {
			switch {
			case e == nil:
				wins++
			case faults.IsConflict(e):
			default:
				t.Fatalf("round %d: claim %s: %v", round, ids[i], e)
			}
		}
		if wins != 1 {
			t.Fatalf("round %d: %d winning claims, want 1", round, wins)
		}
		if int64(wins) != active {
			t.Fatalf("round %d: %d winners but %d active rows", round, wins, active)
		}

		if err := db.Where("id IN ?", ids).Delete(&models.WorkItem{}).Error; err != nil {
			t.Fatalf("round %d: cleanup: %v", round, err)
		}
	}
}
