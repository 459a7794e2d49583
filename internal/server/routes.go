package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haldane/foreman/internal/auth"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/faults"
	"github.com/haldane/foreman/internal/item"
	"github.com/haldane/foreman/internal/models"
	"github.com/haldane/foreman/internal/notify"
	"github.com/haldane/foreman/internal/review"
	"github.com/haldane/foreman/internal/session"
	"github.com/haldane/foreman/internal/sweep"
	"gorm.io/gorm"
)

// actorHeader carries the authenticated user's ID. Authentication itself
// happens upstream; this service trusts the header and resolves it into a
// capability set per request.
const actorHeader = "X-Actor-ID"

// notesBody is the request body for review decisions.
type notesBody struct {
	Notes string `json:"notes"`
}

// assignBody is the request body for QA assignment.
type assignBody struct {
	QaUser string `json:"qa_user"`
}

// createBody is the request body for item creation.
type createBody struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Project     string `json:"project" binding:"required"`
	Owner       string `json:"owner"`
}

func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")

	api.POST("/items", handleCreateItem(opts))
	api.GET("/items", handleListItems(opts))
	api.GET("/items/:id", handleGetItem(opts))

	api.POST("/items/:id/work/start", itemOp(opts, session.Start))
	api.POST("/items/:id/work/pause", itemOp(opts, session.Pause))
	api.POST("/items/:id/work/resume", itemOp(opts, session.Resume))
	api.POST("/items/:id/work/finish", itemOp(opts, session.Finish))

	api.POST("/items/:id/qa/assign", handleQaAssign(opts))
	api.POST("/items/:id/qa/start", itemOp(opts, review.StartTesting))
	api.POST("/items/:id/qa/pause", itemOp(opts, review.PauseTesting))
	api.POST("/items/:id/qa/resume", itemOp(opts, review.ResumeTesting))
	api.POST("/items/:id/qa/finish", itemOp(opts, review.FinishTesting))
	api.POST("/items/:id/qa/approve", decisionOp(opts, review.Approve))
	api.POST("/items/:id/qa/reject", decisionOp(opts, review.Reject))

	api.POST("/items/:id/lead/approve", decisionOp(opts, review.FinalApprove))
	api.POST("/items/:id/lead/request-changes", decisionOp(opts, review.RequestChanges))

	api.POST("/sweep", handleSweep(opts))
}

// resolveActor builds the capability set for the request, or writes the
// error response and returns nil.
func resolveActor(c *gin.Context, opts StartOpts) *auth.Actor {
	actor, err := auth.Resolve(opts.DB, c.GetHeader(actorHeader))
	if err != nil {
		writeError(c, err)
		return nil
	}
	return actor
}

// itemOp adapts operations of the form f(db, clock, itemID, actor).
func itemOp(opts StartOpts, f func(db *gorm.DB, clk clock.Clock, itemID string, actor *auth.Actor) (*models.WorkItem, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := resolveActor(c, opts)
		if actor == nil {
			return
		}
		wi, err := f(opts.DB, opts.Clock, c.Param("id"), actor)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, wi)
	}
}

// decisionOp adapts operations of the form f(db, clock, gateway, itemID, actor, notes).
func decisionOp(opts StartOpts, f func(db *gorm.DB, clk clock.Clock, gw notify.Gateway, itemID string, actor *auth.Actor, notes string) (*models.WorkItem, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := resolveActor(c, opts)
		if actor == nil {
			return
		}
		var body notesBody
		if !bindOptionalJSON(c, &body) {
			return
		}
		wi, err := f(opts.DB, opts.Clock, opts.Gateway, c.Param("id"), actor, body.Notes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, wi)
	}
}

func handleCreateItem(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := resolveActor(c, opts)
		if actor == nil {
			return
		}
		var body createBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		wi, err := item.Create(opts.DB, item.CreateOpts{
			Title:       body.Title,
			Description: body.Description,
			Type:        models.ItemType(body.Type),
			Project:     body.Project,
			Owner:       body.Owner,
			CreatedBy:   actor.ID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, wi)
	}
}

func handleListItems(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := item.List(opts.DB, item.ListFilters{
			Project:  c.Query("project"),
			Status:   models.Status(c.Query("status")),
			QaStatus: models.QaStatus(c.Query("qa_status")),
			Owner:    c.Query("owner"),
			Type:     models.ItemType(c.Query("type")),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func handleGetItem(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		wi, err := item.Get(opts.DB, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, wi)
	}
}

func handleQaAssign(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := resolveActor(c, opts)
		if actor == nil {
			return
		}
		var body assignBody
		if !bindOptionalJSON(c, &body) { // empty qa_user means self-assign
			return
		}
		wi, err := review.Assign(opts.DB, opts.Clock, c.Param("id"), actor, body.QaUser)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, wi)
	}
}

func handleSweep(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := sweep.RunWith(opts.DB, opts.Clock.Now(), opts.Gateway, opts.Thresholds)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// bindOptionalJSON binds a request body that may be absent. A missing body
// is fine; a present but malformed one gets a 400 and returns false.
func bindOptionalJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// writeError maps fault kinds to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case faults.IsNotFound(err):
		status = http.StatusNotFound
	case faults.IsForbidden(err):
		status = http.StatusForbidden
	case faults.IsConflict(err):
		status = http.StatusConflict
	case faults.IsInvalidState(err):
		status = http.StatusUnprocessableEntity
	case faults.IsTransient(err):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
