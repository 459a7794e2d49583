// Package item provides WorkItem creation and retrieval.
package item

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/haldane/foreman/internal/faults"
	"github.com/haldane/foreman/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a new work item.
type CreateOpts struct {
	Title       string
	Description string
	Type        models.ItemType // task (default) or bug
	Project     string
	Owner       string // assignee; may be empty
	CreatedBy   string
}

// ListFilters holds optional filters for listing work items.
type ListFilters struct {
	Project  string
	Status   models.Status
	QaStatus models.QaStatus
	Owner    string
	Type     models.ItemType
}

// GenerateID creates a unique item ID in wi-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("item: generate ID: %w", err)
	}
	return "wi-" + hex.EncodeToString(b)[:5], nil
}

// Create creates a new work item with an auto-generated ID.
func Create(db *gorm.DB, opts CreateOpts) (*models.WorkItem, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("item: title is required")
	}
	if opts.Project == "" {
		return nil, fmt.Errorf("item: project is required")
	}
	if opts.Type == "" {
		opts.Type = models.TypeTask
	}
	if opts.Type != models.TypeTask && opts.Type != models.TypeBug {
		return nil, fmt.Errorf("item: unknown type %q", opts.Type)
	}

	id, err := generateUniqueID(db)
	if err != nil {
		return nil, err
	}

	wi := models.WorkItem{
		ID:             id,
		Title:          opts.Title,
		Description:    opts.Description,
		Type:           opts.Type,
		Status:         models.StatusTodo,
		Project:        opts.Project,
		Owner:          opts.Owner,
		CreatedBy:      opts.CreatedBy,
		ApprovalStatus: models.ApprovalNone,
		QaStatus:       models.QaNone,
	}

	if err := db.Create(&wi).Error; err != nil {
		return nil, fmt.Errorf("item: create: %w", err)
	}
	return &wi, nil
}

// Get retrieves a work item by ID.
func Get(db *gorm.DB, id string) (*models.WorkItem, error) {
	var wi models.WorkItem
	if err := db.Where("id = ?", id).First(&wi).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.NotFound("item: %s", id)
		}
		return nil, fmt.Errorf("item: get %s: %w", id, err)
	}
	return &wi, nil
}

// List returns work items matching the given filters, newest first.
func List(db *gorm.DB, filters ListFilters) ([]models.WorkItem, error) {
	q := db.Model(&models.WorkItem{})

	if filters.Project != "" {
		q = q.Where("project = ?", filters.Project)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.QaStatus != "" {
		q = q.Where("qa_status = ?", filters.QaStatus)
	}
	if filters.Owner != "" {
		q = q.Where("owner = ?", filters.Owner)
	}
	if filters.Type != "" {
		q = q.Where("type = ?", filters.Type)
	}

	var items []models.WorkItem
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("item: list: %w", err)
	}
	return items, nil
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(db *gorm.DB) (string, error) {
	for i := 0; i < 2; i++ {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.WorkItem{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("item: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("item: failed to generate unique ID after retries")
}
