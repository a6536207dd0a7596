package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/vocabustudy/admin-portal/models"
)

// AuditRepository handles admin audit log persistence
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByID retrieves an audit log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// ListRecent returns the newest entries first
	ListRecent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
