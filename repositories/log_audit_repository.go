package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vocabustudy/admin-portal/models"
	"go.uber.org/zap"
)

// LogAuditRepository writes audit entries to the structured log and keeps the
// most recent ones in memory. Used when no database is configured.
type LogAuditRepository struct {
	logger   *zap.Logger
	capacity int

	mu      sync.RWMutex
	entries []*models.AuditLog // oldest first
}

// NewLogAuditRepository creates a repository retaining up to capacity entries
func NewLogAuditRepository(logger *zap.Logger, capacity int) *LogAuditRepository {
	if capacity <= 0 {
		capacity = 100
	}
	return &LogAuditRepository{
		logger:   logger,
		capacity: capacity,
	}
}

// Insert logs the entry and retains it
func (r *LogAuditRepository) Insert(_ context.Context, log *models.AuditLog) error {
	fields := []zap.Field{
		zap.String("id", log.ID.String()),
		zap.String("action", string(log.Action)),
		zap.String("actor_uid", log.ActorUID),
		zap.String("resource_type", log.ResourceType),
		zap.String("resource_id", log.ResourceID),
		zap.String("request_id", log.RequestID),
		zap.Time("timestamp", log.Timestamp),
	}
	if len(log.Details) > 0 {
		fields = append(fields, zap.ByteString("details", log.Details))
	}
	if log.ErrorMessage != nil {
		fields = append(fields, zap.Stringp("error_message", log.ErrorMessage))
	}
	r.logger.Info("admin audit", fields...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == r.capacity {
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, log)
	return nil
}

// GetByID returns a retained entry
func (r *LogAuditRepository) GetByID(_ context.Context, id uuid.UUID) (*models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("audit log %s: %w", id, ErrNotFound)
}

// ListRecent returns retained entries, newest first
func (r *LogAuditRepository) ListRecent(_ context.Context, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	logs := make([]*models.AuditLog, 0, limit)
	for i := len(r.entries) - 1 - offset; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, r.entries[i])
	}
	return logs, nil
}
