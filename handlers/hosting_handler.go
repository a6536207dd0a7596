package handlers

import (
	"context"
	"net/http"

	"github.com/vocabustudy/admin-portal/models"
	"github.com/vocabustudy/admin-portal/utils"
	"go.uber.org/zap"
)

// HostingService defines the release operations used by HostingHandler
type HostingService interface {
	Rollback(ctx context.Context, versionHash string) error
}

// HostingHandler handles hosting release management
type HostingHandler struct {
	hosting HostingService
	audit   AuditRecorder
	logger  *zap.Logger
}

// NewHostingHandler creates a new HostingHandler
func NewHostingHandler(hosting HostingService, audit AuditRecorder, logger *zap.Logger) *HostingHandler {
	return &HostingHandler{
		hosting: hosting,
		audit:   audit,
		logger:  logger,
	}
}

// HandleRollback handles POST /api/rollback
func (h *HostingHandler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	var req models.RollbackRequest
	if err := utils.DecodeJSON(r, &req); err != nil || req.VersionHash == "" {
		_ = utils.WriteText(w, http.StatusBadRequest, "Bad Request")
		return
	}

	err := h.hosting.Rollback(r.Context(), req.VersionHash)
	if auditErr := h.audit.LogRollback(actorFrom(r), requestMetaFrom(r), req.VersionHash, err); auditErr != nil {
		h.logger.Warn("failed to queue audit event", zap.Error(auditErr))
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, "Success")
}
