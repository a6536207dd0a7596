package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/vocabustudy/admin-portal/models"
	"github.com/vocabustudy/admin-portal/utils"
	"go.uber.org/zap"
)

// UserService defines the account operations used by UserHandler
type UserService interface {
	// List returns one page of accounts, newest first
	List(ctx context.Context, page int) ([]models.User, error)

	// Update applies a modification to one account
	Update(ctx context.Context, body *models.ModifyUserBody) error
}

// UserHandler handles account management requests
type UserHandler struct {
	users  UserService
	audit  AuditRecorder
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, audit AuditRecorder, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		audit:  audit,
		logger: logger,
	}
}

// HandleList handles GET /api/users?page=N
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			_ = utils.WriteBadRequest(w, "Invalid page", nil)
			return
		}
		page = parsed
	}

	users, err := h.users.List(r.Context(), page)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, users); err != nil {
		h.logger.Error("failed to write users response", zap.Error(err))
	}
}

// HandleUpdate handles PATCH /api/users
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var body models.ModifyUserBody
	if err := utils.DecodeJSON(r, &body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	err := h.users.Update(r.Context(), &body)
	if auditErr := h.audit.LogUserUpdated(actorFrom(r), requestMetaFrom(r), &body, err); auditErr != nil {
		h.logger.Warn("failed to queue audit event", zap.Error(auditErr))
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, "success")
}
