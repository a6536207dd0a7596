package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vocabustudy/admin-portal/middleware"
	"github.com/vocabustudy/admin-portal/models"
	"github.com/vocabustudy/admin-portal/repositories"
	"github.com/vocabustudy/admin-portal/services/audit"
	"github.com/vocabustudy/admin-portal/utils"
	"go.uber.org/zap"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditRecorder records admin mutations
type AuditRecorder interface {
	LogUserUpdated(actor audit.Actor, meta audit.RequestMeta, body *models.ModifyUserBody, opErr error) error
	LogRollback(actor audit.Actor, meta audit.RequestMeta, versionHash string, opErr error) error
}

// AuditReader lists recorded admin mutations
type AuditReader interface {
	Recent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)
}

func actorFrom(r *http.Request) audit.Actor {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return audit.Actor{}
	}
	return audit.Actor{UID: claims.Subject, Email: claims.Email}
}

func requestMetaFrom(r *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		RequestID: middleware.GetRequestIDFromContext(r.Context()),
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// AuditHandler serves the admin audit trail
type AuditHandler struct {
	reader AuditReader
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(reader AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		reader: reader,
		logger: logger,
	}
}

// HandleList handles GET /api/audit?limit=N&offset=M
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultAuditLimit)
	if !ok || limit < 1 || limit > maxAuditLimit {
		_ = utils.WriteBadRequest(w, "limit must be between 1 and "+strconv.Itoa(maxAuditLimit), nil)
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		_ = utils.WriteBadRequest(w, "Invalid offset", nil)
		return
	}

	logs, err := h.reader.Recent(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list audit logs", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, logs)
}

// HandleGet handles GET /api/audit/{id}
func (h *AuditHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid audit log ID", nil)
		return
	}

	log, err := h.reader.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = utils.WriteNotFound(w, "audit log not found")
			return
		}
		h.logger.Error("failed to get audit log", zap.Error(err), zap.String("id", id.String()))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, log)
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}
