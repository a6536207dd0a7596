package handlers

import (
	"context"
	"net/http"

	"github.com/vocabustudy/admin-portal/models"
	"github.com/vocabustudy/admin-portal/services"
	"github.com/vocabustudy/admin-portal/utils"
	"go.uber.org/zap"
)

// StatsService defines the statistics operations used by StatsHandler
type StatsService interface {
	Overview(ctx context.Context) (*models.Overview, error)
	Hosting(ctx context.Context) ([]models.Release, error)
	Self() models.PingResponse
}

// StatsHandler serves dashboard statistics
type StatsHandler struct {
	stats  StatsService
	logger *zap.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(stats StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logger,
	}
}

// HandleStats handles POST /api/stats
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var req models.StatsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	body, err := h.fetch(r.Context(), req.Type)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, body); err != nil {
		h.logger.Error("failed to write stats response",
			zap.String("type", req.Type),
			zap.Error(err))
	}
}

func (h *StatsHandler) fetch(ctx context.Context, statsType string) (interface{}, error) {
	switch statsType {
	case models.StatsTypeAll:
		return h.stats.Overview(ctx)
	case models.StatsTypeHosting:
		return h.stats.Hosting(ctx)
	case models.StatsTypeSelf:
		return h.stats.Self(), nil
	default:
		return nil, services.ErrInvalidStatsType
	}
}
