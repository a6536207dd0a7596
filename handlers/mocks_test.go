package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vocabustudy/admin-portal/models"
	"github.com/vocabustudy/admin-portal/services/audit"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) List(ctx context.Context, page int) ([]models.User, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, body *models.ModifyUserBody) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Overview(ctx context.Context) (*models.Overview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Overview), args.Error(1)
}

func (m *MockStatsService) Hosting(ctx context.Context) ([]models.Release, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Release), args.Error(1)
}

func (m *MockStatsService) Self() models.PingResponse {
	return models.PingResponse{Response: "pong"}
}

type MockHostingService struct {
	mock.Mock
}

func (m *MockHostingService) Rollback(ctx context.Context, versionHash string) error {
	args := m.Called(ctx, versionHash)
	return args.Error(0)
}

type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) LogUserUpdated(actor audit.Actor, meta audit.RequestMeta, body *models.ModifyUserBody, opErr error) error {
	args := m.Called(actor, meta, body, opErr)
	return args.Error(0)
}

func (m *MockAuditRecorder) LogRollback(actor audit.Actor, meta audit.RequestMeta, versionHash string, opErr error) error {
	args := m.Called(actor, meta, versionHash, opErr)
	return args.Error(0)
}

type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) Recent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditReader) Get(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditLog), args.Error(1)
}
