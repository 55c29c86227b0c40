// Package mocks holds hand-written testify mocks for the repository
// interfaces consumed by the service layer.
package mocks

import (
	"context"
	"time"

	"questlog/internal/model"
	"questlog/pkg/civil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) ListUsers(ctx context.Context) ([]*model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *MockUserRepository) ReadUserXP(ctx context.Context, id uuid.UUID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) AdjustUserXP(ctx context.Context, id uuid.UUID, delta int) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateUserTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	args := m.Called(ctx, id, timezone)
	return args.Error(0)
}

func (m *MockUserRepository) WriteUserStreak(ctx context.Context, id uuid.UUID, streak int, lastActive *civil.Date) error {
	args := m.Called(ctx, id, streak, lastActive)
	return args.Error(0)
}

func (m *MockUserRepository) TopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) CreateTemplate(ctx context.Context, t *model.QuestTemplate) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTemplateRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*model.QuestTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuestTemplate), args.Error(1)
}

func (m *MockTemplateRepository) ListActiveTemplates(ctx context.Context, userID uuid.UUID) ([]*model.QuestTemplate, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.QuestTemplate), args.Error(1)
}

func (m *MockTemplateRepository) UpdateTemplate(ctx context.Context, t *model.QuestTemplate) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTemplateRepository) DeactivateTemplate(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) UpsertInstances(ctx context.Context, userID uuid.UUID, instances []*model.QuestInstance) (int, error) {
	args := m.Called(ctx, userID, instances)
	return args.Int(0), args.Error(1)
}

func (m *MockInstanceRepository) GetInstance(ctx context.Context, id uuid.UUID) (*model.QuestInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuestInstance), args.Error(1)
}

func (m *MockInstanceRepository) ListInstances(ctx context.Context, userID uuid.UUID, day civil.Date) ([]*model.QuestInstance, error) {
	args := m.Called(ctx, userID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.QuestInstance), args.Error(1)
}

func (m *MockInstanceRepository) ListUnsettledCompleted(ctx context.Context, userID uuid.UUID, day civil.Date) ([]*model.QuestInstance, error) {
	args := m.Called(ctx, userID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.QuestInstance), args.Error(1)
}

func (m *MockInstanceRepository) SetInstanceCompleted(ctx context.Context, id uuid.UUID, completed bool, completedAt *time.Time) error {
	args := m.Called(ctx, id, completed, completedAt)
	return args.Error(0)
}

func (m *MockInstanceRepository) UpdateInstanceReward(ctx context.Context, id uuid.UUID, reward *int) error {
	args := m.Called(ctx, id, reward)
	return args.Error(0)
}

func (m *MockInstanceRepository) ApplySettlement(ctx context.Context, instanceID uuid.UUID, reward *int, userID uuid.UUID, xpDelta int) error {
	args := m.Called(ctx, instanceID, reward, userID, xpDelta)
	return args.Error(0)
}

func (m *MockInstanceRepository) ConsumedXP(ctx context.Context, userID uuid.UUID, day civil.Date) (int, error) {
	args := m.Called(ctx, userID, day)
	return args.Int(0), args.Error(1)
}

func (m *MockInstanceRepository) ListActiveDays(ctx context.Context, userID uuid.UUID) ([]civil.Date, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]civil.Date), args.Error(1)
}

func (m *MockInstanceRepository) HasInstanceForTemplate(ctx context.Context, templateID uuid.UUID) (bool, error) {
	args := m.Called(ctx, templateID)
	return args.Bool(0), args.Error(1)
}
