package service

import (
	"context"
	"errors"
	"time"

	"questlog/internal/model"
	"questlog/internal/repository"
	"questlog/pkg/civil"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrInstanceNotFound   = errors.New("instance not found")
	ErrInvalidRecurrence  = errors.New("invalid recurrence rule")
	ErrInvalidTimezone    = errors.New("invalid timezone identifier")
	ErrInvalidBasePoints  = errors.New("base points must be positive")
	ErrInstanceNotOwned   = errors.New("instance does not belong to user")
	ErrTemplateNotOwned   = errors.New("template does not belong to user")
)

// mapRepoError converts repository sentinels to their service-level
// equivalents at the boundary.
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrTemplateNotFound):
		return ErrTemplateNotFound
	case errors.Is(err, repository.ErrInstanceNotFound):
		return ErrInstanceNotFound
	}
	return err
}

type Service struct {
	*UserService
	*QuestService
}

func NewService(userService *UserService, questService *QuestService) *Service {
	return &Service{
		UserService:  userService,
		QuestService: questService,
	}
}

type UserServiceI interface {
	RegisterUser(ctx context.Context, timezone string) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error
	GetLeaderboard(ctx context.Context) ([]*model.User, error)
}

type QuestServiceI interface {
	CompleteQuest(ctx context.Context, userID, instanceID uuid.UUID, completed bool) (int, error)
	CreateTemplate(ctx context.Context, userID uuid.UUID, input TemplateInput) (*model.QuestTemplate, *model.QuestInstance, error)
	UpdateTemplate(ctx context.Context, userID uuid.UUID, tmpl *model.QuestTemplate) error
	DeactivateTemplate(ctx context.Context, userID, templateID uuid.UUID) error
	ListTemplates(ctx context.Context, userID uuid.UUID) ([]*model.QuestTemplate, error)
	CreateAdhocInstance(ctx context.Context, userID uuid.UUID, title string, basePoints int) (*model.QuestInstance, error)
	ListQuests(ctx context.Context, userID uuid.UUID, day civil.Date) ([]*model.QuestInstance, map[uuid.UUID]int, error)
	PoolStatus(ctx context.Context, userID uuid.UUID, day civil.Date) (model.DailyPoolState, error)
	StreakStatus(ctx context.Context, userID uuid.UUID) (model.StreakStatus, error)
	ReconcileNow(ctx context.Context, userID uuid.UUID) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	ReadUserXP(ctx context.Context, id uuid.UUID) (int, error)
	AdjustUserXP(ctx context.Context, id uuid.UUID, delta int) error
	UpdateUserTimezone(ctx context.Context, id uuid.UUID, timezone string) error
	WriteUserStreak(ctx context.Context, id uuid.UUID, streak int, lastActive *civil.Date) error
	TopUsers(ctx context.Context, limit int) ([]*model.User, error)
}

type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t *model.QuestTemplate) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*model.QuestTemplate, error)
	ListActiveTemplates(ctx context.Context, userID uuid.UUID) ([]*model.QuestTemplate, error)
	UpdateTemplate(ctx context.Context, t *model.QuestTemplate) error
	DeactivateTemplate(ctx context.Context, userID, id uuid.UUID) error
}

type InstanceRepository interface {
	UpsertInstances(ctx context.Context, userID uuid.UUID, instances []*model.QuestInstance) (int, error)
	GetInstance(ctx context.Context, id uuid.UUID) (*model.QuestInstance, error)
	ListInstances(ctx context.Context, userID uuid.UUID, day civil.Date) ([]*model.QuestInstance, error)
	ListUnsettledCompleted(ctx context.Context, userID uuid.UUID, day civil.Date) ([]*model.QuestInstance, error)
	SetInstanceCompleted(ctx context.Context, id uuid.UUID, completed bool, completedAt *time.Time) error
	UpdateInstanceReward(ctx context.Context, id uuid.UUID, reward *int) error
	ApplySettlement(ctx context.Context, instanceID uuid.UUID, reward *int, userID uuid.UUID, xpDelta int) error
	ConsumedXP(ctx context.Context, userID uuid.UUID, day civil.Date) (int, error)
	ListActiveDays(ctx context.Context, userID uuid.UUID) ([]civil.Date, error)
	HasInstanceForTemplate(ctx context.Context, templateID uuid.UUID) (bool, error)
}

// EventEmitter publishes engine events for external observers (the
// achievement system). Implementations are best effort: a failed or
// absent consumer never affects the engine.
type EventEmitter interface {
	Publish(eventType string, data map[string]any)
}

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) Publish(string, map[string]any) {}
