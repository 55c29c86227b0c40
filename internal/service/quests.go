package service

import (
	"context"
	"fmt"
	"time"

	"questlog/internal/model"
	"questlog/internal/recurrence"
	"questlog/pkg/civil"

	"github.com/google/uuid"
)

// QuestService is the engine surface consumed by the HTTP layer and
// the scheduler: template lifecycle, the synchronous completion path,
// pool/streak reads, and the per-user reconciliation entry points.
type QuestService struct {
	users     UserRepository
	templates TemplateRepository
	instances InstanceRepository
	pool      *PoolService
	allocator *AllocatorService
	streaks   *StreakService
	generator *GeneratorService
	events    EventEmitter
}

func NewQuestService(
	users UserRepository,
	templates TemplateRepository,
	instances InstanceRepository,
	pool *PoolService,
	allocator *AllocatorService,
	streaks *StreakService,
	generator *GeneratorService,
	events EventEmitter,
) *QuestService {
	if events == nil {
		events = NopEmitter{}
	}
	return &QuestService{
		users:     users,
		templates: templates,
		instances: instances,
		pool:      pool,
		allocator: allocator,
		streaks:   streaks,
		generator: generator,
		events:    events,
	}
}

// localToday resolves the user's current calendar date.
func (s *QuestService) localToday(ctx context.Context, userID uuid.UUID) (*model.User, civil.Date, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, "", mapRepoError(err)
	}
	loc, err := user.Location()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidTimezone, user.Timezone)
	}
	return user, civil.Today(loc), nil
}

// CompleteQuest is the synchronous settlement path: toggling a quest
// completed settles its reward immediately and refreshes the streak for
// the current day, without waiting for the hourly tick. Returns the XP
// delta applied to the user.
func (s *QuestService) CompleteQuest(ctx context.Context, userID, instanceID uuid.UUID, completed bool) (int, error) {
	_, today, err := s.localToday(ctx, userID)
	if err != nil {
		return 0, err
	}

	inst, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	if inst.UserID != userID {
		return 0, ErrInstanceNotOwned
	}

	var delta int
	if completed {
		if !inst.Completed {
			now := time.Now().UTC()
			if err := s.instances.SetInstanceCompleted(ctx, instanceID, true, &now); err != nil {
				return 0, err
			}
			inst.Completed = true
		}
		delta, err = s.allocator.SettleCompletion(ctx, inst, today)
		if err != nil {
			return 0, err
		}
	} else {
		delta, err = s.allocator.ReverseCompletion(ctx, inst)
		if err != nil {
			return 0, err
		}
		if inst.Completed {
			if err := s.instances.SetInstanceCompleted(ctx, instanceID, false, nil); err != nil {
				return 0, err
			}
		}
	}

	if _, err := s.streaks.Recalculate(ctx, userID, today); err != nil {
		return 0, err
	}

	s.events.Publish("quest_completed", map[string]any{
		"user_id":     userID.String(),
		"instance_id": instanceID.String(),
		"completed":   completed,
		"xp_delta":    delta,
	})

	return delta, nil
}

type TemplateInput struct {
	Title      string
	Recurrence *string
	DueDay     *civil.Date
	BasePoints int
}

// CreateTemplate stores a new template and, when the template applies
// to the user's current local day, materializes today's instance
// immediately instead of waiting for the next midnight crossing.
func (s *QuestService) CreateTemplate(ctx context.Context, userID uuid.UUID, input TemplateInput) (*model.QuestTemplate, *model.QuestInstance, error) {
	if input.BasePoints <= 0 {
		return nil, nil, ErrInvalidBasePoints
	}
	if input.Recurrence != nil && !recurrence.Validate(*input.Recurrence) {
		return nil, nil, ErrInvalidRecurrence
	}

	_, today, err := s.localToday(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	tmpl := &model.QuestTemplate{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      input.Title,
		Recurrence: input.Recurrence,
		DueDay:     input.DueDay,
		BasePoints: input.BasePoints,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.templates.CreateTemplate(ctx, tmpl); err != nil {
		return nil, nil, fmt.Errorf("failed to create template: %w", err)
	}

	if _, err := s.generator.Generate(ctx, userID, today); err != nil {
		return tmpl, nil, fmt.Errorf("failed to generate instance for new template: %w", err)
	}

	instances, err := s.instances.ListInstances(ctx, userID, today)
	if err != nil {
		return tmpl, nil, err
	}
	for _, inst := range instances {
		if inst.TemplateID != nil && *inst.TemplateID == tmpl.ID {
			return tmpl, inst, nil
		}
	}
	return tmpl, nil, nil
}

// UpdateTemplate edits a template in place. Instances already
// materialized keep their copied base points.
func (s *QuestService) UpdateTemplate(ctx context.Context, userID uuid.UUID, tmpl *model.QuestTemplate) error {
	if tmpl.BasePoints <= 0 {
		return ErrInvalidBasePoints
	}
	if tmpl.Recurrence != nil && !recurrence.Validate(*tmpl.Recurrence) {
		return ErrInvalidRecurrence
	}
	if tmpl.UserID != userID {
		return ErrTemplateNotOwned
	}
	return mapRepoError(s.templates.UpdateTemplate(ctx, tmpl))
}

func (s *QuestService) DeactivateTemplate(ctx context.Context, userID, templateID uuid.UUID) error {
	return mapRepoError(s.templates.DeactivateTemplate(ctx, userID, templateID))
}

func (s *QuestService) ListTemplates(ctx context.Context, userID uuid.UUID) ([]*model.QuestTemplate, error) {
	return s.templates.ListActiveTemplates(ctx, userID)
}

// CreateAdhocInstance adds a one-off quest for the user's current local
// day without a backing template.
func (s *QuestService) CreateAdhocInstance(ctx context.Context, userID uuid.UUID, title string, basePoints int) (*model.QuestInstance, error) {
	if basePoints <= 0 {
		return nil, ErrInvalidBasePoints
	}

	_, today, err := s.localToday(ctx, userID)
	if err != nil {
		return nil, err
	}

	inst := &model.QuestInstance{
		ID:         uuid.New(),
		UserID:     userID,
		Day:        today,
		Title:      title,
		BasePoints: basePoints,
	}
	if _, err := s.instances.UpsertInstances(ctx, userID, []*model.QuestInstance{inst}); err != nil {
		return nil, fmt.Errorf("failed to create ad-hoc instance: %w", err)
	}
	return inst, nil
}

// ListQuests returns a day's instances together with their potential or
// settled rewards.
func (s *QuestService) ListQuests(ctx context.Context, userID uuid.UUID, day civil.Date) ([]*model.QuestInstance, map[uuid.UUID]int, error) {
	_, today, err := s.localToday(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	instances, err := s.instances.ListInstances(ctx, userID, day)
	if err != nil {
		return nil, nil, err
	}

	rewards, err := s.allocator.Preview(ctx, userID, day, today)
	if err != nil {
		return nil, nil, err
	}

	return instances, rewards, nil
}

// PoolStatus is the read-only diagnostic over the daily XP pool.
func (s *QuestService) PoolStatus(ctx context.Context, userID uuid.UUID, day civil.Date) (model.DailyPoolState, error) {
	return s.pool.Status(ctx, userID, day)
}

// StreakStatus recomputes the user's streak as of their current local
// day. The recompute-on-read keeps a stale stored streak from surviving
// a login.
func (s *QuestService) StreakStatus(ctx context.Context, userID uuid.UUID) (model.StreakStatus, error) {
	_, today, err := s.localToday(ctx, userID)
	if err != nil {
		return model.StreakStatus{}, err
	}
	return s.streaks.Recalculate(ctx, userID, today)
}

// GenerateDay runs instance generation for one user and day.
func (s *QuestService) GenerateDay(ctx context.Context, userID uuid.UUID, day civil.Date) (int, error) {
	return s.generator.Generate(ctx, userID, day)
}

// ReconcileDay settles the day that just ended and refreshes the
// streak. Invoked by the scheduler at a midnight crossing and by the
// startup catch-up.
func (s *QuestService) ReconcileDay(ctx context.Context, userID uuid.UUID, endedDay, today civil.Date) error {
	if _, err := s.allocator.SettleDay(ctx, userID, endedDay, today); err != nil {
		return err
	}
	if _, err := s.streaks.Recalculate(ctx, userID, today); err != nil {
		return err
	}
	return nil
}

// HasUnsettled reports whether a (user, day) still has completed
// instances awaiting settlement. The startup catch-up uses this to spot
// users whose midnight crossing happened during downtime.
func (s *QuestService) HasUnsettled(ctx context.Context, userID uuid.UUID, day civil.Date) (bool, error) {
	unsettled, err := s.instances.ListUnsettledCompleted(ctx, userID, day)
	if err != nil {
		return false, err
	}
	return len(unsettled) > 0, nil
}

// ReconcileNow is the manual hook equivalent to one midnight crossing
// for a single user: generate today's instances and reconcile
// yesterday. Both actions run even if one fails.
func (s *QuestService) ReconcileNow(ctx context.Context, userID uuid.UUID) error {
	_, today, err := s.localToday(ctx, userID)
	if err != nil {
		return err
	}

	_, genErr := s.generator.Generate(ctx, userID, today)
	recErr := s.ReconcileDay(ctx, userID, today.AddDays(-1), today)

	if genErr != nil {
		return genErr
	}
	return recErr
}
