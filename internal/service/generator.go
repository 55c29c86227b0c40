package service

import (
	"context"
	"fmt"

	"questlog/internal/model"
	"questlog/internal/recurrence"
	"questlog/pkg/civil"
	"questlog/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GeneratorService materializes quest instances from templates at the
// start of each local day. Generation is idempotent: the existence
// check plus the (user, template, day) uniqueness in storage guarantee
// a second run for the same day creates nothing.
type GeneratorService struct {
	templates TemplateRepository
	instances InstanceRepository
}

func NewGeneratorService(templates TemplateRepository, instances InstanceRepository) *GeneratorService {
	return &GeneratorService{
		templates: templates,
		instances: instances,
	}
}

// Generate creates today's instances for a user and returns how many
// were created.
func (s *GeneratorService) Generate(ctx context.Context, userID uuid.UUID, localToday civil.Date) (int, error) {
	templates, err := s.templates.ListActiveTemplates(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list active templates: %w", err)
	}
	if len(templates) == 0 {
		return 0, nil
	}

	existing, err := s.instances.ListInstances(ctx, userID, localToday)
	if err != nil {
		return 0, fmt.Errorf("failed to list existing instances: %w", err)
	}
	represented := make(map[uuid.UUID]struct{}, len(existing))
	for _, inst := range existing {
		if inst.TemplateID != nil {
			represented[*inst.TemplateID] = struct{}{}
		}
	}

	var fresh []*model.QuestInstance
	for _, t := range templates {
		if t.DueDay != nil && t.DueDay.Before(localToday) {
			continue
		}
		if _, ok := represented[t.ID]; ok {
			continue
		}

		due, err := s.templateDue(ctx, t, localToday)
		if err != nil {
			return 0, err
		}
		if !due {
			continue
		}

		fresh = append(fresh, &model.QuestInstance{
			ID:         uuid.New(),
			UserID:     userID,
			TemplateID: &t.ID,
			Day:        localToday,
			Title:      t.Title,
			BasePoints: t.BasePoints,
		})
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	created, err := s.instances.UpsertInstances(ctx, userID, fresh)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert instances: %w", err)
	}

	return created, nil
}

// templateDue decides whether a template produces an instance on day.
// Recurring templates go through the recurrence matcher; one-time
// templates fire on their due day, and a bare one-shot (no due day, no
// recurrence) fires once, the first day it is seen.
func (s *GeneratorService) templateDue(ctx context.Context, t *model.QuestTemplate, day civil.Date) (bool, error) {
	if t.Recurrence != nil {
		rule, err := recurrence.Parse(*t.Recurrence)
		if err != nil {
			// Malformed rule stored despite validation. A missed
			// occurrence beats a crashed batch run.
			logger.Logger().Warn("skipping template with malformed recurrence rule",
				zap.String("template_id", t.ID.String()),
				zap.Error(err))
			return false, nil
		}
		return rule.Matches(day), nil
	}

	if t.DueDay != nil {
		return *t.DueDay == day, nil
	}

	exists, err := s.instances.HasInstanceForTemplate(ctx, t.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check template instances: %w", err)
	}
	return !exists, nil
}
