package service

import (
	"context"
	"testing"

	"questlog/internal/model"
	"questlog/internal/service/mocks"
	"questlog/pkg/civil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func strPtr(s string) *string { return &s }

func dayPtr(d civil.Date) *civil.Date { return &d }

func TestGenerate(t *testing.T) {
	userID := uuid.New()
	// 2025-06-16 is a Monday.
	today := civil.Date("2025-06-16")

	daily := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "stretch", Recurrence: strPtr("FREQ=DAILY"), BasePoints: 2, Active: true}
	weekly := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "laundry", Recurrence: strPtr("FREQ=WEEKLY;BYDAY=MO,FR"), BasePoints: 5, Active: true}
	tuesdayOnly := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "trash", Recurrence: strPtr("FREQ=WEEKLY;BYDAY=TU"), BasePoints: 1, Active: true}
	dueToday := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "taxes", DueDay: dayPtr(today), BasePoints: 8, Active: true}
	dueTomorrow := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "call mom", DueDay: dayPtr(today.AddDays(1)), BasePoints: 3, Active: true}
	expired := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "old", DueDay: dayPtr(today.AddDays(-1)), BasePoints: 3, Active: true}

	tests := []struct {
		name        string
		templates   []*model.QuestTemplate
		existing    []*model.QuestInstance
		setup       func(instances *mocks.MockInstanceRepository)
		wantCreated int
		wantTitles  []string
	}{
		{
			name:        "no templates",
			templates:   nil,
			wantCreated: 0,
		},
		{
			name:        "recurring templates for a monday",
			templates:   []*model.QuestTemplate{daily, weekly, tuesdayOnly},
			existing:    []*model.QuestInstance{},
			wantCreated: 2,
			wantTitles:  []string{"stretch", "laundry"},
		},
		{
			name:        "one-time templates fire on their due day only",
			templates:   []*model.QuestTemplate{dueToday, dueTomorrow},
			existing:    []*model.QuestInstance{},
			wantCreated: 1,
			wantTitles:  []string{"taxes"},
		},
		{
			name:        "expired due day is discarded",
			templates:   []*model.QuestTemplate{expired},
			existing:    []*model.QuestInstance{},
			wantCreated: 0,
		},
		{
			name:      "already represented templates are skipped",
			templates: []*model.QuestTemplate{daily, weekly},
			existing: []*model.QuestInstance{
				{ID: uuid.New(), UserID: userID, TemplateID: &daily.ID, Day: today, Title: "stretch", BasePoints: 2},
			},
			wantCreated: 1,
			wantTitles:  []string{"laundry"},
		},
		{
			name:      "fully represented day creates nothing",
			templates: []*model.QuestTemplate{daily, weekly},
			existing: []*model.QuestInstance{
				{ID: uuid.New(), UserID: userID, TemplateID: &daily.ID, Day: today, Title: "stretch", BasePoints: 2},
				{ID: uuid.New(), UserID: userID, TemplateID: &weekly.ID, Day: today, Title: "laundry", BasePoints: 5},
			},
			wantCreated: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			templates := &mocks.MockTemplateRepository{}
			instances := &mocks.MockInstanceRepository{}
			generator := NewGeneratorService(templates, instances)

			templates.On("ListActiveTemplates", mock.Anything, userID).Return(tt.templates, nil)
			if len(tt.templates) > 0 {
				instances.On("ListInstances", mock.Anything, userID, today).Return(tt.existing, nil)
			}
			if tt.setup != nil {
				tt.setup(instances)
			}
			if tt.wantCreated > 0 {
				instances.On("UpsertInstances", mock.Anything, userID, mock.MatchedBy(func(fresh []*model.QuestInstance) bool {
					if len(fresh) != len(tt.wantTitles) {
						return false
					}
					for i, inst := range fresh {
						if inst.Title != tt.wantTitles[i] || inst.Day != today || inst.TemplateID == nil {
							return false
						}
					}
					return true
				})).Return(tt.wantCreated, nil).Once()
			}

			created, err := generator.Generate(context.Background(), userID, today)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantCreated, created)

			templates.AssertExpectations(t)
			instances.AssertExpectations(t)
		})
	}
}

// Calling Generate twice for the same (user, day) creates instances
// exactly once.
func TestGenerateIdempotent(t *testing.T) {
	userID := uuid.New()
	today := civil.Date("2025-06-16")
	daily := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "stretch", Recurrence: strPtr("FREQ=DAILY"), BasePoints: 2, Active: true}

	templates := &mocks.MockTemplateRepository{}
	instances := &mocks.MockInstanceRepository{}
	generator := NewGeneratorService(templates, instances)

	templates.On("ListActiveTemplates", mock.Anything, userID).Return([]*model.QuestTemplate{daily}, nil)

	// First run: nothing exists yet.
	instances.On("ListInstances", mock.Anything, userID, today).
		Return([]*model.QuestInstance{}, nil).Once()
	instances.On("UpsertInstances", mock.Anything, userID, mock.Anything).Return(1, nil).Once()

	created, err := generator.Generate(context.Background(), userID, today)
	assert.NoError(t, err)
	assert.Equal(t, 1, created)

	// Second run: the instance exists, nothing is inserted.
	instances.On("ListInstances", mock.Anything, userID, today).
		Return([]*model.QuestInstance{
			{ID: uuid.New(), UserID: userID, TemplateID: &daily.ID, Day: today, Title: "stretch", BasePoints: 2},
		}, nil).Once()

	created, err = generator.Generate(context.Background(), userID, today)
	assert.NoError(t, err)
	assert.Equal(t, 0, created)

	instances.AssertExpectations(t)
}

func TestGenerateBareOneShot(t *testing.T) {
	userID := uuid.New()
	today := civil.Date("2025-06-16")
	bare := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "someday", BasePoints: 4, Active: true}

	t.Run("materializes once", func(t *testing.T) {
		templates := &mocks.MockTemplateRepository{}
		instances := &mocks.MockInstanceRepository{}
		generator := NewGeneratorService(templates, instances)

		templates.On("ListActiveTemplates", mock.Anything, userID).Return([]*model.QuestTemplate{bare}, nil)
		instances.On("ListInstances", mock.Anything, userID, today).Return([]*model.QuestInstance{}, nil)
		instances.On("HasInstanceForTemplate", mock.Anything, bare.ID).Return(false, nil)
		instances.On("UpsertInstances", mock.Anything, userID, mock.Anything).Return(1, nil).Once()

		created, err := generator.Generate(context.Background(), userID, today)
		assert.NoError(t, err)
		assert.Equal(t, 1, created)
	})

	t.Run("never fires again once an instance exists anywhere", func(t *testing.T) {
		templates := &mocks.MockTemplateRepository{}
		instances := &mocks.MockInstanceRepository{}
		generator := NewGeneratorService(templates, instances)

		templates.On("ListActiveTemplates", mock.Anything, userID).Return([]*model.QuestTemplate{bare}, nil)
		instances.On("ListInstances", mock.Anything, userID, today).Return([]*model.QuestInstance{}, nil)
		instances.On("HasInstanceForTemplate", mock.Anything, bare.ID).Return(true, nil)

		created, err := generator.Generate(context.Background(), userID, today)
		assert.NoError(t, err)
		assert.Equal(t, 0, created)
		instances.AssertNotCalled(t, "UpsertInstances", mock.Anything, mock.Anything, mock.Anything)
	})
}

// A malformed rule that slipped past validation is logged and skipped,
// never fatal to the batch.
func TestGenerateMalformedRule(t *testing.T) {
	userID := uuid.New()
	today := civil.Date("2025-06-16")
	broken := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "broken", Recurrence: strPtr("FREQ=SOMETIMES"), BasePoints: 2, Active: true}
	daily := &model.QuestTemplate{ID: uuid.New(), UserID: userID, Title: "stretch", Recurrence: strPtr("FREQ=DAILY"), BasePoints: 2, Active: true}

	templates := &mocks.MockTemplateRepository{}
	instances := &mocks.MockInstanceRepository{}
	generator := NewGeneratorService(templates, instances)

	templates.On("ListActiveTemplates", mock.Anything, userID).Return([]*model.QuestTemplate{broken, daily}, nil)
	instances.On("ListInstances", mock.Anything, userID, today).Return([]*model.QuestInstance{}, nil)
	instances.On("UpsertInstances", mock.Anything, userID, mock.MatchedBy(func(fresh []*model.QuestInstance) bool {
		return len(fresh) == 1 && fresh[0].Title == "stretch"
	})).Return(1, nil).Once()

	created, err := generator.Generate(context.Background(), userID, today)
	assert.NoError(t, err)
	assert.Equal(t, 1, created)

	instances.AssertExpectations(t)
}
