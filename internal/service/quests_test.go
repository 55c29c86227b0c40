package service

import (
	"context"
	"testing"
	"time"

	"questlog/internal/model"
	"questlog/internal/service/mocks"
	"questlog/pkg/civil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newQuestService(users *mocks.MockUserRepository, templates *mocks.MockTemplateRepository, instances *mocks.MockInstanceRepository) *QuestService {
	pool := NewPoolService(users, instances)
	allocator := NewAllocatorService(instances, pool, nil)
	streaks := NewStreakService(users, instances, nil)
	generator := NewGeneratorService(templates, instances)
	return NewQuestService(users, templates, instances, pool, allocator, streaks, generator, nil)
}

// Completing and then uncompleting a quest returns the user's XP to
// exactly its pre-completion value and resets the stored reward.
func TestCompleteQuestToggleReversal(t *testing.T) {
	userID := uuid.New()
	user := &model.User{ID: userID, Timezone: "UTC"}
	today := civil.Today(time.UTC)

	instanceID := uuid.New()
	inst := &model.QuestInstance{ID: instanceID, UserID: userID, Day: today, Title: "run", BasePoints: 10}

	users := &mocks.MockUserRepository{}
	templates := &mocks.MockTemplateRepository{}
	instances := &mocks.MockInstanceRepository{}
	qs := newQuestService(users, templates, instances)

	users.On("GetUser", mock.Anything, userID).Return(user, nil)
	users.On("ReadUserXP", mock.Anything, userID).Return(0, nil)
	users.On("WriteUserStreak", mock.Anything, userID, mock.Anything, mock.Anything).Return(nil)

	// Complete: the only task of the day takes the whole pool.
	instances.On("GetInstance", mock.Anything, instanceID).Return(inst, nil).Once()
	instances.On("SetInstanceCompleted", mock.Anything, instanceID, true, mock.Anything).Return(nil).Once()
	instances.On("ListInstances", mock.Anything, userID, today).
		Return([]*model.QuestInstance{inst}, nil)
	instances.On("ConsumedXP", mock.Anything, userID, today).Return(0, nil)
	instances.On("ApplySettlement", mock.Anything, instanceID, rewardOf(100), userID, 100).Return(nil).Once()
	instances.On("ListActiveDays", mock.Anything, userID).Return([]civil.Date{today}, nil)

	delta, err := qs.CompleteQuest(context.Background(), userID, instanceID, true)
	require.NoError(t, err)
	assert.Equal(t, 100, delta)

	// Uncomplete: full reversal, reward back to unsettled.
	reward := 100
	completedInst := &model.QuestInstance{ID: instanceID, UserID: userID, Day: today, Title: "run", BasePoints: 10, Completed: true, XPReward: &reward}
	instances.On("GetInstance", mock.Anything, instanceID).Return(completedInst, nil).Once()
	instances.On("ApplySettlement", mock.Anything, instanceID, (*int)(nil), userID, -100).Return(nil).Once()
	instances.On("SetInstanceCompleted", mock.Anything, instanceID, false, (*time.Time)(nil)).Return(nil).Once()

	delta, err = qs.CompleteQuest(context.Background(), userID, instanceID, false)
	require.NoError(t, err)
	assert.Equal(t, -100, delta)

	instances.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestCompleteQuestNotOwned(t *testing.T) {
	userID := uuid.New()
	user := &model.User{ID: userID, Timezone: "UTC"}
	instanceID := uuid.New()
	inst := &model.QuestInstance{ID: instanceID, UserID: uuid.New(), Day: "2025-06-15", BasePoints: 5}

	users := &mocks.MockUserRepository{}
	templates := &mocks.MockTemplateRepository{}
	instances := &mocks.MockInstanceRepository{}
	qs := newQuestService(users, templates, instances)

	users.On("GetUser", mock.Anything, userID).Return(user, nil)
	instances.On("GetInstance", mock.Anything, instanceID).Return(inst, nil)

	_, err := qs.CompleteQuest(context.Background(), userID, instanceID, true)
	assert.ErrorIs(t, err, ErrInstanceNotOwned)
}

func TestCreateTemplateValidation(t *testing.T) {
	userID := uuid.New()

	users := &mocks.MockUserRepository{}
	templates := &mocks.MockTemplateRepository{}
	instances := &mocks.MockInstanceRepository{}
	qs := newQuestService(users, templates, instances)

	_, _, err := qs.CreateTemplate(context.Background(), userID, TemplateInput{Title: "x", BasePoints: 0})
	assert.ErrorIs(t, err, ErrInvalidBasePoints)

	bad := "FREQ=NEVER"
	_, _, err = qs.CreateTemplate(context.Background(), userID, TemplateInput{Title: "x", BasePoints: 1, Recurrence: &bad})
	assert.ErrorIs(t, err, ErrInvalidRecurrence)

	templates.AssertNotCalled(t, "CreateTemplate", mock.Anything, mock.Anything)
}

func TestCreateTemplateMaterializesToday(t *testing.T) {
	userID := uuid.New()
	user := &model.User{ID: userID, Timezone: "UTC"}
	today := civil.Today(time.UTC)
	rule := "FREQ=DAILY"

	users := &mocks.MockUserRepository{}
	templates := &mocks.MockTemplateRepository{}
	instances := &mocks.MockInstanceRepository{}
	qs := newQuestService(users, templates, instances)

	users.On("GetUser", mock.Anything, userID).Return(user, nil)

	// The template row and instance row carry the ID assigned inside
	// CreateTemplate, captured when the insert lands.
	tmplRow := &model.QuestTemplate{UserID: userID, Title: "water plants", Recurrence: &rule, BasePoints: 2, Active: true}
	instRow := &model.QuestInstance{ID: uuid.New(), UserID: userID, TemplateID: &tmplRow.ID, Day: today, Title: "water plants", BasePoints: 2}

	templates.On("CreateTemplate", mock.Anything, mock.MatchedBy(func(tmpl *model.QuestTemplate) bool {
		tmplRow.ID = tmpl.ID
		return tmpl.UserID == userID && tmpl.Active
	})).Return(nil).Once()

	templates.On("ListActiveTemplates", mock.Anything, userID).
		Return([]*model.QuestTemplate{tmplRow}, nil)

	// Generation path: nothing exists yet, one instance lands.
	instances.On("ListInstances", mock.Anything, userID, today).
		Return([]*model.QuestInstance{}, nil).Once()
	instances.On("UpsertInstances", mock.Anything, userID, mock.Anything).Return(1, nil).Once()
	// Post-generation lookup for the instance to hand back.
	instances.On("ListInstances", mock.Anything, userID, today).
		Return([]*model.QuestInstance{instRow}, nil).Once()

	tmpl, inst, err := qs.CreateTemplate(context.Background(), userID, TemplateInput{Title: "water plants", BasePoints: 2, Recurrence: &rule})
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, tmpl.ID, *inst.TemplateID)
	assert.Equal(t, today, inst.Day)

	templates.AssertExpectations(t)
	instances.AssertExpectations(t)
}
