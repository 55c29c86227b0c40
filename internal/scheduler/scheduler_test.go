package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"questlog/internal/model"
	"questlog/pkg/civil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) GenerateDay(ctx context.Context, userID uuid.UUID, day civil.Date) (int, error) {
	args := m.Called(ctx, userID, day)
	return args.Int(0), args.Error(1)
}

func (m *mockEngine) ReconcileDay(ctx context.Context, userID uuid.UUID, endedDay, today civil.Date) error {
	args := m.Called(ctx, userID, endedDay, today)
	return args.Error(0)
}

func (m *mockEngine) HasUnsettled(ctx context.Context, userID uuid.UUID, day civil.Date) (bool, error) {
	args := m.Called(ctx, userID, day)
	return args.Bool(0), args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) ListUsers(ctx context.Context) ([]*model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

// 15:00 UTC is local midnight in Tokyo (UTC+9) and mid-morning in New
// York, so a single sweep touches exactly the Tokyo user.
func TestTickFiresAtLocalMidnightOnly(t *testing.T) {
	now := time.Date(2025, 6, 15, 15, 0, 0, 0, time.UTC)

	tokyo := &model.User{ID: uuid.New(), Timezone: "Asia/Tokyo"}
	newYork := &model.User{ID: uuid.New(), Timezone: "America/New_York"}

	users := &mockUsers{}
	engine := &mockEngine{}
	r := New(users, engine, Config{})

	users.On("ListUsers", mock.Anything).Return([]*model.User{tokyo, newYork}, nil)

	today := civil.Date("2025-06-16")
	endedDay := civil.Date("2025-06-15")
	engine.On("GenerateDay", mock.Anything, tokyo.ID, today).Return(2, nil).Once()
	engine.On("ReconcileDay", mock.Anything, tokyo.ID, endedDay, today).Return(nil).Once()

	r.tick(context.Background(), now)

	engine.AssertExpectations(t)
	engine.AssertNotCalled(t, "GenerateDay", mock.Anything, newYork.ID, mock.Anything)
	engine.AssertNotCalled(t, "ReconcileDay", mock.Anything, newYork.ID, mock.Anything, mock.Anything)
}

// Generation and reconciliation are independent failure domains: a
// generation error never blocks the settlement of the ended day, and one
// user's failure never aborts another's sweep.
func TestTickFailureIsolation(t *testing.T) {
	now := time.Date(2025, 6, 15, 15, 0, 0, 0, time.UTC)

	broken := &model.User{ID: uuid.New(), Timezone: "Asia/Tokyo"}
	healthy := &model.User{ID: uuid.New(), Timezone: "Asia/Tokyo"}

	users := &mockUsers{}
	engine := &mockEngine{}
	r := New(users, engine, Config{MaxConcurrent: 1})

	users.On("ListUsers", mock.Anything).Return([]*model.User{broken, healthy}, nil)

	today := civil.Date("2025-06-16")
	endedDay := civil.Date("2025-06-15")
	engine.On("GenerateDay", mock.Anything, broken.ID, today).Return(0, errors.New("db down")).Once()
	engine.On("ReconcileDay", mock.Anything, broken.ID, endedDay, today).Return(errors.New("db down")).Once()
	engine.On("GenerateDay", mock.Anything, healthy.ID, today).Return(1, nil).Once()
	engine.On("ReconcileDay", mock.Anything, healthy.ID, endedDay, today).Return(nil).Once()

	r.tick(context.Background(), now)

	engine.AssertExpectations(t)
}

func TestTickSkipsUnresolvableTimezone(t *testing.T) {
	now := time.Date(2025, 6, 15, 15, 0, 0, 0, time.UTC)
	bogus := &model.User{ID: uuid.New(), Timezone: "Mars/Olympus_Mons"}

	users := &mockUsers{}
	engine := &mockEngine{}
	r := New(users, engine, Config{})

	users.On("ListUsers", mock.Anything).Return([]*model.User{bogus}, nil)

	r.tick(context.Background(), now)

	engine.AssertNotCalled(t, "GenerateDay", mock.Anything, mock.Anything, mock.Anything)
	engine.AssertNotCalled(t, "ReconcileDay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// The startup pass reconciles only users left with unsettled work from
// their local yesterday.
func TestBootstrapCatchUp(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	behind := &model.User{ID: uuid.New(), Timezone: "UTC"}
	current := &model.User{ID: uuid.New(), Timezone: "UTC"}

	users := &mockUsers{}
	engine := &mockEngine{}
	r := New(users, engine, Config{})

	users.On("ListUsers", mock.Anything).Return([]*model.User{behind, current}, nil)

	yesterday := civil.Date("2025-06-14")
	today := civil.Date("2025-06-15")
	engine.On("HasUnsettled", mock.Anything, behind.ID, yesterday).Return(true, nil).Once()
	engine.On("HasUnsettled", mock.Anything, current.ID, yesterday).Return(false, nil).Once()
	engine.On("ReconcileDay", mock.Anything, behind.ID, yesterday, today).Return(nil).Once()

	r.bootstrap(context.Background(), now)

	engine.AssertExpectations(t)
	engine.AssertNotCalled(t, "ReconcileDay", mock.Anything, current.ID, mock.Anything, mock.Anything)
}

func TestStartStop(t *testing.T) {
	users := &mockUsers{}
	engine := &mockEngine{}
	// Long interval and delay so neither fires during the test.
	r := New(users, engine, Config{Interval: time.Hour, BootstrapDelay: time.Hour})

	r.Start(context.Background())
	r.Stop()

	// Stop is idempotent enough to call after the loop exits.
	require.NotPanics(t, func() { r.Stop() })
	assert.Equal(t, 0, len(users.Calls))
}
